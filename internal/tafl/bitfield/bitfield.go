// Package bitfield is a compact Copenhagen Hnefatafl model built on 128-bit occupancy masks.
//
// Cells are addressed by zero-based row and column with row 0 at the top of the board.
// The dark side (attackers) moves first. Unlike the algebraic model it keeps no position
// history, so it never refuses a play for repeating a position.
package bitfield

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const Size = 11

type Cell struct {
	Row int
	Col int
}

func (c Cell) Valid() bool { return c.Row >= 0 && c.Row < Size && c.Col >= 0 && c.Col < Size }

// String renders the cell as four digits, row then column: "0703".
func (c Cell) String() string { return fmt.Sprintf("%02d%02d", c.Row, c.Col) }

func (c Cell) index() int { return c.Row*Size + c.Col }

func cellAt(i int) Cell { return Cell{Row: i / Size, Col: i % Size} }

func ParseCell(s string) (Cell, error) {
	if len(s) != 4 {
		return Cell{}, fmt.Errorf("%w: cell %q", ErrMalformed, s)
	}
	r, err1 := strconv.Atoi(s[:2])
	c, err2 := strconv.Atoi(s[2:])
	if err1 != nil || err2 != nil {
		return Cell{}, fmt.Errorf("%w: cell %q", ErrMalformed, s)
	}
	cell := Cell{Row: r, Col: c}
	if !cell.Valid() {
		return Cell{}, fmt.Errorf("%w: %q", ErrOffBoard, s)
	}
	return cell, nil
}

type Side int

const (
	Dark Side = iota
	Light
)

func (s Side) String() string {
	if s == Dark {
		return "dark"
	}
	return "light"
}

func (s Side) Other() Side { return 1 - s }

type Play struct {
	Side Side
	From Cell
	To   Cell
}

func (p Play) String() string { return p.From.String() + "-" + p.To.String() }

func ParsePlay(s string, side Side) (Play, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Play{}, fmt.Errorf("%w %q", ErrMalformed, s)
	}
	f, err := ParseCell(from)
	if err != nil {
		return Play{}, err
	}
	t, err := ParseCell(to)
	if err != nil {
		return Play{}, err
	}
	return Play{Side: side, From: f, To: t}, nil
}

type Status int

const (
	Ongoing Status = iota
	DarkWins
	LightWins
)

func (s Status) String() string {
	switch s {
	case DarkWins:
		return "dark_wins"
	case LightWins:
		return "light_wins"
	}
	return "ongoing"
}

type Piece int

const (
	None Piece = iota
	DarkPiece
	LightPiece
	KingPiece
)

var (
	ErrFinished   = errors.New("bitfield: game finished")
	ErrTurn       = errors.New("bitfield: out of turn")
	ErrOffBoard   = errors.New("bitfield: cell off board")
	ErrMalformed  = errors.New("bitfield: malformed play")
	ErrGeometry   = errors.New("bitfield: not an orthogonal slide")
	ErrOrigin     = errors.New("bitfield: origin holds no piece of the side")
	ErrObstructed = errors.New("bitfield: path obstructed")
	ErrReserved   = errors.New("bitfield: reserved cell")
)

type InvalidPlay struct {
	Play Play
	Err  error
}

func (e *InvalidPlay) Error() string {
	return fmt.Sprintf("bitfield: %s play %s refused: %v", e.Play.Side, e.Play, e.Err)
}

func (e *InvalidPlay) Unwrap() error { return e.Err }

// Package copenhagen is the authoritative Copenhagen Hnefatafl model. Squares are addressed
// algebraically (file a-k, rank 1-11 from the bottom) and plays use the server's notation.
package copenhagen

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const BoardSize = 11

type Vertex struct {
	File int // 0..10 for a..k
	Rank int // 1..11
}

func (v Vertex) Valid() bool {
	return v.File >= 0 && v.File < BoardSize && v.Rank >= 1 && v.Rank <= BoardSize
}

func (v Vertex) String() string {
	return fmt.Sprintf("%c%d", 'a'+rune(v.File), v.Rank)
}

// ParseVertex accepts "d4" or "D4".
func ParseVertex(s string) (Vertex, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 2 {
		return Vertex{}, fmt.Errorf("invalid vertex: %q", s)
	}
	file := int(s[0]) - 'a'
	rank, err := strconv.Atoi(s[1:])
	if err != nil {
		return Vertex{}, fmt.Errorf("invalid rank in vertex: %q", s)
	}
	v := Vertex{File: file, Rank: rank}
	if !v.Valid() {
		return Vertex{}, fmt.Errorf("vertex out of bounds: %q", s)
	}
	return v, nil
}

type Role int

const (
	Roleless Role = iota
	Attacker
	Defender
)

func (r Role) String() string {
	switch r {
	case Attacker:
		return "attacker"
	case Defender:
		return "defender"
	default:
		return "roleless"
	}
}

func (r Role) Opponent() Role {
	switch r {
	case Attacker:
		return Defender
	case Defender:
		return Attacker
	default:
		return Roleless
	}
}

func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "attacker", "a":
		return Attacker, nil
	case "defender", "d":
		return Defender, nil
	case "roleless", "_":
		return Roleless, nil
	default:
		return Roleless, fmt.Errorf("unknown role: %q", s)
	}
}

// Play is a move or a resignation by one role.
type Play struct {
	Role   Role
	From   Vertex
	To     Vertex
	Resign bool
}

func Resignation(role Role) Play { return Play{Role: role, Resign: true} }

// String renders the wire form, e.g. "play attacker d4 d9".
func (p Play) String() string {
	if p.Resign {
		return fmt.Sprintf("play %s resigns _", p.Role)
	}
	return fmt.Sprintf("play %s %s %s", p.Role, p.From, p.To)
}

// Move renders the compact form used in logs and transcripts, e.g. "d4-d9".
func (p Play) Move() string {
	if p.Resign {
		return "resigns"
	}
	return p.From.String() + "-" + p.To.String()
}

// ParsePlay reads wire tokens starting at the "play" keyword:
// ["play", "attacker", "d4", "d9"] or ["play", "defender", "resigns", "_"].
func ParsePlay(tokens []string) (Play, error) {
	if len(tokens) < 3 || tokens[0] != "play" {
		return Play{}, fmt.Errorf("not a play: %v", tokens)
	}
	role, err := ParseRole(tokens[1])
	if err != nil {
		return Play{}, err
	}
	if role == Roleless {
		return Play{}, errors.New("play by roleless side")
	}
	if strings.EqualFold(tokens[2], "resigns") {
		return Resignation(role), nil
	}
	if len(tokens) < 4 {
		return Play{}, fmt.Errorf("play without destination: %v", tokens)
	}
	from, err := ParseVertex(tokens[2])
	if err != nil {
		return Play{}, err
	}
	to, err := ParseVertex(tokens[3])
	if err != nil {
		return Play{}, err
	}
	return Play{Role: role, From: from, To: to}, nil
}

// ParseMove reads the compact "d4-d9" form for the given role.
func ParseMove(role Role, s string) (Play, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return Play{}, fmt.Errorf("invalid move: %q", s)
	}
	return ParsePlay([]string{"play", role.String(), parts[0], parts[1]})
}

type Status int

const (
	Ongoing Status = iota
	AttackerWins
	DefenderWins
)

func (s Status) String() string {
	switch s {
	case AttackerWins:
		return "attacker_wins"
	case DefenderWins:
		return "defender_wins"
	default:
		return "ongoing"
	}
}

func winsFor(r Role) Status {
	if r == Attacker {
		return AttackerWins
	}
	return DefenderWins
}

type Space uint8

const (
	Empty Space = iota
	AttackerPiece
	DefenderPiece
	King
)

func (s Space) Role() Role {
	switch s {
	case AttackerPiece:
		return Attacker
	case DefenderPiece, King:
		return Defender
	default:
		return Roleless
	}
}

func (s Space) Rune() rune {
	switch s {
	case AttackerPiece:
		return 'A'
	case DefenderPiece:
		return 'D'
	case King:
		return 'K'
	default:
		return '.'
	}
}

var (
	ErrGameOver    = errors.New("game is over")
	ErrWrongTurn   = errors.New("not this role's turn")
	ErrOutOfBounds = errors.New("vertex out of bounds")
	ErrNotStraight = errors.New("play is not along a rank or file")
	ErrNoPiece     = errors.New("no piece of this role on origin")
	ErrBlocked     = errors.New("path or destination is occupied")
	ErrRestricted  = errors.New("only the king may stop on a restricted square")
	ErrRepetition  = errors.New("play repeats a position for the third time")
)

// InvalidPlay is returned when a play is rejected; the game state is unchanged.
type InvalidPlay struct {
	Play Play
	Err  error
}

func (e *InvalidPlay) Error() string {
	return fmt.Sprintf("invalid play %s %s: %v", e.Play.Role, e.Play.Move(), e.Err)
}

func (e *InvalidPlay) Unwrap() error { return e.Err }

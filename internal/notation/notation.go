// Package notation translates between the server's algebraic notation and the
// row/column notation of the bitfield model.
//
// Algebraic coordinates:
//   - files a-k (0-10, left to right)
//   - ranks 1-11 from the bottom of the board
//
// Bitfield coordinates:
//   - rows 0-10 from the top of the board
//   - columns 0-10 left to right
//
// d4 is (row 7, col 3), a11 is (0, 0), k1 is (10, 10).
//
// Every function panics on out-of-board input or a roleless role: such values
// never come from a validated model and indicate a programming error.
package notation

import (
	"fmt"

	"github.com/park285/tafl-htp-bot/internal/tafl/bitfield"
	"github.com/park285/tafl-htp-bot/internal/tafl/copenhagen"
)

func ToCell(v copenhagen.Vertex) bitfield.Cell {
	if !v.Valid() {
		panic(fmt.Sprintf("notation: vertex off board: %+v", v))
	}
	return bitfield.Cell{Row: copenhagen.BoardSize - v.Rank, Col: v.File}
}

func ToVertex(c bitfield.Cell) copenhagen.Vertex {
	if !c.Valid() {
		panic(fmt.Sprintf("notation: cell off board: %+v", c))
	}
	return copenhagen.Vertex{File: c.Col, Rank: copenhagen.BoardSize - c.Row}
}

// ToSide maps attacker to dark and defender to light.
func ToSide(r copenhagen.Role) bitfield.Side {
	switch r {
	case copenhagen.Attacker:
		return bitfield.Dark
	case copenhagen.Defender:
		return bitfield.Light
	}
	panic("notation: roleless role has no side")
}

func ToRole(s bitfield.Side) copenhagen.Role {
	switch s {
	case bitfield.Dark:
		return copenhagen.Attacker
	case bitfield.Light:
		return copenhagen.Defender
	}
	panic(fmt.Sprintf("notation: unknown side %d", s))
}

// ToMirror translates a move. Resignations have no bitfield form; callers
// route them through bitfield.Game.Resign.
func ToMirror(p copenhagen.Play) bitfield.Play {
	if p.Resign {
		panic("notation: resignation has no bitfield play")
	}
	return bitfield.Play{Side: ToSide(p.Role), From: ToCell(p.From), To: ToCell(p.To)}
}

func ToPrimary(p bitfield.Play) copenhagen.Play {
	return copenhagen.Play{Role: ToRole(p.Side), From: ToVertex(p.From), To: ToVertex(p.To)}
}

// SameStatus reports whether both models agree on the outcome.
func SameStatus(a copenhagen.Status, b bitfield.Status) bool {
	switch a {
	case copenhagen.AttackerWins:
		return b == bitfield.DarkWins
	case copenhagen.DefenderWins:
		return b == bitfield.LightWins
	}
	return b == bitfield.Ongoing
}

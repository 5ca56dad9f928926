package bitfield

import (
	"fmt"
	"math/bits"
)

// mask covers 121 cells: bit i of lo for i < 64, bit i-64 of hi otherwise.
type mask struct{ lo, hi uint64 }

func (m mask) has(i int) bool {
	if i < 64 {
		return m.lo&(1<<uint(i)) != 0
	}
	return m.hi&(1<<uint(i-64)) != 0
}

func (m *mask) set(i int) {
	if i < 64 {
		m.lo |= 1 << uint(i)
		return
	}
	m.hi |= 1 << uint(i-64)
}

func (m *mask) clear(i int) {
	if i < 64 {
		m.lo &^= 1 << uint(i)
		return
	}
	m.hi &^= 1 << uint(i-64)
}

func (m mask) or(o mask) mask { return mask{m.lo | o.lo, m.hi | o.hi} }

const throneIdx = 5*Size + 5

var (
	reserved mask
	cornerM  mask
	steps    = [4]Cell{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
)

func init() {
	for _, i := range []int{0, Size - 1, Size * (Size - 1), Size*Size - 1} {
		cornerM.set(i)
	}
	reserved = cornerM
	reserved.set(throneIdx)
}

// Game is not safe for concurrent use.
type Game struct {
	dark, light, king mask
	turn              Side
	status            Status
	history           []Play
}

func NewGame() *Game {
	g := &Game{turn: Dark}
	layout := []string{
		"...XXXXX...",
		".....X.....",
		"...........",
		"X....O....X",
		"X...OOO...X",
		"XX.OO#OO.XX",
		"X...OOO...X",
		"X....O....X",
		"...........",
		".....X.....",
		"...XXXXX...",
	}
	for r, line := range layout {
		for c, ch := range line {
			i := r*Size + c
			switch ch {
			case 'X':
				g.dark.set(i)
			case 'O':
				g.light.set(i)
			case '#':
				g.king.set(i)
			}
		}
	}
	return g
}

func (g *Game) Turn() Side     { return g.turn }
func (g *Game) Status() Status { return g.status }

func (g *Game) Clone() *Game {
	c := *g
	c.history = append([]Play(nil), g.history...)
	return &c
}

// Plays returns the moves applied since the start position.
func (g *Game) Plays() []Play { return append([]Play(nil), g.history...) }

// FromRows builds a position from 11 rows, top first, using 'X' for dark,
// 'O' for light, '#' for the king and '.' for empty cells.
func FromRows(rows []string, turn Side) (*Game, error) {
	if len(rows) != Size {
		return nil, fmt.Errorf("bitfield: need %d rows, got %d", Size, len(rows))
	}
	g := &Game{turn: turn}
	kings := 0
	for r, line := range rows {
		if len(line) != Size {
			return nil, fmt.Errorf("bitfield: row %d has %d cells", r, len(line))
		}
		for c, ch := range line {
			i := r*Size + c
			switch ch {
			case 'X':
				g.dark.set(i)
			case 'O':
				g.light.set(i)
			case '#':
				g.king.set(i)
				kings++
			case '.':
			default:
				return nil, fmt.Errorf("bitfield: unknown cell %q at %d,%d", ch, r, c)
			}
		}
	}
	if kings != 1 {
		return nil, fmt.Errorf("bitfield: need exactly one king, got %d", kings)
	}
	return g, nil
}

// Counts returns the number of dark and light pieces; the king is not counted.
func (g *Game) Counts() (dark, light int) {
	return bits.OnesCount64(g.dark.lo) + bits.OnesCount64(g.dark.hi),
		bits.OnesCount64(g.light.lo) + bits.OnesCount64(g.light.hi)
}

// King returns the king's cell; ok is false only on a malformed position.
func (g *Game) King() (Cell, bool) {
	if g.king.lo != 0 {
		return cellAt(bits.TrailingZeros64(g.king.lo)), true
	}
	if g.king.hi != 0 {
		return cellAt(64 + bits.TrailingZeros64(g.king.hi)), true
	}
	return Cell{}, false
}

func (g *Game) Occupant(c Cell) Piece {
	if !c.Valid() {
		return None
	}
	return g.pieceAt(c.index())
}

func (g *Game) pieceAt(i int) Piece {
	switch {
	case g.dark.has(i):
		return DarkPiece
	case g.light.has(i):
		return LightPiece
	case g.king.has(i):
		return KingPiece
	}
	return None
}

func (g *Game) occupied() mask { return g.dark.or(g.light).or(g.king) }

func (g *Game) owns(s Side, i int) bool {
	if s == Dark {
		return g.dark.has(i)
	}
	return g.light.has(i) || g.king.has(i)
}

// DoPlay validates and applies p. A refused play leaves the game untouched.
func (g *Game) DoPlay(p Play) error {
	if err := g.validate(p); err != nil {
		return &InvalidPlay{Play: p, Err: err}
	}
	g.apply(p)
	return nil
}

// Peek returns the position after p, leaving g untouched. The result carries no
// move history, which keeps it cheap enough for search.
func (g *Game) Peek(p Play) (*Game, error) {
	if err := g.validate(p); err != nil {
		return nil, &InvalidPlay{Play: p, Err: err}
	}
	c := *g
	c.history = nil
	c.apply(p)
	c.history = nil
	return &c, nil
}

// Resign concedes the game for s, on either side's turn.
func (g *Game) Resign(s Side) error {
	if g.status != Ongoing {
		return ErrFinished
	}
	if s != Dark && s != Light {
		return ErrTurn
	}
	if s == Dark {
		g.status = LightWins
	} else {
		g.status = DarkWins
	}
	return nil
}

func (g *Game) validate(p Play) error {
	if g.status != Ongoing {
		return ErrFinished
	}
	if p.Side != g.turn {
		return ErrTurn
	}
	if !p.From.Valid() || !p.To.Valid() {
		return ErrOffBoard
	}
	dr, dc := p.To.Row-p.From.Row, p.To.Col-p.From.Col
	if (dr == 0) == (dc == 0) {
		return ErrGeometry
	}
	from := p.From.index()
	if !g.owns(p.Side, from) {
		return ErrOrigin
	}
	step := Cell{Row: clamp(dr), Col: clamp(dc)}
	occ := g.occupied()
	for c := (Cell{p.From.Row + step.Row, p.From.Col + step.Col}); ; c = (Cell{c.Row + step.Row, c.Col + step.Col}) {
		if occ.has(c.index()) {
			return ErrObstructed
		}
		if c == p.To {
			break
		}
	}
	if reserved.has(p.To.index()) && !g.king.has(from) {
		return ErrReserved
	}
	return nil
}

func (g *Game) apply(p Play) {
	from, to := p.From.index(), p.To.index()
	isKing := g.king.has(from)
	switch {
	case isKing:
		g.king.clear(from)
		g.king.set(to)
	case p.Side == Dark:
		g.dark.clear(from)
		g.dark.set(to)
	default:
		g.light.clear(from)
		g.light.set(to)
	}

	g.captureAround(p.Side, p.To)
	g.turn = p.Side.Other()
	g.history = append(g.history, p)

	switch {
	case isKing && cornerM.has(to):
		g.status = LightWins
	case p.Side == Dark && g.kingSurrounded():
		g.status = DarkWins
	case !g.canMove(g.turn):
		if p.Side == Dark {
			g.status = DarkWins
		} else {
			g.status = LightWins
		}
	}
}

func (g *Game) captureAround(s Side, at Cell) {
	for _, d := range steps {
		victim := Cell{at.Row + d.Row, at.Col + d.Col}
		anvil := Cell{victim.Row + d.Row, victim.Col + d.Col}
		if !anvil.Valid() {
			continue
		}
		vi, ai := victim.index(), anvil.index()
		var enemy *mask
		if s == Dark {
			enemy = &g.light
		} else {
			enemy = &g.dark
		}
		if !enemy.has(vi) {
			continue
		}
		if g.owns(s, ai) || g.hostileTo(s.Other(), ai) {
			enemy.clear(vi)
		}
	}
}

// hostileTo reports whether an empty reserved cell sides against a piece of side v.
func (g *Game) hostileTo(v Side, i int) bool {
	if cornerM.has(i) {
		return true
	}
	if i != throneIdx {
		return false
	}
	return v == Dark || !g.king.has(i)
}

func (g *Game) kingSurrounded() bool {
	kc, ok := g.King()
	if !ok {
		return false
	}
	for _, d := range steps {
		n := Cell{kc.Row + d.Row, kc.Col + d.Col}
		if !n.Valid() {
			return false
		}
		ni := n.index()
		if g.dark.has(ni) || (ni == throneIdx && !g.occupied().has(ni)) {
			continue
		}
		return false
	}
	return true
}

func (g *Game) canMove(s Side) bool {
	found := false
	g.walk(s, func(Play) bool {
		found = true
		return false
	})
	return found
}

// LegalPlays lists every play available to the side to move.
func (g *Game) LegalPlays() []Play {
	if g.status != Ongoing {
		return nil
	}
	var out []Play
	g.walk(g.turn, func(p Play) bool {
		out = append(out, p)
		return true
	})
	return out
}

func (g *Game) walk(s Side, fn func(Play) bool) {
	occ := g.occupied()
	for i := 0; i < Size*Size; i++ {
		if !g.owns(s, i) {
			continue
		}
		isKing := g.king.has(i)
		from := cellAt(i)
		for _, d := range steps {
			for c := (Cell{from.Row + d.Row, from.Col + d.Col}); c.Valid() && !occ.has(c.index()); c = (Cell{c.Row + d.Row, c.Col + d.Col}) {
				if !isKing && reserved.has(c.index()) {
					continue
				}
				if !fn(Play{Side: s, From: from, To: c}) {
					return
				}
			}
		}
	}
}

func clamp(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}

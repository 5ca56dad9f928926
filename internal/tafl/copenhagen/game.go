package copenhagen

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// startLayout is listed from rank 11 down to rank 1.
var startLayout = [BoardSize]string{
	"...AAAAA...",
	".....A.....",
	"...........",
	"A....D....A",
	"A...DDD...A",
	"AA.DDKDD.AA",
	"A...DDD...A",
	"A....D....A",
	"...........",
	".....A.....",
	"...AAAAA...",
}

var (
	throne  = Vertex{File: 5, Rank: 6}
	corners = [4]Vertex{{0, 1}, {0, BoardSize}, {BoardSize - 1, 1}, {BoardSize - 1, BoardSize}}
	dirs    = [4][2]int{{0, 1}, {0, -1}, {1, 0}, {-1, 0}}
)

type board [BoardSize][BoardSize]Space // [rank-1][file]

func (b *board) at(v Vertex) Space     { return b[v.Rank-1][v.File] }
func (b *board) set(v Vertex, s Space) { b[v.Rank-1][v.File] = s }

// Game holds the board, the side to move and the position history used by the
// repetition rule. The zero value is not usable; call NewGame.
type Game struct {
	board  board
	turn   Role
	status Status
	plays  []Play
	seen   map[uint64]int
	// maxSeen lets legal play generation skip the repetition probe until some
	// position has occurred twice.
	maxSeen int
}

func NewGame() *Game {
	g := &Game{turn: Attacker, seen: make(map[uint64]int)}
	for i, row := range startLayout {
		rank := BoardSize - i
		for file, c := range row {
			v := Vertex{File: file, Rank: rank}
			switch c {
			case 'A':
				g.board.set(v, AttackerPiece)
			case 'D':
				g.board.set(v, DefenderPiece)
			case 'K':
				g.board.set(v, King)
			}
		}
	}
	g.remember(positionKey(&g.board, g.turn))
	return g
}

func (g *Game) Turn() Role       { return g.turn }
func (g *Game) Status() Status   { return g.status }
func (g *Game) At(v Vertex) Space { return g.board.at(v) }

func (g *Game) Plays() []Play {
	return append([]Play(nil), g.plays...)
}

func (g *Game) Clone() *Game {
	c := *g
	c.plays = append([]Play(nil), g.plays...)
	c.seen = make(map[uint64]int, len(g.seen))
	for k, v := range g.seen {
		c.seen[k] = v
	}
	return &c
}

// Play validates p and applies it. On rejection the game is unchanged and the
// error is an *InvalidPlay.
func (g *Game) Play(p Play) error {
	if g.status != Ongoing {
		return &InvalidPlay{Play: p, Err: ErrGameOver}
	}
	// either side may resign at any point; the side to move stays as it was
	if p.Resign {
		if p.Role != Attacker && p.Role != Defender {
			return &InvalidPlay{Play: p, Err: ErrWrongTurn}
		}
		g.plays = append(g.plays, p)
		g.status = winsFor(p.Role.Opponent())
		return nil
	}
	if p.Role != g.turn {
		return &InvalidPlay{Play: p, Err: ErrWrongTurn}
	}
	if err := g.board.check(p); err != nil {
		return &InvalidPlay{Play: p, Err: err}
	}

	next := g.board
	result := next.apply(p)
	key := positionKey(&next, p.Role.Opponent())
	if g.seen[key] >= 2 {
		return &InvalidPlay{Play: p, Err: ErrRepetition}
	}

	g.board = next
	g.plays = append(g.plays, p)
	g.turn = p.Role.Opponent()
	g.remember(key)

	switch {
	case result != Ongoing:
		g.status = result
	case !g.hasLegalPlay():
		g.status = winsFor(p.Role)
	}
	return nil
}

// LegalPlays lists every play the side to move may make.
func (g *Game) LegalPlays() []Play {
	if g.status != Ongoing {
		return nil
	}
	var out []Play
	g.eachPlay(func(p Play) bool {
		out = append(out, p)
		return true
	})
	return out
}

func (g *Game) hasLegalPlay() bool {
	found := false
	g.eachPlay(func(Play) bool {
		found = true
		return false
	})
	return found
}

func (g *Game) eachPlay(fn func(Play) bool) {
	for rank := 1; rank <= BoardSize; rank++ {
		for file := 0; file < BoardSize; file++ {
			from := Vertex{File: file, Rank: rank}
			piece := g.board.at(from)
			if piece == Empty || piece.Role() != g.turn {
				continue
			}
			for _, d := range dirs {
				to := Vertex{File: file + d[0], Rank: rank + d[1]}
				for to.Valid() && g.board.at(to) == Empty {
					if piece == King || !restricted(to) {
						p := Play{Role: g.turn, From: from, To: to}
						if g.maxSeen < 2 || !g.repeats(p) {
							if !fn(p) {
								return
							}
						}
					}
					to = Vertex{File: to.File + d[0], Rank: to.Rank + d[1]}
				}
			}
		}
	}
}

func (g *Game) repeats(p Play) bool {
	next := g.board
	next.apply(p)
	return g.seen[positionKey(&next, p.Role.Opponent())] >= 2
}

func (g *Game) remember(key uint64) {
	g.seen[key]++
	if g.seen[key] > g.maxSeen {
		g.maxSeen = g.seen[key]
	}
}

// check validates geometry and occupancy; repetition is checked by the caller.
func (b *board) check(p Play) error {
	if !p.From.Valid() || !p.To.Valid() {
		return ErrOutOfBounds
	}
	if p.From == p.To || (p.From.File != p.To.File && p.From.Rank != p.To.Rank) {
		return ErrNotStraight
	}
	piece := b.at(p.From)
	if piece == Empty || piece.Role() != p.Role {
		return ErrNoPiece
	}
	df, dr := sign(p.To.File-p.From.File), sign(p.To.Rank-p.From.Rank)
	for v := (Vertex{p.From.File + df, p.From.Rank + dr}); ; v = (Vertex{v.File + df, v.Rank + dr}) {
		if b.at(v) != Empty {
			return ErrBlocked
		}
		if v == p.To {
			break
		}
	}
	if piece != King && restricted(p.To) {
		return ErrRestricted
	}
	return nil
}

// apply moves the piece, resolves captures and reports a decided game, if any.
func (b *board) apply(p Play) Status {
	piece := b.at(p.From)
	b.set(p.From, Empty)
	b.set(p.To, piece)

	if piece == King && isCorner(p.To) {
		return DefenderWins
	}

	for _, d := range dirs {
		adj := Vertex{p.To.File + d[0], p.To.Rank + d[1]}
		far := Vertex{adj.File + d[0], adj.Rank + d[1]}
		if !adj.Valid() || !far.Valid() {
			continue
		}
		victim := b.at(adj)
		if victim == Empty || victim == King || victim.Role() == p.Role {
			continue
		}
		if b.at(far).Role() == p.Role || b.hostile(far, victim) {
			b.set(adj, Empty)
		}
	}

	if p.Role == Attacker && b.kingCaptured() {
		return AttackerWins
	}
	return Ongoing
}

// hostile reports whether an empty restricted square acts as a capturing partner
// against victim.
func (b *board) hostile(v Vertex, victim Space) bool {
	if isCorner(v) {
		return true
	}
	if v == throne {
		if victim == AttackerPiece {
			return true
		}
		return b.at(v) == Empty
	}
	return false
}

func (b *board) kingCaptured() bool {
	var king Vertex
	found := false
	for rank := 1; rank <= BoardSize && !found; rank++ {
		for file := 0; file < BoardSize; file++ {
			if b[rank-1][file] == King {
				king = Vertex{File: file, Rank: rank}
				found = true
				break
			}
		}
	}
	if !found {
		return false
	}
	for _, d := range dirs {
		n := Vertex{king.File + d[0], king.Rank + d[1]}
		if !n.Valid() {
			return false
		}
		if b.at(n) == AttackerPiece || (n == throne && b.at(n) == Empty) {
			continue
		}
		return false
	}
	return true
}

func restricted(v Vertex) bool { return v == throne || isCorner(v) }

func isCorner(v Vertex) bool {
	for _, c := range corners {
		if v == c {
			return true
		}
	}
	return false
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}

func positionKey(b *board, turn Role) uint64 {
	h := fnv.New64a()
	var buf [BoardSize*BoardSize + 1]byte
	i := 0
	for _, row := range b {
		for _, s := range row {
			buf[i] = byte(s)
			i++
		}
	}
	buf[i] = byte(turn)
	_, _ = h.Write(buf[:])
	return h.Sum64()
}

// Rows renders the board from rank 11 down to rank 1 using A, D, K and '.'.
func (g *Game) Rows() []string {
	rows := make([]string, 0, BoardSize)
	for rank := BoardSize; rank >= 1; rank-- {
		var sb strings.Builder
		for file := 0; file < BoardSize; file++ {
			sb.WriteRune(g.board[rank-1][file].Rune())
		}
		rows = append(rows, sb.String())
	}
	return rows
}

func (g *Game) String() string {
	var sb strings.Builder
	for i, row := range g.Rows() {
		fmt.Fprintf(&sb, "%2d %s\n", BoardSize-i, row)
	}
	sb.WriteString("   abcdefghijk\n")
	return sb.String()
}

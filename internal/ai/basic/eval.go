package basic

import "github.com/park285/tafl-htp-bot/internal/tafl/bitfield"

const (
	winScore = 1_000_000
	// scores above this are forced wins or losses found by search
	mateBand = winScore - 1000

	darkValue       = 100
	lightValue      = 170
	cornerDistValue = 35
	kingRayValue    = 20
	kingGuardValue  = 45
	openCornerValue = 400
)

var corners = [4]bitfield.Cell{{Row: 0, Col: 0}, {Row: 0, Col: 10}, {Row: 10, Col: 0}, {Row: 10, Col: 10}}

// Evaluate scores a position from the dark side's point of view.
func Evaluate(g *bitfield.Game) int {
	switch g.Status() {
	case bitfield.DarkWins:
		return winScore
	case bitfield.LightWins:
		return -winScore
	}
	dark, light := g.Counts()
	score := darkValue*dark - lightValue*light

	k, ok := g.King()
	if !ok {
		return winScore
	}
	score += cornerDistValue * cornerDistance(k)

	rays, open := kingRays(g, k)
	score -= kingRayValue * rays
	score -= openCornerValue * open

	for _, d := range [4]bitfield.Cell{{Row: -1}, {Row: 1}, {Col: -1}, {Col: 1}} {
		n := bitfield.Cell{Row: k.Row + d.Row, Col: k.Col + d.Col}
		if g.Occupant(n) == bitfield.DarkPiece {
			score += kingGuardValue
		}
	}
	return score
}

func cornerDistance(c bitfield.Cell) int {
	best := 2 * bitfield.Size
	for _, k := range corners {
		d := abs(c.Row-k.Row) + abs(c.Col-k.Col)
		if d < best {
			best = d
		}
	}
	return best
}

// kingRays counts empty cells the king can reach in one move and how many of
// its rays end on a corner.
func kingRays(g *bitfield.Game, k bitfield.Cell) (reach, openCorners int) {
	for _, d := range [4]bitfield.Cell{{Row: -1}, {Row: 1}, {Col: -1}, {Col: 1}} {
		c := bitfield.Cell{Row: k.Row + d.Row, Col: k.Col + d.Col}
		for c.Valid() && g.Occupant(c) == bitfield.None {
			reach++
			if isCorner(c) {
				openCorners++
			}
			c = bitfield.Cell{Row: c.Row + d.Row, Col: c.Col + d.Col}
		}
	}
	return reach, openCorners
}

func isCorner(c bitfield.Cell) bool {
	for _, k := range corners {
		if c == k {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

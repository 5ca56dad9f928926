// Package montecarlo is the fallback proposer. It scores every legal play of the
// authoritative model with bounded random playouts until its budget runs out.
package montecarlo

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/tafl-htp-bot/internal/obslog"
	"github.com/park285/tafl-htp-bot/internal/tafl/copenhagen"
)

var ErrGameOver = errors.New("montecarlo: game is not in progress")

const DefaultDepth = 20

type Proposer struct {
	depth  int
	randMu sync.Mutex
	rand   *rand.Rand
}

func New(depth int, seed int64) *Proposer {
	if depth <= 0 {
		depth = DefaultDepth
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Proposer{depth: depth, rand: rand.New(rand.NewSource(seed))}
}

func (m *Proposer) Name() string { return "montecarlo" }

type stat struct {
	play   copenhagen.Play
	total  float64
	visits int
}

func (s stat) mean() float64 {
	if s.visits == 0 {
		return 0
	}
	return s.total / float64(s.visits)
}

// Propose returns a legal play whenever g is ongoing. With no legal play the side
// to move resigns. Every candidate gets at least one playout regardless of budget.
func (m *Proposer) Propose(ctx context.Context, g *copenhagen.Game, budget time.Duration) (copenhagen.Play, error) {
	if g.Status() != copenhagen.Ongoing {
		return copenhagen.Play{}, ErrGameOver
	}
	me := g.Turn()
	plays := g.LegalPlays()
	if len(plays) == 0 {
		return copenhagen.Resignation(me), nil
	}
	if len(plays) == 1 {
		return plays[0], nil
	}

	m.randMu.Lock()
	defer m.randMu.Unlock()

	start := time.Now()
	deadline := start.Add(budget)
	stats := make([]stat, len(plays))
	for i, p := range plays {
		stats[i].play = p
	}

	rounds := 0
	for {
		for i := range stats {
			child := g.Clone()
			if err := child.Play(stats[i].play); err != nil {
				continue
			}
			stats[i].total += m.playout(child, me)
			stats[i].visits++
		}
		rounds++
		if time.Now().After(deadline) || ctx.Err() != nil {
			break
		}
	}

	best := 0
	for i := range stats {
		if stats[i].mean() > stats[best].mean() {
			best = i
		}
	}
	obslog.L().Debug("montecarlo_search",
		zap.String("play", stats[best].play.Move()),
		zap.Float64("mean", stats[best].mean()),
		zap.Int("rounds", rounds),
		zap.Duration("elapsed", time.Since(start)))
	return stats[best].play, nil
}

// playout plays random moves up to the depth limit and scores the result for me:
// 1 for a win, 0 for a loss, a material estimate in between otherwise.
func (m *Proposer) playout(g *copenhagen.Game, me copenhagen.Role) float64 {
	for ply := 0; ply < m.depth && g.Status() == copenhagen.Ongoing; ply++ {
		plays := g.LegalPlays()
		if len(plays) == 0 {
			break
		}
		if err := g.Play(plays[m.rand.Intn(len(plays))]); err != nil {
			break
		}
	}
	switch g.Status() {
	case copenhagen.AttackerWins:
		return outcome(me == copenhagen.Attacker)
	case copenhagen.DefenderWins:
		return outcome(me == copenhagen.Defender)
	}
	return material(g, me)
}

func outcome(won bool) float64 {
	if won {
		return 1
	}
	return 0
}

// material maps the piece balance to (0.1, 0.9). Defenders are fewer, so each
// counts double.
func material(g *copenhagen.Game, me copenhagen.Role) float64 {
	var a, d int
	for _, row := range g.Rows() {
		for _, c := range row {
			switch c {
			case 'A':
				a++
			case 'D', 'K':
				d++
			}
		}
	}
	balance := float64(a-2*d) / 48.0 // attacker's view, roughly within [-1, 1]
	if me == copenhagen.Defender {
		balance = -balance
	}
	v := 0.5 + 0.4*balance
	if v < 0.1 {
		v = 0.1
	}
	if v > 0.9 {
		v = 0.9
	}
	return v
}

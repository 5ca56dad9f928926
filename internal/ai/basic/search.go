// Package basic is the built-in move proposer: iterative-deepening alpha-beta
// over the bitfield model, followed by a weighted pick among the best moves.
package basic

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/tafl-htp-bot/internal/obslog"
	"github.com/park285/tafl-htp-bot/internal/presets"
	"github.com/park285/tafl-htp-bot/internal/tafl/bitfield"
)

var ErrNoPlay = errors.New("basic: no legal play")

type Candidate struct {
	Play   bitfield.Play
	Score  int // from the mover's point of view
	Forced bool
}

type Result struct {
	Candidates []Candidate
	Chosen     Candidate
	Depth      int
	Nodes      int64
	Elapsed    time.Duration
}

type Proposer struct {
	preset presets.Preset
	randMu sync.Mutex
	rand   *rand.Rand
}

func New(p presets.Preset, seed int64) *Proposer {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Proposer{preset: p, rand: rand.New(rand.NewSource(seed))}
}

func (b *Proposer) Name() string { return "basic" }

func (b *Proposer) Propose(ctx context.Context, g *bitfield.Game, budget time.Duration) (bitfield.Play, error) {
	res, err := b.Search(ctx, g, budget)
	if err != nil {
		return bitfield.Play{}, err
	}
	obslog.L().Debug("basic_search",
		zap.String("play", res.Chosen.Play.String()),
		zap.Int("score", res.Chosen.Score),
		zap.Int("depth", res.Depth),
		zap.Int64("nodes", res.Nodes),
		zap.Duration("elapsed", res.Elapsed))
	return res.Chosen.Play, nil
}

// Search always completes depth 1; deeper iterations run until the preset's
// search depth or the budget is reached.
func (b *Proposer) Search(ctx context.Context, g *bitfield.Game, budget time.Duration) (Result, error) {
	start := time.Now()
	if g.Status() != bitfield.Ongoing {
		return Result{}, fmt.Errorf("%w: game finished", ErrNoPlay)
	}
	plays := g.LegalPlays()
	if len(plays) == 0 {
		return Result{}, ErrNoPlay
	}

	s := &searcher{ctx: ctx, deadline: start.Add(budget)}
	cands := make([]Candidate, len(plays))
	for i, p := range plays {
		cands[i] = Candidate{Play: p}
	}

	depth := 0
	for d := 1; d <= b.preset.SearchDepth; d++ {
		next := make([]Candidate, len(cands))
		copy(next, cands)
		for i := range next {
			child, err := g.Peek(next[i].Play)
			if err != nil {
				return Result{}, err
			}
			next[i].Score = -s.negamax(child, d-1, -winScore-1, winScore+1, 1)
			if d > 1 && s.stopped {
				break
			}
		}
		if d > 1 && s.stopped {
			break
		}
		sort.SliceStable(next, func(i, j int) bool { return next[i].Score > next[j].Score })
		cands = next
		depth = d
		if cands[0].Score >= mateBand || s.timeUp() {
			break
		}
	}

	b.randMu.Lock()
	ranked := make([]Candidate, len(cands))
	for i, c := range cands {
		c.Score = jitter(c.Score, b.preset.EvalNoise, b.rand)
		c.Forced = c.Score >= mateBand || len(cands) == 1
		ranked[i] = c
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	chosen, err := SelectCandidate(b.preset, ranked, b.rand)
	b.randMu.Unlock()
	if err != nil {
		return Result{}, err
	}

	return Result{
		Candidates: ranked,
		Chosen:     chosen,
		Depth:      depth,
		Nodes:      s.nodes,
		Elapsed:    time.Since(start),
	}, nil
}

type searcher struct {
	ctx      context.Context
	deadline time.Time
	nodes    int64
	stopped  bool
}

func (s *searcher) timeUp() bool {
	return time.Now().After(s.deadline) || s.ctx.Err() != nil
}

func (s *searcher) expired() bool {
	s.nodes++
	if !s.stopped && s.nodes&1023 == 0 && s.timeUp() {
		s.stopped = true
	}
	return s.stopped
}

// negamax returns the score from the point of view of the side to move in g.
func (s *searcher) negamax(g *bitfield.Game, depth, alpha, beta, ply int) int {
	if g.Status() != bitfield.Ongoing || depth == 0 {
		v := Evaluate(g)
		switch {
		case v >= winScore:
			v -= ply
		case v <= -winScore:
			v += ply
		}
		if g.Turn() == bitfield.Light {
			v = -v
		}
		return v
	}
	if s.expired() {
		return 0
	}
	best := -winScore - 1
	for _, p := range g.LegalPlays() {
		child, err := g.Peek(p)
		if err != nil {
			continue
		}
		v := -s.negamax(child, depth-1, -beta, -alpha, ply+1)
		if s.stopped {
			return 0
		}
		if v > best {
			best = v
		}
		if v > alpha {
			alpha = v
		}
		if alpha >= beta {
			break
		}
	}
	return best
}

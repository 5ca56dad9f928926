package extengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/park285/tafl-htp-bot/internal/obslog"
	"github.com/park285/tafl-htp-bot/internal/tafl/bitfield"
)

var ErrNoBestMove = errors.New("extengine: engine returned no move")

// Proposer asks a pooled engine for the best move. Positions are sent as the
// move list from the start position, so g must descend from bitfield.NewGame.
type Proposer struct {
	pool *Pool
}

func New(pool *Pool) *Proposer { return &Proposer{pool: pool} }

func (e *Proposer) Name() string { return "external" }

func (e *Proposer) Propose(ctx context.Context, g *bitfield.Game, budget time.Duration) (bitfield.Play, error) {
	start := time.Now()
	session, err := e.pool.Acquire(ctx)
	if err != nil {
		return bitfield.Play{}, fmt.Errorf("acquire engine: %w", err)
	}
	var releaseErr error
	defer func() { e.pool.Release(session, releaseErr) }()

	if err := session.NewGame(ctx); err != nil {
		releaseErr = err
		return bitfield.Play{}, err
	}

	history := g.Plays()
	moves := make([]string, len(history))
	for i, p := range history {
		moves[i] = p.String()
	}
	resp, err := session.Search(ctx, SearchRequest{Moves: moves, MoveTime: budget})
	if err != nil {
		releaseErr = err
		return bitfield.Play{}, err
	}
	if resp.BestMove == "" || resp.BestMove == "(none)" {
		return bitfield.Play{}, ErrNoBestMove
	}
	play, err := bitfield.ParsePlay(resp.BestMove, g.Turn())
	if err != nil {
		return bitfield.Play{}, fmt.Errorf("engine move %q: %w", resp.BestMove, err)
	}
	obslog.L().Debug("extengine_search",
		zap.String("play", play.String()),
		zap.Int("candidates", len(resp.Candidates)),
		zap.Duration("elapsed", time.Since(start)))
	return play, nil
}

func (e *Proposer) Close() error { return e.pool.Close() }

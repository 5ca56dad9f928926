package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/park285/tafl-htp-bot/internal/domain"
	"github.com/park285/tafl-htp-bot/internal/notation"
	"github.com/park285/tafl-htp-bot/internal/obslog"
	"github.com/park285/tafl-htp-bot/internal/tafl/bitfield"
	"github.com/park285/tafl-htp-bot/internal/tafl/copenhagen"
	"github.com/park285/tafl-htp-bot/internal/tracker"
)

// decide answers a generate_move prompt. It reports true once the match is over
// from this side's point of view.
func (s *Session) decide(ctx context.Context) (bool, error) {
	if s.tracker.Status() != copenhagen.Ongoing {
		return true, nil
	}
	if turn := s.tracker.Turn(); turn != s.cfg.Role {
		return true, fmt.Errorf("%w: prompted as %s on %s's turn", tracker.ErrDesync, s.cfg.Role, turn)
	}
	log := obslog.L().With(zap.String("match_id", s.cfg.MatchID))
	start := time.Now()
	defer func() { s.think += time.Since(start) }()

	proposed, err := s.proposer.Propose(ctx, s.tracker.MirrorSnapshot(), s.cfg.Preset.PrimaryThink)
	unplayable := errors.Is(err, bitfield.ErrMalformed) || errors.Is(err, bitfield.ErrOffBoard)
	if err != nil && !unplayable {
		s.resign(ctx)
		return true, fmt.Errorf("%w: %s: %v", ErrProposerExhausted, s.proposer.Name(), err)
	}
	var final copenhagen.Play
	var applyErr error
	switch {
	case unplayable:
		// an engine answer that names no square on this board goes to the fallback
		applyErr = &tracker.InvalidPlayError{Model: tracker.Primary, Reason: err}
	case onBoard(proposed):
		final = notation.ToPrimary(proposed)
		applyErr = s.tracker.ApplyPrimary(final)
	default:
		applyErr = &tracker.InvalidPlayError{Model: tracker.Primary, Reason: bitfield.ErrOffBoard}
	}

	if err := applyErr; err != nil {
		var ipe *tracker.InvalidPlayError
		if !errors.As(err, &ipe) || ipe.Model != tracker.Primary {
			return true, err
		}
		s.fallbacks++
		log.Warn("session_fallback",
			zap.String("proposer", s.proposer.Name()),
			zap.String("rejected", proposed.String()),
			zap.Error(ipe.Reason))

		final, err = s.fallback.Propose(ctx, s.tracker.PrimarySnapshot(), s.cfg.Preset.FallbackThink)
		if err != nil {
			s.resign(ctx)
			return true, fmt.Errorf("%w: %s: %v", ErrProposerExhausted, s.fallback.Name(), err)
		}
		if err := s.tracker.ApplyPrimary(final); err != nil {
			s.resign(ctx)
			return true, err
		}
	}

	if err := s.tracker.ApplyMirror(final); err != nil {
		s.resign(ctx)
		return true, err
	}
	if err := s.report(ctx, final); err != nil {
		return true, err
	}
	s.publish()
	log.Debug("session_play",
		zap.String("play", final.Move()),
		zap.Int("fallbacks", s.fallbacks),
		zap.Duration("think", time.Since(start)))

	if final.Resign {
		s.resigned = true
		s.method = domain.MethodResigned
		return true, nil
	}
	if s.tracker.Status() != copenhagen.Ongoing {
		s.method = domain.MethodConcluded
		return true, nil
	}
	return false, nil
}

// onBoard guards the translation; an engine may answer with garbage.
func onBoard(p bitfield.Play) bool {
	return (p.Side == bitfield.Dark || p.Side == bitfield.Light) && p.From.Valid() && p.To.Valid()
}

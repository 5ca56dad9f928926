// Package session drives one match over an established HTP connection: it
// waits for prompts, decides local plays and applies opponent plays to the
// tracker until the match concludes.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/park285/tafl-htp-bot/internal/domain"
	"github.com/park285/tafl-htp-bot/internal/htp"
	"github.com/park285/tafl-htp-bot/internal/obslog"
	"github.com/park285/tafl-htp-bot/internal/presets"
	"github.com/park285/tafl-htp-bot/internal/tafl/bitfield"
	"github.com/park285/tafl-htp-bot/internal/tafl/copenhagen"
	"github.com/park285/tafl-htp-bot/internal/tracker"
	"github.com/park285/tafl-htp-bot/pkg/matchdto"
)

var ErrProposerExhausted = errors.New("session: proposer produced no play")

// MirrorProposer searches the mirror model. It is the first choice for every local play.
type MirrorProposer interface {
	Name() string
	Propose(ctx context.Context, g *bitfield.Game, budget time.Duration) (bitfield.Play, error)
}

// PrimaryProposer searches the authoritative model when the mirror's proposal is rejected.
type PrimaryProposer interface {
	Name() string
	Propose(ctx context.Context, g *copenhagen.Game, budget time.Duration) (copenhagen.Play, error)
}

// Reporter receives a snapshot after every applied play.
type Reporter interface {
	Publish(s matchdto.Snapshot)
}

type Config struct {
	UUID    string
	MatchID string
	Role    copenhagen.Role
	Preset  presets.Preset
}

type Result struct {
	Status     copenhagen.Status
	Method     string
	Moves      []string
	Fallbacks  int
	Transcript []string
	StartedAt  time.Time
	EndedAt    time.Time
	ThinkTime  time.Duration
}

type Session struct {
	cfg      Config
	client   *htp.Client
	tracker  *tracker.Tracker
	proposer MirrorProposer
	fallback PrimaryProposer
	reporter Reporter

	method     string
	resigned   bool
	fallbacks  int
	transcript []string
	think      time.Duration
	startedAt  time.Time
}

func New(cfg Config, client *htp.Client, proposer MirrorProposer, fallback PrimaryProposer, reporter Reporter) *Session {
	return &Session{
		cfg:      cfg,
		client:   client,
		tracker:  tracker.New(),
		proposer: proposer,
		fallback: fallback,
		reporter: reporter,
	}
}

// Run reads prompts until the match ends. A nil error means the match
// concluded normally; Result is filled in either way.
func (s *Session) Run(ctx context.Context) (Result, error) {
	s.startedAt = time.Now()
	s.publish()
	log := obslog.L().With(zap.String("match_id", s.cfg.MatchID), zap.String("session", s.cfg.UUID))
	log.Info("session_start", zap.String("role", s.cfg.Role.String()))

	for {
		line, err := s.client.Transport().ReceiveLine(ctx)
		if err != nil {
			if errors.Is(err, htp.ErrConnectionClosed) {
				s.method = domain.MethodConnectionClosed
			} else {
				s.method = domain.MethodError
			}
			log.Warn("session_read_failed", zap.Error(err))
			return s.result(), err
		}
		s.transcript = append(s.transcript, "< "+line)

		msg := htp.Classify(line)
		switch msg.Kind {
		case htp.KindGenerateMove:
			if msg.MatchID != s.cfg.MatchID || msg.Role != s.cfg.Role {
				continue
			}
			done, err := s.decide(ctx)
			if err != nil {
				if s.method == "" {
					s.method = domain.MethodError
				}
				log.Error("session_decide_failed", zap.Error(err))
				return s.result(), err
			}
			if done {
				log.Info("session_end", zap.String("method", s.method), zap.String("status", s.tracker.Status().String()))
				return s.result(), nil
			}
		case htp.KindPlay:
			if msg.MatchID != s.cfg.MatchID {
				continue
			}
			if msg.Err != nil {
				log.Warn("session_play_unparsable", zap.String("line", line), zap.Error(msg.Err))
				continue
			}
			if msg.Play.Role == s.cfg.Role {
				// echo of our own report
				continue
			}
			done, err := s.applyOpponent(ctx, msg.Play)
			if err != nil {
				log.Error("session_opponent_play_failed", zap.String("play", msg.Play.Move()), zap.Error(err))
				return s.result(), err
			}
			if done {
				log.Info("session_end", zap.String("method", s.method), zap.String("status", s.tracker.Status().String()))
				return s.result(), nil
			}
		case htp.KindGameOver:
			if msg.MatchID != "" && msg.MatchID != s.cfg.MatchID {
				continue
			}
			s.method = domain.MethodGameOver
			log.Info("session_end", zap.String("method", s.method), zap.Strings("tokens", msg.Tokens))
			return s.result(), nil
		}
	}
}

func (s *Session) applyOpponent(ctx context.Context, p copenhagen.Play) (bool, error) {
	if err := s.tracker.ApplyFromProtocol(p); err != nil {
		if errors.Is(err, tracker.ErrInvalidPlay) {
			s.resign(ctx)
		} else {
			s.method = domain.MethodError
		}
		return true, err
	}
	s.publish()
	if p.Resign {
		s.method = domain.MethodOpponentResigned
		return true, nil
	}
	if s.tracker.Status() != copenhagen.Ongoing {
		s.method = domain.MethodConcluded
		return true, nil
	}
	return false, nil
}

// report sends a local play and records it.
func (s *Session) report(ctx context.Context, p copenhagen.Play) error {
	if err := s.client.ReportPlay(ctx, s.cfg.MatchID, p); err != nil {
		return err
	}
	s.transcript = append(s.transcript, "> "+htp.FormatReport(s.cfg.MatchID, p))
	return nil
}

// resign is a courtesy report before the session gives up. Send errors are
// only logged; the caller is already returning the reason.
func (s *Session) resign(ctx context.Context) {
	s.resigned = true
	s.method = domain.MethodResigned
	if err := s.report(ctx, copenhagen.Resignation(s.cfg.Role)); err != nil {
		obslog.L().Warn("session_resign_failed", zap.String("match_id", s.cfg.MatchID), zap.Error(err))
	}
}

func (s *Session) publish() {
	if s.reporter == nil {
		return
	}
	snap := s.tracker.Snapshot()
	snap.SessionUUID = s.cfg.UUID
	snap.MatchID = s.cfg.MatchID
	snap.Role = s.cfg.Role.String()
	snap.Fallbacks = s.fallbacks
	if s.resigned && snap.Status == copenhagen.Ongoing.String() {
		snap.Status = lossFor(s.cfg.Role).String()
	}
	s.reporter.Publish(snap)
}

func (s *Session) result() Result {
	status := s.tracker.Status()
	if s.resigned && status == copenhagen.Ongoing {
		status = lossFor(s.cfg.Role)
	}
	return Result{
		Status:     status,
		Method:     s.method,
		Moves:      s.tracker.Moves(),
		Fallbacks:  s.fallbacks,
		Transcript: append([]string(nil), s.transcript...),
		StartedAt:  s.startedAt,
		EndedAt:    time.Now(),
		ThinkTime:  s.think,
	}
}

func lossFor(r copenhagen.Role) copenhagen.Status {
	if r == copenhagen.Attacker {
		return copenhagen.DefenderWins
	}
	return copenhagen.AttackerWins
}

func (r Result) String() string {
	return fmt.Sprintf("%s by %s after %d plays (%d fallbacks)", r.Status, r.Method, len(r.Moves), r.Fallbacks)
}

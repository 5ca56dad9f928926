package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/tafl-htp-bot/internal/domain"
	"github.com/park285/tafl-htp-bot/internal/htp"
	"github.com/park285/tafl-htp-bot/internal/obslog"
	"github.com/park285/tafl-htp-bot/internal/presets"
	"github.com/park285/tafl-htp-bot/internal/tafl/copenhagen"
)

const archiveTimeout = 5 * time.Second

// Recorder stores finished matches. Failures are logged and never end the process.
type Recorder interface {
	Save(ctx context.Context, m *domain.Match) error
}

type RunnerConfig struct {
	Address  string
	Username string
	Password string
	Version  string
	Role     copenhagen.Role
	Ruleset  string
	Time     htp.TimeControl
	// JoinGame pins a single match created elsewhere; empty means create matches.
	JoinGame   string
	PresetName string
	Preset     presets.Preset
}

type Deps struct {
	Dial     func(ctx context.Context, address string) (htp.Transport, error)
	Proposer MirrorProposer
	Fallback PrimaryProposer
	Recorder Recorder
	Reporter Reporter
}

// Runner owns the connection. It logs in once and plays matches back to back
// until the connection is lost, ctx ends or a pinned match finishes.
type Runner struct {
	cfg  RunnerConfig
	deps Deps
}

func NewRunner(cfg RunnerConfig, deps Deps) *Runner {
	if deps.Dial == nil {
		deps.Dial = htp.Dial
	}
	return &Runner{cfg: cfg, deps: deps}
}

func (r *Runner) Run(ctx context.Context) error {
	t, err := r.deps.Dial(ctx, r.cfg.Address)
	if err != nil {
		return err
	}
	defer t.Close()

	client := htp.NewClient(t, r.cfg.Version)
	if err := client.Login(ctx, r.cfg.Username, r.cfg.Password); err != nil {
		return err
	}

	for {
		matchID, err := r.setup(ctx, client)
		if err != nil {
			return err
		}
		sessionUUID := uuid.NewString()
		s := New(Config{
			UUID:    sessionUUID,
			MatchID: matchID,
			Role:    r.cfg.Role,
			Preset:  r.cfg.Preset,
		}, client, r.deps.Proposer, r.deps.Fallback, r.deps.Reporter)

		res, runErr := s.Run(ctx)
		r.archive(ctx, sessionUUID, matchID, res)
		obslog.L().Info("match_finished",
			zap.String("match_id", matchID),
			zap.String("result", res.String()),
			zap.Error(runErr))
		if runErr != nil {
			return runErr
		}
		if r.cfg.JoinGame != "" {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (r *Runner) setup(ctx context.Context, client *htp.Client) (string, error) {
	if r.cfg.JoinGame != "" {
		if err := client.JoinPendingMatch(ctx, r.cfg.JoinGame); err != nil {
			return "", err
		}
		return r.cfg.JoinGame, nil
	}
	matchID, err := client.CreateMatch(ctx, r.cfg.Role, r.cfg.Ruleset, r.cfg.Time)
	if err != nil {
		return "", err
	}
	if err := client.AwaitChallenger(ctx, matchID); err != nil {
		return "", err
	}
	return matchID, nil
}

func (r *Runner) archive(ctx context.Context, sessionUUID, matchID string, res Result) {
	if r.deps.Recorder == nil {
		return
	}
	m := &domain.Match{
		SessionUUID: sessionUUID,
		MatchID:     matchID,
		Username:    r.cfg.Username,
		Role:        r.cfg.Role.String(),
		Preset:      r.cfg.PresetName,
		Outcome:     res.Status.String(),
		Method:      res.Method,
		Moves:       res.Moves,
		Fallbacks:   res.Fallbacks,
		Transcript:  domain.JoinTranscript(res.Transcript),
		StartedAt:   res.StartedAt,
		EndedAt:     res.EndedAt,
		Duration:    res.EndedAt.Sub(res.StartedAt),
		ThinkTime:   res.ThinkTime,
	}
	if r.deps.Proposer != nil {
		m.Engine = r.deps.Proposer.Name()
	}
	// archive even when ctx was cancelled mid-match
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()
	if err := r.deps.Recorder.Save(actx, m); err != nil {
		obslog.L().Warn("archive_save_failed", zap.String("match_id", matchID), zap.Error(err))
	}
}

package taflbuilder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/tafl-htp-bot/internal/ai/basic"
	"github.com/park285/tafl-htp-bot/internal/ai/extengine"
	"github.com/park285/tafl-htp-bot/internal/ai/montecarlo"
	"github.com/park285/tafl-htp-bot/internal/archive"
	"github.com/park285/tafl-htp-bot/internal/config"
	"github.com/park285/tafl-htp-bot/internal/presets"
	"github.com/park285/tafl-htp-bot/internal/render"
	"github.com/park285/tafl-htp-bot/internal/session"
	"github.com/park285/tafl-htp-bot/internal/statusz"
)

const connectTimeout = 5 * time.Second

type Deps struct {
	Runner *session.Runner
	// Status is nil unless a status address is configured.
	Status *statusz.Server
	Preset presets.Preset

	closers []func() error
}

// New wires proposers, archives and the status endpoint from cfg. Redis and
// postgres are optional; the in-memory archive is always present so the
// status endpoint can list matches without either.
func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Deps{}

	catalog, err := presets.New(cfg.PresetDir)
	if err != nil {
		return nil, fmt.Errorf("load presets: %w", err)
	}
	preset, err := catalog.Get(cfg.Preset)
	if err != nil {
		return nil, err
	}
	d.Preset = preset

	// Primary proposer
	var primary session.MirrorProposer
	switch cfg.PrimaryEngine {
	case config.EngineExternal:
		pool, err := extengine.NewPool(extengine.PoolConfig{
			BinaryPath: cfg.EnginePath,
			Capacity:   cfg.EngineCapacity,
			Options:    extengine.Options{Threads: cfg.EngineThreads, HashMB: cfg.EngineHashMB},
		})
		if err != nil {
			return nil, fmt.Errorf("init external engine: %w", err)
		}
		ext := extengine.New(pool)
		d.closers = append(d.closers, ext.Close)
		primary = ext
	default:
		primary = basic.New(preset, cfg.Seed)
	}
	fallback := montecarlo.New(preset.FallbackDepth, cfg.Seed)

	// Archives
	mem := archive.NewMemory()
	recorders := archive.Multi{mem}
	var lister archive.Lister = mem

	if strings.TrimSpace(cfg.RedisURL) != "" {
		cctx, cancel := context.WithTimeout(ctx, connectTimeout)
		rdb, err := archive.OpenRedis(cctx, cfg.RedisURL)
		cancel()
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("init redis archive: %w", err)
		}
		d.closers = append(d.closers, rdb.Close)
		store := archive.NewRedisStore(rdb, cfg.RedisTTL)
		recorders = append(recorders, store)
		lister = store
	}
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		cctx, cancel := context.WithTimeout(ctx, connectTimeout)
		repo, err := archive.NewPostgresRepository(cctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("init postgres archive: %w", err)
		}
		d.closers = append(d.closers, repo.Close)
		recorders = append(recorders, repo)
	}

	deps := session.Deps{Proposer: primary, Fallback: fallback, Recorder: recorders}
	if strings.TrimSpace(cfg.StatusAddr) != "" {
		d.Status = statusz.NewServer(render.NewSVGBoardRenderer(), lister)
		deps.Reporter = d.Status
	}

	d.Runner = session.NewRunner(session.RunnerConfig{
		Address:    cfg.Address(),
		Username:   cfg.Username,
		Password:   cfg.Password,
		Version:    cfg.ProtocolVersion,
		Role:       cfg.Role(),
		Ruleset:    cfg.Ruleset,
		Time:       cfg.TimeControl(),
		JoinGame:   cfg.JoinGame,
		PresetName: preset.Name,
		Preset:     preset,
	}, deps)

	logger.Info("builder_ready",
		zap.String("preset", preset.Name),
		zap.String("primary", primary.Name()),
		zap.String("fallback", fallback.Name()),
		zap.Int("recorders", len(recorders)),
		zap.Bool("statusz", d.Status != nil),
	)
	return d, nil
}

// Close releases engines and archive connections in reverse order of creation.
func (d *Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

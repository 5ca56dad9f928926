package extengine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
)

type PoolConfig struct {
	BinaryPath string
	Capacity   int
	Options    Options
}

// Pool keeps warm engine processes so each match does not pay for a cold start.
type Pool struct {
	binaryPath string
	opt        Options
	capacity   int

	mu    sync.Mutex
	total int
	idle  chan *Session
	live  map[*Session]struct{}
}

var errPoolAtCapacity = errors.New("engine pool at capacity")

func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.BinaryPath == "" {
		return nil, fmt.Errorf("binary path required")
	}
	if _, err := os.Stat(cfg.BinaryPath); err != nil {
		return nil, fmt.Errorf("engine binary check: %w", err)
	}
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = 1
	}
	return &Pool{
		binaryPath: cfg.BinaryPath,
		opt:        cfg.Options,
		capacity:   capacity,
		idle:       make(chan *Session, capacity),
		live:       make(map[*Session]struct{}),
	}, nil
}

func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	for {
		select {
		case s := <-p.idle:
			if err := s.EnsureReady(ctx); err != nil {
				p.discard(s)
				continue
			}
			return s, nil
		default:
		}

		s, err := p.create(ctx)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, errPoolAtCapacity) {
			return nil, err
		}

		select {
		case s := <-p.idle:
			if err := s.EnsureReady(ctx); err != nil {
				p.discard(s)
				continue
			}
			return s, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release returns s to the pool; a non-nil err discards the process instead.
func (p *Pool) Release(s *Session, err error) {
	if s == nil {
		return
	}
	if err != nil {
		p.discard(s)
		return
	}
	select {
	case p.idle <- s:
	default:
		p.discard(s)
	}
}

func (p *Pool) Close() error {
	p.mu.Lock()
	sessions := make([]*Session, 0, len(p.live))
	for s := range p.live {
		sessions = append(sessions, s)
	}
	p.live = make(map[*Session]struct{})
	p.total = 0
	p.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Pool) create(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	if p.total >= p.capacity {
		p.mu.Unlock()
		return nil, errPoolAtCapacity
	}
	p.total++
	p.mu.Unlock()

	s, err := NewSession(ctx, p.binaryPath, p.opt)
	if err != nil {
		p.mu.Lock()
		p.total--
		p.mu.Unlock()
		return nil, err
	}
	p.mu.Lock()
	p.live[s] = struct{}{}
	p.mu.Unlock()
	return s, nil
}

func (p *Pool) discard(s *Session) {
	p.mu.Lock()
	if _, ok := p.live[s]; ok {
		delete(p.live, s)
		if p.total > 0 {
			p.total--
		}
	}
	p.mu.Unlock()
	_ = s.Close()
}

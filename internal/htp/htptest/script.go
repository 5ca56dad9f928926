// Package htptest provides an in-memory htp.Transport that replays scripted
// server lines and records what the client sends.
package htptest

import (
	"context"
	"sync"

	"github.com/park285/tafl-htp-bot/internal/htp"
)

type Script struct {
	mu      sync.Mutex
	inbound []string
	sent    []string
	closed  bool
	// OnSend, when set, may queue replies in response to a client line.
	OnSend func(s *Script, line string)
	// SendErr is returned by Send when non-nil.
	SendErr error
}

func NewScript(lines ...string) *Script {
	return &Script{inbound: append([]string(nil), lines...)}
}

// Push queues more server lines.
func (s *Script) Push(lines ...string) {
	s.mu.Lock()
	s.inbound = append(s.inbound, lines...)
	s.mu.Unlock()
}

func (s *Script) Send(_ context.Context, line string) error {
	s.mu.Lock()
	if s.SendErr != nil {
		err := s.SendErr
		s.mu.Unlock()
		return err
	}
	if s.closed {
		s.mu.Unlock()
		return htp.ErrIO
	}
	s.sent = append(s.sent, line)
	hook := s.OnSend
	s.mu.Unlock()
	if hook != nil {
		hook(s, line)
	}
	return nil
}

// ReceiveLine pops the next scripted line; an exhausted script behaves like a
// peer that closed the stream.
func (s *Script) ReceiveLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(s.inbound) == 0 {
		return "", htp.ErrConnectionClosed
	}
	line := s.inbound[0]
	s.inbound = s.inbound[1:]
	return line, nil
}

func (s *Script) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Sent returns a copy of every line the client sent, without terminators.
func (s *Script) Sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func (s *Script) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inbound)
}

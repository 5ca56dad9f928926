// Package htp speaks the line-oriented Hnefatafl text protocol: one command or
// reply per line, space-separated tokens, "\n" terminated.
package htp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

var (
	ErrConnection        = errors.New("htp: connection failed")
	ErrIO                = errors.New("htp: stream i/o failed")
	ErrConnectionClosed  = errors.New("htp: connection closed by peer")
	ErrProtocolViolation = errors.New("htp: protocol violation")
)

const defaultDialTimeout = 10 * time.Second

// Transport carries whole lines. Implementations add and strip the terminator.
type Transport interface {
	Send(ctx context.Context, line string) error
	ReceiveLine(ctx context.Context) (string, error)
	Close() error
}

// Dial opens a TCP transport for "host:port" or a websocket transport for
// ws:// and wss:// URLs.
func Dial(ctx context.Context, address string) (Transport, error) {
	if strings.HasPrefix(address, "ws://") || strings.HasPrefix(address, "wss://") {
		ws, err := DialWebSocket(ctx, address)
		if err != nil {
			return nil, err
		}
		return ws, nil
	}
	tcp, err := DialTCP(ctx, address)
	if err != nil {
		return nil, err
	}
	return tcp, nil
}

type TCPTransport struct {
	conn   net.Conn
	reader *bufio.Reader
	mu     sync.Mutex
}

func DialTCP(ctx context.Context, address string) (*TCPTransport, error) {
	d := net.Dialer{Timeout: defaultDialTimeout}
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnection, address, err)
	}
	return NewTCPTransport(conn), nil
}

func NewTCPTransport(conn net.Conn) *TCPTransport {
	return &TCPTransport{conn: conn, reader: bufio.NewReader(conn)}
}

func (t *TCPTransport) Send(ctx context.Context, line string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if dl, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(dl)
		defer t.conn.SetWriteDeadline(time.Time{})
	}
	if _, err := io.WriteString(t.conn, line+"\n"); err != nil {
		return fmt.Errorf("%w: write: %v", ErrIO, err)
	}
	return nil
}

// ReceiveLine blocks until a full line arrives. Cancelling ctx unblocks the read
// through the connection's read deadline.
func (t *TCPTransport) ReceiveLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = t.conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer func() {
		stop()
		_ = t.conn.SetReadDeadline(time.Time{})
	}()

	line, err := t.reader.ReadString('\n')
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
			if line == "" {
				return "", ErrConnectionClosed
			}
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", fmt.Errorf("%w: read: %v", ErrIO, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (t *TCPTransport) Close() error {
	return t.conn.Close()
}

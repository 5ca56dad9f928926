package htp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// WebSocketTransport carries one protocol line per text message.
type WebSocketTransport struct {
	conn *websocket.Conn
	mu   sync.Mutex

	pingInterval time.Duration
	stopCh       chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

func DialWebSocket(ctx context.Context, url string) (*WebSocketTransport, error) {
	dialCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnection, url, err)
	}
	return newWebSocketTransport(conn, 30*time.Second), nil
}

func newWebSocketTransport(conn *websocket.Conn, ping time.Duration) *WebSocketTransport {
	ws := &WebSocketTransport{conn: conn, pingInterval: ping, stopCh: make(chan struct{})}
	if ping > 0 {
		ws.wg.Add(1)
		go ws.pingLoop()
	}
	return ws
}

func (ws *WebSocketTransport) Send(ctx context.Context, line string) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if err := ws.conn.Write(ctx, websocket.MessageText, []byte(line+"\n")); err != nil {
		return fmt.Errorf("%w: write: %v", ErrIO, err)
	}
	return nil
}

func (ws *WebSocketTransport) ReceiveLine(ctx context.Context) (string, error) {
	typ, data, err := ws.conn.Read(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if websocket.CloseStatus(err) != -1 || errors.Is(err, io.EOF) {
			return "", ErrConnectionClosed
		}
		return "", fmt.Errorf("%w: read: %v", ErrIO, err)
	}
	if typ != websocket.MessageText {
		return "", fmt.Errorf("%w: unexpected binary frame", ErrProtocolViolation)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func (ws *WebSocketTransport) pingLoop() {
	defer ws.wg.Done()
	t := time.NewTicker(ws.pingInterval)
	defer t.Stop()
	for {
		select {
		case <-ws.stopCh:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err := ws.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (ws *WebSocketTransport) Close() error {
	var err error
	ws.stopOnce.Do(func() {
		close(ws.stopCh)
		err = ws.conn.Close(websocket.StatusNormalClosure, "bye")
		ws.wg.Wait()
	})
	return err
}

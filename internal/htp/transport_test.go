package htp

import (
	"bufio"
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func loopback(t *testing.T) (*TCPTransport, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			accepted <- nil
			return
		}
		accepted <- c
	}()
	tr, err := Dial(context.Background(), ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	server := <-accepted
	if server == nil {
		t.Fatalf("accept failed")
	}
	t.Cleanup(func() { tr.Close(); server.Close() })
	return tr.(*TCPTransport), server
}

func TestTCPSendAppendsNewline(t *testing.T) {
	tr, server := loopback(t)
	if err := tr.Send(context.Background(), "1 login ai-alice "); err != nil {
		t.Fatalf("Send: %v", err)
	}
	line, err := bufio.NewReader(server).ReadString('\n')
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	if line != "1 login ai-alice \n" {
		t.Fatalf("server got %q", line)
	}
}

func TestTCPReceiveStripsTerminator(t *testing.T) {
	tr, server := loopback(t)
	if _, err := server.Write([]byte("= login\r\ngame 42 generate_move attacker\n")); err != nil {
		t.Fatalf("server write: %v", err)
	}
	for _, want := range []string{"= login", "game 42 generate_move attacker"} {
		got, err := tr.ReceiveLine(context.Background())
		if err != nil {
			t.Fatalf("ReceiveLine: %v", err)
		}
		if got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}

// a blank line is a line, not a closed stream; only EOF with nothing read is
func TestTCPBlankLineIsNotClosure(t *testing.T) {
	tr, server := loopback(t)
	if _, err := server.Write([]byte("\n  \r\ngame 42 generate_move attacker\n")); err != nil {
		t.Fatalf("server write: %v", err)
	}
	for _, want := range []string{"", "  ", "game 42 generate_move attacker"} {
		got, err := tr.ReceiveLine(context.Background())
		if err != nil {
			t.Fatalf("ReceiveLine: %v", err)
		}
		if got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}

func TestTCPReceiveReportsClosed(t *testing.T) {
	tr, server := loopback(t)
	server.Close()
	if _, err := tr.ReceiveLine(context.Background()); !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("err = %v, want ErrConnectionClosed", err)
	}
}

func TestTCPReceiveHonoursContext(t *testing.T) {
	tr, _ := loopback(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, err := tr.ReceiveLine(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("read did not unblock")
	}
}

func TestDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	if _, err := Dial(context.Background(), addr); !errors.Is(err, ErrConnection) {
		t.Fatalf("err = %v, want ErrConnection", err)
	}
}

package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/park285/tafl-htp-bot/internal/htp"
	"github.com/park285/tafl-htp-bot/internal/obslog"
	"github.com/park285/tafl-htp-bot/internal/statusz"
)

// Checks that the game server accepts our login and, optionally, that a
// running bot's status endpoint answers. Nothing is played.
var opts struct {
	Host      string        `long:"host" env:"TAFL_HOST" default:"hnefatafl.org" description:"server host or ws:// URL"`
	Port      int           `long:"port" env:"TAFL_PORT" default:"49152"`
	Username  string        `long:"username" env:"TAFL_USERNAME" description:"skip login when empty"`
	Password  string        `long:"password" env:"TAFL_PASSWORD"`
	Version   string        `long:"protocol-version" env:"TAFL_PROTOCOL_VERSION" default:"1"`
	StatusURL string        `long:"status-url" env:"TAFL_STATUS_URL" description:"e.g. http://127.0.0.1:8090"`
	Listen    time.Duration `long:"listen" default:"0s" description:"print server lines for this long after login"`
}

func main() {
	_ = godotenv.Load()
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			return
		}
		os.Exit(2)
	}
	_ = obslog.Init(obslog.Options{Level: "debug", Format: "console"})
	logger := obslog.L()

	address := opts.Host
	if h := strings.ToLower(opts.Host); !strings.HasPrefix(h, "ws://") && !strings.HasPrefix(h, "wss://") {
		address = net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	}

	ok := checkServer(logger, address)
	if opts.StatusURL != "" {
		ok = checkStatus(logger) && ok
	} else {
		log.Println("status url not set; skipping status check")
	}
	if !ok {
		os.Exit(1)
	}
}

func checkServer(logger *zap.Logger, address string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second+opts.Listen)
	defer cancel()

	start := time.Now()
	t, err := htp.Dial(ctx, address)
	if err != nil {
		logger.Error("dial_failed", zap.String("address", address), zap.Error(err))
		return false
	}
	defer t.Close()
	logger.Info("dial_ok", zap.String("address", address), zap.Duration("took", time.Since(start)))

	if opts.Username == "" {
		log.Println("username not set; skipping login check")
		return true
	}
	client := htp.NewClient(t, opts.Version)
	if err := client.Login(ctx, opts.Username, opts.Password); err != nil {
		logger.Error("login_failed", zap.String("username", "ai-"+opts.Username), zap.Error(err))
		return false
	}
	logger.Info("login_ok", zap.String("username", "ai-"+opts.Username))

	if opts.Listen <= 0 {
		return true
	}
	lctx, lcancel := context.WithTimeout(ctx, opts.Listen)
	defer lcancel()
	for {
		line, err := t.ReceiveLine(lctx)
		if err != nil {
			// listen window over or server gone
			return lctx.Err() != nil
		}
		msg := htp.Classify(line)
		fmt.Printf("%-14s %s\n", msg.Kind, line)
	}
}

func checkStatus(logger *zap.Logger) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()

	c := statusz.NewClient(opts.StatusURL, statusz.WithTimeout(5*time.Second))
	h, err := c.Health(ctx)
	if err != nil {
		logger.Error("statusz_health_failed", zap.Error(err))
		return false
	}
	logger.Info("statusz_health_ok", zap.String("uptime", h.Uptime), zap.String("match_id", h.MatchID))
	if h.MatchID == "" {
		return true
	}
	snap, err := c.Session(ctx)
	if err != nil {
		logger.Warn("statusz_session_failed", zap.Error(err))
		return true
	}
	logger.Info("statusz_session",
		zap.String("match_id", snap.MatchID),
		zap.String("status", snap.Status),
		zap.Int("moves", len(snap.Moves)))
	return true
}

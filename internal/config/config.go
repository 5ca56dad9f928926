package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/park285/tafl-htp-bot/internal/htp"
	"github.com/park285/tafl-htp-bot/internal/obslog"
	"github.com/park285/tafl-htp-bot/internal/tafl/copenhagen"
)

const (
	EngineBasic    = "basic"
	EngineExternal = "external"
)

// AppConfig is parsed from argv with environment fallbacks. main loads .env first.
type AppConfig struct {
	Username        string `long:"username" env:"TAFL_USERNAME" description:"account name; logs in as ai-<username>"`
	Password        string `long:"password" env:"TAFL_PASSWORD" description:"account password (may be empty)"`
	RoleName        string `long:"role" env:"TAFL_ROLE" description:"attacker or defender"`
	Host            string `long:"host" env:"TAFL_HOST" default:"hnefatafl.org" description:"server host or ws:// URL"`
	Port            int    `long:"port" env:"TAFL_PORT" default:"49152" description:"server TCP port"`
	JoinGame        string `long:"join-game" env:"TAFL_JOIN_GAME" description:"join this pending match id and exit after it"`
	Systemd         bool   `long:"systemd" env:"TAFL_SYSTEMD" description:"journald-friendly log lines"`
	ProtocolVersion string `long:"protocol-version" env:"TAFL_PROTOCOL_VERSION" default:"1" description:"version tag sent with login"`

	Ruleset   string `long:"ruleset" env:"TAFL_RULESET" default:"fischer" description:"ruleset token of new_game"`
	TimeMs    int64  `long:"time-ms" env:"TAFL_TIME_MS" default:"900000" description:"main time per side in milliseconds"`
	Increment int64  `long:"increment" env:"TAFL_INCREMENT" default:"10" description:"increment token of new_game"`
	BoardSize int    `long:"board-size" env:"TAFL_BOARD_SIZE" default:"0" description:"board size token appended to new_game (0 omits it)"`

	Preset    string `long:"preset" env:"TAFL_PRESET" default:"standard" description:"think budget preset"`
	PresetDir string `long:"preset-dir" env:"TAFL_PRESET_DIR" description:"directory of preset override yaml files"`
	Seed      int64  `long:"seed" env:"TAFL_SEED" description:"random seed for proposers (0 = time based)"`

	PrimaryEngine  string `long:"primary-engine" env:"TAFL_PRIMARY_ENGINE" default:"basic" description:"basic or external"`
	EnginePath     string `long:"engine-path" env:"TAFL_ENGINE_PATH" description:"external engine binary"`
	EngineThreads  int    `long:"engine-threads" env:"TAFL_ENGINE_THREADS" default:"1" description:"external engine threads"`
	EngineHashMB   int    `long:"engine-hash-mb" env:"TAFL_ENGINE_HASH_MB" default:"64" description:"external engine hash size"`
	EngineCapacity int    `long:"engine-capacity" env:"TAFL_ENGINE_CAPACITY" default:"1" description:"warm external engine processes"`

	RedisURL    string        `long:"redis-url" env:"REDIS_URL" description:"match archive (recent list)"`
	RedisTTL    time.Duration `long:"redis-ttl" env:"TAFL_REDIS_TTL" default:"168h" description:"archive entry TTL"`
	DatabaseURL string        `long:"database-url" env:"DATABASE_URL" description:"match archive (permanent)"`
	StatusAddr  string        `long:"status-addr" env:"TAFL_STATUS_ADDR" description:"status endpoint listen address"`

	LogLevel  string `long:"log-level" env:"LOG_LEVEL" default:"info" description:"debug, info, warn or error"`
	LogFormat string `long:"log-format" env:"LOG_FORMAT" default:"legacy" description:"legacy, console or json"`
	LogFile   string `long:"log-file" env:"LOG_FILE" description:"also write logs to this file"`

	role copenhagen.Role
}

// Load parses args (without the program name). A help request surfaces as an
// error for which flags.WroteHelp is true.
func Load(args []string) (*AppConfig, error) {
	cfg := &AppConfig{}
	parser := flags.NewParser(cfg, flags.HelpFlag|flags.PassDoubleDash)
	rest, err := parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", rest)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	c.Username = strings.TrimSpace(c.Username)
	if c.Username == "" {
		return errors.New("username is required (--username or TAFL_USERNAME)")
	}
	if strings.ContainsAny(c.Username, " \t") {
		return fmt.Errorf("username %q must be a single token", c.Username)
	}
	role, err := copenhagen.ParseRole(strings.TrimSpace(c.RoleName))
	if err != nil {
		return fmt.Errorf("role: %w", err)
	}
	if role == copenhagen.Roleless {
		return errors.New("role must be attacker or defender, not roleless")
	}
	c.role = role

	if c.JoinGame = strings.TrimSpace(c.JoinGame); c.JoinGame != "" {
		if _, err := strconv.ParseUint(c.JoinGame, 10, 64); err != nil {
			return fmt.Errorf("join-game %q is not a match id", c.JoinGame)
		}
	}
	if !c.isURL() && (c.Port <= 0 || c.Port > 65535) {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.TimeMs <= 0 || c.Increment < 0 {
		return fmt.Errorf("invalid time control %d/%d", c.TimeMs, c.Increment)
	}
	if c.BoardSize < 0 {
		return fmt.Errorf("invalid board size %d", c.BoardSize)
	}

	c.PrimaryEngine = strings.ToLower(strings.TrimSpace(c.PrimaryEngine))
	switch c.PrimaryEngine {
	case EngineBasic:
	case EngineExternal:
		if strings.TrimSpace(c.EnginePath) == "" {
			return errors.New("external engine requires --engine-path")
		}
	default:
		return fmt.Errorf("unknown primary engine %q", c.PrimaryEngine)
	}

	switch strings.ToLower(c.LogFormat) {
	case "legacy", "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

func (c *AppConfig) Role() copenhagen.Role { return c.role }

func (c *AppConfig) isURL() bool {
	h := strings.ToLower(c.Host)
	return strings.HasPrefix(h, "ws://") || strings.HasPrefix(h, "wss://")
}

// Address is what htp.Dial expects: a ws(s) URL as given, else host:port.
func (c *AppConfig) Address() string {
	if c.isURL() {
		return c.Host
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *AppConfig) TimeControl() htp.TimeControl {
	return htp.TimeControl{Millis: c.TimeMs, Increment: c.Increment, BoardSize: c.BoardSize}
}

func (c *AppConfig) LogOptions() obslog.Options {
	return obslog.Options{Level: c.LogLevel, Format: c.LogFormat, File: c.LogFile, Systemd: c.Systemd}
}

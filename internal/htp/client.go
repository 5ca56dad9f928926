package htp

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/tafl-htp-bot/internal/obslog"
	"github.com/park285/tafl-htp-bot/internal/tafl/copenhagen"
)

const (
	DefaultVersion = "1"
	// UsernamePrefix marks the account as a bot on the server.
	UsernamePrefix = "ai-"
)

type TimeControl struct {
	Millis    int64
	Increment int64
	// BoardSize is appended to new_game when non-zero.
	BoardSize int
}

// Client runs the login and match setup exchanges over a Transport.
// After setup the session reads the same transport directly.
type Client struct {
	t       Transport
	version string
}

func NewClient(t Transport, version string) *Client {
	if strings.TrimSpace(version) == "" {
		version = DefaultVersion
	}
	return &Client{t: t, version: version}
}

func (c *Client) Transport() Transport { return c.t }

func (c *Client) send(ctx context.Context, line string) error {
	obslog.L().Debug("htp_send", zap.String("line", line))
	return c.t.Send(ctx, line)
}

func (c *Client) recv(ctx context.Context) (string, error) {
	line, err := c.t.ReceiveLine(ctx)
	if err != nil {
		return "", err
	}
	obslog.L().Debug("htp_recv", zap.String("line", line))
	return line, nil
}

// Login authenticates once per connection as UsernamePrefix+username, even when
// username already carries the prefix. The first reply must be exactly "= login".
func (c *Client) Login(ctx context.Context, username, password string) error {
	username = UsernamePrefix + username
	if err := c.send(ctx, fmt.Sprintf("%s login %s %s", c.version, username, password)); err != nil {
		return err
	}
	line, err := c.recv(ctx)
	if err != nil {
		return err
	}
	if line != "= login" {
		return fmt.Errorf("%w: login ack %q", ErrProtocolViolation, line)
	}
	obslog.L().Info("htp_login_ok", zap.String("username", username))
	return nil
}

// CreateMatch asks the server for a new rated match and returns its id, token 3
// of the first line whose token 1 is "new_game".
func (c *Client) CreateMatch(ctx context.Context, role copenhagen.Role, ruleset string, tc TimeControl) (string, error) {
	line := fmt.Sprintf("new_game %s rated %s %d %d", role, ruleset, tc.Millis, tc.Increment)
	if tc.BoardSize > 0 {
		line += " " + strconv.Itoa(tc.BoardSize)
	}
	if err := c.send(ctx, line); err != nil {
		return "", err
	}
	for {
		reply, err := c.recv(ctx)
		if err != nil {
			return "", err
		}
		tokens := strings.Fields(reply)
		if len(tokens) < 2 || tokens[1] != "new_game" {
			continue
		}
		if len(tokens) < 4 {
			return "", fmt.Errorf("%w: new_game reply without match id: %q", ErrProtocolViolation, reply)
		}
		obslog.L().Info("htp_match_created", zap.String("match_id", tokens[3]), zap.String("role", role.String()))
		return tokens[3], nil
	}
}

// AwaitChallenger discards lines until a challenge arrives, then accepts it.
func (c *Client) AwaitChallenger(ctx context.Context, matchID string) error {
	for {
		line, err := c.recv(ctx)
		if err != nil {
			return err
		}
		tokens := strings.Fields(line)
		if len(tokens) >= 2 && tokens[1] == "challenge_requested" {
			obslog.L().Info("htp_challenge_requested", zap.String("match_id", matchID), zap.Strings("tokens", tokens))
			break
		}
	}
	return c.send(ctx, "join_game "+matchID)
}

// JoinPendingMatch joins a match created elsewhere without waiting for a reply.
func (c *Client) JoinPendingMatch(ctx context.Context, matchID string) error {
	return c.send(ctx, "join_game_pending "+matchID)
}

func (c *Client) ReportPlay(ctx context.Context, matchID string, p copenhagen.Play) error {
	return c.send(ctx, FormatReport(matchID, p))
}

// FormatReport renders "game <id> play <role> <from> <to>" or the resignation form.
func FormatReport(matchID string, p copenhagen.Play) string {
	return "game " + matchID + " " + p.String()
}

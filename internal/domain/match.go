package domain

import (
	"strings"
	"time"
)

// Outcome methods recorded with a finished match.
const (
	MethodGameOver         = "game_over"
	MethodConcluded        = "concluded"
	MethodResigned         = "resigned"
	MethodOpponentResigned = "opponent_resigned"
	MethodConnectionClosed = "connection_closed"
	MethodError            = "error"
)

// Match is one finished (or abandoned) match as archived.
type Match struct {
	ID          int64         `json:"id,omitempty"`
	SessionUUID string        `json:"session_uuid"`
	MatchID     string        `json:"match_id"`
	Username    string        `json:"username"`
	Role        string        `json:"role"`
	Preset      string        `json:"preset"`
	Engine      string        `json:"engine"`
	Outcome     string        `json:"outcome"` // ongoing | attacker_wins | defender_wins
	Method      string        `json:"method"`
	Moves       []string      `json:"moves"`
	Fallbacks   int           `json:"fallbacks"`
	Transcript  string        `json:"transcript,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	EndedAt     time.Time     `json:"ended_at"`
	Duration    time.Duration `json:"duration"`
	ThinkTime   time.Duration `json:"think_time"`
}

// JoinTranscript renders transcript lines ("< " inbound, "> " outbound) as one text block.
func JoinTranscript(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

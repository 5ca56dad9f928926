package archive

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/tafl-htp-bot/internal/domain"
)

// BuildRecord renders a match as a tagged game record: bracketed headers, then
// numbered move pairs (attacker first) and the result token.
func BuildRecord(m *domain.Match) string {
	if m == nil {
		return ""
	}
	var b strings.Builder
	date := m.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	attacker, defender := "?", "?"
	player := "ai-" + sanitizeTag(m.Username)
	switch m.Role {
	case "attacker":
		attacker = player
	case "defender":
		defender = player
	}

	b.WriteString("[Event \"HTP match\"]\n")
	b.WriteString("[Ruleset \"copenhagen\"]\n")
	fmt.Fprintf(&b, "[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day())
	fmt.Fprintf(&b, "[Match \"%s\"]\n", sanitizeTag(m.MatchID))
	fmt.Fprintf(&b, "[Attacker \"%s\"]\n", attacker)
	fmt.Fprintf(&b, "[Defender \"%s\"]\n", defender)
	if m.Method != "" {
		fmt.Fprintf(&b, "[Termination \"%s\"]\n", sanitizeTag(m.Method))
	}
	result := resultToken(m.Outcome)
	fmt.Fprintf(&b, "[Result \"%s\"]\n\n", result)

	for i := 0; i < len(m.Moves); i += 2 {
		fmt.Fprintf(&b, "%d. %s", i/2+1, strings.TrimSpace(m.Moves[i]))
		if i+1 < len(m.Moves) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(m.Moves[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(result)
	return b.String()
}

func resultToken(outcome string) string {
	switch outcome {
	case "attacker_wins":
		return "1-0"
	case "defender_wins":
		return "0-1"
	}
	return "*"
}

func sanitizeTag(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}

package htp

import (
	"strings"

	"github.com/park285/tafl-htp-bot/internal/tafl/copenhagen"
)

type Kind int

const (
	KindOther Kind = iota
	KindGenerateMove
	KindPlay
	KindGameOver
)

func (k Kind) String() string {
	switch k {
	case KindGenerateMove:
		return "generate_move"
	case KindPlay:
		return "play"
	case KindGameOver:
		return "game_over"
	}
	return "other"
}

// Message is a classified inbound line. MatchID is token 1 for game lines and
// the first numeric token after game_over when present.
type Message struct {
	Kind    Kind
	MatchID string
	Role    copenhagen.Role // generate_move
	Play    copenhagen.Play // play
	// Err is set when a play line could not be parsed.
	Err    error
	Tokens []string
}

func Classify(line string) Message {
	tokens := strings.Fields(line)
	msg := Message{Kind: KindOther, Tokens: tokens}
	switch {
	case len(tokens) >= 3 && tokens[2] == "generate_move":
		msg.Kind = KindGenerateMove
		msg.MatchID = tokens[1]
		if len(tokens) >= 4 {
			msg.Role, _ = copenhagen.ParseRole(tokens[3])
		}
	case len(tokens) >= 3 && tokens[2] == "play":
		msg.Kind = KindPlay
		msg.MatchID = tokens[1]
		msg.Play, msg.Err = copenhagen.ParsePlay(tokens[2:])
	case len(tokens) >= 2 && tokens[1] == "game_over":
		msg.Kind = KindGameOver
		for _, tok := range tokens[2:] {
			if isDigits(tok) {
				msg.MatchID = tok
				break
			}
		}
	}
	return msg
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

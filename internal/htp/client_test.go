package htp_test

import (
	"context"
	"errors"
	"testing"

	"github.com/park285/tafl-htp-bot/internal/htp"
	"github.com/park285/tafl-htp-bot/internal/htp/htptest"
	"github.com/park285/tafl-htp-bot/internal/tafl/copenhagen"
)

func TestLoginSendsPrefixedUserWithEmptyPassword(t *testing.T) {
	s := htptest.NewScript("= login")
	c := htp.NewClient(s, "1")
	if err := c.Login(context.Background(), "alice", ""); err != nil {
		t.Fatalf("Login: %v", err)
	}
	sent := s.Sent()
	if len(sent) != 1 || sent[0] != "1 login ai-alice " {
		t.Fatalf("sent %q", sent)
	}
}

func TestLoginAlwaysPrefixes(t *testing.T) {
	s := htptest.NewScript("= login")
	if err := htp.NewClient(s, "1").Login(context.Background(), "ai-bob", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sent := s.Sent(); len(sent) != 1 || sent[0] != "1 login ai-ai-bob pw" {
		t.Fatalf("sent %q", sent)
	}
}

func TestLoginRejectsWrongAck(t *testing.T) {
	for _, ack := range []string{"? login", "= login extra", ""} {
		s := htptest.NewScript(ack)
		err := htp.NewClient(s, "").Login(context.Background(), "alice", "pw")
		if !errors.Is(err, htp.ErrProtocolViolation) {
			t.Fatalf("ack %q: err = %v", ack, err)
		}
	}
	s := htptest.NewScript()
	if err := htp.NewClient(s, "").Login(context.Background(), "alice", "pw"); !errors.Is(err, htp.ErrConnectionClosed) {
		t.Fatalf("closed stream: %v", err)
	}
}

func TestCreateMatchExtractsID(t *testing.T) {
	s := htptest.NewScript(
		"= display_users ai-alice",
		"x",
		"= new_game game 42 ai-alice _ rated copenhagen 900000 10 _ false {}",
	)
	c := htp.NewClient(s, "1")
	id, err := c.CreateMatch(context.Background(), copenhagen.Attacker, "fischer", htp.TimeControl{Millis: 900000, Increment: 10})
	if err != nil {
		t.Fatalf("CreateMatch: %v", err)
	}
	if id != "42" {
		t.Fatalf("match id = %q", id)
	}
	if sent := s.Sent(); len(sent) != 1 || sent[0] != "new_game attacker rated fischer 900000 10" {
		t.Fatalf("sent %q", sent)
	}
}

func TestCreateMatchWithoutIDIsViolation(t *testing.T) {
	s := htptest.NewScript("= new_game game")
	_, err := htp.NewClient(s, "1").CreateMatch(context.Background(), copenhagen.Defender, "fischer", htp.TimeControl{Millis: 1, Increment: 1, BoardSize: 11})
	if !errors.Is(err, htp.ErrProtocolViolation) {
		t.Fatalf("err = %v", err)
	}
	if sent := s.Sent(); sent[0] != "new_game defender rated fischer 1 1 11" {
		t.Fatalf("sent %q", sent)
	}
}

func TestAwaitChallengerJoins(t *testing.T) {
	s := htptest.NewScript("= display_games", "= challenge_requested 42", "unused")
	c := htp.NewClient(s, "1")
	if err := c.AwaitChallenger(context.Background(), "42"); err != nil {
		t.Fatalf("AwaitChallenger: %v", err)
	}
	if sent := s.Sent(); len(sent) != 1 || sent[0] != "join_game 42" {
		t.Fatalf("sent %q", sent)
	}
	if s.Remaining() != 1 {
		t.Fatalf("read past the challenge")
	}
}

func TestJoinPendingAndReport(t *testing.T) {
	s := htptest.NewScript()
	c := htp.NewClient(s, "1")
	ctx := context.Background()
	if err := c.JoinPendingMatch(ctx, "7"); err != nil {
		t.Fatalf("JoinPendingMatch: %v", err)
	}
	p := copenhagen.Play{Role: copenhagen.Attacker, From: copenhagen.Vertex{File: 3, Rank: 4}, To: copenhagen.Vertex{File: 3, Rank: 9}}
	if err := c.ReportPlay(ctx, "7", p); err != nil {
		t.Fatalf("ReportPlay: %v", err)
	}
	if err := c.ReportPlay(ctx, "7", copenhagen.Resignation(copenhagen.Defender)); err != nil {
		t.Fatalf("ReportPlay: %v", err)
	}
	want := []string{"join_game_pending 7", "game 7 play attacker d4 d9", "game 7 play defender resigns _"}
	got := s.Sent()
	if len(got) != len(want) {
		t.Fatalf("sent %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		line string
		kind htp.Kind
		id   string
	}{
		{"game 42 generate_move attacker", htp.KindGenerateMove, "42"},
		{"game 42 play defender f4 f3", htp.KindPlay, "42"},
		{"= game_over 42 attacker_wins", htp.KindGameOver, "42"},
		{"= game_over", htp.KindGameOver, ""},
		{"= login", htp.KindOther, ""},
		{"", htp.KindOther, ""},
	}
	for _, tc := range cases {
		m := htp.Classify(tc.line)
		if m.Kind != tc.kind || m.MatchID != tc.id {
			t.Fatalf("Classify(%q) = %s/%q, want %s/%q", tc.line, m.Kind, m.MatchID, tc.kind, tc.id)
		}
	}
	m := htp.Classify("game 42 play defender f4 f3")
	if m.Err != nil || m.Play.Role != copenhagen.Defender || m.Play.Move() != "f4-f3" {
		t.Fatalf("play = %+v err=%v", m.Play, m.Err)
	}
	if g := htp.Classify("game 42 generate_move defender"); g.Role != copenhagen.Defender {
		t.Fatalf("role = %s", g.Role)
	}
}

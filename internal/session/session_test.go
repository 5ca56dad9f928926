package session

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/park285/tafl-htp-bot/internal/domain"
	"github.com/park285/tafl-htp-bot/internal/htp"
	"github.com/park285/tafl-htp-bot/internal/htp/htptest"
	"github.com/park285/tafl-htp-bot/internal/notation"
	"github.com/park285/tafl-htp-bot/internal/presets"
	"github.com/park285/tafl-htp-bot/internal/tafl/bitfield"
	"github.com/park285/tafl-htp-bot/internal/tafl/copenhagen"
	"github.com/park285/tafl-htp-bot/internal/tracker"
	"github.com/park285/tafl-htp-bot/pkg/matchdto"
)

type fakeMirror struct {
	plays []bitfield.Play
	err   error
	calls int
	seen  []*bitfield.Game
}

func (f *fakeMirror) Name() string { return "fake-mirror" }

func (f *fakeMirror) Propose(_ context.Context, g *bitfield.Game, _ time.Duration) (bitfield.Play, error) {
	f.calls++
	f.seen = append(f.seen, g)
	if f.err != nil {
		return bitfield.Play{}, f.err
	}
	p := f.plays[0]
	if len(f.plays) > 1 {
		f.plays = f.plays[1:]
	}
	return p, nil
}

type fakeFallback struct {
	play  copenhagen.Play
	err   error
	calls int
}

func (f *fakeFallback) Name() string { return "fake-fallback" }

func (f *fakeFallback) Propose(_ context.Context, _ *copenhagen.Game, _ time.Duration) (copenhagen.Play, error) {
	f.calls++
	return f.play, f.err
}

type captureReporter struct {
	snaps []matchdto.Snapshot
}

func (c *captureReporter) Publish(s matchdto.Snapshot) { c.snaps = append(c.snaps, s) }

func move(t *testing.T, role copenhagen.Role, s string) copenhagen.Play {
	t.Helper()
	p, err := copenhagen.ParseMove(role, s)
	if err != nil {
		t.Fatalf("ParseMove(%q): %v", s, err)
	}
	return p
}

func mirrorMove(t *testing.T, role copenhagen.Role, s string) bitfield.Play {
	t.Helper()
	return notation.ToMirror(move(t, role, s))
}

var testPreset = presets.Preset{Name: "test", PrimaryThink: 10 * time.Millisecond, FallbackThink: 10 * time.Millisecond}

func newTestSession(script *htptest.Script, role copenhagen.Role, m MirrorProposer, f PrimaryProposer, r Reporter) *Session {
	cfg := Config{UUID: "u-1", MatchID: "42", Role: role, Preset: testPreset}
	return New(cfg, htp.NewClient(script, ""), m, f, r)
}

func TestFallbackReplacesRejectedProposal(t *testing.T) {
	script := htptest.NewScript("game 42 generate_move attacker")
	mirror := &fakeMirror{plays: []bitfield.Play{mirrorMove(t, copenhagen.Attacker, "a1-a2")}}
	fallback := &fakeFallback{play: move(t, copenhagen.Attacker, "d1-d3")}
	s := newTestSession(script, copenhagen.Attacker, mirror, fallback, nil)

	res, err := s.Run(context.Background())
	if !errors.Is(err, htp.ErrConnectionClosed) {
		t.Fatalf("err = %v, want connection closed", err)
	}
	if got := script.Sent(); !reflect.DeepEqual(got, []string{"game 42 play attacker d1 d3"}) {
		t.Fatalf("sent = %q", got)
	}
	if fallback.calls != 1 || res.Fallbacks != 1 {
		t.Fatalf("fallback calls = %d, result fallbacks = %d", fallback.calls, res.Fallbacks)
	}
	want := []bitfield.Play{mirrorMove(t, copenhagen.Attacker, "d1-d3")}
	if got := s.tracker.MirrorSnapshot().Plays(); !reflect.DeepEqual(got, want) {
		t.Fatalf("mirror plays = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(res.Moves, []string{"d1-d3"}) {
		t.Fatalf("moves = %v", res.Moves)
	}
	if res.Method != domain.MethodConnectionClosed {
		t.Fatalf("method = %q", res.Method)
	}
	if len(mirror.seen) != 1 || len(mirror.seen[0].Plays()) != 0 {
		t.Fatalf("mirror proposer should see the start position once")
	}
}

func TestAcceptedProposalIsReported(t *testing.T) {
	script := htptest.NewScript("game 42 generate_move attacker")
	mirror := &fakeMirror{plays: []bitfield.Play{mirrorMove(t, copenhagen.Attacker, "d1-d3")}}
	fallback := &fakeFallback{}
	rep := &captureReporter{}
	s := newTestSession(script, copenhagen.Attacker, mirror, fallback, rep)

	if _, err := s.Run(context.Background()); !errors.Is(err, htp.ErrConnectionClosed) {
		t.Fatalf("err = %v", err)
	}
	if got := script.Sent(); !reflect.DeepEqual(got, []string{"game 42 play attacker d1 d3"}) {
		t.Fatalf("sent = %q", got)
	}
	if fallback.calls != 0 {
		t.Fatalf("fallback should not run")
	}
	if len(rep.snaps) < 2 {
		t.Fatalf("expected snapshots, got %d", len(rep.snaps))
	}
	last := rep.snaps[len(rep.snaps)-1]
	if last.MatchID != "42" || last.Role != "attacker" || last.Turn != "defender" {
		t.Fatalf("snapshot = %+v", last)
	}
	if !reflect.DeepEqual(last.Moves, []string{"d1-d3"}) {
		t.Fatalf("snapshot moves = %v", last.Moves)
	}
}

func TestOpponentPlayThenPrompt(t *testing.T) {
	script := htptest.NewScript(
		"game 42 play attacker d1 d3",
		"game 42 generate_move defender",
	)
	mirror := &fakeMirror{plays: []bitfield.Play{mirrorMove(t, copenhagen.Defender, "f4-f3")}}
	s := newTestSession(script, copenhagen.Defender, mirror, &fakeFallback{}, nil)

	res, err := s.Run(context.Background())
	if !errors.Is(err, htp.ErrConnectionClosed) {
		t.Fatalf("err = %v", err)
	}
	if got := script.Sent(); !reflect.DeepEqual(got, []string{"game 42 play defender f4 f3"}) {
		t.Fatalf("sent = %q", got)
	}
	if len(mirror.seen) != 1 || len(mirror.seen[0].Plays()) != 1 {
		t.Fatalf("mirror proposer should see the opponent's play")
	}
	if !reflect.DeepEqual(res.Moves, []string{"d1-d3", "f4-f3"}) {
		t.Fatalf("moves = %v", res.Moves)
	}
}

func TestUnrelatedLinesAreDiscarded(t *testing.T) {
	script := htptest.NewScript(
		"= ok",
		"game 99 generate_move attacker",
		"game 99 play defender f4 f3",
		"garbage",
		"= game_over 99 defender_wins",
		"game 42 generate_move defender",
		"game 42 play",
		"= game_over 42 attacker_wins",
		"game 42 generate_move attacker",
	)
	mirror := &fakeMirror{err: errors.New("must not be called")}
	s := newTestSession(script, copenhagen.Attacker, mirror, &fakeFallback{}, nil)

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Method != domain.MethodGameOver {
		t.Fatalf("method = %q", res.Method)
	}
	if len(script.Sent()) != 0 || mirror.calls != 0 {
		t.Fatalf("unexpected activity: sent=%q calls=%d", script.Sent(), mirror.calls)
	}
	if len(res.Moves) != 0 || s.tracker.Turn() != copenhagen.Attacker {
		t.Fatalf("state changed: %v", res.Moves)
	}
	if script.Remaining() != 1 {
		t.Fatalf("read past game_over: remaining = %d", script.Remaining())
	}
}

func TestGameOverWithoutIDEndsSession(t *testing.T) {
	script := htptest.NewScript("= game_over", "game 42 generate_move attacker")
	s := newTestSession(script, copenhagen.Attacker, &fakeMirror{err: errors.New("unused")}, &fakeFallback{}, nil)
	res, err := s.Run(context.Background())
	if err != nil || res.Method != domain.MethodGameOver {
		t.Fatalf("res = %+v, err = %v", res, err)
	}
}

func TestNoDecisionAfterOpponentResigns(t *testing.T) {
	script := htptest.NewScript(
		"game 42 generate_move attacker",
		"game 42 play attacker d1 d3",
		"game 42 play defender resigns _",
		"game 42 generate_move attacker",
	)
	mirror := &fakeMirror{plays: []bitfield.Play{mirrorMove(t, copenhagen.Attacker, "d1-d3")}}
	s := newTestSession(script, copenhagen.Attacker, mirror, &fakeFallback{}, nil)

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Method != domain.MethodOpponentResigned || res.Status != copenhagen.AttackerWins {
		t.Fatalf("result = %s", res)
	}
	if mirror.calls != 1 {
		t.Fatalf("proposer calls = %d", mirror.calls)
	}
	if script.Remaining() != 1 {
		t.Fatalf("remaining = %d", script.Remaining())
	}
}

func TestEmptyReadEndsWithoutWrites(t *testing.T) {
	script := htptest.NewScript()
	s := newTestSession(script, copenhagen.Attacker, &fakeMirror{}, &fakeFallback{}, nil)
	res, err := s.Run(context.Background())
	if !errors.Is(err, htp.ErrConnectionClosed) {
		t.Fatalf("err = %v", err)
	}
	if len(script.Sent()) != 0 {
		t.Fatalf("sent after close: %q", script.Sent())
	}
	if res.Method != domain.MethodConnectionClosed {
		t.Fatalf("method = %q", res.Method)
	}
}

func TestProposerFailureResigns(t *testing.T) {
	script := htptest.NewScript("game 42 generate_move attacker")
	s := newTestSession(script, copenhagen.Attacker, &fakeMirror{err: errors.New("boom")}, &fakeFallback{}, nil)

	res, err := s.Run(context.Background())
	if !errors.Is(err, ErrProposerExhausted) {
		t.Fatalf("err = %v", err)
	}
	if got := script.Sent(); !reflect.DeepEqual(got, []string{"game 42 play attacker resigns _"}) {
		t.Fatalf("sent = %q", got)
	}
	if res.Method != domain.MethodResigned || res.Status != copenhagen.DefenderWins {
		t.Fatalf("result = %s", res)
	}
}

func TestFallbackFailureResigns(t *testing.T) {
	script := htptest.NewScript("game 42 generate_move attacker")
	mirror := &fakeMirror{plays: []bitfield.Play{mirrorMove(t, copenhagen.Attacker, "a1-a2")}}
	fallback := &fakeFallback{err: errors.New("no time")}
	s := newTestSession(script, copenhagen.Attacker, mirror, fallback, nil)

	_, err := s.Run(context.Background())
	if !errors.Is(err, ErrProposerExhausted) {
		t.Fatalf("err = %v", err)
	}
	if got := script.Sent(); !reflect.DeepEqual(got, []string{"game 42 play attacker resigns _"}) {
		t.Fatalf("sent = %q", got)
	}
}

func TestOffBoardProposalFallsBack(t *testing.T) {
	script := htptest.NewScript("game 42 generate_move attacker")
	bad := bitfield.Play{Side: bitfield.Dark, From: bitfield.Cell{Row: 12, Col: 0}, To: bitfield.Cell{Row: 0, Col: 0}}
	fallback := &fakeFallback{play: move(t, copenhagen.Attacker, "d1-d3")}
	s := newTestSession(script, copenhagen.Attacker, &fakeMirror{plays: []bitfield.Play{bad}}, fallback, nil)

	if _, err := s.Run(context.Background()); !errors.Is(err, htp.ErrConnectionClosed) {
		t.Fatalf("err = %v", err)
	}
	if fallback.calls != 1 {
		t.Fatalf("fallback calls = %d", fallback.calls)
	}
}

func TestFallbackResignationEndsSession(t *testing.T) {
	script := htptest.NewScript("game 42 generate_move attacker", "game 42 generate_move attacker")
	mirror := &fakeMirror{plays: []bitfield.Play{mirrorMove(t, copenhagen.Attacker, "a1-a2")}}
	fallback := &fakeFallback{play: copenhagen.Resignation(copenhagen.Attacker)}
	s := newTestSession(script, copenhagen.Attacker, mirror, fallback, nil)

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := script.Sent(); !reflect.DeepEqual(got, []string{"game 42 play attacker resigns _"}) {
		t.Fatalf("sent = %q", got)
	}
	if res.Method != domain.MethodResigned || res.Status != copenhagen.DefenderWins {
		t.Fatalf("result = %s", res)
	}
	if script.Remaining() != 1 {
		t.Fatalf("remaining = %d", script.Remaining())
	}
}

func TestIllegalOpponentPlayResigns(t *testing.T) {
	script := htptest.NewScript("game 42 play defender f4 f3")
	s := newTestSession(script, copenhagen.Attacker, &fakeMirror{}, &fakeFallback{}, nil)

	_, err := s.Run(context.Background())
	if !errors.Is(err, tracker.ErrInvalidPlay) {
		t.Fatalf("err = %v", err)
	}
	if got := script.Sent(); !reflect.DeepEqual(got, []string{"game 42 play attacker resigns _"}) {
		t.Fatalf("sent = %q", got)
	}
}

func TestPromptOnOpponentsTurnIsDesync(t *testing.T) {
	script := htptest.NewScript("game 42 generate_move defender")
	s := newTestSession(script, copenhagen.Defender, &fakeMirror{}, &fakeFallback{}, nil)
	if _, err := s.Run(context.Background()); !errors.Is(err, tracker.ErrDesync) {
		t.Fatalf("err = %v", err)
	}
	if len(script.Sent()) != 0 {
		t.Fatalf("sent = %q", script.Sent())
	}
}

func TestTranscriptRecordsBothDirections(t *testing.T) {
	script := htptest.NewScript("game 42 generate_move attacker", "= game_over 42 attacker_wins")
	mirror := &fakeMirror{plays: []bitfield.Play{mirrorMove(t, copenhagen.Attacker, "d1-d3")}}
	s := newTestSession(script, copenhagen.Attacker, mirror, &fakeFallback{}, nil)
	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{
		"< game 42 generate_move attacker",
		"> game 42 play attacker d1 d3",
		"< = game_over 42 attacker_wins",
	}
	if !reflect.DeepEqual(res.Transcript, want) {
		t.Fatalf("transcript = %q", res.Transcript)
	}
}

func TestOpponentResignsOnOurTurn(t *testing.T) {
	script := htptest.NewScript("game 42 play defender resigns _")
	mirror := &fakeMirror{plays: []bitfield.Play{mirrorMove(t, copenhagen.Attacker, "d1-d3")}}
	s := newTestSession(script, copenhagen.Attacker, mirror, &fakeFallback{}, nil)

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := script.Sent(); len(got) != 0 {
		t.Fatalf("sent = %q, want nothing", got)
	}
	if res.Method != domain.MethodOpponentResigned || res.Status != copenhagen.AttackerWins {
		t.Fatalf("result = %s", res)
	}
	if mirror.calls != 0 {
		t.Fatalf("no decision after the opponent resigned")
	}
}

func TestMirrorRejectionResigns(t *testing.T) {
	// the mirror has an extra defender on d3, so d1-d3 passes the primary only
	rows := copenhagen.NewGame().Rows()
	rows[copenhagen.BoardSize-3] = "...D......."
	r := strings.NewReplacer("A", "X", "D", "O", "K", "#")
	for i := range rows {
		rows[i] = r.Replace(rows[i])
	}
	diverged, err := bitfield.FromRows(rows, bitfield.Dark)
	if err != nil {
		t.Fatalf("FromRows: %v", err)
	}
	tr, err := tracker.Resume(copenhagen.NewGame(), diverged)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}

	script := htptest.NewScript("game 42 generate_move attacker")
	mirror := &fakeMirror{plays: []bitfield.Play{mirrorMove(t, copenhagen.Attacker, "d1-d3")}}
	fallback := &fakeFallback{}
	s := newTestSession(script, copenhagen.Attacker, mirror, fallback, nil)
	s.tracker = tr

	res, err := s.Run(context.Background())
	var ipe *tracker.InvalidPlayError
	if !errors.As(err, &ipe) || ipe.Model != tracker.Mirror {
		t.Fatalf("err = %v, want a mirror rejection", err)
	}
	if got := script.Sent(); !reflect.DeepEqual(got, []string{"game 42 play attacker resigns _"}) {
		t.Fatalf("sent = %q", got)
	}
	if fallback.calls != 0 {
		t.Fatalf("fallback must not run for a mirror rejection")
	}
	if res.Method != domain.MethodResigned || res.Status != copenhagen.DefenderWins {
		t.Fatalf("result = %s", res)
	}
}

func TestUnplayableProposalFallsBack(t *testing.T) {
	for _, reason := range []error{bitfield.ErrMalformed, bitfield.ErrOffBoard} {
		script := htptest.NewScript("game 42 generate_move attacker")
		mirror := &fakeMirror{err: fmt.Errorf("engine move %q: %w", "zz", reason)}
		fallback := &fakeFallback{play: move(t, copenhagen.Attacker, "d1-d3")}
		s := newTestSession(script, copenhagen.Attacker, mirror, fallback, nil)

		res, err := s.Run(context.Background())
		if !errors.Is(err, htp.ErrConnectionClosed) {
			t.Fatalf("%v: err = %v", reason, err)
		}
		if got := script.Sent(); !reflect.DeepEqual(got, []string{"game 42 play attacker d1 d3"}) {
			t.Fatalf("%v: sent = %q", reason, got)
		}
		if fallback.calls != 1 || res.Fallbacks != 1 {
			t.Fatalf("%v: fallback calls = %d fallbacks = %d", reason, fallback.calls, res.Fallbacks)
		}
	}
}

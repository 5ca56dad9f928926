package render

import (
	"bytes"
	"context"
	"image/png"
	"testing"

	"github.com/park285/tafl-htp-bot/internal/tracker"
	"github.com/park285/tafl-htp-bot/pkg/matchdto"
)

func TestRenderStartPosition(t *testing.T) {
	snap := tracker.New().Snapshot()
	snap.MatchID = "42"
	snap.Role = "attacker"

	out, err := NewSVGBoardRenderer().RenderPNG(context.Background(), snap)
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 48*11+56 || b.Dy() != 48*11+68 {
		t.Fatalf("bounds = %v", b)
	}
}

func TestRenderHighlightsLastMove(t *testing.T) {
	snap := tracker.New().Snapshot()
	before, err := NewSVGBoardRenderer().RenderPNG(context.Background(), snap)
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	snap.Moves = []string{"c3-c4"}
	after, err := NewSVGBoardRenderer().RenderPNG(context.Background(), snap)
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	if bytes.Equal(before, after) {
		t.Fatalf("expected the highlight to change the image")
	}
}

func TestRenderRejectsMalformedSnapshot(t *testing.T) {
	if _, err := NewSVGBoardRenderer().RenderPNG(context.Background(), matchdto.Snapshot{}); err == nil {
		t.Fatalf("expected error for empty rows")
	}
	snap := tracker.New().Snapshot()
	snap.Rows[0] = "X.........."
	if _, err := NewSVGBoardRenderer().RenderPNG(context.Background(), snap); err == nil {
		t.Fatalf("expected error for unknown piece")
	}
}

func TestRenderHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewSVGBoardRenderer().RenderPNG(ctx, tracker.New().Snapshot()); err == nil {
		t.Fatalf("expected ctx error")
	}
}

func TestPieceImagesAreCached(t *testing.T) {
	a, err := renderPieceImage('K', 32)
	if err != nil {
		t.Fatalf("render king: %v", err)
	}
	b, _ := renderPieceImage('K', 32)
	if a != b {
		t.Fatalf("expected cached image")
	}
	if _, err := renderPieceImage('Q', 32); err == nil {
		t.Fatalf("expected unknown piece error")
	}
}

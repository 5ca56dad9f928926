// Package render draws a match snapshot as a PNG board for the status endpoint.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/tafl-htp-bot/internal/tafl/copenhagen"
	"github.com/park285/tafl-htp-bot/pkg/matchdto"
)

const boardSquares = copenhagen.BoardSize

type BoardRenderer interface {
	RenderPNG(ctx context.Context, snap matchdto.Snapshot) ([]byte, error)
}

type svgBoardRenderer struct {
	squareSize int
}

func NewSVGBoardRenderer() BoardRenderer {
	return &svgBoardRenderer{squareSize: 48}
}

var (
	lightSquare     = color.RGBA{233, 207, 163, 255}
	darkSquare      = color.RGBA{214, 180, 134, 255}
	restrictedColor = color.RGBA{150, 96, 64, 255}
	highlightFill   = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	backgroundColor = color.RGBA{28, 31, 46, 255}
	hudTextColor    = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	coordinateColor = color.NRGBA{R: 8, G: 214, B: 120, A: 255}
)

func (r *svgBoardRenderer) RenderPNG(ctx context.Context, snap matchdto.Snapshot) ([]byte, error) {
	if len(snap.Rows) != boardSquares {
		return nil, fmt.Errorf("snapshot has %d rows, want %d", len(snap.Rows), boardSquares)
	}
	const (
		sideMargin   = 28
		topMargin    = 40
		bottomMargin = 28
	)
	sq := r.squareSize
	boardSize := sq * boardSquares
	origin := image.Point{X: sideMargin, Y: topMargin}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	img := image.NewRGBA(image.Rect(0, 0, boardSize+sideMargin*2, boardSize+topMargin+bottomMargin))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	drawSquares(img, sq, origin)
	drawLastMove(img, snap.Moves, sq, origin)
	if err := drawPieces(img, snap.Rows, sq, origin); err != nil {
		return nil, err
	}
	drawCoordinates(img, sq, origin, sideMargin)
	drawHeader(img, snap, origin)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// cellRect maps a vertex to its square; rank 11 is the top row.
func cellRect(v copenhagen.Vertex, sq int, origin image.Point) image.Rectangle {
	row := boardSquares - v.Rank
	x := origin.X + v.File*sq
	y := origin.Y + row*sq
	return image.Rect(x, y, x+sq, y+sq)
}

func drawSquares(dst imagedraw.Image, sq int, origin image.Point) {
	last := boardSquares - 1
	for rank := 1; rank <= boardSquares; rank++ {
		for file := 0; file < boardSquares; file++ {
			v := copenhagen.Vertex{File: file, Rank: rank}
			clr := color.Color(lightSquare)
			if (file+rank)%2 == 0 {
				clr = darkSquare
			}
			corner := (file == 0 || file == last) && (rank == 1 || rank == boardSquares)
			throne := file == boardSquares/2 && rank == boardSquares/2+1
			if corner || throne {
				clr = restrictedColor
			}
			imagedraw.Draw(dst, cellRect(v, sq, origin), image.NewUniform(clr), image.Point{}, imagedraw.Src)
		}
	}
}

func drawLastMove(dst imagedraw.Image, moves []string, sq int, origin image.Point) {
	if len(moves) == 0 {
		return
	}
	parts := strings.Split(moves[len(moves)-1], "-")
	if len(parts) != 2 {
		return // resignation
	}
	for _, part := range parts {
		v, err := copenhagen.ParseVertex(part)
		if err != nil {
			return
		}
		imagedraw.Draw(dst, cellRect(v, sq, origin), image.NewUniform(highlightFill), image.Point{}, imagedraw.Over)
	}
}

func drawPieces(dst imagedraw.Image, rows []string, sq int, origin image.Point) error {
	for i, row := range rows {
		rank := boardSquares - i
		for file, c := range row {
			if c == '.' || file >= boardSquares {
				continue
			}
			piece, err := renderPieceImage(c, sq)
			if err != nil {
				return err
			}
			rect := cellRect(copenhagen.Vertex{File: file, Rank: rank}, sq, origin)
			imagedraw.Draw(dst, rect, piece, image.Point{}, imagedraw.Over)
		}
	}
	return nil
}

func drawCoordinates(dst imagedraw.Image, sq int, origin image.Point, margin int) {
	drawer := &font.Drawer{Dst: dst, Face: basicfont.Face7x13, Src: image.NewUniform(coordinateColor)}
	ascent := basicfont.Face7x13.Metrics().Ascent.Ceil()
	boardEnd := origin.Y + boardSquares*sq
	for i := 0; i < boardSquares; i++ {
		rank := boardSquares - i
		drawCenteredText(drawer, fmt.Sprint(rank), origin.X-margin/2, origin.Y+i*sq+sq/2+ascent/2)
		file := string(rune('a' + i))
		drawCenteredText(drawer, file, origin.X+i*sq+sq/2, boardEnd+ascent+4)
	}
}

func drawHeader(dst imagedraw.Image, snap matchdto.Snapshot, origin image.Point) {
	drawer := &font.Drawer{Dst: dst, Face: basicfont.Face7x13, Src: image.NewUniform(hudTextColor)}
	text := fmt.Sprintf("match %s  %s  turn: %s  status: %s  plays: %d  fallbacks: %d",
		orDash(snap.MatchID), orDash(snap.Role), orDash(snap.Turn), orDash(snap.Status), len(snap.Moves), snap.Fallbacks)
	drawer.Dot = fixed.P(origin.X, origin.Y-14)
	drawer.DrawString(text)
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	if text == "" {
		return
	}
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

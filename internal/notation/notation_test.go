package notation

import (
	"testing"

	"github.com/park285/tafl-htp-bot/internal/tafl/bitfield"
	"github.com/park285/tafl-htp-bot/internal/tafl/copenhagen"
)

func TestKnownCells(t *testing.T) {
	cases := []struct {
		vertex string
		cell   string
	}{
		{"d4", "0703"},
		{"d9", "0203"},
		{"a11", "0000"},
		{"k1", "1010"},
		{"f6", "0505"},
	}
	for _, tc := range cases {
		v, err := copenhagen.ParseVertex(tc.vertex)
		if err != nil {
			t.Fatalf("ParseVertex(%q): %v", tc.vertex, err)
		}
		if got := ToCell(v).String(); got != tc.cell {
			t.Fatalf("ToCell(%s) = %s, want %s", tc.vertex, got, tc.cell)
		}
	}
}

func TestRoundTripAllCells(t *testing.T) {
	for file := 0; file < copenhagen.BoardSize; file++ {
		for rank := 1; rank <= copenhagen.BoardSize; rank++ {
			v := copenhagen.Vertex{File: file, Rank: rank}
			if got := ToVertex(ToCell(v)); got != v {
				t.Fatalf("round trip %s -> %s", v, got)
			}
		}
	}
	for row := 0; row < bitfield.Size; row++ {
		for col := 0; col < bitfield.Size; col++ {
			c := bitfield.Cell{Row: row, Col: col}
			if got := ToCell(ToVertex(c)); got != c {
				t.Fatalf("round trip %s -> %s", c, got)
			}
		}
	}
}

func TestPlayRoundTrip(t *testing.T) {
	p := copenhagen.Play{Role: copenhagen.Attacker, From: copenhagen.Vertex{File: 3, Rank: 4}, To: copenhagen.Vertex{File: 3, Rank: 9}}
	m := ToMirror(p)
	if m.String() != "0703-0203" || m.Side != bitfield.Dark {
		t.Fatalf("ToMirror = %s (%s)", m, m.Side)
	}
	if back := ToPrimary(m); back != p {
		t.Fatalf("ToPrimary(ToMirror(p)) = %+v, want %+v", back, p)
	}
	if ToRole(ToSide(copenhagen.Defender)) != copenhagen.Defender {
		t.Fatalf("defender does not round trip")
	}
}

func TestSameStatus(t *testing.T) {
	if !SameStatus(copenhagen.Ongoing, bitfield.Ongoing) || !SameStatus(copenhagen.AttackerWins, bitfield.DarkWins) || !SameStatus(copenhagen.DefenderWins, bitfield.LightWins) {
		t.Fatalf("matching statuses reported as different")
	}
	if SameStatus(copenhagen.Ongoing, bitfield.DarkWins) || SameStatus(copenhagen.AttackerWins, bitfield.LightWins) {
		t.Fatalf("different statuses reported as matching")
	}
}

func TestPanicsOnInconsistentInput(t *testing.T) {
	mustPanic := func(name string, fn func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Fatalf("%s: expected panic", name)
			}
		}()
		fn()
	}
	mustPanic("off-board vertex", func() { ToCell(copenhagen.Vertex{File: 11, Rank: 1}) })
	mustPanic("off-board cell", func() { ToVertex(bitfield.Cell{Row: 0, Col: -1}) })
	mustPanic("roleless", func() { ToSide(copenhagen.Roleless) })
	mustPanic("resignation", func() { ToMirror(copenhagen.Resignation(copenhagen.Attacker)) })
}

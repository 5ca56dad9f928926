package presets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEmbeddedStandard(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p, err := c.Get("")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Name != "standard" || p.PrimaryThink != 15*time.Second || p.FallbackThink != 10*time.Second || p.FallbackDepth != 20 {
		t.Fatalf("standard = %+v", p)
	}
	for _, name := range c.Names() {
		if _, err := c.Get(name); err != nil {
			t.Fatalf("embedded preset %s invalid: %v", name, err)
		}
	}
	if _, err := c.Get("nope"); err == nil {
		t.Fatalf("expected unknown preset error")
	}
}

func TestOverrideMergesFields(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.yaml", "standard:\n  primary_think: 3s\nlab:\n  primary_think: 1s\n  fallback_think: 1s\n  fallback_depth: 4\n  search_depth: 2\n  primary_choices: 1\n  candidate_weights: [1]\n")
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p, err := c.Get("STANDARD")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.PrimaryThink != 3*time.Second || p.FallbackThink != 10*time.Second {
		t.Fatalf("merge = %+v", p)
	}
	if _, err := c.Get("lab"); err != nil {
		t.Fatalf("Get(lab): %v", err)
	}
}

func TestDuplicateOverrideRejected(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.yaml", "blitz:\n  eval_noise: 1\n")
	write(t, dir, "b.yml", "blitz:\n  eval_noise: 2\n")
	_, err := New(dir)
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("err = %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := Preset{Name: "x", PrimaryThink: time.Second, FallbackThink: time.Second, FallbackDepth: 1, SearchDepth: 1, PrimaryChoices: 1, CandidateWeights: []float64{1}}
	if err := Validate(base); err != nil {
		t.Fatalf("valid preset: %v", err)
	}
	bad := []func(*Preset){
		func(p *Preset) { p.PrimaryThink = 0 },
		func(p *Preset) { p.FallbackDepth = 0 },
		func(p *Preset) { p.PrimaryChoices = 2 },
		func(p *Preset) { p.CandidateWeights = []float64{0} },
		func(p *Preset) { p.EvalNoise = -1 },
	}
	for i, mutate := range bad {
		p := base
		p.CandidateWeights = append([]float64(nil), base.CandidateWeights...)
		mutate(&p)
		if err := Validate(p); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func write(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

package presets

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	yaml "gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var defaultFiles embed.FS

const Default = "standard"

type Preset struct {
	Name             string
	PrimaryThink     time.Duration
	FallbackThink    time.Duration
	FallbackDepth    int
	SearchDepth      int
	PrimaryChoices   int
	CandidateWeights []float64
	EvalNoise        int
}

type rawPreset struct {
	PrimaryThink     string    `yaml:"primary_think"`
	FallbackThink    string    `yaml:"fallback_think"`
	FallbackDepth    int       `yaml:"fallback_depth"`
	SearchDepth      int       `yaml:"search_depth"`
	PrimaryChoices   int       `yaml:"primary_choices"`
	CandidateWeights []float64 `yaml:"candidate_weights"`
	EvalNoise        int       `yaml:"eval_noise"`
}

// Catalog holds the embedded presets with optional overrides layered on top.
// An override file may set only some fields of a preset; the rest keep their defaults.
type Catalog struct {
	mu   sync.RWMutex
	data map[string]rawPreset
}

func New(overrideDir string) (*Catalog, error) {
	c := &Catalog{data: make(map[string]rawPreset)}
	raw, err := fs.ReadFile(defaultFiles, "presets.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded presets: %w", err)
	}
	if _, err := c.apply(raw); err != nil {
		return nil, fmt.Errorf("parse embedded presets: %w", err)
	}
	if strings.TrimSpace(overrideDir) != "" {
		if err := c.applyDir(overrideDir); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) applyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read preset dir: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	seen := make(map[string]string) // preset -> filename
	for _, name := range files {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		keys, err := c.apply(b)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		for _, k := range keys {
			if prev, ok := seen[k]; ok {
				return fmt.Errorf("duplicate override preset %q in %s and %s", k, prev, name)
			}
			seen[k] = name
		}
	}
	return nil
}

// apply decodes each top-level preset onto its current value and returns the names touched.
func (c *Catalog) apply(b []byte) ([]string, error) {
	var nodes map[string]yaml.Node
	if err := yaml.Unmarshal(b, &nodes); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(nodes))
	for name, node := range nodes {
		name = strings.ToLower(strings.TrimSpace(name))
		cur := c.data[name]
		if err := node.Decode(&cur); err != nil {
			return nil, fmt.Errorf("preset %s: %w", name, err)
		}
		c.data[name] = cur
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys, nil
}

func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.data))
	for k := range c.data {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Get resolves and validates a preset; an empty name means Default.
func (c *Catalog) Get(name string) (Preset, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = Default
	}
	c.mu.RLock()
	raw, ok := c.data[name]
	c.mu.RUnlock()
	if !ok {
		return Preset{}, fmt.Errorf("unknown preset %q", name)
	}
	p, err := raw.resolve(name)
	if err != nil {
		return Preset{}, err
	}
	if err := Validate(p); err != nil {
		return Preset{}, err
	}
	return p, nil
}

func (r rawPreset) resolve(name string) (Preset, error) {
	primary, err := time.ParseDuration(strings.TrimSpace(r.PrimaryThink))
	if err != nil {
		return Preset{}, fmt.Errorf("preset %s primary_think: %w", name, err)
	}
	fallback, err := time.ParseDuration(strings.TrimSpace(r.FallbackThink))
	if err != nil {
		return Preset{}, fmt.Errorf("preset %s fallback_think: %w", name, err)
	}
	return Preset{
		Name:             name,
		PrimaryThink:     primary,
		FallbackThink:    fallback,
		FallbackDepth:    r.FallbackDepth,
		SearchDepth:      r.SearchDepth,
		PrimaryChoices:   r.PrimaryChoices,
		CandidateWeights: append([]float64(nil), r.CandidateWeights...),
		EvalNoise:        r.EvalNoise,
	}, nil
}

func Validate(p Preset) error {
	if p.PrimaryThink <= 0 || p.FallbackThink <= 0 {
		return fmt.Errorf("preset %s: think budgets must be > 0", p.Name)
	}
	if p.FallbackDepth <= 0 {
		return fmt.Errorf("preset %s: fallback_depth must be > 0: %d", p.Name, p.FallbackDepth)
	}
	if p.SearchDepth <= 0 {
		return fmt.Errorf("preset %s: search_depth must be > 0: %d", p.Name, p.SearchDepth)
	}
	if p.PrimaryChoices <= 0 || p.PrimaryChoices > len(p.CandidateWeights) {
		return fmt.Errorf("preset %s: primary_choices %d needs as many candidate_weights (have %d)", p.Name, p.PrimaryChoices, len(p.CandidateWeights))
	}
	total := 0.0
	for _, w := range p.CandidateWeights[:p.PrimaryChoices] {
		if w < 0 {
			return fmt.Errorf("preset %s: negative candidate weight", p.Name)
		}
		total += w
	}
	if total == 0 {
		return errors.New("candidate weights sum to zero")
	}
	if p.EvalNoise < 0 {
		return fmt.Errorf("preset %s: eval_noise must be >= 0", p.Name)
	}
	return nil
}

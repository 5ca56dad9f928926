// Package tracker keeps the authoritative copenhagen model and the bitfield
// mirror in lock-step for one match.
package tracker

import (
	"errors"
	"fmt"
	"time"

	"github.com/park285/tafl-htp-bot/internal/notation"
	"github.com/park285/tafl-htp-bot/internal/tafl/bitfield"
	"github.com/park285/tafl-htp-bot/internal/tafl/copenhagen"
	"github.com/park285/tafl-htp-bot/pkg/matchdto"
)

var (
	ErrInvalidPlay = errors.New("tracker: invalid play")
	// ErrDesync means the models disagree on status or side to move after a play both accepted.
	ErrDesync = errors.New("tracker: models out of lock-step")
	// ErrDiverged means the primary holds a play the mirror has not applied yet.
	ErrDiverged = errors.New("tracker: mirror has not caught up")
)

type Model int

const (
	Primary Model = iota
	Mirror
)

func (m Model) String() string {
	if m == Mirror {
		return "mirror"
	}
	return "primary"
}

type InvalidPlayError struct {
	Model  Model
	Play   copenhagen.Play
	Reason error
}

func (e *InvalidPlayError) Error() string {
	return fmt.Sprintf("%s model rejected %s %s: %v", e.Model, e.Play.Role, e.Play.Move(), e.Reason)
}

func (e *InvalidPlayError) Unwrap() error { return e.Reason }

func (e *InvalidPlayError) Is(target error) bool { return target == ErrInvalidPlay }

// Tracker exclusively owns both models. It is not safe for concurrent use;
// Snapshot returns values other goroutines may keep.
type Tracker struct {
	primary  *copenhagen.Game
	mirror   *bitfield.Game
	diverged bool
	moves    []string
}

func New() *Tracker {
	return &Tracker{primary: copenhagen.NewGame(), mirror: bitfield.NewGame()}
}

// Resume takes ownership of two positions that already agree on status and
// side to move. The boards themselves are not compared.
func Resume(primary *copenhagen.Game, mirror *bitfield.Game) (*Tracker, error) {
	t := &Tracker{primary: primary, mirror: mirror}
	if err := t.CheckLockStep(); err != nil {
		return nil, err
	}
	for _, p := range primary.Plays() {
		t.moves = append(t.moves, p.Move())
	}
	return t, nil
}

// ApplyFromProtocol applies an opponent play to the primary, then to the mirror.
func (t *Tracker) ApplyFromProtocol(p copenhagen.Play) error {
	if err := t.ApplyPrimary(p); err != nil {
		return err
	}
	return t.ApplyMirror(p)
}

// ApplyPrimary is the first half of a local decision. Until ApplyMirror succeeds
// the tracker is Diverged and refuses further primary plays.
func (t *Tracker) ApplyPrimary(p copenhagen.Play) error {
	if t.diverged {
		return ErrDiverged
	}
	if err := t.primary.Play(p); err != nil {
		return &InvalidPlayError{Model: Primary, Play: p, Reason: unwrapPlay(err)}
	}
	t.diverged = true
	return nil
}

// ApplyMirror replays the play the primary already accepted.
func (t *Tracker) ApplyMirror(p copenhagen.Play) error {
	if !t.diverged {
		return fmt.Errorf("%w: mirror play %s without a primary play", ErrDesync, p.Move())
	}
	var err error
	if p.Resign {
		err = t.mirror.Resign(notation.ToSide(p.Role))
	} else {
		err = t.mirror.DoPlay(notation.ToMirror(p))
	}
	if err != nil {
		return &InvalidPlayError{Model: Mirror, Play: p, Reason: unwrapPlay(err)}
	}
	t.diverged = false
	t.moves = append(t.moves, p.Move())
	return t.CheckLockStep()
}

func unwrapPlay(err error) error {
	var pe *copenhagen.InvalidPlay
	if errors.As(err, &pe) {
		return pe.Err
	}
	var me *bitfield.InvalidPlay
	if errors.As(err, &me) {
		return me.Err
	}
	return err
}

func (t *Tracker) CheckLockStep() error {
	ps, ms := t.primary.Status(), t.mirror.Status()
	if !notation.SameStatus(ps, ms) {
		return fmt.Errorf("%w: status %s vs %s", ErrDesync, ps, ms)
	}
	if notation.ToSide(t.primary.Turn()) != t.mirror.Turn() {
		return fmt.Errorf("%w: turn %s vs %s", ErrDesync, t.primary.Turn(), t.mirror.Turn())
	}
	return nil
}

func (t *Tracker) Diverged() bool { return t.diverged }

func (t *Tracker) Status() copenhagen.Status { return t.primary.Status() }

func (t *Tracker) Turn() copenhagen.Role { return t.primary.Turn() }

func (t *Tracker) PrimarySnapshot() *copenhagen.Game { return t.primary.Clone() }

func (t *Tracker) MirrorSnapshot() *bitfield.Game { return t.mirror.Clone() }

func (t *Tracker) Moves() []string { return append([]string(nil), t.moves...) }

// Snapshot renders the primary model; callers fill in the session fields.
func (t *Tracker) Snapshot() matchdto.Snapshot {
	rows := t.primary.Rows()
	var pc matchdto.PieceCount
	for _, r := range rows {
		for _, c := range r {
			switch c {
			case 'A':
				pc.Attackers++
			case 'D':
				pc.Defenders++
			case 'K':
				pc.King = true
			}
		}
	}
	return matchdto.Snapshot{
		Turn:      t.primary.Turn().String(),
		Status:    t.primary.Status().String(),
		Rows:      rows,
		Moves:     t.Moves(),
		Pieces:    pc,
		UpdatedAt: time.Now(),
	}
}

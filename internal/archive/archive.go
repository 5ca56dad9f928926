// Package archive stores finished matches: redis for the recent list, postgres
// for the permanent record, memory for development.
package archive

import (
	"context"
	"errors"

	"github.com/park285/tafl-htp-bot/internal/domain"
)

var ErrDuplicateMatch = errors.New("archive: match already stored")

type Recorder interface {
	Save(ctx context.Context, m *domain.Match) error
}

// Lister serves the recent-matches view. Newest first.
type Lister interface {
	Recent(ctx context.Context, limit int) ([]*domain.Match, error)
}

// Multi saves to every recorder and joins the failures.
type Multi []Recorder

func (m Multi) Save(ctx context.Context, match *domain.Match) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Save(ctx, match); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

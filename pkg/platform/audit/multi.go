package audit

import (
	"context"
	"errors"
)

// Multi fans every event out to all stores. Every store is attempted; the
// returned error joins the individual failures.
type Multi []Store

func (m Multi) Append(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ListByUser reads from the first store that can replay events.
func (m Multi) ListByUser(ctx context.Context, userID string) ([]Event, error) {
	for _, s := range m {
		if r, ok := s.(Reader); ok {
			return r.ListByUser(ctx, userID)
		}
	}
	return nil, ErrNotReadable
}

// ErrNotReadable is returned when no configured store supports reads.
var ErrNotReadable = errors.New("audit store does not support reads")

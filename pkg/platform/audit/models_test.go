package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditEvent_Category(t *testing.T) {
	assert.Equal(t, CategoryCompliance, EventStudentRegistered.Category())
	assert.Equal(t, CategoryCompliance, EventProfileUpdated.Category())
	assert.Equal(t, CategorySecurity, EventSignInRejected.Category())
	assert.Equal(t, CategoryOperations, EventStudentSignedIn.Category())
	assert.Equal(t, CategoryOperations, AuditEvent("something_new").Category())
}

type recordingStore struct {
	events []Event
	err    error
}

func (r *recordingStore) Append(_ context.Context, e Event) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

type readableStore struct{ recordingStore }

func (r *readableStore) ListByUser(_ context.Context, userID string) ([]Event, error) {
	var out []Event
	for _, e := range r.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestMulti(t *testing.T) {
	ctx := context.Background()
	failing := &recordingStore{err: errors.New("broker down")}
	readable := &readableStore{}
	m := Multi{failing, readable}

	err := m.Append(ctx, Event{UserID: "u-1", Action: string(EventStudentSignedIn)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Len(t, readable.events, 1, "later stores still receive the event")

	events, err := m.ListByUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Len(t, events, 1)

	_, err = Multi{failing}.ListByUser(ctx, "u-1")
	assert.ErrorIs(t, err, ErrNotReadable)
}

package circuit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// outcome is one primary call: true for success.
type outcome bool

const (
	ok   outcome = true
	fail outcome = false
)

func record(b *Breaker, o outcome) (primary bool, change StateChange) {
	if o == ok {
		return b.RecordSuccess()
	}
	useFallback, change := b.RecordFailure()
	return !useFallback, change
}

func TestBreakerSequences(t *testing.T) {
	tests := []struct {
		name      string
		opts      []Option
		calls     []outcome
		wantState State
		opened    int
		closed    int
	}{
		{
			name:      "defaults need five failures",
			calls:     []outcome{fail, fail, fail, fail},
			wantState: StateClosed,
		},
		{
			name:      "fifth default failure opens",
			calls:     []outcome{fail, fail, fail, fail, fail},
			wantState: StateOpen,
			opened:    1,
		},
		{
			name:      "success between failures resets the streak",
			opts:      []Option{WithFailureThreshold(3)},
			calls:     []outcome{fail, fail, ok, fail, fail},
			wantState: StateClosed,
		},
		{
			name:      "closes after the success threshold",
			opts:      []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			calls:     []outcome{fail, ok, ok},
			wantState: StateClosed,
			opened:    1,
			closed:    1,
		},
		{
			name:      "failure while recovering restarts the success count",
			opts:      []Option{WithFailureThreshold(1), WithSuccessThreshold(3)},
			calls:     []outcome{fail, ok, ok, fail, ok, ok},
			wantState: StateOpen,
			opened:    1,
		},
		{
			name:      "repeated failures while open report one transition",
			opts:      []Option{WithFailureThreshold(1)},
			calls:     []outcome{fail, fail, fail},
			wantState: StateOpen,
			opened:    1,
		},
		{
			name:      "non-positive thresholds keep the defaults",
			opts:      []Option{WithFailureThreshold(0), WithSuccessThreshold(-1)},
			calls:     []outcome{fail, fail, fail, fail, fail},
			wantState: StateOpen,
			opened:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("ratelimit-redis", tt.opts...)
			var opened, closed int
			for _, call := range tt.calls {
				_, change := record(b, call)
				if change.Opened {
					opened++
				}
				if change.Closed {
					closed++
				}
			}
			assert.Equal(t, tt.wantState, b.State())
			assert.Equal(t, tt.opened, opened, "opened transitions")
			assert.Equal(t, tt.closed, closed, "closed transitions")
		})
	}
}

func TestBreakerRoutingAnswers(t *testing.T) {
	b := New("ratelimit-redis", WithFailureThreshold(2), WithSuccessThreshold(2))

	primary, _ := record(b, fail)
	assert.True(t, primary, "one failure stays on the primary")

	primary, change := record(b, fail)
	assert.False(t, primary)
	assert.True(t, change.Opened)

	primary, _ = record(b, ok)
	assert.False(t, primary, "fallback until enough successes")

	primary, change = record(b, ok)
	assert.True(t, primary)
	assert.True(t, change.Closed)
}

func TestBreakerReset(t *testing.T) {
	b := New("ratelimit-redis", WithFailureThreshold(1))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "closed", b.State().String())
	assert.Equal(t, "ratelimit-redis", b.Name())
}

func TestBreakerConcurrentFailuresOpenOnce(t *testing.T) {
	b := New("ratelimit-redis", WithFailureThreshold(10))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		opened int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, change := b.RecordFailure()
			if change.Opened {
				mu.Lock()
				opened++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, opened)
	assert.Equal(t, "open", b.State().String())
}

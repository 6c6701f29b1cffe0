package buffer

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	audit "rollcall/pkg/platform/audit"
)

func ev(i int) audit.Event {
	return audit.Event{ID: strconv.Itoa(i)}
}

func ids(events []audit.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func TestRingBuffer_FIFO(t *testing.T) {
	b := NewRingBuffer(4)
	for i := range 3 {
		b.Enqueue(ev(i))
	}
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, []string{"0", "1"}, ids(b.DequeueBatch(2)))
	assert.Equal(t, []string{"2"}, ids(b.DequeueBatch(10)))
	assert.Nil(t, b.DequeueBatch(1))
}

func TestRingBuffer_EnqueueDropsOldestWhenFull(t *testing.T) {
	b := NewRingBuffer(2)
	_, dropped := b.Enqueue(ev(1))
	assert.False(t, dropped)
	b.Enqueue(ev(2))
	evicted, dropped := b.Enqueue(ev(3))

	assert.True(t, dropped)
	assert.Equal(t, "1", evicted.ID)
	assert.Equal(t, int64(1), b.Dropped())
	assert.Equal(t, []string{"2", "3"}, ids(b.DequeueBatch(5)))
}

func TestRingBuffer_CapacityOneKeepsNewest(t *testing.T) {
	b := NewRingBuffer(1)
	b.Enqueue(ev(1))
	b.Enqueue(ev(2))

	assert.Equal(t, 1, b.Len())
	assert.Equal(t, int64(1), b.Dropped())
	assert.Equal(t, []string{"2"}, ids(b.DequeueBatch(1)))
}

func TestRingBuffer_DefaultCapacity(t *testing.T) {
	b := NewRingBuffer(0)
	for i := range 1024 {
		_, dropped := b.Enqueue(ev(i))
		assert.False(t, dropped)
	}
	evicted, dropped := b.Enqueue(ev(2000))
	assert.True(t, dropped)
	assert.Equal(t, "0", evicted.ID)
}

package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBuffer_DropsOldestWhenFull(t *testing.T) {
	b := NewRingBuffer(2)
	at := time.Now()

	assert.False(t, b.Enqueue(UsernameReserved("aaa111", at)))
	assert.False(t, b.Enqueue(UsernameReserved("bbb222", at)))
	assert.True(t, b.Enqueue(UsernameReserved("ccc333", at)))

	got := b.DequeueBatch(10)
	require.Len(t, got, 2)
	assert.EqualValues(t, "bbb222", got[0].Username)
	assert.EqualValues(t, "ccc333", got[1].Username)
	assert.EqualValues(t, 1, b.Dropped())
	assert.Zero(t, b.Len())
}

func TestRingBuffer_DequeueBatchWrapsAround(t *testing.T) {
	b := NewRingBuffer(3)
	at := time.Now()
	for _, u := range []string{"aaa111", "bbb222", "ccc333"} {
		b.Enqueue(UsernameReserved(usernameOf(u), at))
	}
	first := b.DequeueBatch(2)
	require.Len(t, first, 2)

	b.Enqueue(UsernameReserved("ddd444", at))
	rest := b.DequeueBatch(5)
	require.Len(t, rest, 2)
	assert.EqualValues(t, "ccc333", rest[0].Username)
	assert.EqualValues(t, "ddd444", rest[1].Username)
	assert.Nil(t, b.DequeueBatch(1))
}

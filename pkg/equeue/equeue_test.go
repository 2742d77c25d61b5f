package equeue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donn/cvc/pkg/elaborate"
)

func TestPopOrdersByAscendingResistance(t *testing.T) {
	q := New()
	q.Push(1, MinQueue, 0, 5.0)
	q.Push(2, MinQueue, 0, 1.0)
	q.Push(3, MinQueue, 0, 3.0)

	want := []elaborate.DeviceID{2, 3, 1}
	for _, w := range want {
		e, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, w, e.Device)
	}
	_, ok := q.Pop()
	assert.False(t, ok, "expected queue to be empty")
}

func TestPopBreaksTiesByInsertionOrder(t *testing.T) {
	q := New()
	q.Push(10, MinQueue, 0, 2.0)
	q.Push(20, MinQueue, 0, 2.0)

	e1, _ := q.Pop()
	e2, _ := q.Pop()
	assert.Equal(t, elaborate.DeviceID(10), e1.Device)
	assert.Equal(t, elaborate.DeviceID(20), e2.Device)
}

func TestPushReplacesOnlyOnStrictImprovement(t *testing.T) {
	q := New()
	assert.True(t, q.Push(1, MinQueue, 0, 5.0), "expected first push to install")
	assert.False(t, q.Push(1, MinQueue, 0, 5.0), "equal resistance re-enqueue should be dropped")
	assert.False(t, q.Push(1, MinQueue, 0, 7.0), "higher resistance re-enqueue should be dropped")
	assert.True(t, q.Push(1, MinQueue, 1, 2.0), "strictly lower resistance re-enqueue should replace")
	require.Equal(t, 1, q.Len(), "expected exactly one pending entry for device 1")

	e, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 2.0, e.Resistance)
	assert.EqualValues(t, 1, e.Net)
}

func TestSameDeviceDifferentKindsAreIndependent(t *testing.T) {
	q := New()
	q.Push(1, MinQueue, 0, 1.0)
	q.Push(1, MaxQueue, 0, 1.0)
	assert.Equal(t, 2, q.Len(), "expected 2 independent pending entries")
}

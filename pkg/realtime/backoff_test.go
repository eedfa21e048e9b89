package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_LinearDelays(t *testing.T) {
	b := NewBackoff(time.Second, 5)

	for i := 1; i <= 5; i++ {
		delay, ok := b.Next("boom")
		assert.True(t, ok)
		assert.Equal(t, time.Duration(i)*time.Second, delay)
		assert.Equal(t, i, b.Attempt().Count)
	}

	delay, ok := b.Next("still down")
	assert.False(t, ok)
	assert.Zero(t, delay)
	assert.Equal(t, 5, b.Attempt().Count)
	assert.Equal(t, "still down", b.Attempt().LastError)
	assert.True(t, b.Exhausted())
}

func TestBackoff_Reset(t *testing.T) {
	b := NewBackoff(time.Second, 3)
	b.Next("a")
	b.Next("b")

	b.Reset()
	assert.Equal(t, ReconnectAttempt{}, b.Attempt())
	assert.False(t, b.Exhausted())

	delay, ok := b.Next("c")
	assert.True(t, ok)
	assert.Equal(t, time.Second, delay)
}

func TestBackoff_Builder(t *testing.T) {
	b := NewBackoff(0, 1).WithBaseInterval(2 * time.Second).WithMaxAttempts(2)
	assert.Equal(t, 2*time.Second, b.BaseInterval)
	assert.Equal(t, 2, b.MaxAttempts)
	assert.Equal(t, 6*time.Second, b.Delay(3))
	assert.Equal(t, 2*time.Second, b.Delay(0))

	assert.Equal(t, time.Second, NewBackoff(0, 1).BaseInterval)
}

func TestBackoff_ZeroMaxAttempts(t *testing.T) {
	b := NewBackoff(time.Second, 0)
	_, ok := b.Next("down")
	assert.False(t, ok)
	assert.True(t, b.Exhausted())
}

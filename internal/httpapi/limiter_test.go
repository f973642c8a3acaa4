package httpapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIPLimiter_PerAddress(t *testing.T) {
	l := newIPLimiter(2)
	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))

	now = now.Add(30 * time.Second)
	assert.True(t, l.Allow("10.0.0.1"))
}

func TestIPLimiter_EvictsIdleBuckets(t *testing.T) {
	l := newIPLimiter(5)
	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		assert.True(t, l.Allow(ip))
	}
	assert.Len(t, l.buckets, 3)

	now = now.Add(30 * time.Second)
	assert.True(t, l.Allow("10.0.0.3"))

	now = now.Add(2 * time.Minute)
	assert.True(t, l.Allow("10.0.0.4"))
	assert.Len(t, l.buckets, 1)
	assert.Contains(t, l.buckets, "10.0.0.4")
}

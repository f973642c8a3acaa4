package httpapi

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// bucketIdle is how long a bucket may go unused before it is dropped. A
// bucket idle for a full minute has refilled to its burst, so dropping it
// does not change any later decision.
const bucketIdle = time.Minute

type bucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

// ipLimiter hands out one token bucket per client address. A non-positive
// rpm disables limiting.
type ipLimiter struct {
	rpm int
	now func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

func newIPLimiter(rpm int) *ipLimiter {
	return &ipLimiter{rpm: rpm, now: time.Now, buckets: make(map[string]*bucket)}
}

// Allow reports whether ip may make another request now.
func (l *ipLimiter) Allow(ip string) bool {
	if l.rpm <= 0 {
		return true
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= bucketIdle {
		l.sweep(now)
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.rpm)), l.rpm)}
		l.buckets[ip] = b
	}
	b.seen = now
	return b.limiter.AllowN(now, 1)
}

// sweep drops buckets unused for bucketIdle. Callers hold mu.
func (l *ipLimiter) sweep(now time.Time) {
	for ip, b := range l.buckets {
		if now.Sub(b.seen) >= bucketIdle {
			delete(l.buckets, ip)
		}
	}
	l.lastSweep = now
}

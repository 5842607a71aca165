// Package rate provides per-client request limiting keyed by IP.
package rate

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type client struct {
	limiter *rate.Limiter
	last    time.Time
}

// LimiterMap hands out one token-bucket limiter per client IP and evicts
// idle entries so the map never grows without bound.
type LimiterMap struct {
	mu      sync.Mutex
	clients map[string]*client
	rpm     int
	burst   int
	idleTTL time.Duration
	stopCh  chan struct{}
}

func NewLimiterMap(rpm, burst int, idleTTL time.Duration) *LimiterMap {
	if rpm <= 0 {
		rpm = 60
	}
	if burst <= 0 {
		burst = rpm
	}
	if idleTTL <= 0 {
		idleTTL = 5 * time.Minute
	}
	lm := &LimiterMap{
		clients: make(map[string]*client),
		rpm:     rpm,
		burst:   burst,
		idleTTL: idleTTL,
		stopCh:  make(chan struct{}),
	}
	go lm.reap()
	return lm
}

func (l *LimiterMap) reap() {
	t := time.NewTicker(l.idleTTL)
	defer t.Stop()
	for {
		select {
		case <-l.stopCh:
			return
		case now := <-t.C:
			l.mu.Lock()
			for ip, c := range l.clients {
				if now.Sub(c.last) > l.idleTTL {
					delete(l.clients, ip)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Stop terminates the eviction goroutine.
func (l *LimiterMap) Stop() { close(l.stopCh) }

// Allow reports whether a request from ip fits within its budget.
func (l *LimiterMap) Allow(ip string) bool {
	l.mu.Lock()
	c, ok := l.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.rpm)), l.burst)}
		l.clients[ip] = c
	}
	c.last = time.Now()
	l.mu.Unlock()
	return c.limiter.Allow()
}

// IPFromRequest extracts the client IP, honoring the first X-Forwarded-For
// entry when a proxy sits in front.
func IPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

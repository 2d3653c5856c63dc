// Package ratelimit throttles theme writes per identity key and per client IP.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Config struct {
	Window    time.Duration // Fixed window length (default: 1m)
	MaxPerKey int           // Max writes per identity key per window (default: 30)
	MaxPerIP  int           // Max writes per client IP per window (default: 120)

	// Clock for testing (nil uses real time)
	Clock Clock
}

func DefaultConfig() *Config {
	return &Config{
		Window:    time.Minute,
		MaxPerKey: 30,
		MaxPerIP:  120,
	}
}

// LimitResult contains the result of a rate limit check.
type LimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
	Reason     string // For logging
}

type entry struct {
	count   int
	firstAt time.Time // Start of the current window
	lastAt  time.Time
}

// Limiter counts writes in fixed windows keyed by a hash of the identity and the IP.
type Limiter struct {
	config *Config
	clock  Clock
	mu     sync.Mutex
	byKey  map[string]*entry
	byIP   map[string]*entry

	cleanupCtx    context.Context
	cleanupCancel context.CancelFunc
	cleanupOnce   sync.Once
	cleanupWg     sync.WaitGroup
}

func New(cfg *Config) *Limiter {
	defaults := DefaultConfig()
	if cfg == nil {
		cfg = defaults
	}
	if cfg.Window <= 0 {
		cfg.Window = defaults.Window
	}
	if cfg.MaxPerKey <= 0 {
		cfg.MaxPerKey = defaults.MaxPerKey
	}
	if cfg.MaxPerIP <= 0 {
		cfg.MaxPerIP = defaults.MaxPerIP
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Limiter{
		config:        cfg,
		clock:         clock,
		byKey:         make(map[string]*entry),
		byIP:          make(map[string]*entry),
		cleanupCtx:    ctx,
		cleanupCancel: cancel,
	}
}

// Close stops the cleanup goroutine and releases resources.
func (l *Limiter) Close() {
	l.cleanupCancel()
	l.cleanupWg.Wait()
}

// Allow checks both limits and records the write when it is allowed.
// An empty key only counts against the IP limit.
func (l *Limiter) Allow(key, ip string) LimitResult {
	l.startCleanup()
	now := l.clock.Now()
	ipKey := l.hashKey("ip:", ip)
	idKey := ""
	if key = normalizeKey(key); key != "" {
		idKey = l.hashKey("key:", key)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if idKey != "" {
		if result := l.check(l.byKey[idKey], l.config.MaxPerKey, now, "key_limit"); !result.Allowed {
			return result
		}
	}
	if result := l.check(l.byIP[ipKey], l.config.MaxPerIP, now, "ip_limit"); !result.Allowed {
		return result
	}

	if idKey != "" {
		l.record(l.byKey, idKey, now)
	}
	l.record(l.byIP, ipKey, now)
	return LimitResult{Allowed: true}
}

func (l *Limiter) check(e *entry, max int, now time.Time, reason string) LimitResult {
	if e == nil {
		return LimitResult{Allowed: true}
	}
	elapsed := now.Sub(e.firstAt)
	if elapsed < l.config.Window && e.count >= max {
		return LimitResult{
			Allowed:    false,
			RetryAfter: l.config.Window - elapsed,
			Reason:     reason,
		}
	}
	return LimitResult{Allowed: true}
}

func (l *Limiter) record(entries map[string]*entry, k string, now time.Time) {
	e := entries[k]
	if e == nil || now.Sub(e.firstAt) >= l.config.Window {
		entries[k] = &entry{count: 1, firstAt: now, lastAt: now}
		return
	}
	e.count++
	e.lastAt = now
}

func (l *Limiter) hashKey(prefix, value string) string {
	hash := sha256.Sum256([]byte(value))
	return prefix + hex.EncodeToString(hash[:8])
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func (l *Limiter) startCleanup() {
	l.cleanupOnce.Do(func() {
		l.cleanupWg.Add(1)
		go func() {
			defer l.cleanupWg.Done()
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-l.cleanupCtx.Done():
					return
				case <-ticker.C:
					l.cleanup()
				}
			}
		}()
	})
}

func (l *Limiter) cleanup() {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	for k, e := range l.byKey {
		if now.Sub(e.lastAt) > l.config.Window {
			delete(l.byKey, k)
		}
	}
	for k, e := range l.byIP {
		if now.Sub(e.lastAt) > l.config.Window {
			delete(l.byIP, k)
		}
	}
}

// GetClientIP returns the address a write is attributed to. Forwarding headers are read
// only when trustProxy is set; the rightmost public X-Forwarded-For hop wins because
// earlier hops are client-supplied.
func GetClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			hops := strings.Split(xff, ",")
			for i := len(hops) - 1; i >= 0; i-- {
				if hop := strings.TrimSpace(hops[i]); hop != "" && !isPrivateIP(hop) {
					return hop
				}
			}
			return strings.TrimSpace(hops[len(hops)-1])
		}
		if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
			return realIP
		}
	}

	if addrPort, err := netip.ParseAddrPort(r.RemoteAddr); err == nil {
		return addrPort.Addr().Unmap().String()
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// isPrivateIP reports loopback, link-local and RFC 1918 / ULA addresses, including
// IPv4-mapped IPv6 forms.
func isPrivateIP(value string) bool {
	addr, err := netip.ParseAddr(value)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast()
}

// LogRateLimitExceeded logs a throttled write.
func LogRateLimitExceeded(logger *zerolog.Logger, key, ip string, result LimitResult) {
	logger.Warn().
		Str("event", "rate_limit_exceeded").
		Str("theme_key", key).
		Str("ip", ip).
		Str("reason", result.Reason).
		Dur("retry_after", result.RetryAfter).
		Msg("Theme write rate limit exceeded")
}

package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/santinopnp/PNPtvLive-bot/api/responses"
	"github.com/santinopnp/PNPtvLive-bot/internal/alerting"
	"github.com/santinopnp/PNPtvLive-bot/pkg/config"
	pkgerrors "github.com/santinopnp/PNPtvLive-bot/pkg/errors"
	"github.com/santinopnp/PNPtvLive-bot/pkg/logger"
)

type CounterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
}

// AdmissionPolicy throttles webhook traffic per client address. Addresses
// matching a trusted prefix (known processor egress ranges) get the larger
// bucket. This is an availability control only; forged or duplicate
// payloads are rejected later in the pipeline.
type AdmissionPolicy struct {
	window          time.Duration
	limit           int
	trustedLimit    int
	trustedPrefixes []string
	bypassPaths     map[string]struct{}
}

func NewAdmissionPolicy(cfg config.AdmissionConfig, bypassPaths ...string) AdmissionPolicy {
	bypass := make(map[string]struct{}, len(bypassPaths))
	for _, path := range bypassPaths {
		bypass[path] = struct{}{}
	}
	return AdmissionPolicy{
		window:          cfg.Window,
		limit:           cfg.Limit,
		trustedLimit:    cfg.TrustedLimit,
		trustedPrefixes: cfg.TrustedPrefixList(),
		bypassPaths:     bypass,
	}
}

func (p AdmissionPolicy) enabled() bool {
	return p.window > 0 && p.limit > 0
}

func (p AdmissionPolicy) limitFor(ip string) (int, string) {
	for _, prefix := range p.trustedPrefixes {
		if strings.HasPrefix(ip, prefix) {
			return p.trustedLimit, "trusted"
		}
	}
	return p.limit, "default"
}

// Admission builds the rate-limiting middleware.
func Admission(policy AdmissionPolicy, store CounterStore, sink alerting.Sink, logg *logger.Logger) func(http.Handler) http.Handler {
	if sink == nil {
		sink = alerting.NopSink{}
	}
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if _, ok := policy.bypassPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			ip := ClientIP(r)
			limit, bucket := policy.limitFor(ip)
			key := fmt.Sprintf("admission:%s:%s", bucket, ip)

			count, err := store.IncrWithTTL(ctx, key, policy.window)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "admission counters unavailable"))
				return
			}
			if count > int64(limit) {
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{
						"ip":       ip,
						"bucket":   bucket,
						"attempts": count,
						"limit":    limit,
					})
					logg.Warn(logCtx, "admission.blocked")
				}
				// Alert once per window, when the limit first trips.
				if count == int64(limit)+1 {
					sink.Emit(ctx, alerting.Event{
						Severity:   alerting.SeverityWarning,
						Category:   alerting.CategorySecurity,
						SourceAddr: ip,
						Message:    "webhook rate limit tripped",
						Detail:     map[string]string{"bucket": bucket},
					})
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

// MemoryCounter satisfies counterStore without Redis.
type MemoryCounter struct {
	mu      sync.Mutex
	buckets map[string]*windowCount
	now     func() time.Time
}

type windowCount struct {
	count     int64
	expiresAt time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		buckets: make(map[string]*windowCount),
		now:     time.Now,
	}
}

func (c *MemoryCounter) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	bucket, ok := c.buckets[key]
	if !ok || now.After(bucket.expiresAt) {
		bucket = &windowCount{expiresAt: now.Add(ttl)}
		c.buckets[key] = bucket
	}
	bucket.count++
	return bucket.count, nil
}

package adapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	redisclient "github.com/aelexs/jellyfin-bff/internal/redis"
)

// rateLimitScript atomically increments a counter and sets a TTL on the
// first write, so the window starts at the first attempt.
const rateLimitScript = `
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return count
`

// Key prefixes for the two login windows.
const (
	loginIPKeyPrefix   = "login:ip:"
	loginUserKeyPrefix = "login:user:"
)

// LoginLimiter bounds login attempts per client IP and per username with
// fixed windows in Redis. It fails closed: a Redis error denies the attempt.
type LoginLimiter struct {
	cmd    redisclient.Cmdable
	limit  int
	window time.Duration
}

// NewLoginLimiter creates a LoginLimiter allowing limit attempts per window.
func NewLoginLimiter(cmd redisclient.Cmdable, limit int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{cmd: cmd, limit: limit, window: window}
}

// AllowLogin counts one attempt against both the IP and the username window.
// Both counters are always incremented so a caller cannot enumerate usernames
// without spending IP budget.
func (l *LoginLimiter) AllowLogin(ctx context.Context, clientIP, username string) (bool, error) {
	ipOK, err := l.checkAndIncrement(ctx, loginIPKeyPrefix+clientIP)
	if err != nil {
		return false, err
	}
	userOK, err := l.checkAndIncrement(ctx, loginUserKeyPrefix+strings.ToLower(username))
	if err != nil {
		return false, err
	}
	return ipOK && userOK, nil
}

// checkAndIncrement returns (true, nil) while the key is within its limit,
// (false, nil) once it is exceeded, and (false, err) on Redis failure.
func (l *LoginLimiter) checkAndIncrement(ctx context.Context, key string) (bool, error) {
	ctx, span := tracer.Start(ctx, "redis.ratelimit.check")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "EVAL"),
	)

	windowSeconds := int(l.window / time.Second)
	if windowSeconds < 1 {
		windowSeconds = 1
	}

	count, err := l.cmd.Eval(ctx, rateLimitScript, []string{key}, windowSeconds).Int64()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("rate limit check %q: %w", key, err)
	}

	return count <= int64(l.limit), nil
}

// NoopLimiter admits every attempt. Used when Redis is not configured.
type NoopLimiter struct{}

// AllowLogin always returns true.
func (NoopLimiter) AllowLogin(context.Context, string, string) (bool, error) {
	return true, nil
}

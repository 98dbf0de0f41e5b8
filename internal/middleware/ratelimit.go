package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/class-enrollment/internal/config"
)

// gcraScript implements the generic cell rate algorithm.  The key holds
// the theoretical arrival time (TAT) in unix millis and expires once the
// bucket has fully drained.
//
// ARGV: now_ms, emission_ms (window / limit), limit.
// Returns {allowed, remaining, retry_ms}.
var gcraScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local emission = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

local tat = tonumber(redis.call('GET', KEYS[1]))
if tat == nil or tat < now then
	tat = now
end

local next_tat = tat + emission
local allow_at = next_tat - emission * limit
if allow_at > now then
	return {0, 0, allow_at - now}
end

redis.call('SET', KEYS[1], next_tat, 'PX', next_tat - now)
return {1, math.floor((now - allow_at) / emission), 0}
`)

// maxPeekBytes bounds how much of a settlement body PerPayment reads.
const maxPeekBytes = 1 << 20

// RateLimiter builds the Redis backed limiters for write routes.  With
// limiting disabled or no client every limiter passes requests through.
// Redis failures let the request through and log a warning.
type RateLimiter struct {
	cfg config.RateLimitConfig
	rdb *redis.Client
	log zerolog.Logger
}

func NewRateLimiter(cfg config.RateLimitConfig, rdb *redis.Client, log zerolog.Logger) *RateLimiter {
	return &RateLimiter{cfg: cfg, rdb: rdb, log: log.With().Str("component", "ratelimit").Logger()}
}

func (l *RateLimiter) enabled() bool { return l.cfg.Enabled && l.rdb != nil }

// PerCaller allows each caller Capacity writes per Window on a route.
// Signed-in callers are keyed by email, anonymous ones by address.
func (l *RateLimiter) PerCaller() echo.MiddlewareFunc {
	if !l.enabled() {
		return passThrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := l.key("caller", callerKey(c), c.Request().Method+" "+c.Path())
			if ok, err := l.take(c, key, l.cfg.Capacity, l.cfg.Window); !ok {
				return err
			}
			return next(c)
		}
	}
}

// PerPayment limits settlement attempts for one payer and transaction
// id.  The body is read and restored so the handler still sees it.
// Requests without a transaction id are left for the handler to reject.
func (l *RateLimiter) PerPayment() echo.MiddlewareFunc {
	if !l.enabled() {
		return passThrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			payer, txID, err := peekPayment(c)
			if err != nil || txID == "" {
				return next(c)
			}
			key := l.key("payment", payer, txID)
			if ok, err := l.take(c, key, l.cfg.RetryCapacity, l.cfg.RetryWindow); !ok {
				return err
			}
			return next(c)
		}
	}
}

func (l *RateLimiter) key(parts ...string) string {
	return l.cfg.Prefix + ":" + strings.Join(parts, ":")
}

// take spends one unit from key.  When the bucket is empty it writes the
// 429 response and reports false.
func (l *RateLimiter) take(c echo.Context, key string, limit int, window time.Duration) (bool, error) {
	emission := window.Milliseconds() / int64(limit)
	if emission < 1 {
		emission = 1
	}
	res, err := gcraScript.Run(c.Request().Context(), l.rdb, []string{key},
		time.Now().UnixMilli(), emission, limit).Int64Slice()
	if err != nil || len(res) != 3 {
		l.log.Warn().Err(err).Str("key", key).Msg("rate limit check skipped")
		return true, nil
	}

	h := c.Response().Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(res[1], 10))
	if res[0] == 1 {
		return true, nil
	}

	secs := (res[2] + 999) / 1000
	h.Set("Retry-After", strconv.FormatInt(secs, 10))
	l.log.Debug().Str("key", key).Int64("retry_after", secs).Msg("rate limited")
	return false, c.JSON(http.StatusTooManyRequests, echo.Map{"error": "rate limit exceeded", "retryAfter": secs})
}

// peekPayment extracts the payer and transaction id of a settlement
// body.  The payer defaults to the caller, as the handler does.
func peekPayment(c echo.Context) (payer, txID string, err error) {
	req := c.Request()
	raw, err := io.ReadAll(io.LimitReader(req.Body, maxPeekBytes))
	if err != nil {
		return "", "", err
	}
	req.Body = io.NopCloser(bytes.NewReader(raw))

	var body struct {
		PayerEmail    string `json:"payerEmail"`
		TransactionID string `json:"transactionId"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", "", err
	}
	payer = strings.ToLower(strings.TrimSpace(body.PayerEmail))
	if payer == "" {
		payer = CurrentEmail(c)
	}
	return payer, strings.TrimSpace(body.TransactionID), nil
}

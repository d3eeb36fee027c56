package service

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SendRateLimiter limita la cantidad de mensajes que un remitente puede enviar por ventana.
type SendRateLimiter interface {
	Allow(ctx context.Context, senderID string) bool
}

type sendRateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	now    func() time.Time
	hits   map[string][]time.Time
	swept  time.Time
}

// NewSendRateLimiter crea un rate limiter en memoria (ventana deslizante).
func NewSendRateLimiter(window time.Duration, max int) SendRateLimiter {
	return newMemorySendLimiter(window, max, time.Now)
}

func newMemorySendLimiter(window time.Duration, max int, now func() time.Time) *sendRateLimiter {
	window, max = sendLimits(window, max)
	return &sendRateLimiter{
		window: window,
		max:    max,
		now:    now,
		hits:   make(map[string][]time.Time),
	}
}

func (l *sendRateLimiter) Allow(_ context.Context, senderID string) bool {
	key := strings.TrimSpace(senderID)
	if key == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	cutoff := now.Add(-l.window)
	// Una pasada completa por ventana basta para que el mapa no crezca sin limite.
	if now.Sub(l.swept) >= l.window {
		for sender := range l.hits {
			l.prune(sender, cutoff)
		}
		l.swept = now
	}

	entries := l.prune(key, cutoff)
	if len(entries) >= l.max {
		return false
	}
	l.hits[key] = append(entries, now)
	return true
}

// prune descarta los envios fuera de la ventana; un remitente sin envios se borra.
func (l *sendRateLimiter) prune(key string, cutoff time.Time) []time.Time {
	entries := l.hits[key]
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(l.hits, key)
		return nil
	}
	l.hits[key] = kept
	return kept
}

// redisSendWindowScript aplica la misma ventana deslizante que el limiter en
// memoria sobre un sorted set por remitente. Un envio rechazado no cuenta.
const redisSendWindowScript = `
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
local current = redis.call("ZCARD", KEYS[1])
if current >= tonumber(ARGV[4]) then
  return 0
end
redis.call("ZADD", KEYS[1], ARGV[2], ARGV[3])
redis.call("PEXPIRE", KEYS[1], ARGV[5])
return 1
`

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// redisSendLimiter comparte la ventana de cada remitente entre instancias.
type redisSendLimiter struct {
	client  redisEvaler
	logger  *zap.Logger
	window  time.Duration
	max     int
	timeout time.Duration
	now     func() time.Time
}

const sendLimiterKeyPrefix = "inbox:send:"

func NewRedisSendLimiter(client *redis.Client, logger *zap.Logger, window time.Duration, max int) SendRateLimiter {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	window, max = sendLimits(window, max)
	return &redisSendLimiter{
		client:  client,
		logger:  logger,
		window:  window,
		max:     max,
		timeout: 500 * time.Millisecond,
		now:     time.Now,
	}
}

// Allow falla abierto: si Redis no responde el envio pasa y queda registrado.
func (l *redisSendLimiter) Allow(ctx context.Context, senderID string) bool {
	key := strings.TrimSpace(senderID)
	if key == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	now := l.now().UTC()
	cutoff := now.Add(-l.window)
	allowed, err := l.client.Eval(ctx, redisSendWindowScript, []string{sendLimiterKeyPrefix + key},
		strconv.FormatInt(cutoff.UnixMicro(), 10),
		strconv.FormatInt(now.UnixMicro(), 10),
		uuid.NewString(),
		l.max,
		l.window.Milliseconds(),
	).Int()
	if err != nil {
		l.logger.Warn("send limiter unavailable, allowing send", zap.String("sender_id", key), zap.Error(err))
		return true
	}
	return allowed == 1
}

func sendLimits(window time.Duration, max int) (time.Duration, int) {
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return window, max
}

package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisChatAllowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

// ChatRateLimiter limita mensajes de chat por clave (cliente y sujeto) en una ventana fija.
type ChatRateLimiter interface {
	Allow(ctx context.Context, key string) bool
}

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type RedisChatRateLimiter struct {
	client redisEvaler
	window time.Duration
	max    int
	prefix string
}

func NewRedisChatRateLimiter(client *redis.Client, window time.Duration, max int) *RedisChatRateLimiter {
	if client == nil {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &RedisChatRateLimiter{
		client: client,
		window: window,
		max:    max,
		prefix: "persona:chat:rl:",
	}
}

// Allow deja pasar si redis falla; una clave vacia se rechaza.
func (l *RedisChatRateLimiter) Allow(ctx context.Context, key string) bool {
	if l == nil || l.client == nil {
		return true
	}
	normalized := strings.ToLower(strings.TrimSpace(key))
	if normalized == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	seconds := int(l.window.Seconds())
	if seconds <= 0 {
		seconds = 60
	}
	count, err := l.client.Eval(ctx, redisChatAllowScript, []string{l.prefix + normalized}, seconds).Int()
	if err != nil {
		return true
	}
	return count <= l.max
}

// MemoryChatRateLimiter es la misma ventana fija en proceso.
type MemoryChatRateLimiter struct {
	window time.Duration
	max    int
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]chatWindow
}

type chatWindow struct {
	start time.Time
	count int
}

func NewMemoryChatRateLimiter(window time.Duration, max int) *MemoryChatRateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &MemoryChatRateLimiter{
		window:  window,
		max:     max,
		now:     time.Now,
		windows: make(map[string]chatWindow),
	}
}

func (l *MemoryChatRateLimiter) Allow(_ context.Context, key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	if normalized == "" {
		return false
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[normalized]
	if !ok || now.Sub(w.start) >= l.window {
		w = chatWindow{start: now}
	}
	w.count++
	l.windows[normalized] = w
	return w.count <= l.max
}

package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const sweepInterval = time.Minute

// RateLimiter guarda um token bucket por chave; chaves ociosas expiram.
type RateLimiter struct {
	limit  rate.Limit
	burst  int
	maxAge time.Duration
	now    func() time.Time

	mu        sync.Mutex
	store     map[string]*limiterEntry
	lastSweep time.Time
}

type limiterEntry struct {
	limiter *rate.Limiter
	seen    time.Time
}

// NewRateLimiter cria o limitador com taxa por segundo e rajada.
func NewRateLimiter(reqPerSec float64, burst int) *RateLimiter {
	return &RateLimiter{
		limit:  rate.Limit(reqPerSec),
		burst:  burst,
		maxAge: 10 * time.Minute,
		now:    time.Now,
		store:  make(map[string]*limiterEntry),
	}
}

// allow consome um token da chave; quando não há token devolve a espera sugerida.
func (r *RateLimiter) allow(key string) (bool, time.Duration) {
	now := r.now()

	r.mu.Lock()
	entry, ok := r.store[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.store[key] = entry
	}
	entry.seen = now
	if now.Sub(r.lastSweep) >= sweepInterval {
		r.sweep(now)
	}
	r.mu.Unlock()

	res := entry.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	delay := res.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	res.CancelAt(now)
	return false, delay
}

func (r *RateLimiter) sweep(now time.Time) {
	for k, entry := range r.store {
		if now.Sub(entry.seen) > r.maxAge {
			delete(r.store, k)
		}
	}
	r.lastSweep = now
}

// LimitByKey aplica o limite à chave calculada por keyFunc; sem chave a requisição segue.
func (r *RateLimiter) LimitByKey(next http.Handler, keyFunc func(*http.Request) (string, bool)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		key, ok := keyFunc(req)
		if !ok || key == "" {
			next.ServeHTTP(w, req)
			return
		}

		if allowed, wait := r.allow(key); !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "RATE_LIMIT", "limite de requisições excedido")
			return
		}
		next.ServeHTTP(w, req)
	})
}

// IPRateLimit usa o IP do cliente como chave.
func IPRateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return limiter.LimitByKey(next, func(r *http.Request) (string, bool) {
			return clientIP(r), true
		})
	}
}

// UserRateLimit utiliza a conta autenticada ("tipo:id") como chave.
func UserRateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return limiter.LimitByKey(next, func(r *http.Request) (string, bool) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				return "", false
			}
			return p.Kind + ":" + strconv.FormatInt(p.ID, 10), true
		})
	}
}

// LoginRateLimit limita tentativas por IP e identificador.
func LoginRateLimit(limiter *RateLimiter, identifier func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return limiter.LimitByKey(next, func(r *http.Request) (string, bool) {
			return clientIP(r) + "|" + strings.ToLower(identifier(r)), true
		})
	}
}

// clientIP lê RemoteAddr, já reescrito pelo RealIP do chi quando há proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

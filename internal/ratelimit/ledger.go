package ratelimit

import (
	"log/slog"
	"sync"
	"time"

	"bondora_go/internal/domain"
)

// DefaultCooldown applies when the server throttles without a Retry-After.
const DefaultCooldown = 60 * time.Second

// Store persists ledger entries across restarts.
type Store interface {
	SaveRateLimit(entry domain.RateLimitEntry) error
	LoadRateLimits() ([]domain.RateLimitEntry, error)
}

// Ledger tracks per-operation cool-down windows imposed by the remote API.
// It is safe for concurrent use; entries for different operations are independent.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]domain.RateLimitEntry
	now     func() time.Time
	store   Store
	logger  *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithStore writes every recorded entry through to s.
func WithStore(s Store) Option {
	return func(l *Ledger) { l.store = s }
}

// NewLedger creates an empty ledger.
func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		entries: make(map[string]domain.RateLimitEntry),
		now:     time.Now,
		logger:  slog.Default().With("module", "ratelimit"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record stores a cool-down for op starting now. Last write wins.
func (l *Ledger) Record(op string, retryAfter time.Duration) {
	if retryAfter < 0 {
		retryAfter = 0
	}

	l.mu.Lock()
	entry := domain.RateLimitEntry{Operation: op, RetryAfter: retryAfter, RecordedAt: l.now()}
	l.entries[op] = entry
	l.mu.Unlock()

	l.logger.Warn("Rate limit recorded",
		slog.String("operation", op),
		slog.Duration("retry_after", retryAfter),
	)

	if l.store != nil {
		if err := l.store.SaveRateLimit(entry); err != nil {
			l.logger.Error("Failed to persist rate limit", slog.String("operation", op), slog.Any("error", err))
		}
	}
}

// IsBlocked reports whether op is still cooling down.
func (l *Ledger) IsBlocked(op string) bool {
	return l.Remaining(op) > 0
}

// Remaining returns how long op stays blocked, or zero.
func (l *Ledger) Remaining(op string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[op]
	if !ok {
		return 0
	}
	now := l.now()
	if !entry.Active(now) {
		delete(l.entries, op)
		return 0
	}
	return entry.ExpiresAt().Sub(now)
}

// Snapshot returns the entries still active.
func (l *Ledger) Snapshot() []domain.RateLimitEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	out := make([]domain.RateLimitEntry, 0, len(l.entries))
	for _, e := range l.entries {
		if e.Active(now) {
			out = append(out, e)
		}
	}
	return out
}

// Restore loads persisted entries, keeping only those still active.
func (l *Ledger) Restore() error {
	if l.store == nil {
		return nil
	}
	entries, err := l.store.LoadRateLimits()
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	restored := 0
	for _, e := range entries {
		if !e.Active(now) {
			continue
		}
		if cur, ok := l.entries[e.Operation]; ok && cur.RecordedAt.After(e.RecordedAt) {
			continue
		}
		l.entries[e.Operation] = e
		restored++
	}
	if restored > 0 {
		l.logger.Info("Restored rate limits", slog.Int("count", restored))
	}
	return nil
}

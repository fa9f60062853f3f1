package pipeline

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/jobscout/internal/domain"
)

// PrefsCache serves the active preferences with a TTL reload, so the
// processor does not hit the database per message. A failed reload keeps
// serving the last good copy.
type PrefsCache struct {
	repo     domain.PreferencesRepository
	ttl      time.Duration
	validate *validator.Validate

	mu       sync.RWMutex
	cur      domain.Preferences
	loadedAt time.Time
	primed   bool
}

func NewPrefsCache(repo domain.PreferencesRepository, ttl time.Duration) *PrefsCache {
	return &PrefsCache{
		repo:     repo,
		ttl:      ttl,
		validate: validator.New(),
	}
}

// Get returns the cached preferences, reloading past the TTL. The zero
// Preferences value (filter nothing) is returned when the very first load
// fails.
func (c *PrefsCache) Get(ctx domain.Context) domain.Preferences {
	c.mu.RLock()
	fresh := c.primed && time.Since(c.loadedAt) < c.ttl
	cur := c.cur
	c.mu.RUnlock()
	if fresh {
		return cur
	}

	if err := c.Reload(ctx); err != nil {
		slog.Warn("preferences reload failed, serving cached copy", slog.Any("error", err))
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur
}

// Reload fetches and validates the active row.
func (c *PrefsCache) Reload(ctx domain.Context) error {
	prefs, err := c.repo.GetActive(ctx)
	if err != nil {
		return fmt.Errorf("op=pipeline.prefs_load: %w", err)
	}
	if err := c.validate.Struct(prefs); err != nil {
		return fmt.Errorf("op=pipeline.prefs_validate: %w", err)
	}
	c.mu.Lock()
	c.cur = prefs
	c.loadedAt = time.Now()
	c.primed = true
	c.mu.Unlock()
	return nil
}

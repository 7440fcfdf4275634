package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/etnz/platelog"
	"github.com/maypok86/otter/v2"
)

// Cache remembers successful analyses by image content, so that analyzing
// the same picture again, after a discard for instance, costs nothing.
// Failures are never cached.
type Cache struct {
	next  platelog.Analyzer
	cache *otter.Cache[string, platelog.Analysis]
	// Logger receives hit and miss logs; nil means slog.Default().
	Logger *slog.Logger
}

// Cached wraps next with a cache of at most size analyses, each kept for ttl.
func Cached(next platelog.Analyzer, size int, ttl time.Duration) *Cache {
	return &Cache{
		next: next,
		cache: otter.Must(&otter.Options[string, platelog.Analysis]{
			MaximumSize:      size,
			ExpiryCalculator: otter.ExpiryWriting[string, platelog.Analysis](ttl),
		}),
	}
}

func (c *Cache) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func cacheKey(image []byte, user platelog.UserID) string {
	h := sha256.New()
	h.Write([]byte(user))
	h.Write([]byte{0})
	h.Write(image)
	return hex.EncodeToString(h.Sum(nil))
}

// Analyze returns the cached analysis of image, or asks the wrapped analyzer.
func (c *Cache) Analyze(ctx context.Context, image []byte, user platelog.UserID) (platelog.Analysis, error) {
	key := cacheKey(image, user)
	if a, ok := c.cache.GetIfPresent(key); ok {
		c.logger().Debug("analysis cache hit", "user", user, "key", key[:12], "food", a.FoodName)
		return a, nil
	}
	c.logger().Debug("analysis cache miss", "user", user, "key", key[:12])
	a, err := c.next.Analyze(ctx, image, user)
	if err != nil {
		return platelog.Analysis{}, err
	}
	c.cache.Set(key, a)
	return a, nil
}

package master

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/pos_cart/cart-service/internal/cache"
	"github.com/fjod/pos_cart/cart-service/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CachedTerminals serves terminal info from a TTL cache and collapses
// concurrent misses for the same terminal into one upstream call.
type CachedTerminals struct {
	next   TerminalLookup
	cache  cache.TerminalCache
	logger *zap.Logger
	sfg    singleflight.Group
}

func NewCachedTerminals(next TerminalLookup, c cache.TerminalCache, logger *zap.Logger) *CachedTerminals {
	return &CachedTerminals{next: next, cache: c, logger: logger}
}

func (c *CachedTerminals) Terminal(ctx context.Context, terminalID string) (*domain.TerminalInfo, error) {
	v, err, _ := c.sfg.Do(terminalID, func() (interface{}, error) {
		info, err := c.cache.Get(ctx, terminalID)
		if err == nil {
			return info, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn("terminal cache get failed", zap.String("terminal_id", terminalID), zap.Error(err))
		}

		info, err = c.next.Terminal(ctx, terminalID)
		if err != nil {
			return nil, err
		}

		setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if errSet := c.cache.Set(setCtx, info); errSet != nil {
			c.logger.Warn("terminal cache set failed", zap.String("terminal_id", terminalID), zap.Error(errSet))
		}
		return info, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.TerminalInfo), nil
}

package cache

import (
	"context"
	"errors"

	"github.com/fjod/pos_cart/cart-service/internal/domain"
)

type CartCache interface {
	Get(ctx context.Context, cartID string) (*domain.Cart, error)
	Set(ctx context.Context, cart *domain.Cart) error
	Delete(ctx context.Context, cartID string) error
}

type TerminalCache interface {
	Get(ctx context.Context, terminalID string) (*domain.TerminalInfo, error)
	Set(ctx context.Context, info *domain.TerminalInfo) error
}

var ErrCacheMiss = errors.New("cache miss")

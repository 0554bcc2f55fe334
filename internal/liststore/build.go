package liststore

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// FromSettings builds the list store and its handler as described by
// settings: seeded when SeedPath is set, bearer-protected when JWTSecret is
// set, and throttled when Rate is positive.
func FromSettings(settings Settings, logger *zap.Logger) (*Store, http.Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	store := NewStore(settings.List)
	if settings.SeedPath != "" {
		payloads, err := LoadSeed(settings.SeedPath)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Seed(payloads); err != nil {
			return nil, nil, err
		}
		logger.Info("seeded list", zap.String("path", settings.SeedPath), zap.Int("items", len(payloads)))
	}
	opts := []Option{
		WithLogger(logger),
		WithSitePath(settings.SitePath),
		WithMaxBodyBytes(settings.MaxBodyBytes),
		WithRateLimit(settings.Rate, settings.Burst),
	}
	if settings.JWTSecret != "" {
		tokens, err := NewTokens(settings.JWTSecret, 0)
		if err != nil {
			return nil, nil, fmt.Errorf("liststore: %w", err)
		}
		opts = append(opts, WithTokens(tokens))
	}
	return store, NewHandler(store, opts...), nil
}

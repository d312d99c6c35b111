package cli

import (
	"context"
	"errors"

	"svgbook/internal/config"
	"svgbook/internal/diagram"
)

// loadBook reads root/book.toml and checks that every configured language
// has a renderer. A missing book.toml yields the defaults.
func loadBook(ctx context.Context, root string) (config.Config, *diagram.Registry, error) {
	cfg, err := config.Load(root)
	switch {
	case errors.Is(err, config.ErrNoBook):
		loggerFromContext(ctx).Debug("no book.toml, using defaults", "root", root)
	case err != nil:
		return config.Config{}, nil, err
	}

	reg := diagram.Default()
	if err := cfg.Validate(reg.Has); err != nil {
		return config.Config{}, nil, err
	}
	return cfg, reg, nil
}

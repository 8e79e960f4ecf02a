// Command washsync runs the order sync client of a car-wash or detailing
// shop and serves the local bridge for the presentation shell.
package main

import (
	"context"

	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/washline/washsync/internal/config"

	appkg "github.com/washline/washsync/internal/app"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Metrics) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return appkg.Run(ctx, lg, m, cfg)
	})
}

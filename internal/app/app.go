package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/frankgibbs/algolearn-orb/internal/bus"
	"github.com/frankgibbs/algolearn-orb/internal/config"
	"github.com/frankgibbs/algolearn-orb/internal/logger"
	"github.com/frankgibbs/algolearn-orb/internal/scheduler"
	"github.com/frankgibbs/algolearn-orb/internal/store"
	apihttp "github.com/frankgibbs/algolearn-orb/internal/transport/http/api"

	"golang.org/x/sync/errgroup"
)

// App owns application-level orchestration: one bus goroutine, one
// dispatcher goroutine and the optional HTTP surface, torn down together.
type App struct {
	cfg        *config.Config
	store      store.Store
	bus        *bus.Bus
	dispatcher *scheduler.Dispatcher
	httpServer *apihttp.Server
}

// NewApp builds the application graph from configuration without
// starting anything.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return build(cfg)
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails.
func (a *App) Run(ctx context.Context) error {
	a.bus.Start()
	defer a.bus.Stop()
	defer a.store.Close()

	group, ctx := errgroup.WithContext(ctx)

	if a.httpServer != nil {
		group.Go(func() error {
			logger.Infof("App: http api listening on %s", a.httpServer.Addr())
			if err := a.httpServer.Start(ctx); err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		return a.dispatcher.Run(ctx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

package app

import (
	"fmt"
	"time"

	"github.com/frankgibbs/algolearn-orb/internal/bus"
	"github.com/frankgibbs/algolearn-orb/internal/config"
	"github.com/frankgibbs/algolearn-orb/internal/execution"
	"github.com/frankgibbs/algolearn-orb/internal/gateway/broker"
	"github.com/frankgibbs/algolearn-orb/internal/gateway/notifier"
	"github.com/frankgibbs/algolearn-orb/internal/pkg/circuit"
	"github.com/frankgibbs/algolearn-orb/internal/position"
	"github.com/frankgibbs/algolearn-orb/internal/scheduler"
	"github.com/frankgibbs/algolearn-orb/internal/session"
	"github.com/frankgibbs/algolearn-orb/internal/store"
	"github.com/frankgibbs/algolearn-orb/internal/store/sqlite"
	"github.com/frankgibbs/algolearn-orb/internal/strategy/exit"
	"github.com/frankgibbs/algolearn-orb/internal/strategy/orb"
	apihttp "github.com/frankgibbs/algolearn-orb/internal/transport/http/api"
)

// build assembles the application graph in dependency order: store and
// gateways first, then the bus with its single consumer, then the
// dispatcher with every scheduled task in its execution order.
func build(cfg *config.Config) (*App, error) {
	clock, err := session.NewClock(cfg.Session)
	if err != nil {
		return nil, err
	}

	st, err := sqlite.NewSqliteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	brk, err := buildBroker(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	events := notifier.NewEvents(buildNotifier(cfg))

	b := bus.New()
	b.Register(execution.NewHandler(cfg, st, brk, events))

	dispatcher := buildDispatcher(cfg, clock, st, brk, b, events)
	if dispatcher == nil {
		st.Close()
		return nil, fmt.Errorf("scheduler wiring failed")
	}

	var httpServer *apihttp.Server
	if cfg.App.HTTPAddr != "" {
		httpServer, err = apihttp.NewServer(apihttp.ServerConfig{
			Addr:  cfg.App.HTTPAddr,
			Store: st,
			Clock: clock,
		})
		if err != nil {
			st.Close()
			return nil, err
		}
	}

	return &App{
		cfg:        cfg,
		store:      st,
		bus:        b,
		dispatcher: dispatcher,
		httpServer: httpServer,
	}, nil
}

func buildBroker(cfg *config.Config) (broker.Broker, error) {
	client, err := NewRESTBroker(cfg.Broker)
	if err != nil {
		return nil, err
	}
	breaker := circuit.NewBreaker("broker",
		cfg.Broker.BreakerThreshold,
		time.Duration(cfg.Broker.BreakerCooldownSeconds)*time.Second,
	)
	timeout := time.Duration(cfg.Broker.TimeoutSeconds) * time.Second
	return broker.NewGuarded(client, breaker, timeout), nil
}

// NewRESTBroker is a seam for tests and replay harnesses.
var NewRESTBroker = func(cfg config.BrokerConfig) (broker.Broker, error) {
	return broker.NewRESTClient(cfg)
}

func buildNotifier(cfg *config.Config) notifier.TextNotifier {
	if !cfg.Notify.Telegram.Enabled {
		return notifier.Nop{}
	}
	return notifier.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID)
}

// buildDispatcher registers every scheduled task. Registration order is
// execution order within a tick: range first, then signals, then the
// lifecycle scans, then the exit policies, with end-of-day last.
func buildDispatcher(cfg *config.Config, clock *session.Clock, st store.Store, brk broker.Broker, b *bus.Bus, events *notifier.Events) *scheduler.Dispatcher {
	rangeReady, err := cfg.Session.RangeReadyTime()
	if err != nil {
		return nil
	}
	eod, err := cfg.Session.EODExit()
	if err != nil {
		return nil
	}
	loc := clock.Location()
	timeframe := time.Duration(cfg.Session.TimeframeMinutes) * time.Minute

	d := scheduler.NewDispatcher(time.Duration(cfg.Scheduler.TickSeconds)*time.Second, events)

	rangeCalc := orb.NewRangeCalculator(cfg, clock, st, brk, events)
	d.Register("opening_range", scheduler.At(rangeReady.Hour, rangeReady.Minute, loc), rangeCalc.Run)

	signals := orb.NewSignalDetector(cfg, clock, st, brk, b, events)
	d.Register("signal_scan", scheduler.Aligned(timeframe), signals.Run)

	lifecycle := position.NewLifecycleManager(st, brk, events)
	d.Register("lifecycle", scheduler.Every(time.Duration(cfg.Scheduler.LifecycleSeconds)*time.Second), lifecycle.Run)

	trailing := exit.NewTrailingStop(cfg, clock, st, brk, events)
	d.Register("trailing_stop", scheduler.Every(time.Duration(cfg.Scheduler.TrailingSeconds)*time.Second), trailing.Run)

	stagnation := exit.NewStagnationExit(cfg, clock, st, brk, events)
	d.Register("stagnation_exit", scheduler.Every(time.Duration(cfg.Scheduler.StagnationSeconds)*time.Second), stagnation.Run)

	liquidation := exit.NewEODLiquidation(clock, st, brk, events)
	d.Register("eod_liquidation", scheduler.At(eod.Hour, eod.Minute, loc), liquidation.Run)

	return d
}

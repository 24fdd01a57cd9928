// Package app composes the store bot from configuration: it picks the storage, state and
// media backends and binds the conversation engine to the Telegram runtime.
package app

import (
	"context"
	"fmt"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/storebot/core/bootstrap"
	coreconfig "github.com/m3rciful/storebot/core/config"
	"github.com/m3rciful/storebot/core/logger"
	coretelegram "github.com/m3rciful/storebot/core/telegram"
	tgsender "github.com/m3rciful/storebot/core/telegram/sender"
	"github.com/m3rciful/storebot/internal/bot"
	"github.com/m3rciful/storebot/internal/cart"
	"github.com/m3rciful/storebot/internal/media"
	"github.com/m3rciful/storebot/internal/navigation"
	"github.com/m3rciful/storebot/internal/orders"
	"github.com/m3rciful/storebot/internal/staging"
	"github.com/m3rciful/storebot/internal/storage"
	"github.com/m3rciful/storebot/internal/tgtransport"
)

// App holds the wired collaborators. The transport is attached once the bot exists.
type App struct {
	cfg   *coreconfig.Config
	infra *bootstrap.Result
	deps  bot.Deps
}

// Build selects the backends named by cfg. infra must carry the connections they need.
func Build(ctx context.Context, cfg *coreconfig.Config, infra *bootstrap.Result) (*App, error) {
	if cfg == nil || infra == nil {
		return nil, fmt.Errorf("app: config and infrastructure are required")
	}
	store, err := newStore(cfg, infra)
	if err != nil {
		return nil, err
	}
	nav, stage, err := newState(cfg, infra)
	if err != nil {
		return nil, err
	}
	images, err := newMedia(ctx, cfg, infra)
	if err != nil {
		return nil, err
	}

	logger.TWire.Info("backends selected",
		slog.String("event", "wire.backends"),
		slog.String("storage", cfg.Storage.Driver),
		slog.String("state", cfg.State.Driver),
		slog.String("media", cfg.Media.Driver),
	)

	return &App{
		cfg:   cfg,
		infra: infra,
		deps: bot.Deps{
			Catalog:       store,
			Carts:         cart.NewLedger(store),
			Orders:        orders.NewLedger(store),
			Navigator:     navigation.New(nav),
			Staging:       stage,
			Media:         images,
			AdminPassword: cfg.Admin.Password,
		},
	}, nil
}

func newStore(cfg *coreconfig.Config, infra *bootstrap.Result) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case coreconfig.DriverPostgres:
		if infra.DB == nil {
			return nil, fmt.Errorf("app: postgres storage without a database connection")
		}
		return storage.NewPostgres(infra.DB, infra.Policy), nil
	case coreconfig.DriverMemory, "":
		return storage.NewMemory(), nil
	}
	return nil, fmt.Errorf("app: unknown storage driver %q", cfg.Storage.Driver)
}

func newState(cfg *coreconfig.Config, infra *bootstrap.Result) (navigation.Store, staging.Store, error) {
	switch cfg.State.Driver {
	case coreconfig.DriverRedis:
		if infra.Redis == nil {
			return nil, nil, fmt.Errorf("app: redis state without a redis client")
		}
		return navigation.NewRedisStore(infra.Redis, cfg.State.TTL, infra.Policy),
			staging.NewRedisStore(infra.Redis, cfg.State.TTL, infra.Policy), nil
	case coreconfig.DriverMemory, "":
		return navigation.NewMemoryStore(), staging.NewMemoryStore(), nil
	}
	return nil, nil, fmt.Errorf("app: unknown state driver %q", cfg.State.Driver)
}

func newMedia(ctx context.Context, cfg *coreconfig.Config, infra *bootstrap.Result) (media.Store, error) {
	switch cfg.Media.Driver {
	case coreconfig.DriverS3:
		return media.NewS3(ctx, cfg.Media, infra.Policy)
	case coreconfig.DriverMemory, "":
		return media.NewMemory(cfg.Media.PublicBaseURL), nil
	}
	return nil, fmt.Errorf("app: unknown media driver %q", cfg.Media.Driver)
}

// TelegramRunOptions binds the engine to the Telegram runtime.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{
		Config:            a.cfg,
		Middlewares:       coretelegram.DefaultMiddlewares(a.cfg, nil),
		Commands:          tgtransport.Commands(),
		DispatcherOptions: tgsender.Options{Retry: a.infra.Policy},
		Routes: func(rt coretelegram.Runtime) ([]coretelegram.Route, error) {
			engine, err := a.Engine(rt.Bot, rt.Dispatcher)
			if err != nil {
				return nil, err
			}
			return tgtransport.Routes(engine), nil
		},
	}, nil
}

// Engine builds the conversation engine on top of api. Notifications go through d when set.
func (a *App) Engine(api tgtransport.API, d *tgsender.Dispatcher) (*bot.Engine, error) {
	if api == nil {
		return nil, fmt.Errorf("app: nil telegram api")
	}
	deps := a.deps
	tr := tgtransport.New(api)
	deps.Transport = tr
	if d != nil {
		deps.Notifier = tgtransport.NewQueuedNotifier(d, tr)
	}
	return bot.New(deps)
}

// Close releases backend connections.
func (a *App) Close() error {
	return a.infra.Close()
}

var _ tgtransport.API = (*tele.Bot)(nil)

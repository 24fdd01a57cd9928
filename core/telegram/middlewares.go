package telegram

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/storebot/core/config"
	"github.com/m3rciful/storebot/core/telegram/middleware"
)

// DefaultMiddlewares builds the shared middleware chain. Logging runs first and
// stores the request context used by the later stages.
func DefaultMiddlewares(cfg *coreconfig.Config, onLimited tele.HandlerFunc) []Middleware {
	mws := []Middleware{
		{Name: "logger", Use: middleware.LoggerMiddleware},
		{Name: "recover", Use: middleware.RecoverMiddleware},
	}
	if cfg == nil {
		return mws
	}

	interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond
	if interval > 0 {
		ex := excludedUpdates(cfg.RateLimit.ExcludeUpdates)
		mws = append(mws, Middleware{
			Name: "rate_limit",
			Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
				Interval:  interval,
				Exclude:   ex,
				OnLimited: onLimited,
			}),
		})
	}
	return mws
}

// excludedUpdates keys update kinds the way middleware.UpdateKind reports them.
func excludedUpdates(kinds []string) map[string]struct{} {
	ex := make(map[string]struct{}, len(kinds))
	for _, k := range kinds {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			ex[k] = struct{}{}
		}
	}
	return ex
}

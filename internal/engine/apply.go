package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/avast/retry-go/v4"
	"github.com/genricoloni/wallcycle/internal/domain"
	"go.uber.org/zap"
)

// Apply puts img on monitor and records it in the history. A failed attempt
// restarts the wallpaper helper before the next one; once every attempt has
// failed the returned error wraps domain.ErrApply.
func Apply(ctx context.Context, deps Deps, monitor domain.ActiveMonitor, img domain.Image, animate bool) error {
	attempts := deps.Config.GetApplyRetries()
	if attempts < 1 {
		attempts = 1
	}

	err := retry.Do(
		func() error {
			if monitor.ExtendAcrossMonitors {
				return deps.Backend.ApplySpanned(ctx, img, monitor.Monitors, animate)
			}
			return deps.Backend.ApplyDuplicated(ctx, img, monitor.Monitors, animate)
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(deps.Config.GetRetryDelay()),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			if n+1 >= uint(attempts) {
				return
			}
			deps.Logger.Warn("Failed to set image, restarting wallpaper helper",
				zap.String("image", img.Name),
				zap.String("monitor", monitor.Name),
				zap.Uint("attempt", n+1),
				zap.Error(err))
			if rerr := deps.Backend.RestartHelper(ctx); rerr != nil {
				deps.Logger.Warn("Failed to restart wallpaper helper", zap.Error(rerr))
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("%w %s on %s: %w", domain.ErrApply, img.Name, monitor.Name, err)
	}

	if err := deps.Store.AddImageToHistory(ctx, img, monitor); err != nil {
		return persistenceError("record history for "+img.Name, err)
	}
	return nil
}

func persistenceError(op string, err error) error {
	if errors.Is(err, domain.ErrPersistence) {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return fmt.Errorf("%w: failed to %s: %w", domain.ErrPersistence, op, err)
}

package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutdown-starting")

	a.healthChecker.SetReady(false)
	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	a.scanner.Close()
	a.feed.Close()

	if err := a.store.Close(); err != nil {
		a.logger.Error("trade-log-close-error", zap.Error(err))
	}

	a.wg.Wait()

	a.logger.Info("shutdown-complete")
	return nil
}

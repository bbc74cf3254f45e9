package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const httpShutdownTimeout = 10 * time.Second

// shutdownHTTP drains the ops server after the app context is cancelled.
func (a *App) shutdownHTTP() error {
	a.healthChecker.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("http-shutdown-error", zap.Error(err))
		return err
	}
	return nil
}

// cleanup releases everything after the run group drains.
func (a *App) cleanup() {
	a.cancel()
	a.logger.Info("application-stopped")
}

// Stop trips the cooperative shutdown; tests and callers outside the
// signal path use it.
func (a *App) Stop() {
	a.cancel()
}

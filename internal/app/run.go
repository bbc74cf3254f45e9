package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Run bootstraps state and blocks until a signal or fatal error stops the
// bot.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("environment", a.cfg.Environment),
		zap.String("http-port", a.cfg.HTTPPort),
		zap.String("log-level", a.cfg.LogLevel))

	// Trading must not start against empty state: markets, profiles,
	// positions and orders are loaded synchronously first.
	if err := a.updater.Bootstrap(a.ctx); err != nil {
		a.logger.Error("bootstrap-failed", zap.Error(err))
		return err
	}

	g, ctx := errgroup.WithContext(a.ctx)

	g.Go(func() error {
		return a.marketStream.Run(ctx)
	})
	g.Go(func() error {
		return a.userStream.Run(ctx)
	})
	g.Go(func() error {
		return a.updater.Run(ctx)
	})
	g.Go(func() error {
		return a.httpServer.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		return a.shutdownHTTP()
	})
	g.Go(func() error {
		return a.waitForSignal(ctx)
	})

	a.healthChecker.SetReady(true)
	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.Int("markets", len(a.st.Markets())))

	err := g.Wait()
	a.cleanup()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// waitForSignal cancels the app context on SIGINT/SIGTERM.
func (a *App) waitForSignal(ctx context.Context) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
		a.cancel()
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

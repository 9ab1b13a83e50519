package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vaultkeep/server/internal/authrequest"
	"github.com/vaultkeep/server/internal/events"
	"github.com/vaultkeep/server/internal/vault"
)

// trashRetention matches Bitwarden's own default: soft-deleted items are
// permanently removed after 30 days in the trash.
const trashRetention = 30 * 24 * time.Hour

// jobRunner drives the periodic maintenance sweeps named in spec
// section 5: trash purge, expired-send purge, auth-request purge and
// event-log cleanup. Each ticks independently and checks ctx.Done()
// between runs, mirroring the teacher's signal.NotifyContext-driven
// graceful-stop loop in cmd/server/main.go.
type jobRunner struct {
	log       *zap.Logger
	vault     *vault.Engine
	authReqs  *authrequest.Broker
	events    *events.Log
	retention time.Duration
}

func newJobRunner(log *zap.Logger, v *vault.Engine, a *authrequest.Broker, e *events.Log, retention time.Duration) *jobRunner {
	return &jobRunner{log: log, vault: v, authReqs: a, events: e, retention: retention}
}

// run starts every sweep on its own goroutine and returns a channel
// closed once all of them have stopped.
func (j *jobRunner) run(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	var running int
	stopped := make(chan struct{})

	start := func(interval time.Duration, name string, sweep func(context.Context) (int, error)) {
		running++
		go func() {
			defer func() { stopped <- struct{}{} }()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					n, err := sweep(ctx)
					if err != nil {
						j.log.Error("maintenance job failed", zap.String("job", name), zap.Error(err))
						continue
					}
					if n > 0 {
						j.log.Info("maintenance job swept rows", zap.String("job", name), zap.Int("count", n))
					}
				}
			}
		}()
	}

	start(time.Hour, "trash_purge", func(ctx context.Context) (int, error) {
		return j.vault.PurgeTrash(ctx, trashRetention)
	})
	start(5*time.Minute, "send_purge", func(ctx context.Context) (int, error) {
		return j.vault.PurgeExpiredSends(ctx)
	})
	start(time.Minute, "auth_request_purge", func(ctx context.Context) (int, error) {
		return j.authReqs.Purge(ctx)
	})
	start(24*time.Hour, "event_cleanup", func(ctx context.Context) (int, error) {
		return j.events.Purge(ctx, j.retention)
	})

	go func() {
		for i := 0; i < running; i++ {
			<-stopped
		}
		close(done)
	}()
	return done
}

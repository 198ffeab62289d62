package main

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/fieldcrew/mobsched/modules/scheduling/infrastructure/persistence"
	"github.com/fieldcrew/mobsched/pkg/configuration"
	"github.com/fieldcrew/mobsched/pkg/eventbus"
	"github.com/fieldcrew/mobsched/pkg/outbox"
	eventbusdispatcher "github.com/fieldcrew/mobsched/pkg/outbox/dispatchers/eventbus"
)

// startOutboxBackground runs the scheduling_outbox relay and cleaner until
// ctx is cancelled. The returned func waits for both to stop.
func startOutboxBackground(
	ctx context.Context,
	conf *configuration.Configuration,
	pool *pgxpool.Pool,
	logger *logrus.Logger,
	bus eventbus.EventBus,
) func() {
	var wg sync.WaitGroup
	if !conf.Outbox.Enabled {
		return wg.Wait
	}
	outboxLog := logger.WithField("component", "outbox").WithField("table", outbox.TableLabel(persistence.OutboxTable))

	eb, ok := bus.(eventbus.EventBusWithError)
	if !ok {
		outboxLog.Warn("outbox: eventbus does not support PublishE; relay not started")
		return wg.Wait
	}
	relay, err := outbox.NewRelay(pool, persistence.OutboxTable, eventbusdispatcher.New(eb, persistence.DecodeEvent), outbox.RelayOptions{
		PollInterval:    conf.Outbox.RelayPollInterval,
		BatchSize:       conf.Outbox.RelayBatchSize,
		LockTTL:         conf.Outbox.RelayLockTTL,
		MaxAttempts:     conf.Outbox.RelayMaxAttempts,
		SingleActive:    conf.Outbox.RelaySingleActive,
		LastErrorMaxLen: conf.Outbox.LastErrorMaxBytes,
		DispatchTimeout: conf.Outbox.RelayDispatchTimeout,
		Logger:          outboxLog,
	})
	if err != nil {
		outboxLog.WithError(err).Error("outbox: failed to create relay")
		return wg.Wait
	}
	cleanerOpts := outbox.CleanerOptions{
		Interval:      conf.Outbox.CleanerInterval,
		Retention:     conf.Outbox.CleanerRetention,
		DeadRetention: conf.Outbox.CleanerDeadRetention,
		Logger:        outboxLog,
	}
	if cleanerOpts.DeadRetention > 0 {
		cleanerOpts.DeadAttemptsThreshold = conf.Outbox.RelayMaxAttempts
	}
	cleaner, err := outbox.NewCleaner(pool, persistence.OutboxTable, cleanerOpts)
	if err != nil {
		outboxLog.WithError(err).Error("outbox: failed to create cleaner")
		return wg.Wait
	}

	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				outboxLog.WithError(err).Errorf("outbox: %s stopped", name)
			}
		}()
	}
	run("relay", relay.Run)
	run("cleaner", cleaner.Run)
	outboxLog.Info("outbox: relay and cleaner started")
	return wg.Wait
}

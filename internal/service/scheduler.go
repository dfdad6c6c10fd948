package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lucas-garnier/ledgerbank/internal/clock"
	"github.com/lucas-garnier/ledgerbank/internal/service/transfer"
)

var tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "ledgerbank_scheduler_tick_duration_seconds",
	Help:    "Duration of one scheduled-transfer tick",
	Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
})

type scheduledRunner interface {
	RunScheduledTick(ctx context.Context, now time.Time, limit int) ([]transfer.TickOutcome, error)
}

// ScheduledTransferProcessor drives the periodic execution of due
// scheduled transfers. Ticks are single-flight by construction: the poll
// runs inline on the loop goroutine, so an overrunning batch simply causes
// the next ticker firing to be dropped rather than run concurrently.
type ScheduledTransferProcessor struct {
	transfers scheduledRunner
	clock     clock.Clock
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

func NewScheduledTransferProcessor(
	transfers scheduledRunner,
	clk clock.Clock,
	logger *slog.Logger,
	interval time.Duration,
	batchSize int,
) *ScheduledTransferProcessor {
	return &ScheduledTransferProcessor{
		transfers: transfers,
		clock:     clk,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

func (p *ScheduledTransferProcessor) Start(ctx context.Context) {
	p.logger.Info("scheduled transfer processor started", "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("scheduled transfer processor stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *ScheduledTransferProcessor) poll(ctx context.Context) {
	start := time.Now()
	defer func() { tickDuration.Observe(time.Since(start).Seconds()) }()

	outcomes, err := p.transfers.RunScheduledTick(ctx, p.clock.Now(), p.batchSize)
	if err != nil {
		p.logger.Error("scheduled transfer tick failed", "error", err)
		return
	}

	if len(outcomes) > 0 {
		var executed, refused, skipped int
		for _, o := range outcomes {
			switch {
			case o.Skipped:
				skipped++
			case o.Reason != "":
				refused++
			default:
				executed++
			}
		}
		p.logger.Info("scheduled transfer tick completed",
			"executed", executed,
			"refused", refused,
			"skipped", skipped,
		)
	}
}

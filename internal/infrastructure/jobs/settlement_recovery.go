package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/builders-garden/swifty/internal/usecases"
	"github.com/builders-garden/swifty/pkg/logger"
)

type settlementReplayer interface {
	ReplayPending(ctx context.Context, limit int) (usecases.ReplayResult, error)
}

// SettlementRecoveryJob periodically replays settlement records whose
// write failed after the funds had moved.
type SettlementRecoveryJob struct {
	replayer  settlementReplayer
	interval  time.Duration
	batchSize int
	stop      chan struct{}
	stopOnce  sync.Once
}

func NewSettlementRecoveryJob(replayer settlementReplayer, interval time.Duration, batchSize int) *SettlementRecoveryJob {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	return &SettlementRecoveryJob{
		replayer:  replayer,
		interval:  interval,
		batchSize: batchSize,
		stop:      make(chan struct{}),
	}
}

// Start blocks until ctx is done or Stop is called
func (j *SettlementRecoveryJob) Start(ctx context.Context) {
	logger.Info(ctx, "Settlement recovery job started", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Settlement recovery job stopped", zap.String("cause", "context"))
			return
		case <-j.stop:
			logger.Info(ctx, "Settlement recovery job stopped")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *SettlementRecoveryJob) Stop() {
	j.stopOnce.Do(func() { close(j.stop) })
}

func (j *SettlementRecoveryJob) runOnce(ctx context.Context) {
	result, err := j.replayer.ReplayPending(ctx, j.batchSize)
	if err != nil {
		logger.Error(ctx, "Listing pending settlements failed", zap.Error(err))
		return
	}
	if result == (usecases.ReplayResult{}) {
		return
	}
	logger.Info(ctx, "Settlement recovery batch done",
		zap.Int("settled", result.Settled),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
	)
}

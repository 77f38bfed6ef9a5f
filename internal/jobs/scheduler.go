package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Schedule struct {
	Expire   string
	Complete string
}

// Start registers the reservation jobs and starts the scheduler. Overlapping
// runs of the same job are skipped.
func Start(runner *Runner, schedule Schedule, logger *zap.Logger) (*cron.Cron, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	jobs := []struct {
		name string
		spec string
		run  func(ctx context.Context) (Result, error)
	}{
		{name: "expire_unpaid", spec: schedule.Expire, run: runner.ExpireUnpaid},
		{name: "complete_past", spec: schedule.Complete, run: runner.CompletePast},
	}
	for _, job := range jobs {
		if job.spec == "" {
			logger.Info("cron job disabled", zap.String("job", job.name))
			continue
		}
		job := job
		if _, err := c.AddFunc(job.spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if _, err := job.run(ctx); err != nil {
				logger.Error("cron job failed", zap.String("job", job.name), zap.Error(err))
			}
		}); err != nil {
			return nil, err
		}
		logger.Info("cron job scheduled", zap.String("job", job.name), zap.String("spec", job.spec))
	}

	c.Start()
	return c, nil
}

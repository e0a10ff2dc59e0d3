package engine

import (
	"context"
	"log/slog"
	"time"
)

// Schedule is one periodic job.
type Schedule struct {
	Name         string
	InitialDelay time.Duration
	Interval     time.Duration
	Run          func(ctx context.Context)
}

// RunSchedule runs job.Run once after the initial delay, then on every interval tick,
// until ctx is done. A panic in one run is recovered and the schedule continues.
// An interval <= 0 runs the job once.
func RunSchedule(ctx context.Context, job Schedule) {
	log := slog.Default().With("module", "scheduler", slog.String("job", job.Name))

	if job.InitialDelay > 0 {
		timer := time.NewTimer(job.InitialDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	runOnce(ctx, log, job)
	if job.Interval <= 0 {
		return
	}

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Schedule stopped")
			return
		case <-ticker.C:
			runOnce(ctx, log, job)
		}
	}
}

func runOnce(ctx context.Context, log *slog.Logger, job Schedule) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Scheduled job panic recovered", slog.Any("panic", r))
		}
	}()
	job.Run(ctx)
}

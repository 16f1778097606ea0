package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/use-agent/fundscrape/models"
)

// cronLogger routes cron's internal logging through slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron "+msg, append(keysAndValues, "error", err)...)
}

// Schedule runs job on the standard five-field cron spec, evaluated in
// loc, until ctx is done. A tick that fires while the previous run is
// still going is skipped. Schedule blocks until ctx is done and every
// running job has returned.
func Schedule(ctx context.Context, spec string, loc *time.Location, job func(ctx context.Context)) error {
	if loc == nil {
		loc = time.Local
	}
	l := cronLogger{}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
	id, err := c.AddFunc(spec, func() { job(ctx) })
	if err != nil {
		return models.NewScrapeError(models.ErrCodeInvalidInput, "invalid --schedule "+spec, err)
	}

	c.Start()
	slog.Info("scheduler_started", "spec", spec, "next", c.Entry(id).Next)

	<-ctx.Done()
	<-c.Stop().Done()
	slog.Info("scheduler_stopped")
	return nil
}

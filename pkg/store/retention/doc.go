// Package retention prunes stored rules by age and by count.
//
// A Pruner applies the configured policy once; a Scheduler runs it on a cron
// schedule until its context is cancelled:
//
//	pruner := retention.NewPruner(s, cfg.Storage.Retention, logger).WithMetrics(collector)
//	scheduler := retention.NewScheduler(pruner, cfg.Storage.Retention.Schedule)
//	if err := scheduler.Start(ctx); err != nil {
//	    return err
//	}
package retention

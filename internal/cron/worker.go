package cron

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/bher20/tariffmatrix/internal/alerting"
	"github.com/bher20/tariffmatrix/internal/catalog"
	"github.com/bher20/tariffmatrix/internal/metrics"
	"github.com/bher20/tariffmatrix/internal/notification"
	"github.com/bher20/tariffmatrix/internal/storage"
	"github.com/robfig/cron/v3"
)

const (
	jobName = "resolve_tariffs"
	// Advisory lock key shared by all worker replicas.
	lockKey int64 = 20240917
)

// Run starts a worker that periodically re-resolves every stored tariff,
// using a Postgres pgxpool backend and PostgreSQL advisory locks so that in
// a multi-instance deployment only one worker executes the job.
//
// The interval comes from TARIFFMATRIX_CRON_INTERVAL_SECONDS, overridable at
// runtime through the "resolve_interval_seconds" setting. Both accept
// integer seconds or a standard cron expression.
func Run(ctx context.Context, driver, dsn string) error {
	if driver == "" {
		driver = "postgrespool"
	}
	if driver != "postgrespool" {
		return fmt.Errorf("cron worker requires TARIFFMATRIX_DB_DRIVER=postgrespool (got %q)", driver)
	}

	st, err := storage.Open(ctx, storage.Config{Driver: driver, DSN: dsn})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer st.Close()

	pg, ok := st.(*storage.PostgresPoolStorage)
	if !ok {
		return fmt.Errorf("storage driver %q is not PostgresPoolStorage", driver)
	}

	svc := catalog.NewServiceWithStorage(st)
	alerter := alerting.NewAlerter(alerting.DefaultAlertConfig())
	notifier := notification.NewService(st)

	intervalSetting := "3600"
	if raw := os.Getenv("TARIFFMATRIX_CRON_INTERVAL_SECONDS"); raw != "" {
		intervalSetting = raw
	}
	if val, err := st.GetSetting(ctx, "resolve_interval_seconds"); err == nil && val != "" {
		intervalSetting = val
	}

	// Control loop ticker; checks for setting changes and run time.
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	nextRun := time.Now()

	log.Printf("cron worker starting, initial setting=%q driver=%s", intervalSetting, driver)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if val, err := st.GetSetting(ctx, "resolve_interval_seconds"); err == nil && val != "" && val != intervalSetting {
				log.Printf("cron: interval updated from %q to %q", intervalSetting, val)
				intervalSetting = val
				nextRun = nextRunTime(intervalSetting, time.Now())
			}

			if time.Now().Before(nextRun) {
				continue
			}

			started := time.Now()

			gotLock, err := pg.AcquireAdvisoryLock(ctx, lockKey)
			if err != nil {
				log.Printf("cron: acquire advisory lock failed: %v", err)
				metrics.UpdateJobMetrics(jobName, started, err)
				nextRun = nextRunTime(intervalSetting, time.Now())
				continue
			}
			if !gotLock {
				log.Printf("cron: advisory lock held by another worker, skipping run")
				nextRun = nextRunTime(intervalSetting, time.Now())
				continue
			}

			result := runBatch(ctx, svc, pg)

			runErr := result.firstErr
			metrics.UpdateJobMetrics(jobName, started, runErr)
			updateDBPoolMetrics(pg)

			dur := time.Since(started)
			errMsg := ""
			if runErr != nil {
				errMsg = runErr.Error()
			}
			if err := pg.UpdateScheduledJob(ctx, jobName, started, dur, runErr == nil, errMsg); err != nil {
				log.Printf("cron: update scheduled_jobs failed: %v", err)
			}

			if len(result.failures) > 0 {
				if err := alerter.SendBatchAlert(ctx, alerting.BatchAlert{
					JobName:       jobName,
					TotalCount:    result.total,
					SuccessCount:  result.total - len(result.failures),
					FailedCount:   len(result.failures),
					Duration:      dur,
					FailedDetails: result.failures,
					Timestamp:     started,
				}); err != nil {
					log.Printf("cron: send alert failed: %v", err)
				}
				emailFailures(ctx, st, notifier, result.failures)
			}

			if runErr != nil {
				log.Printf("cron: job %s completed with error: %v (duration=%s)", jobName, runErr, dur)
			} else {
				log.Printf("cron: job %s completed successfully, %d tariffs (duration=%s)", jobName, result.total, dur)
			}

			nextRun = nextRunTime(intervalSetting, time.Now())
		}
	}
}

type batchResult struct {
	total    int
	failures []alerting.TariffFailure
	firstErr error
}

// runBatch re-resolves every stored tariff while holding the advisory lock.
func runBatch(ctx context.Context, svc *catalog.Service, pg *storage.PostgresPoolStorage) batchResult {
	defer func() {
		if _, err := pg.ReleaseAdvisoryLock(ctx, lockKey); err != nil {
			log.Printf("cron: release advisory lock failed: %v", err)
		}
	}()

	var res batchResult

	list, err := svc.ListTariffs(ctx)
	if err != nil {
		log.Printf("cron: list tariffs failed: %v", err)
		res.firstErr = err
		return res
	}
	res.total = len(list)

	for _, t := range list {
		if _, err := svc.RefreshResolution(ctx, t.ID); err != nil {
			log.Printf("cron: refresh tariff %s failed: %v", t.ID, err)
			res.failures = append(res.failures, alerting.TariffFailure{TariffID: t.ID, Error: err.Error()})
			if res.firstErr == nil {
				res.firstErr = err
			}
			continue
		}
		metrics.ResolutionsTotal.WithLabelValues("cron").Inc()
	}
	return res
}

// emailFailures sends a failure digest to the alert_email setting, when set
// and email is enabled. Best-effort.
func emailFailures(ctx context.Context, st storage.Storage, notifier *notification.Service, failures []alerting.TariffFailure) {
	to, err := st.GetSetting(ctx, "alert_email")
	if err != nil || to == "" {
		return
	}

	body := fmt.Sprintf("<p>%d tariffs failed to re-resolve:</p><ul>", len(failures))
	for _, f := range failures {
		body += fmt.Sprintf("<li><b>%s</b>: %s</li>", f.TariffID, f.Error)
	}
	body += "</ul>"

	subject := fmt.Sprintf("TariffMatrix: %d tariffs failed to re-resolve", len(failures))
	if err := notifier.SendEmail(ctx, to, subject, body); err != nil {
		log.Printf("cron: send failure email failed: %v", err)
	}
}

// nextRunTime interprets the interval setting as integer seconds first, then
// as a standard cron expression, defaulting to one hour.
func nextRunTime(setting string, lastRun time.Time) time.Time {
	if v, err := strconv.Atoi(setting); err == nil && v > 0 {
		return lastRun.Add(time.Duration(v) * time.Second)
	}
	if sched, err := cron.ParseStandard(setting); err == nil {
		return sched.Next(lastRun)
	}
	return lastRun.Add(time.Hour)
}

func updateDBPoolMetrics(pg *storage.PostgresPoolStorage) {
	stat := pg.Stat()
	if stat == nil {
		return
	}
	metrics.UpdateDBPoolMetrics("postgrespool",
		float64(stat.TotalConns()),
		float64(stat.IdleConns()),
		float64(stat.AcquiredConns()))
}

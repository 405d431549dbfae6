// Package jobs runs the periodic maintenance tasks on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Job is one scheduled task. Run reports how many rows it touched.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) (int64, error)
}

// VoteResetter clears daily vote counters left over from earlier days
type VoteResetter interface {
	ResetStaleDailyVotes(ctx context.Context) (int64, error)
}

// MarketCloser stops voting on markets past their deadline
type MarketCloser interface {
	CloseExpiredMarkets(ctx context.Context) (int64, error)
}

// WindowPurger drops expired rate-limit windows
type WindowPurger interface {
	Purge(ctx context.Context) (int64, error)
}

// IdleEvicter drops per-client state that has not been used for idle
type IdleEvicter interface {
	Evict(idle time.Duration) int
}

// Scheduler owns the cron runner and the registered jobs
type Scheduler struct {
	cron *cron.Cron
	loc  *time.Location
	jobs []Job
}

// NewScheduler creates a scheduler whose specs are read in loc
func NewScheduler(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron: cron.New(cron.WithLocation(loc)),
		loc:  loc,
	}
}

// Add registers a job. It must be called before Start.
func (s *Scheduler) Add(job Job) {
	s.jobs = append(s.jobs, job)
}

// Jobs returns the registered jobs
func (s *Scheduler) Jobs() []Job {
	return s.jobs
}

// DailyVoteReset resets stale daily vote counters at local midnight
func DailyVoteReset(r VoteResetter) Job {
	return Job{Name: "reset_daily_votes", Spec: "0 0 * * *", Run: r.ResetStaleDailyVotes}
}

// MarketClosing closes expired markets every five minutes
func MarketClosing(c MarketCloser) Job {
	return Job{Name: "close_expired_markets", Spec: "*/5 * * * *", Run: c.CloseExpiredMarkets}
}

// RateLimitPurge removes expired rate-limit windows every ten minutes
func RateLimitPurge(p WindowPurger) Job {
	return Job{Name: "purge_rate_limits", Spec: "*/10 * * * *", Run: p.Purge}
}

// IPBucketEviction drops client buckets idle for more than idle, every ten minutes
func IPBucketEviction(e IdleEvicter, idle time.Duration) Job {
	return Job{
		Name: "evict_ip_buckets",
		Spec: "*/10 * * * *",
		Run: func(ctx context.Context) (int64, error) {
			return int64(e.Evict(idle)), nil
		},
	}
}

// Start schedules every job and starts the runner
func (s *Scheduler) Start(ctx context.Context) error {
	for _, job := range s.jobs {
		job := job
		if _, err := s.cron.AddFunc(job.Spec, func() { s.run(ctx, job) }); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job.Name, err)
		}
	}

	s.cron.Start()
	log.WithFields(log.Fields{
		"jobs":     len(s.jobs),
		"timezone": s.loc.String(),
	}).Info("[CRON] scheduler started")
	return nil
}

// RunNow runs the named job immediately, outside the schedule
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	for _, job := range s.jobs {
		if job.Name == name {
			_, err := job.Run(ctx)
			return err
		}
	}
	return fmt.Errorf("unknown job %q", name)
}

// Stop stops the runner and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("[CRON] scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	start := time.Now()
	entry := log.WithField("job", job.Name)

	n, err := job.Run(ctx)
	if err != nil {
		entry.WithError(err).Error("[CRON] job failed")
		return
	}

	entry = entry.WithFields(log.Fields{
		"rows":       n,
		"latency_ms": time.Since(start).Milliseconds(),
	})
	if n > 0 {
		entry.Info("[CRON] job finished")
		return
	}
	entry.Debug("[CRON] job finished")
}

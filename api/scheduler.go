/*
scheduler.go - Automated reset scheduler

PURPOSE:
  Runs the periodic bulk jobs of the progression engine without a staff
  member having to trigger them:
    - weekly reset     (cron, default Monday 00:00 local time)
    - daily reset      (cron, default 00:00 local time)
    - lock-expiry sweep (fixed interval, default 15 minutes)

DESIGN:
  - Jobs are registered with gocron and evaluated in the configured time zone
  - Singleton mode: a job still running when its next tick fires is
    rescheduled, never run twice in parallel
  - Every run is journaled by the service (see progression/bulk.go), so the
    scheduler itself only logs

CONFIGURATION:
  - WeeklyCron / DailyCron: five-field cron expressions
  - LockSweepInterval: 0 disables the sweep
  - Enabled: whether the scheduler is active (default: true)

USAGE:
  scheduler := NewJobScheduler(svc)
  if err := scheduler.Start(); err != nil { ... }
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: Admin endpoints that trigger the same jobs manually
  - progression/bulk.go: Job implementations
*/
package api

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/warp/rank-engine/progression"
)

// Default schedules.
const (
	DefaultWeeklyCron        = "0 0 * * 1"
	DefaultDailyCron         = "0 0 * * *"
	DefaultLockSweepInterval = 15 * time.Minute

	// SchedulerActor is recorded as the actor of scheduled runs.
	SchedulerActor = "scheduler"
)

type jobFunc func(ctx context.Context, actor string) (progression.BatchSummary, error)

type scheduledJob struct {
	name string
	def  gocron.JobDefinition
	fn   jobFunc
}

// JobScheduler runs the weekly reset, daily reset and lock sweep.
type JobScheduler struct {
	Service           *progression.Service
	WeeklyCron        string
	DailyCron         string
	LockSweepInterval time.Duration
	Enabled           bool

	sched  gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewJobScheduler creates a scheduler with the default schedules.
func NewJobScheduler(svc *progression.Service) *JobScheduler {
	return &JobScheduler{
		Service:           svc,
		WeeklyCron:        DefaultWeeklyCron,
		DailyCron:         DefaultDailyCron,
		LockSweepInterval: DefaultLockSweepInterval,
		Enabled:           true,
	}
}

// Start registers the jobs and begins the scheduler.
func (js *JobScheduler) Start() error {
	js.mu.Lock()
	defer js.mu.Unlock()

	if !js.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return nil
	}
	if js.sched != nil {
		return nil
	}

	sched, err := gocron.NewScheduler(gocron.WithLocation(js.Service.Location()))
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	js.ctx, js.cancel = context.WithCancel(context.Background())

	jobs := []scheduledJob{
		{"weekly-reset", gocron.CronJob(js.WeeklyCron, false), js.Service.WeeklyReset},
		{"daily-reset", gocron.CronJob(js.DailyCron, false), js.Service.DailyReset},
	}
	if js.LockSweepInterval > 0 {
		jobs = append(jobs, scheduledJob{"lock-sweep", gocron.DurationJob(js.LockSweepInterval), js.Service.LockExpirySweep})
	}

	for _, j := range jobs {
		name, fn := j.name, j.fn
		_, err := sched.NewJob(
			j.def,
			gocron.NewTask(func() { js.runJob(name, fn) }),
			gocron.WithName(name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			js.cancel()
			_ = sched.Shutdown()
			return fmt.Errorf("schedule %s: %w", name, err)
		}
	}

	sched.Start()
	js.sched = sched

	log.Printf("[Scheduler] Started (weekly %q, daily %q, lock sweep every %v, zone %s)",
		js.WeeklyCron, js.DailyCron, js.LockSweepInterval, js.Service.Location())
	return nil
}

// Stop cancels any running job between records and shuts the scheduler down.
func (js *JobScheduler) Stop() {
	js.mu.Lock()
	defer js.mu.Unlock()

	if js.sched == nil {
		return
	}
	js.cancel()
	if err := js.sched.Shutdown(); err != nil {
		log.Printf("[Scheduler] Shutdown error: %v", err)
	}
	js.sched = nil
	log.Println("[Scheduler] Stopped")
}

// runJob executes one bulk job and logs its outcome.
func (js *JobScheduler) runJob(name string, fn jobFunc) {
	start := time.Now()
	sum, err := fn(js.ctx, SchedulerActor)
	elapsed := time.Since(start).Round(time.Millisecond)

	if err != nil {
		log.Printf("[Scheduler] %s run %s: %d/%d updated, %d failed in %v: %v",
			name, sum.RunID, sum.Updated, sum.Scanned, len(sum.Failures), elapsed, err)
		return
	}
	log.Printf("[Scheduler] %s run %s: %d/%d updated in %v",
		name, sum.RunID, sum.Updated, sum.Scanned, elapsed)
	for _, m := range sum.Members {
		log.Printf("[Scheduler] %s: rank lock expired for %s (%s)", name, m.ID, m.RankName)
	}
}

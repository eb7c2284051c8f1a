// Package jobs runs the periodic digest generation in the background,
// independent of live chat turns.
package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"lifetracker/internal/models"
	"lifetracker/internal/services"
	"lifetracker/internal/store"

	"github.com/go-co-op/gocron/v2"
)

// DigestScheduler fans the digest pipeline out over all users on a cron
// schedule. The per-user daily cap inside DigestService makes re-runs
// safe.
type DigestScheduler struct {
	scheduler gocron.Scheduler
	store     *store.Store
	digests   *services.DigestService
}

// NewDigestScheduler builds the scheduler. cronExpr is a standard 5-field
// cron expression evaluated in UTC.
func NewDigestScheduler(st *store.Store, digests *services.DigestService, cronExpr string) (*DigestScheduler, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	s := &DigestScheduler{
		scheduler: scheduler,
		store:     st,
		digests:   digests,
	}

	if _, err := scheduler.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(s.RunAll),
		gocron.WithName("daily-digest"),
	); err != nil {
		return nil, fmt.Errorf("failed to register digest job: %w", err)
	}

	return s, nil
}

// Start begins running the schedule
func (s *DigestScheduler) Start() {
	s.scheduler.Start()
	log.Println("✅ [SCHEDULER] Digest scheduler started")
}

// Stop shuts the scheduler down, waiting for a running job to finish
func (s *DigestScheduler) Stop() error {
	log.Println("🛑 [SCHEDULER] Stopping digest scheduler...")
	return s.scheduler.Shutdown()
}

// RunAll generates a digest for every user. Failures are logged per user
// and never stop the fan-out.
func (s *DigestScheduler) RunAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		log.Printf("❌ [SCHEDULER] Digest run failed to list users: %v", err)
		return
	}

	log.Printf("▶️  [SCHEDULER] Digest run starting for %d user(s)", len(users))
	var sent, skipped, failed int
	for _, u := range users {
		result := s.digests.GenerateAndSend(ctx, u.ID)
		switch result.Status {
		case models.DigestStatusSuccess:
			sent++
		case models.DigestStatusSkipped:
			skipped++
		default:
			failed++
			log.Printf("❌ [SCHEDULER] Digest for user %d: %s", u.ID, result.Message)
		}
	}
	log.Printf("✅ [SCHEDULER] Digest run completed: %d sent, %d skipped, %d failed", sent, skipped, failed)
}

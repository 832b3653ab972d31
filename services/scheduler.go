// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartAchievementScheduler runs one incremental cycle on a fixed interval.
// Singleton mode keeps cycles from overlapping: if a cycle is still running
// when the next tick fires, the tick is rescheduled instead of stacking.
// A failed cycle just retries from the unchanged watermarks next tick.
func (s *GamificationService) StartAchievementScheduler(ctx context.Context, interval time.Duration) gocron.Scheduler {
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Fatal("failed to create achievement scheduler:", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if _, err := s.ProcessNewAchievements(ctx); err != nil {
				log.Printf("❌ [Scheduler] Achievement cycle failed, retrying next tick: %v", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Fatal("failed to schedule achievement cycle:", err)
	}

	sched.Start()
	log.Printf("⏱️ Achievement cycle scheduled every %s", interval)
	return sched
}

package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs the report daily at 21:00 UTC.
const DefaultSchedule = "0 21 * * *"

// Scheduler runs the periodic usage report.
type Scheduler struct {
	cron       *cron.Cron
	ctx        context.Context
	cancel     context.CancelFunc
	schedule   string
	reportFunc func(ctx context.Context) error
}

func New(schedule string) *Scheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		ctx:      ctx,
		cancel:   cancel,
		schedule: schedule,
	}
}

func (s *Scheduler) SetReportFunction(f func(ctx context.Context) error) {
	s.reportFunc = f
}

// Start registers the report job and starts the cron loop. Without a report
// function it does nothing.
func (s *Scheduler) Start() error {
	if s.reportFunc == nil {
		log.Println("report function not set, scheduler will not generate reports")
		return nil
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		log.Printf("triggered usage report (%s)", s.schedule)
		if err := s.reportFunc(s.ctx); err != nil {
			log.Printf("usage report failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("scheduler started, usage report schedule %q (UTC)", s.schedule)
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	log.Println("scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}

package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"myhome_scrooper/config"
)

// Runner is the job the scheduler triggers.
type Runner interface {
	Run(ctx context.Context) error
}

// Scheduler triggers the runner on a cron expression or a fixed interval.
// A trigger that fires while a run is still in progress is skipped.
type Scheduler struct {
	cfg    config.SchedulerConfig
	runner Runner
	cron   *cron.Cron
	ticker *time.Ticker
	stopCh chan struct{}
	once   sync.Once
	busy   sync.Mutex
	wg     sync.WaitGroup
}

func New(cfg config.SchedulerConfig, runner Runner) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		runner: runner,
		cron:   cron.New(),
		stopCh: make(chan struct{}),
	}
}

// Enabled reports whether any schedule is configured.
func (s *Scheduler) Enabled() bool {
	return s.cfg.Cron != "" || s.cfg.Interval > 0
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Cron)
		_, err := s.cron.AddFunc(s.cfg.Cron, func() { s.trigger(ctx) })
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Interval)
		s.ticker = time.NewTicker(s.cfg.Interval)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.trigger(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		return fmt.Errorf("no schedule configured")
	}

	return nil
}

// Stop halts future triggers and waits for a running job to return.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		stopped := s.cron.Stop()
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		<-stopped.Done()
		s.wg.Wait()
	})
}

// TriggerNow runs the job immediately, subject to the same overlap guard.
func (s *Scheduler) TriggerNow(ctx context.Context) {
	s.trigger(ctx)
}

func (s *Scheduler) trigger(ctx context.Context) {
	if !s.busy.TryLock() {
		log.Println("Previous run still in progress, skipping trigger")
		return
	}
	defer s.busy.Unlock()

	if err := s.runner.Run(ctx); err != nil {
		log.Printf("Scheduled run error: %v", err)
	}
}

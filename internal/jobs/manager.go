package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/sbilibin2017/gw-deposit-reconciler/internal/logger"
)

// Job is a background task that runs until ctx is cancelled.
type Job interface {
	Start(ctx context.Context)
}

// Periodic runs fn immediately and then every Interval. An error from one run
// is logged and does not stop the schedule.
type Periodic struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Start implements Job.
func (p Periodic) Start(ctx context.Context) {
	log := logger.Named("jobs").With("job", p.Name)
	log.Infow("job started", "interval", p.Interval)
	defer log.Infow("job stopped")

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		if err := p.Run(ctx); err != nil && ctx.Err() == nil {
			log.Warnw("job run failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Manager starts registered jobs and waits for them to stop.
type Manager struct {
	jobs []Job
}

func New() *Manager {
	return &Manager{}
}

func (m *Manager) Register(job Job) {
	m.jobs = append(m.jobs, job)
}

// Start runs every job in its own goroutine and blocks until ctx is cancelled
// and all jobs have returned.
func (m *Manager) Start(ctx context.Context) {
	var wg sync.WaitGroup

	for _, job := range m.jobs {
		wg.Add(1)

		go func(j Job) {
			defer wg.Done()
			j.Start(ctx)
		}(job)
	}

	<-ctx.Done()
	wg.Wait()
}

package director

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

// Scheduler runs repeating jobs.
type Scheduler interface {
	// Every runs fn every interval until the returned cancel function is called. The first run
	// happens one interval after scheduling.
	Every(interval time.Duration, fn func()) (cancel func(), err error)
}

// GocronScheduler is a wall clock scheduler backed by gocron.
type GocronScheduler struct {
	scheduler *gocron.Scheduler
}

// Ensure the gocron scheduler implements the Scheduler interface.
var _ Scheduler = (*GocronScheduler)(nil)

// NewGocronScheduler initializes and starts a gocron backed scheduler.
func NewGocronScheduler(loc *time.Location) *GocronScheduler {
	if loc == nil {
		loc = time.UTC
	}

	scheduler := gocron.NewScheduler(loc)
	scheduler.SingletonModeAll()
	scheduler.StartAsync()

	return &GocronScheduler{scheduler: scheduler}
}

// Every schedules fn to run every interval.
func (g *GocronScheduler) Every(interval time.Duration, fn func()) (func(), error) {
	job, err := g.scheduler.Every(interval).WaitForSchedule().Do(fn)
	if err != nil {
		return nil, fmt.Errorf("scheduling job every %s: %w", interval, err)
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() { g.scheduler.RemoveByReference(job) })
	}

	return cancel, nil
}

// Stop stops the scheduler and removes every job.
func (g *GocronScheduler) Stop() {
	g.scheduler.Clear()
	g.scheduler.Stop()
}

// manualJob represents a job registered with a manual scheduler.
type manualJob struct {
	id uint64
	fn func()
}

// ManualScheduler is a scheduler whose jobs only run when it is ticked. It drives the director in
// tests and in fast-forward sessions.
type ManualScheduler struct {
	jobs   []*manualJob
	nextID uint64
	mtx    sync.Mutex
}

// Ensure the manual scheduler implements the Scheduler interface.
var _ Scheduler = (*ManualScheduler)(nil)

// NewManualScheduler initializes a new manual scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Every registers fn. The interval is ignored, every Tick counts as one interval.
func (m *ManualScheduler) Every(_ time.Duration, fn func()) (func(), error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.nextID++
	id := m.nextID
	m.jobs = append(m.jobs, &manualJob{id: id, fn: fn})

	return func() { m.remove(id) }, nil
}

// remove unregisters the job with the provided id.
func (m *ManualScheduler) remove(id uint64) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	for idx := range m.jobs {
		if m.jobs[idx].id == id {
			m.jobs = append(m.jobs[:idx], m.jobs[idx+1:]...)
			return
		}
	}
}

// registered checks whether the job with the provided id is still scheduled.
func (m *ManualScheduler) registered(id uint64) bool {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	for idx := range m.jobs {
		if m.jobs[idx].id == id {
			return true
		}
	}

	return false
}

// Tick runs every registered job once and returns the number of jobs run. Jobs cancelled by an
// earlier job in the same tick are skipped.
func (m *ManualScheduler) Tick() int {
	m.mtx.Lock()
	jobs := make([]*manualJob, len(m.jobs))
	copy(jobs, m.jobs)
	m.mtx.Unlock()

	var ran int
	for _, job := range jobs {
		if !m.registered(job.id) {
			continue
		}

		job.fn()
		ran++
	}

	return ran
}

// Pending returns the number of registered jobs.
func (m *ManualScheduler) Pending() int {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return len(m.jobs)
}

// Package cron implements the Cron Service: persisted scheduled jobs
// that fire into the Subagent Manager (internal/subagents) on a single
// arm-sleep-wake scheduling loop.
package cron

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// FireHandler is invoked once per due job. The bootstrap layer wires this to
// the Subagent Manager's Spawn(task, label="cron:<name prefix>", parent_id="cron").
// A non-nil error is recorded on the job as StatusError/LastError; the
// schedule still advances to its next occurrence either way.
type FireHandler func(job *Job) error

// Option configures a Service.
type Option func(*Service)

// WithLogger overrides the service's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNow overrides the clock, for deterministic tests.
func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithFireHandler sets the handler invoked for each due job.
func WithFireHandler(handler FireHandler) Option {
	return func(s *Service) {
		s.fire = handler
	}
}

// WithOnFire sets a callback invoked with the outcome status after every
// fire, independent of the FireHandler itself. The bootstrap layer uses this
// to feed a Prometheus counter without the cron package importing a metrics
// library directly.
func WithOnFire(fn func(status LastStatus)) Option {
	return func(s *Service) {
		s.onFire = fn
	}
}

// Service owns the in-memory job list, the Store backing it, and the single
// scheduling goroutine. All mutations serialize through the service's own
// lock; the scheduling loop is the sole source of fire decisions.
type Service struct {
	mu   sync.Mutex
	jobs map[string]*Job

	store  *Store
	fire   FireHandler
	onFire func(status LastStatus)
	logger *slog.Logger
	now    func() time.Time

	timer   *time.Timer
	rearmCh chan struct{}
	stopCh  chan struct{}
	started bool
	wg      sync.WaitGroup
}

// New creates a Service backed by store. Jobs are not loaded until Start.
func New(store *Store, opts ...Option) *Service {
	s := &Service{
		jobs:    make(map[string]*Job),
		store:   store,
		logger:  slog.Default().With("component", "cron"),
		now:     time.Now,
		rearmCh: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the persisted job list (if any) and begins the scheduling
// loop. Calling Start twice is a no-op.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true

	if s.store != nil {
		loaded, err := s.store.Load()
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("cron: load store: %w", err)
		}
		for _, job := range loaded {
			s.jobs[job.ID] = job
		}
		now := s.now()
		for _, job := range s.jobs {
			if !job.Enabled {
				continue
			}
			next, ok, err := job.Schedule.Next(now)
			if err != nil {
				s.logger.Warn("cron job schedule invalid on reload", "id", job.ID, "error", err)
				job.Enabled = false
				continue
			}
			if !ok {
				job.State.NextRunAtMS = 0
				job.Enabled = false
				continue
			}
			job.State.NextRunAtMS = next.UnixMilli()
		}
	}
	s.mu.Unlock()

	s.persist()

	s.wg.Add(1)
	go s.loop()
	return nil
}

// Stop halts the scheduling loop and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
}

// Add registers a new job and returns its id.
func (s *Service) Add(name string, schedule Schedule, task string, priority int) (string, error) {
	if strings.TrimSpace(task) == "" {
		return "", fmt.Errorf("cron: task is required")
	}
	s.mu.Lock()
	now := s.now()
	job := &Job{
		ID:          newJobID(),
		Name:        name,
		Enabled:     true,
		Schedule:    schedule,
		Task:        task,
		Priority:    priority,
		State:       JobState{LastStatus: StatusIdle},
		CreatedAtMS: now.UnixMilli(),
	}
	next, ok, err := schedule.Next(now)
	if err != nil {
		s.mu.Unlock()
		return "", err
	}
	if ok {
		job.State.NextRunAtMS = next.UnixMilli()
	} else {
		job.Enabled = false
	}
	s.jobs[job.ID] = job
	s.mu.Unlock()

	s.persist()
	s.requestRearm()
	return job.ID, nil
}

// Enable flips a job's enabled flag, recomputing its next fire time when
// turning it on. It returns false if id is unknown.
func (s *Service) Enable(id string, on bool) bool {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	job.Enabled = on
	if on {
		next, ok, err := job.Schedule.Next(s.now())
		if err == nil && ok {
			job.State.NextRunAtMS = next.UnixMilli()
		} else {
			job.Enabled = false
		}
	} else {
		job.State.NextRunAtMS = 0
	}
	s.mu.Unlock()

	s.persist()
	s.requestRearm()
	return true
}

// Remove deletes a job by id. It returns false if id is unknown.
func (s *Service) Remove(id string) bool {
	s.mu.Lock()
	_, ok := s.jobs[id]
	if ok {
		delete(s.jobs, id)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.persist()
	s.requestRearm()
	return true
}

// List returns a snapshot of jobs, optionally filtered to enabled ones, sorted
// by id for stable output.
func (s *Service) List(enabledOnly bool) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if enabledOnly && !job.Enabled {
			continue
		}
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RunNow fires a job immediately, outside its normal schedule, and still
// advances its next-fire time as if it had fired on schedule. It returns
// false if id is unknown.
func (s *Service) RunNow(id string) bool {
	s.mu.Lock()
	job, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.fireJob(job)
	s.persist()
	s.requestRearm()
	return true
}

// loop is the single scheduling task: it arms a timer for the soonest
// next_run_at_ms across all enabled jobs, and on wake collects and fires
// every job now due before re-arming.
func (s *Service) loop() {
	defer s.wg.Done()
	s.timer = time.NewTimer(s.sleepDuration())
	defer s.timer.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-s.rearmCh:
			if !s.timer.Stop() {
				select {
				case <-s.timer.C:
				default:
				}
			}
			s.timer.Reset(s.sleepDuration())
		case <-s.timer.C:
			s.fireDue()
			s.timer.Reset(s.sleepDuration())
		}
	}
}

// sleepDuration returns how long the loop should sleep until the next
// candidate fire, clamped to a minimum so a past-due job (e.g. after a
// backward clock jump was already handled) still wakes promptly.
func (s *Service) sleepDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var soonest int64
	found := false
	for _, job := range s.jobs {
		if !job.Enabled || job.State.NextRunAtMS == 0 {
			continue
		}
		if !found || job.State.NextRunAtMS < soonest {
			soonest = job.State.NextRunAtMS
			found = true
		}
	}
	if !found {
		return time.Hour
	}
	d := time.Duration(soonest-s.now().UnixMilli()) * time.Millisecond
	if d < 0 {
		d = 0
	}
	return d
}

// fireDue collects every job whose next_run_at_ms has arrived and fires each
// one. Collecting the whole due set before firing handles clock jumps and
// near-simultaneous jobs without double-firing within one boundary.
func (s *Service) fireDue() {
	now := s.now()
	s.mu.Lock()
	var due []*Job
	for _, job := range s.jobs {
		if job.Enabled && job.State.NextRunAtMS != 0 && job.State.NextRunAtMS <= now.UnixMilli() {
			due = append(due, job)
		}
	}
	s.mu.Unlock()

	for _, job := range due {
		s.fireJob(job)
	}
	if len(due) > 0 {
		s.persist()
	}
}

// fireJob invokes the handler and advances the job's schedule/state. A
// handler error or recovered panic is recorded as StatusError/LastError;
// the schedule is still maintained (the job's next occurrence is computed
// and it stays enabled) regardless of handler outcome.
func (s *Service) fireJob(job *Job) {
	now := s.now()
	fireErr := s.invokeFire(job)

	s.mu.Lock()
	defer s.mu.Unlock()
	job.State.LastRunAtMS = now.UnixMilli()
	job.State.RunCount++
	if fireErr != nil {
		job.State.LastStatus = StatusError
		job.State.LastError = fireErr.Error()
	} else {
		job.State.LastStatus = StatusOK
		job.State.LastError = ""
	}

	if job.Schedule.Kind == ScheduleAt && job.DeleteAfterRun {
		delete(s.jobs, job.ID)
		s.reportFire(job.State.LastStatus)
		return
	}

	next, ok, err := job.Schedule.Next(now)
	if err != nil {
		job.State.LastStatus = StatusError
		job.State.LastError = err.Error()
		job.State.NextRunAtMS = 0
		job.Enabled = false
		s.reportFire(job.State.LastStatus)
		return
	}
	if !ok {
		job.State.NextRunAtMS = 0
		job.Enabled = false
		s.reportFire(job.State.LastStatus)
		return
	}
	job.State.NextRunAtMS = next.UnixMilli()
	s.reportFire(job.State.LastStatus)
}

// invokeFire calls the configured FireHandler, converting a recovered panic
// into an error so a misbehaving handler can never escape fireJob without
// being recorded on the job.
func (s *Service) invokeFire(job *Job) (err error) {
	if s.fire == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("cron fire handler panicked", "id", job.ID, "panic", r)
			err = fmt.Errorf("cron: fire handler panicked: %v", r)
		}
	}()
	return s.fire(job)
}

func (s *Service) reportFire(status LastStatus) {
	if s.onFire != nil {
		s.onFire(status)
	}
}

func (s *Service) requestRearm() {
	select {
	case s.rearmCh <- struct{}{}:
	default:
	}
}

func (s *Service) persist() {
	if s.store == nil {
		return
	}
	s.mu.Lock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobCopy := *job
		jobs = append(jobs, &jobCopy)
	}
	s.mu.Unlock()

	if err := s.store.Save(jobs); err != nil {
		s.logger.Warn("cron store save failed", "error", err)
	}
}

// NamePrefix returns the first word of name, used to build the
// "cron:<name prefix>" subagent label.
func NamePrefix(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "job"
	}
	if idx := strings.IndexByte(name, ' '); idx >= 0 {
		return name[:idx]
	}
	return name
}

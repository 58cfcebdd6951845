package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/modelsite/modelsite-go/pkg/metadatastore"
)

// MaintenanceJobName is the name of the database maintenance job
const MaintenanceJobName = "database-maintenance"

// maintenanceTimeout bounds one maintenance run
const maintenanceTimeout = 5 * time.Minute

// Task is the work performed by a scheduled job
type Task func(ctx context.Context) error

// Job describes a scheduled job and its last outcome
type Job struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

type scheduledJob struct {
	job     Job
	task    Task
	entryID cron.EntryID
}

// Service runs background jobs on cron schedules
type Service struct {
	cron *cron.Cron
	log  *zap.Logger

	mu   sync.Mutex
	jobs map[string]*scheduledJob // keyed by job name
}

// NewService creates a new scheduler service
func NewService(log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		cron: cron.New(),
		log:  log,
		jobs: make(map[string]*scheduledJob),
	}
}

// Start starts the scheduler
func (s *Service) Start() {
	s.cron.Start()
	s.log.Info("Job scheduler started", zap.Int("jobs", len(s.List())))
}

// Stop stops the scheduler and waits for running jobs until ctx expires
func (s *Service) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("Job scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// Add schedules task under name. schedule accepts standard five-field cron
// expressions and descriptors such as @daily.
func (s *Service) Add(name, schedule string, task Task) (*Job, error) {
	if name == "" {
		return nil, fmt.Errorf("job name is required")
	}
	parsed, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return nil, fmt.Errorf("job %s is already scheduled", name)
	}

	sj := &scheduledJob{
		job: Job{
			ID:       uuid.New().String(),
			Name:     name,
			Schedule: schedule,
		},
		task: task,
	}
	next := parsed.Next(time.Now())
	sj.job.NextRun = &next
	sj.entryID = s.cron.Schedule(parsed, cron.FuncJob(func() {
		s.executeJob(context.Background(), sj)
	}))
	s.jobs[name] = sj

	s.log.Info("Scheduled job", zap.String("job", name), zap.String("schedule", schedule))
	job := sj.job
	return &job, nil
}

// Remove unschedules a job
func (s *Service) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sj, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("job %s not found", name)
	}
	s.cron.Remove(sj.entryID)
	delete(s.jobs, name)
	return nil
}

// List returns the scheduled jobs sorted by name
func (s *Service) List() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, sj := range s.jobs {
		jobs = append(jobs, sj.job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })
	return jobs
}

// Execute runs a job immediately and returns its error
func (s *Service) Execute(ctx context.Context, name string) error {
	s.mu.Lock()
	sj, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not found", name)
	}
	return s.executeJob(ctx, sj)
}

// executeJob runs the task and records its outcome
func (s *Service) executeJob(ctx context.Context, sj *scheduledJob) error {
	s.log.Debug("Executing scheduled job", zap.String("job", sj.job.Name))

	start := time.Now()
	err := sj.task(ctx)

	s.mu.Lock()
	sj.job.LastRun = &start
	sj.job.LastError = ""
	if err != nil {
		sj.job.LastError = err.Error()
	}
	if schedule, perr := cron.ParseStandard(sj.job.Schedule); perr == nil {
		next := schedule.Next(time.Now())
		sj.job.NextRun = &next
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("Scheduled job failed", zap.String("job", sj.job.Name), zap.Error(err))
		return err
	}
	s.log.Info("Scheduled job completed", zap.String("job", sj.job.Name), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// AddMaintenance schedules periodic optimization of the metadata store
func (s *Service) AddMaintenance(store metadatastore.Store, schedule string) (*Job, error) {
	return s.Add(MaintenanceJobName, schedule, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, maintenanceTimeout)
		defer cancel()
		return store.Optimize(ctx)
	})
}

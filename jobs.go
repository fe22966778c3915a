package main

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/orian/spoolplan/models"
)

// JobState is the lifecycle of one parse job.
type JobState string

const (
	JobRunning   JobState = "running"
	JobDone      JobState = "done"
	JobCancelled JobState = "cancelled"
	JobFailed    JobState = "failed"
)

// ParseJob tracks one asynchronous parse. The worker goroutine owns the
// parser state exclusively; the only things crossing the goroutine
// boundary are progress events (over a channel) and the final result,
// both guarded here.
type ParseJob struct {
	ID         string
	FileName   string
	SourceKind string

	cancel context.CancelFunc

	mu       sync.Mutex
	state    JobState
	progress models.ProgressEvent
	analysis *models.Analysis
	err      error
}

func (j *ParseJob) setProgress(ev models.ProgressEvent) {
	j.mu.Lock()
	j.progress = ev
	j.mu.Unlock()
}

// Snapshot returns the job's current state, latest progress, result and
// error. The analysis is only non-nil once state is JobDone.
func (j *ParseJob) Snapshot() (JobState, models.ProgressEvent, *models.Analysis, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state, j.progress, j.analysis, j.err
}

// Cancel requests cooperative cancellation; the worker notices at the next
// chunk boundary.
func (j *ParseJob) Cancel() {
	j.cancel()
}

// JobManager runs parse jobs, one worker goroutine each, and persists
// completed analyses.
type JobManager struct {
	storage    models.Storage
	onComplete func(*models.Analysis)

	mu   sync.Mutex
	jobs map[string]*ParseJob
}

// NewJobManager creates a manager. onComplete, when non-nil, is invoked
// after a completed analysis is persisted (used for the analytics sink);
// it runs on the worker goroutine.
func NewJobManager(storage models.Storage, onComplete func(*models.Analysis)) *JobManager {
	return &JobManager{
		storage:    storage,
		onComplete: onComplete,
		jobs:       make(map[string]*ParseJob),
	}
}

// Get returns a tracked job by id.
func (m *JobManager) Get(id string) (*ParseJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	return j, ok
}

// Remove drops a job from tracking. Used when its analysis is deleted so
// stale job state stops shadowing storage.
func (m *JobManager) Remove(id string) {
	m.mu.Lock()
	delete(m.jobs, id)
	m.mu.Unlock()
}

// Start launches a parse job for an uploaded file and returns immediately.
// The file kind is detected from content: 3MF packages are zip containers,
// everything else is treated as plain G-code text.
func (m *JobManager) Start(fileName string, data []byte) *ParseJob {
	kind := "gcode"
	if Is3MF(data) {
		kind = "3mf"
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &ParseJob{
		ID:         uuid.New().String(),
		FileName:   fileName,
		SourceKind: kind,
		cancel:     cancel,
		state:      JobRunning,
	}
	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	// Progress flows worker -> monitor over a buffered channel; the
	// worker never blocks on it, events are advisory and droppable.
	progressCh := make(chan models.ProgressEvent, 8)
	go func() {
		for ev := range progressCh {
			job.setProgress(ev)
		}
	}()

	go m.run(ctx, job, data, progressCh)
	return job
}

func (m *JobManager) run(ctx context.Context, job *ParseJob, data []byte, progressCh chan models.ProgressEvent) {
	defer close(progressCh)

	opts := ParseOptions{
		Progress: func(ev models.ProgressEvent) {
			select {
			case progressCh <- ev:
			default:
			}
		},
	}

	var stats *models.GcodeStats
	var diags []models.Diagnostic
	var err error
	if job.SourceKind == "3mf" {
		stats, diags, err = Parse3MF(ctx, data, opts)
	} else {
		reader := BytesLineReader(data)
		stats, diags, err = ParseGcode(ctx, reader, opts)
	}

	job.mu.Lock()
	defer job.mu.Unlock()

	if err != nil {
		if errors.Is(err, ErrCancelled) {
			job.state = JobCancelled
			log.Printf("Parse job %s cancelled", job.ID)
		} else {
			job.state = JobFailed
			job.err = err
			log.Printf("Parse job %s failed: %v", job.ID, err)
		}
		return
	}

	analysis := &models.Analysis{
		ID:          job.ID,
		FileName:    job.FileName,
		SourceKind:  job.SourceKind,
		Stats:       stats,
		Diagnostics: diags,
		CreatedAt:   time.Now(),
	}
	if err := m.storage.SaveAnalysis(analysis); err != nil {
		job.state = JobFailed
		job.err = err
		log.Printf("Parse job %s: failed to persist analysis: %v", job.ID, err)
		return
	}

	job.state = JobDone
	job.analysis = analysis
	log.Printf("Parse job %s done: %d layers, %d colors, %d tool changes (%.1fms)",
		job.ID, stats.TotalLayers, len(stats.Colors), len(stats.ToolChanges), stats.ParseTime)

	if m.onComplete != nil {
		m.onComplete(analysis)
	}
}

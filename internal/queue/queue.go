// Package queue runs background work for the verification pipeline:
// notification delivery, risk cache refreshes and anomaly scans that
// must not block request handlers.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobType identifies the handler a job is dispatched to.
type JobType string

const (
	JobTypeSendNotification JobType = "send_notification"
	JobTypeRefreshRiskCache JobType = "refresh_risk_cache"
	JobTypeAnomalyScan      JobType = "anomaly_scan"
)

// JobStatus tracks a job through its lifecycle.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job is a persisted unit of background work.
type Job struct {
	ID         uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	Type       JobType         `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Status     JobStatus       `json:"status" gorm:"index"`
	RetryCount int             `json:"retry_count" gorm:"default:0"`
	MaxRetries int             `json:"max_retries" gorm:"default:3"`
	NextRetry  *time.Time      `json:"next_retry,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// JobStore persists jobs. The GORM implementation backs production;
// tests use the in-memory one.
type JobStore interface {
	Save(job *Job) error
	// ClaimPending atomically moves the oldest runnable pending job to
	// processing and returns it, or nil when the queue is drained.
	ClaimPending() (*Job, error)
	Update(job *Job) error
}

// JobHandler processes one job. A returned error schedules a retry
// until MaxRetries is exhausted.
type JobHandler func(ctx context.Context, job Job) error

// Queue dispatches persisted jobs to registered handlers.
type Queue struct {
	store    JobStore
	handlers map[JobType]JobHandler

	mu      sync.Mutex
	wg      sync.WaitGroup
	quit    chan struct{}
	started bool
}

// NewQueue creates a queue over the given store.
func NewQueue(store JobStore) *Queue {
	return &Queue{
		store:    store,
		handlers: make(map[JobType]JobHandler),
		quit:     make(chan struct{}),
	}
}

// RegisterHandler registers the handler for a job type. Handlers must
// be registered before Start.
func (q *Queue) RegisterHandler(jobType JobType, handler JobHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = handler
}

// Enqueue persists a new pending job and returns its ID.
func (q *Queue) Enqueue(jobType JobType, payload interface{}) (uuid.UUID, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal job payload: %w", err)
	}

	job := &Job{
		ID:         uuid.New(),
		Type:       jobType,
		Payload:    payloadBytes,
		Status:     JobStatusPending,
		MaxRetries: 3,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := q.store.Save(job); err != nil {
		return uuid.Nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return job.ID, nil
}

// Start launches numWorkers polling goroutines.
func (q *Queue) Start(numWorkers int) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	log.Printf("Starting %d queue workers", numWorkers)
	for i := 0; i < numWorkers; i++ {
		q.wg.Add(1)
		go q.work()
	}
}

// Stop signals the workers and waits for in-flight jobs to finish.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	q.mu.Unlock()

	close(q.quit)
	q.wg.Wait()
}

func (q *Queue) work() {
	defer q.wg.Done()
	for {
		select {
		case <-q.quit:
			return
		default:
		}

		job, err := q.store.ClaimPending()
		if err != nil {
			log.Printf("Error claiming job from queue: %v", err)
			q.sleep(time.Second)
			continue
		}
		if job == nil {
			q.sleep(250 * time.Millisecond)
			continue
		}
		q.runJob(job)
	}
}

// sleep waits for d but returns early on shutdown.
func (q *Queue) sleep(d time.Duration) {
	select {
	case <-q.quit:
	case <-time.After(d):
	}
}

func (q *Queue) runJob(job *Job) {
	q.mu.Lock()
	handler, ok := q.handlers[job.Type]
	q.mu.Unlock()
	if !ok {
		log.Printf("No handler registered for job type %s", job.Type)
		job.Status = JobStatusFailed
		job.Error = "no handler registered"
		job.UpdatedAt = time.Now()
		if err := q.store.Update(job); err != nil {
			log.Printf("Failed to update job %s: %v", job.ID, err)
		}
		return
	}

	if err := handler(context.Background(), *job); err != nil {
		q.handleFailure(job, err)
		return
	}

	job.Status = JobStatusCompleted
	job.Error = ""
	job.UpdatedAt = time.Now()
	if err := q.store.Update(job); err != nil {
		log.Printf("Failed to mark job %s completed: %v", job.ID, err)
	}
}

// handleFailure schedules a retry with exponential backoff, or marks
// the job failed once the retry budget is spent.
func (q *Queue) handleFailure(job *Job, jobErr error) {
	job.RetryCount++
	job.Error = jobErr.Error()
	job.UpdatedAt = time.Now()

	if job.RetryCount >= job.MaxRetries {
		log.Printf("Job %s failed permanently after %d attempts: %v", job.ID, job.RetryCount, jobErr)
		job.Status = JobStatusFailed
		job.NextRetry = nil
	} else {
		backoff := time.Duration(1<<uint(job.RetryCount)) * time.Minute
		next := time.Now().Add(backoff)
		log.Printf("Job %s failed (attempt %d/%d), retrying at %s: %v",
			job.ID, job.RetryCount, job.MaxRetries, next.Format(time.RFC3339), jobErr)
		job.Status = JobStatusPending
		job.NextRetry = &next
	}

	if err := q.store.Update(job); err != nil {
		log.Printf("Failed to update job %s after failure: %v", job.ID, err)
	}
}

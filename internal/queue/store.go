package queue

import (
	"errors"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/google/uuid"
)

// GormJobStore persists jobs in the jobs table.
type GormJobStore struct {
	db *gorm.DB
}

// NewGormJobStore wraps a database handle.
func NewGormJobStore(db *gorm.DB) *GormJobStore {
	return &GormJobStore{db: db}
}

func (s *GormJobStore) Save(job *Job) error {
	return s.db.Create(job).Error
}

// ClaimPending selects the oldest runnable pending job and flips it to
// processing inside one transaction so concurrent workers never claim
// the same job twice.
func (s *GormJobStore) ClaimPending() (*Job, error) {
	var job Job
	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.
			Where("status = ? AND (next_retry IS NULL OR next_retry <= ?)", JobStatusPending, time.Now()).
			Order("created_at asc").
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			First(&job).Error
		if err != nil {
			return err
		}
		return tx.Model(&Job{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
			"status":     JobStatusProcessing,
			"updated_at": time.Now(),
		}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	job.Status = JobStatusProcessing
	return &job, nil
}

func (s *GormJobStore) Update(job *Job) error {
	return s.db.Model(&Job{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
		"status":      job.Status,
		"retry_count": job.RetryCount,
		"next_retry":  job.NextRetry,
		"error":       job.Error,
		"updated_at":  job.UpdatedAt,
	}).Error
}

// MemoryJobStore backs the queue in unit tests.
type MemoryJobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]Job
}

// NewMemoryJobStore creates an empty store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[uuid.UUID]Job)}
}

func (s *MemoryJobStore) Save(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *MemoryJobStore) ClaimPending() (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []Job
	now := time.Now()
	for _, j := range s.jobs {
		if j.Status == JobStatusPending && (j.NextRetry == nil || !j.NextRetry.After(now)) {
			pending = append(pending, j)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	job := pending[0]
	job.Status = JobStatusProcessing
	s.jobs[job.ID] = job
	return &job, nil
}

func (s *MemoryJobStore) Update(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

// Get returns a stored job for assertions.
func (s *MemoryJobStore) Get(id uuid.UUID) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	return j, ok
}

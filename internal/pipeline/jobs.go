package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of a background job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusExtracting JobStatus = "extracting"
	StatusPacking    JobStatus = "packing"
	StatusEmbedding  JobStatus = "embedding"
	StatusStoring    JobStatus = "storing"
	StatusGenerating JobStatus = "generating"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusDupSkipped JobStatus = "duplicate_skipped"
)

// JobKind selects what a worker does with a job.
type JobKind string

const (
	KindIngest   JobKind = "ingest"
	KindGenerate JobKind = "generate"
	KindEdit     JobKind = "edit"
)

// Job tracks the state of a single ingest, generate or edit run.
type Job struct {
	mu sync.Mutex

	ID         string  `json:"job_id"`
	Kind       JobKind `json:"kind"`
	BookID     string  `json:"book_id"`
	DocumentID string  `json:"document_id,omitempty"`
	CardSetID  string  `json:"card_set_id,omitempty"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	// Ingest input: Source is the upload filename or the video URL.
	SourceKind string `json:"source_kind,omitempty"`
	Source     string `json:"source,omitempty"`

	// Generate and edit input.
	Count       int    `json:"count,omitempty"`
	Instruction string `json:"-"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	DuplicateOf string    `json:"duplicate_of,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	errors   []string
}

// Progress tracks processing progress.
type Progress struct {
	Fragments      int      `json:"fragments"`
	TotalBlocks    int      `json:"total_blocks"`
	BlocksEmbedded int      `json:"blocks_embedded"`
	Cards          int      `json:"cards"`
	Errors         []string `json:"errors"`
}

// NewJob returns a queued job with a fresh ID.
func NewJob(kind JobKind, bookID string) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		BookID:    bookID,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetPacked records fragment and block counts after packing.
func (j *Job) SetPacked(fragments, blocks int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Fragments = fragments
	j.Progress.TotalBlocks = blocks
	j.UpdatedAt = time.Now()
}

// IncrBlocksEmbedded atomically increments the embedded block count.
func (j *Job) IncrBlocksEmbedded() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.BlocksEmbedded++
	j.UpdatedAt = time.Now()
}

// SetCards records how many cards a generate or edit job stored.
func (j *Job) SetCards(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Cards = n
	j.UpdatedAt = time.Now()
}

// SetContentHash records the hash of the extracted content.
func (j *Job) SetContentHash(hash string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ContentHash = hash
	j.UpdatedAt = time.Now()
}

// MarkDuplicate records the content hash and the document it duplicates.
func (j *Job) MarkDuplicate(hash, existingID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ContentHash = hash
	j.DuplicateOf = existingID
	j.Status = StatusDupSkipped
	j.Phase = "dedup"
	j.UpdatedAt = time.Now()
}

// SetFileData sets the raw file bytes for processing.
func (j *Job) SetFileData(data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// releaseFileData drops the upload once it has been parsed.
func (j *Job) releaseFileData() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = nil
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	Kind        JobKind   `json:"kind"`
	BookID      string    `json:"book_id"`
	DocumentID  string    `json:"document_id,omitempty"`
	CardSetID   string    `json:"card_set_id,omitempty"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	SourceKind  string    `json:"source_kind,omitempty"`
	Source      string    `json:"source,omitempty"`
	ContentHash string    `json:"content_hash,omitempty"`
	DuplicateOf string    `json:"duplicate_of,omitempty"`
	Progress    Progress  `json:"progress"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.Progress.Errors))
	copy(errs, j.Progress.Errors)
	p := j.Progress
	p.Errors = errs
	return JobSnapshot{
		ID:          j.ID,
		Kind:        j.Kind,
		BookID:      j.BookID,
		DocumentID:  j.DocumentID,
		CardSetID:   j.CardSetID,
		Status:      j.Status,
		Phase:       j.Phase,
		SourceKind:  j.SourceKind,
		Source:      j.Source,
		ContentHash: j.ContentHash,
		DuplicateOf: j.DuplicateOf,
		Progress:    p,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}

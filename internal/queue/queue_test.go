package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiolevel/internal/models"
	"audiolevel/internal/store"
)

// fakeStore is an in-memory store.Store used to exercise the queue
// without a real Redis server, in the teacher's fake-over-mock style for
// the repository layer.
type fakeStore struct {
	mu      sync.Mutex
	jobs    map[string]*models.Job
	waiting []string // ids in priority-then-FIFO order
	counts  store.QueueCounts
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: make(map[string]*models.Job)}
}

func (f *fakeStore) SaveJob(ctx context.Context, job *models.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *job
	f.jobs[job.JobID] = &cp
	return nil
}

func (f *fakeStore) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return nil, assert.AnError
	}
	cp := *j
	return &cp, nil
}

func (f *fakeStore) DeleteJob(ctx context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.jobs, jobID)
	return nil
}

func (f *fakeStore) Enqueue(ctx context.Context, jobID string, priority models.Priority) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inserted := false
	for i, id := range f.waiting {
		if f.jobs[id].Priority > priority {
			f.waiting = append(f.waiting[:i], append([]string{jobID}, f.waiting[i:]...)...)
			inserted = true
			break
		}
	}
	if !inserted {
		f.waiting = append(f.waiting, jobID)
	}
	return nil
}

func (f *fakeStore) Dequeue(ctx context.Context, timeout time.Duration) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.waiting) == 0 {
		return "", false, nil
	}
	id := f.waiting[0]
	f.waiting = f.waiting[1:]
	return id, true, nil
}

func (f *fakeStore) Requeue(ctx context.Context, jobID string, priority models.Priority, delay time.Duration) error {
	return f.Enqueue(ctx, jobID, priority)
}

func (f *fakeStore) AdjustCount(ctx context.Context, state models.JobState, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch state {
	case models.StateWaiting:
		f.counts.Waiting += delta
	case models.StateActive:
		f.counts.Active += delta
	case models.StateCompleted:
		f.counts.Completed += delta
	case models.StateFailed:
		f.counts.Failed += delta
	case models.StateDelayed:
		f.counts.Delayed += delta
	}
	return nil
}

func (f *fakeStore) Counts(ctx context.Context) (store.QueueCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts, nil
}

func (f *fakeStore) CheckRateLimit(ctx context.Context, clientID string, windowMs, maxRequests int) (bool, int, error) {
	return true, 0, nil
}

func (f *fakeStore) PeekRateLimit(ctx context.Context, clientID string, windowMs int) (int, error) {
	return 0, nil
}

func (f *fakeStore) IncrCounter(ctx context.Context, name string) (int64, error) { return 1, nil }
func (f *fakeStore) Ping(ctx context.Context) error                              { return nil }
func (f *fakeStore) Close() error                                                { return nil }

type fakeProcessor struct {
	result *models.JobResult
	err    error
}

func (p *fakeProcessor) Process(ctx context.Context, job *models.Job, report ProgressFunc) (*models.JobResult, error) {
	report(50, "processing")
	return p.result, p.err
}

func TestEnqueue_PriorityOrdering(t *testing.T) {
	s := newFakeStore()
	q := New(s, &fakeProcessor{result: &models.JobResult{}}, 1, 60)

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, &models.Job{JobID: "low", Priority: models.PriorityLow}))
	require.NoError(t, q.Enqueue(ctx, &models.Job{JobID: "high", Priority: models.PriorityHigh}))
	require.NoError(t, q.Enqueue(ctx, &models.Job{JobID: "normal", Priority: models.PriorityNormal}))

	assert.Equal(t, []string{"high", "normal", "low"}, s.waiting)
}

func TestHealth_StatusThresholds(t *testing.T) {
	s := newFakeStore()
	q := New(s, &fakeProcessor{}, 2, 60)

	s.counts.Waiting = 5
	health, err := q.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusNormal, health.Status)
	assert.True(t, health.AdmitsPriority(models.PriorityLowest))

	s.counts.Waiting = 15
	health, err = q.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusWarning, health.Status)
	assert.True(t, health.AdmitsPriority(models.PriorityNormal))
	assert.False(t, health.AdmitsPriority(models.PriorityLow))

	s.counts.Waiting = 30
	health, err = q.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusWarning, health.Status)
	assert.True(t, health.AdmitsPriority(models.PriorityHigh))
	assert.False(t, health.AdmitsPriority(models.PriorityNormal))

	s.counts.Waiting = 60
	health, err = q.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusOverloaded, health.Status)
	assert.False(t, health.AdmitsPriority(models.PriorityHigh))
}

func TestEnqueue_SetsWaitingStateAndCount(t *testing.T) {
	s := newFakeStore()
	q := New(s, &fakeProcessor{}, 1, 60)

	job := &models.Job{JobID: "job-1", Priority: models.PriorityNormal}
	require.NoError(t, q.Enqueue(context.Background(), job))

	saved, err := s.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.StateWaiting, saved.State)
	assert.EqualValues(t, 1, s.counts.Waiting)
}

package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tendhq/tend/internal/db"
)

type fakeRepo struct {
	mu         sync.Mutex
	candidates []*db.NudgeCandidate
	nudged     map[uuid.UUID]time.Time
	listErr    error
	listCalls  int
	lastCutoff time.Time
	lastLimit  int
}

func newFakeRepo(candidates ...*db.NudgeCandidate) *fakeRepo {
	return &fakeRepo{
		candidates: candidates,
		nudged:     make(map[uuid.UUID]time.Time),
	}
}

func (r *fakeRepo) ListNudgeCandidates(ctx context.Context, deliveredBefore time.Time, limit int) ([]*db.NudgeCandidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	r.lastCutoff = deliveredBefore
	r.lastLimit = limit
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.candidates, nil
}

func (r *fakeRepo) MarkNudged(ctx context.Context, id uuid.UUID, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nudged[id] = now
	return nil
}

type fakeSender struct {
	mu       sync.Mutex
	sent     []uuid.UUID
	failIDs  map[uuid.UUID]bool
	failWith error
}

func (s *fakeSender) Send(ctx context.Context, c *db.NudgeCandidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIDs[c.ID] {
		if s.failWith != nil {
			return s.failWith
		}
		return errors.New("smtp unavailable")
	}
	s.sent = append(s.sent, c.ID)
	return nil
}

func candidate(email string) *db.NudgeCandidate {
	delivered := time.Date(2025, 6, 2, 6, 0, 0, 0, time.UTC)
	return &db.NudgeCandidate{
		Reminder: db.Reminder{
			ID:           uuid.New(),
			OwnerID:      uuid.New(),
			Priority:     db.PriorityNormal,
			ScheduledFor: delivered.Add(-time.Hour),
			DeliveredAt:  &delivered,
		},
		OwnerEmail: email,
	}
}

func testWorker(repo Repository, sender Sender) *Worker {
	w := New(repo, sender, Config{
		PollInterval: time.Minute,
		BatchSize:    25,
		NudgeAfter:   4 * time.Hour,
	}, zap.NewNop())
	w.now = func() time.Time { return time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC) }
	return w
}

func TestProcessBatch_SendsAndMarks(t *testing.T) {
	c1 := candidate("a@example.com")
	c2 := candidate("b@example.com")
	repo := newFakeRepo(c1, c2)
	sender := &fakeSender{}

	w := testWorker(repo, sender)
	w.processBatch(context.Background())

	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 nudges sent, got %d", len(sender.sent))
	}
	if _, ok := repo.nudged[c1.ID]; !ok {
		t.Error("first candidate should be marked nudged")
	}
	if _, ok := repo.nudged[c2.ID]; !ok {
		t.Error("second candidate should be marked nudged")
	}
}

func TestProcessBatch_CutoffAndLimit(t *testing.T) {
	repo := newFakeRepo()
	w := testWorker(repo, &fakeSender{})

	w.processBatch(context.Background())

	wantCutoff := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	if !repo.lastCutoff.Equal(wantCutoff) {
		t.Errorf("expected cutoff %v, got %v", wantCutoff, repo.lastCutoff)
	}
	if repo.lastLimit != 25 {
		t.Errorf("expected batch size 25, got %d", repo.lastLimit)
	}
}

func TestProcessBatch_SendFailureLeavesCandidate(t *testing.T) {
	ok := candidate("ok@example.com")
	bad := candidate("bad@example.com")
	repo := newFakeRepo(bad, ok)
	sender := &fakeSender{failIDs: map[uuid.UUID]bool{bad.ID: true}}

	w := testWorker(repo, sender)
	w.processBatch(context.Background())

	if _, marked := repo.nudged[bad.ID]; marked {
		t.Error("failed send must not mark the reminder nudged")
	}
	// One failure does not stop the rest of the batch.
	if _, marked := repo.nudged[ok.ID]; !marked {
		t.Error("remaining candidates should still be processed")
	}
}

func TestProcessBatch_ListErrorSendsNothing(t *testing.T) {
	repo := newFakeRepo(candidate("a@example.com"))
	repo.listErr = errors.New("connection refused")
	sender := &fakeSender{}

	w := testWorker(repo, sender)
	w.processBatch(context.Background())

	if len(sender.sent) != 0 {
		t.Errorf("expected no sends after list failure, got %d", len(sender.sent))
	}
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	repo := newFakeRepo()
	w := New(repo, &fakeSender{}, Config{PollInterval: 5 * time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}

	repo.mu.Lock()
	calls := repo.listCalls
	repo.mu.Unlock()
	if calls == 0 {
		t.Error("expected at least one poll before cancellation")
	}
}

package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"polling-engine/internal/domain/poll"
	"polling-engine/internal/lifecycle"
	"polling-engine/internal/notify"
	"polling-engine/internal/repository/memory"
)

func seedPoll(t *testing.T, store *memory.Store, id string, status poll.Status, endsAt time.Time) {
	t.Helper()
	p := &poll.Poll{ID: id, Title: "Offsite venue", Status: status, StartsAt: endsAt.Add(-time.Hour), EndsAt: endsAt}
	opts := []poll.Option{{ID: id + "-a", Title: "A"}, {ID: id + "-b", Title: "B"}, {ID: id + "-c", Title: "C"}}
	if err := store.Create(context.Background(), p, opts); err != nil {
		t.Fatalf("create %s: %v", id, err)
	}
}

func vote(t *testing.T, store *memory.Store, pollID, optionID string, users ...string) {
	t.Helper()
	for _, u := range users {
		if err := store.CastVote(context.Background(), pollID, optionID, u, time.Now()); err != nil {
			t.Fatalf("vote %s: %v", u, err)
		}
	}
}

func TestTickEndsAndClosesOverduePoll(t *testing.T) {
	store := memory.NewStore()
	hub := notify.NewHub(nil)
	sub := hub.Subscribe("", 16)
	defer sub.Close()

	seedPoll(t, store, "p1", poll.StatusActive, time.Now().Add(-time.Minute))
	vote(t, store, "p1", "p1-a", "u1", "u2")
	vote(t, store, "p1", "p1-b", "u3", "u4")
	vote(t, store, "p1", "p1-c", "u5")

	tr := lifecycle.NewTransitioner(store, store, hub, time.Second, nil)
	s := NewScheduler(store, tr, Config{Interval: time.Hour}, nil)

	report, err := s.Tick(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if report.Due != 1 || report.Applied != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}

	p, _ := store.GetByID(context.Background(), "p1")
	if p.Status != poll.StatusClosed {
		t.Fatalf("expected closed, got %s", p.Status)
	}
	if len(p.Winners) != 2 || p.Winners[0] != "p1-a" || p.Winners[1] != "p1-b" {
		t.Fatalf("expected tie between a and b, got %v", p.Winners)
	}
	if p.TotalVoters != 5 {
		t.Fatalf("expected 5 voters, got %d", p.TotalVoters)
	}

	closed := 0
	for len(sub.C) > 0 {
		if ev := <-sub.C; ev.Status == poll.StatusClosed {
			closed++
		}
	}
	if closed != 1 {
		t.Fatalf("expected one closed notification, got %d", closed)
	}

	report, err = s.Tick(context.Background())
	if err != nil || report.Due != 0 {
		t.Fatalf("expected nothing due on second tick, got %+v err=%v", report, err)
	}
}

type failingStore struct {
	*memory.Store
	failID string
}

func (f *failingStore) UpdateStatus(ctx context.Context, id string, expected, next poll.Status) (bool, error) {
	if id == f.failID {
		return false, poll.ErrStoreUnavailable
	}
	return f.Store.UpdateStatus(ctx, id, expected, next)
}

func TestTickIsolatesPollFailures(t *testing.T) {
	mem := memory.NewStore()
	store := &failingStore{Store: mem, failID: "broken"}
	seedPoll(t, mem, "broken", poll.StatusActive, time.Now().Add(-time.Minute))
	seedPoll(t, mem, "healthy", poll.StatusActive, time.Now().Add(-time.Minute))

	tr := lifecycle.NewTransitioner(store, mem, nil, time.Second, nil)
	s := NewScheduler(store, tr, Config{Interval: time.Hour, Concurrency: 2}, nil)

	report, err := s.Tick(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if report.Failed != 1 || report.Applied != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	broken, _ := mem.GetByID(context.Background(), "broken")
	healthy, _ := mem.GetByID(context.Background(), "healthy")
	if broken.Status != poll.StatusActive {
		t.Fatalf("expected broken poll untouched, got %s", broken.Status)
	}
	if healthy.Status != poll.StatusClosed {
		t.Fatalf("expected healthy poll closed, got %s", healthy.Status)
	}
}

type blockingFinder struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingFinder) FindDueForTransition(ctx context.Context, now time.Time) ([]poll.Poll, error) {
	close(b.entered)
	<-b.release
	return nil, nil
}

func TestOverlappingTickIsRefused(t *testing.T) {
	finder := &blockingFinder{entered: make(chan struct{}), release: make(chan struct{})}
	store := memory.NewStore()
	s := NewScheduler(finder, lifecycle.NewTransitioner(store, store, nil, time.Second, nil), Config{Interval: time.Hour}, nil)

	first := make(chan error, 1)
	go func() {
		_, err := s.Tick(context.Background())
		first <- err
	}()
	<-finder.entered

	if _, err := s.Tick(context.Background()); !errors.Is(err, ErrTickInProgress) {
		t.Fatalf("expected tick in progress, got %v", err)
	}

	close(finder.release)
	if err := <-first; err != nil {
		t.Fatalf("first tick: %v", err)
	}
}

type brokenFinder struct{}

func (brokenFinder) FindDueForTransition(ctx context.Context, now time.Time) ([]poll.Poll, error) {
	return nil, poll.ErrStoreUnavailable
}

func TestTickReportsQueryFailure(t *testing.T) {
	store := memory.NewStore()
	s := NewScheduler(brokenFinder{}, lifecycle.NewTransitioner(store, store, nil, time.Second, nil), Config{}, nil)
	if _, err := s.Tick(context.Background()); !errors.Is(err, poll.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
}

func TestStartAndStop(t *testing.T) {
	store := memory.NewStore()
	seedPoll(t, store, "p1", poll.StatusActive, time.Now().Add(-time.Minute))

	tr := lifecycle.NewTransitioner(store, store, nil, time.Second, nil)
	s := NewScheduler(store, tr, Config{Interval: 10 * time.Millisecond}, nil)

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected already started, got %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p, _ := store.GetByID(ctx, "p1"); p.Status == poll.StatusClosed {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if p, _ := store.GetByID(ctx, "p1"); p.Status != poll.StatusClosed {
		t.Fatalf("expected poll closed by the loop, got %s", p.Status)
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

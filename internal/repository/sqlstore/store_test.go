package sqlstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/jmoiron/sqlx"

	"polling-engine/internal/domain/poll"
)

var base = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	s := New(db)
	s.now = func() time.Time { return base }
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func seed(t *testing.T, s *Store, id string, status poll.Status, startsAt, endsAt time.Time) {
	t.Helper()
	p := &poll.Poll{ID: id, Title: "Lunch", OwnerID: "owner", Status: status, StartsAt: startsAt, EndsAt: endsAt}
	opts := []poll.Option{{ID: id + "-a", Title: "A"}, {ID: id + "-b", Title: "B"}, {ID: id + "-c", Title: "C"}}
	if err := s.Create(context.Background(), p, opts); err != nil {
		t.Fatalf("create %s: %v", id, err)
	}
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, "p1", poll.StatusPending, base, base.Add(time.Hour))

	p, err := s.GetByID(context.Background(), "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Status != poll.StatusPending || !p.StartsAt.Equal(base) || len(p.Winners) != 0 {
		t.Fatalf("unexpected poll %+v", p)
	}

	opts, err := s.ListByPoll(context.Background(), "p1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(opts) != 3 || opts[0].ID != "p1-a" || opts[2].ID != "p1-c" {
		t.Fatalf("unexpected options %+v", opts)
	}

	if _, err := s.GetByID(context.Background(), "missing"); !errors.Is(err, poll.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStatusGuard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s, "p1", poll.StatusPending, base, base.Add(time.Hour))

	ok, err := s.UpdateStatus(ctx, "p1", poll.StatusActive, poll.StatusEnded)
	if err != nil || ok {
		t.Fatalf("expected guard miss, got ok=%v err=%v", ok, err)
	}
	ok, err = s.UpdateStatus(ctx, "p1", poll.StatusPending, poll.StatusActive)
	if err != nil || !ok {
		t.Fatalf("expected guard hit, got ok=%v err=%v", ok, err)
	}
}

func TestCloseWritesWinnersOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s, "p1", poll.StatusEnded, base.Add(-time.Hour), base.Add(-time.Minute))

	var hits atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.UpdateStatusAndWinners(ctx, "p1", poll.StatusEnded, poll.StatusClosed, []string{"p1-a", "p1-b"}, 5)
			if err != nil {
				t.Errorf("close: %v", err)
			}
			if ok {
				hits.Add(1)
			}
		}()
	}
	wg.Wait()

	if hits.Load() != 1 {
		t.Fatalf("expected exactly one close, got %d", hits.Load())
	}
	p, _ := s.GetByID(ctx, "p1")
	if p.Status != poll.StatusClosed || p.TotalVoters != 5 || len(p.Winners) != 2 || p.Winners[1] != "p1-b" {
		t.Fatalf("unexpected closed poll %+v", p)
	}
}

func TestCastVoteSwitchesOption(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s, "p1", poll.StatusActive, base.Add(-time.Hour), base.Add(time.Hour))

	for _, step := range []struct{ option, user string }{
		{"p1-a", "alice"}, {"p1-a", "bob"}, {"p1-b", "alice"}, {"p1-b", "alice"},
	} {
		if err := s.CastVote(ctx, "p1", step.option, step.user, base); err != nil {
			t.Fatalf("vote %s for %s: %v", step.user, step.option, err)
		}
	}

	opts, _ := s.ListByPoll(ctx, "p1")
	if len(opts[0].Voters) != 1 || opts[0].Voters[0].UserID != "bob" {
		t.Fatalf("expected only bob on A, got %+v", opts[0].Voters)
	}
	if len(opts[1].Voters) != 1 || opts[1].Voters[0].UserID != "alice" {
		t.Fatalf("expected only alice on B, got %+v", opts[1].Voters)
	}

	if err := s.CancelVote(ctx, "p1", "bob"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	opts, _ = s.ListByPoll(ctx, "p1")
	if len(opts[0].Voters) != 0 {
		t.Fatalf("expected bob's vote removed, got %+v", opts[0].Voters)
	}

	if err := s.CastVote(ctx, "p1", "other-x", "carol", base); !errors.Is(err, poll.ErrOptionNotInPoll) {
		t.Fatalf("expected option not in poll, got %v", err)
	}
	if err := s.CastVote(ctx, "missing", "p1-a", "carol", base); !errors.Is(err, poll.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestVoteWritesRefusedOnceClosed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s, "p1", poll.StatusActive, base.Add(-time.Hour), base.Add(time.Hour))

	if err := s.CastVote(ctx, "p1", "p1-a", "alice", base); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if ok, err := s.UpdateStatus(ctx, "p1", poll.StatusActive, poll.StatusEnded); err != nil || !ok {
		t.Fatalf("end: ok=%v err=%v", ok, err)
	}

	if err := s.CastVote(ctx, "p1", "p1-b", "bob", base); !errors.Is(err, poll.ErrNotActive) {
		t.Fatalf("vote on ended poll: expected not active, got %v", err)
	}
	if ok, err := s.UpdateStatusAndWinners(ctx, "p1", poll.StatusEnded, poll.StatusClosed, []string{"p1-a"}, 1); err != nil || !ok {
		t.Fatalf("close: ok=%v err=%v", ok, err)
	}

	if err := s.CastVote(ctx, "p1", "p1-b", "bob", base); !errors.Is(err, poll.ErrNotActive) {
		t.Fatalf("vote on closed poll: expected not active, got %v", err)
	}
	if err := s.CancelVote(ctx, "p1", "alice"); !errors.Is(err, poll.ErrNotActive) {
		t.Fatalf("cancel on closed poll: expected not active, got %v", err)
	}
	if err := s.RefreshVoterTotal(ctx, "p1", 7); !errors.Is(err, poll.ErrNotActive) {
		t.Fatalf("refresh on closed poll: expected not active, got %v", err)
	}

	opts, _ := s.ListByPoll(ctx, "p1")
	if len(opts[0].Voters) != 1 || len(opts[1].Voters) != 0 {
		t.Fatalf("closed poll voters changed: %+v", opts)
	}
	p, _ := s.GetByID(ctx, "p1")
	if p.TotalVoters != 1 || len(p.Winners) != 1 || p.Winners[0] != "p1-a" {
		t.Fatalf("closed poll changed: %+v", p)
	}
	if err := s.CancelVote(ctx, "missing", "alice"); !errors.Is(err, poll.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFindDueForTransition(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, "a-pending-due", poll.StatusPending, base, base.Add(time.Hour))
	seed(t, s, "b-pending-later", poll.StatusPending, base.Add(time.Minute), base.Add(time.Hour))
	seed(t, s, "c-active-due", poll.StatusActive, base.Add(-time.Hour), base)
	seed(t, s, "d-active-running", poll.StatusActive, base.Add(-time.Hour), base.Add(time.Hour))
	seed(t, s, "e-ended", poll.StatusEnded, base.Add(-time.Hour), base.Add(-time.Minute))
	seed(t, s, "f-closed", poll.StatusClosed, base.Add(-time.Hour), base.Add(-time.Minute))

	due, err := s.FindDueForTransition(context.Background(), base)
	if err != nil {
		t.Fatalf("find due: %v", err)
	}
	want := []string{"a-pending-due", "c-active-due", "e-ended"}
	if len(due) != len(want) {
		t.Fatalf("expected %v, got %+v", want, due)
	}
	for i, id := range want {
		if due[i].ID != id {
			t.Fatalf("expected %s at %d, got %s", id, i, due[i].ID)
		}
	}
}

func TestRefreshVoterTotal(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, "p1", poll.StatusActive, base.Add(-time.Hour), base.Add(time.Hour))

	if err := s.RefreshVoterTotal(context.Background(), "p1", 3); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	p, _ := s.GetByID(context.Background(), "p1")
	if p.TotalVoters != 3 {
		t.Fatalf("expected 3, got %d", p.TotalVoters)
	}
	if err := s.RefreshVoterTotal(context.Background(), "missing", 1); !errors.Is(err, poll.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

package vote

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"polling-engine/internal/domain/poll"
	"polling-engine/internal/notify"
	"polling-engine/internal/repository/memory"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (c *capturePublisher) Publish(ctx context.Context, ev notify.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func newActivePoll(t *testing.T, store *memory.Store, status poll.Status) {
	t.Helper()
	now := time.Now()
	p := &poll.Poll{ID: "p1", Title: "Team lunch", Status: status, StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour)}
	opts := []poll.Option{{ID: "pizza", Title: "Pizza"}, {ID: "sushi", Title: "Sushi"}}
	if err := store.Create(context.Background(), p, opts); err != nil {
		t.Fatalf("create: %v", err)
	}
}

func TestVoteChangeAndCancel(t *testing.T) {
	store := memory.NewStore()
	pub := &capturePublisher{}
	svc := NewService(store, store, pub, nil)
	ctx := context.Background()
	newActivePoll(t, store, poll.StatusActive)

	if err := svc.Vote(ctx, "p1", "pizza", "alice"); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if err := svc.Vote(ctx, "p1", "pizza", "bob"); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if err := svc.Vote(ctx, "p1", "sushi", "alice"); err != nil {
		t.Fatalf("change vote: %v", err)
	}

	results, total, err := svc.Results(ctx, "p1")
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected total 2, got %d", total)
	}
	for _, r := range results {
		if r.Votes != 1 || r.Percentage != 50 {
			t.Fatalf("unexpected result %+v", r)
		}
		if r.Winner {
			t.Fatalf("winner flag must stay false until the poll closes")
		}
	}

	if err := svc.Cancel(ctx, "p1", "bob"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	p, _ := store.GetByID(ctx, "p1")
	if p.TotalVoters != 1 {
		t.Fatalf("expected cached total 1, got %d", p.TotalVoters)
	}
	if len(pub.events) != 4 || pub.events[3].Kind != notify.KindVotes || pub.events[3].TotalVoters != 1 {
		t.Fatalf("unexpected vote events %+v", pub.events)
	}
}

func TestVoteRejectedOutsideActiveWindow(t *testing.T) {
	for _, status := range []poll.Status{poll.StatusPending, poll.StatusEnded, poll.StatusClosed} {
		store := memory.NewStore()
		svc := NewService(store, store, nil, nil)
		newActivePoll(t, store, status)

		if err := svc.Vote(context.Background(), "p1", "pizza", "alice"); !errors.Is(err, poll.ErrNotActive) {
			t.Fatalf("status %s: expected not active, got %v", status, err)
		}
	}
}

func TestVoteRejectedAfterEndTime(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, store, nil, nil)
	newActivePoll(t, store, poll.StatusActive)
	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if err := svc.Vote(context.Background(), "p1", "pizza", "alice"); !errors.Is(err, poll.ErrNotActive) {
		t.Fatalf("expected not active past end time, got %v", err)
	}
}

func TestVoteUnknownOptionAndPoll(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, store, nil, nil)
	newActivePoll(t, store, poll.StatusActive)

	if err := svc.Vote(context.Background(), "p1", "tacos", "alice"); !errors.Is(err, poll.ErrOptionNotInPoll) {
		t.Fatalf("expected option not in poll, got %v", err)
	}
	if err := svc.Vote(context.Background(), "nope", "pizza", "alice"); !errors.Is(err, poll.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

// closingStore hands out the poll as it was first read and then closes it
// before the vote write reaches the store.
type closingStore struct {
	*memory.Store
	once sync.Once
}

func (c *closingStore) GetByID(ctx context.Context, id string) (*poll.Poll, error) {
	p, err := c.Store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.once.Do(func() {
		c.Store.UpdateStatus(ctx, id, poll.StatusActive, poll.StatusEnded)
		c.Store.UpdateStatusAndWinners(ctx, id, poll.StatusEnded, poll.StatusClosed, []string{"pizza"}, 1)
	})
	return p, nil
}

func TestVoteRefusedWhenPollClosesAfterCheck(t *testing.T) {
	mem := memory.NewStore()
	ctx := context.Background()
	newActivePoll(t, mem, poll.StatusActive)
	if err := mem.CastVote(ctx, "p1", "pizza", "alice", time.Now()); err != nil {
		t.Fatalf("seed vote: %v", err)
	}

	store := &closingStore{Store: mem}
	pub := &capturePublisher{}
	svc := NewService(store, store, pub, nil)

	if err := svc.Vote(ctx, "p1", "sushi", "bob"); !errors.Is(err, poll.ErrNotActive) {
		t.Fatalf("expected not active, got %v", err)
	}

	p, _ := mem.GetByID(ctx, "p1")
	if p.Status != poll.StatusClosed || p.TotalVoters != 1 || len(p.Winners) != 1 || p.Winners[0] != "pizza" {
		t.Fatalf("closed poll changed: %+v", p)
	}
	opts, _ := mem.ListByPoll(ctx, "p1")
	if len(opts[1].Voters) != 0 {
		t.Fatalf("late vote landed on closed poll: %+v", opts[1].Voters)
	}
	if len(pub.events) != 0 {
		t.Fatalf("expected no vote events, got %+v", pub.events)
	}
}

func TestResultsWinnersFollowStoredSet(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, store, nil, nil)
	ctx := context.Background()
	newActivePoll(t, store, poll.StatusActive)

	for _, v := range []struct{ option, user string }{{"pizza", "alice"}, {"sushi", "bob"}, {"sushi", "carol"}} {
		if err := svc.Vote(ctx, "p1", v.option, v.user); err != nil {
			t.Fatalf("vote: %v", err)
		}
	}
	store.SetStatus("p1", poll.StatusEnded)
	if ok, err := store.UpdateStatusAndWinners(ctx, "p1", poll.StatusEnded, poll.StatusClosed, []string{"pizza"}, 1); err != nil || !ok {
		t.Fatalf("close: ok=%v err=%v", ok, err)
	}

	results, _, err := svc.Results(ctx, "p1")
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	for _, r := range results {
		if want := r.OptionID == "pizza"; r.Winner != want {
			t.Fatalf("option %s: expected winner=%v, got %+v", r.OptionID, want, r)
		}
	}
}

type failingTotalStore struct {
	*memory.Store
}

func (f *failingTotalStore) RefreshVoterTotal(ctx context.Context, id string, total int64) error {
	return poll.ErrStoreUnavailable
}

func TestRefreshFailureLogsStructuredWarning(t *testing.T) {
	mem := memory.NewStore()
	newActivePoll(t, mem, poll.StatusActive)
	store := &failingTotalStore{Store: mem}
	var buf bytes.Buffer
	svc := NewService(store, store, nil, slog.New(slog.NewJSONHandler(&buf, nil)))

	if err := svc.Vote(context.Background(), "p1", "pizza", "alice"); err != nil {
		t.Fatalf("vote must succeed when only the cache refresh fails: %v", err)
	}
	for _, key := range []string{`"event":"vote_total_refresh_failed"`, `"module":"vote"`, `"layer":"application"`, `"poll_id":"p1"`} {
		if !strings.Contains(buf.String(), key) {
			t.Fatalf("warning missing %s: %s", key, buf.String())
		}
	}
}

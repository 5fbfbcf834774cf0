package mongostore

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"polling-engine/internal/domain/poll"
)

func TestStatusGuardFilter(t *testing.T) {
	f := statusGuardFilter("p1", poll.StatusEnded)
	if f["_id"] != "p1" || f["status"] != "ended" {
		t.Fatalf("unexpected guard filter %v", f)
	}
}

func TestDueFilterCoversEachStatus(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	clauses, ok := dueFilter(now)["$or"].(bson.A)
	if !ok || len(clauses) != 3 {
		t.Fatalf("expected three $or clauses, got %v", dueFilter(now))
	}

	pending := clauses[0].(bson.M)
	if pending["status"] != "pending" || pending["starts_at"].(bson.M)["$lte"] != now {
		t.Fatalf("unexpected pending clause %v", pending)
	}
	active := clauses[1].(bson.M)
	if active["status"] != "active" || active["ends_at"].(bson.M)["$lte"] != now {
		t.Fatalf("unexpected active clause %v", active)
	}
	if clauses[2].(bson.M)["status"] != "ended" {
		t.Fatalf("unexpected ended clause %v", clauses[2])
	}
}

func TestVoteFiltersRequireActivePoll(t *testing.T) {
	f := voteFilter("p1", "o1")
	if f["_id"] != "p1" || f["status"] != "active" || f["options.id"] != "o1" {
		t.Fatalf("unexpected vote filter %v", f)
	}
	if f := activeFilter("p1"); f["status"] != "active" || len(f) != 2 {
		t.Fatalf("unexpected active filter %v", f)
	}
}

func TestSwitchVotePipelineIsSingleStage(t *testing.T) {
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	p := switchVotePipeline("o1", "$alice", at)
	if len(p) != 1 || len(p[0]) != 1 || p[0][0].Key != "$set" {
		t.Fatalf("expected a single $set stage, got %v", p)
	}

	mapped := p[0][0].Value.(bson.M)["options"].(bson.M)["$map"].(bson.M)
	if mapped["input"] != "$options" || mapped["as"] != "o" {
		t.Fatalf("unexpected options map %v", mapped)
	}
	merge := mapped["in"].(bson.M)["$mergeObjects"].(bson.A)
	branch := merge[1].(bson.M)["voters"].(bson.M)["$cond"].(bson.A)
	eq := branch[0].(bson.M)["$eq"].(bson.A)
	if eq[0] != "$$o.id" || eq[1].(bson.M)["$literal"] != "o1" {
		t.Fatalf("unexpected option match %v", eq)
	}

	target := branch[1].(bson.M)["$cond"].(bson.A)
	in := target[0].(bson.M)["$in"].(bson.A)
	if in[0].(bson.M)["$literal"] != "$alice" {
		t.Fatalf("user id must be a literal, got %v", in[0])
	}
	appended := target[2].(bson.M)["$concatArrays"].(bson.A)[1].(bson.A)[0].(bson.M)
	if appended["user_id"].(bson.M)["$literal"] != "$alice" || appended["voted_at"] != at {
		t.Fatalf("unexpected appended voter %v", appended)
	}

	others := branch[2].(bson.M)["$filter"].(bson.M)
	ne := others["cond"].(bson.M)["$ne"].(bson.A)
	if ne[0] != "$$v.user_id" || ne[1].(bson.M)["$literal"] != "$alice" {
		t.Fatalf("other options must drop the user, got %v", others)
	}
}

func TestDocumentToDomainCopiesWinners(t *testing.T) {
	doc := pollDocument{ID: "p1", Status: "closed", WinnerIDs: []string{"a", "b"}, TotalVoters: 4}
	p := doc.toDomain()
	doc.WinnerIDs[0] = "z"
	if p.Status != poll.StatusClosed || p.Winners[0] != "a" || p.TotalVoters != 4 {
		t.Fatalf("unexpected poll %+v", p)
	}
}

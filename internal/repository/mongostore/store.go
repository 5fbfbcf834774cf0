// Package mongostore keeps each poll as one MongoDB document with its options
// and their voters embedded, so every status write is a single-document update.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"polling-engine/internal/domain/poll"
)

type voterDocument struct {
	UserID  string    `bson:"user_id"`
	VotedAt time.Time `bson:"voted_at"`
}

type optionDocument struct {
	ID       string          `bson:"id"`
	Title    string          `bson:"title"`
	ImageRef string          `bson:"image_ref"`
	Voters   []voterDocument `bson:"voters"`
}

type pollDocument struct {
	ID          string           `bson:"_id"`
	Title       string           `bson:"title"`
	Description string           `bson:"description"`
	OwnerID     string           `bson:"owner_id"`
	Status      string           `bson:"status"`
	StartsAt    time.Time        `bson:"starts_at"`
	EndsAt      time.Time        `bson:"ends_at"`
	TotalVoters int64            `bson:"total_voters"`
	WinnerIDs   []string         `bson:"winner_ids"`
	Options     []optionDocument `bson:"options"`
	CreatedAt   time.Time        `bson:"created_at"`
	UpdatedAt   time.Time        `bson:"updated_at"`
}

func (d pollDocument) toDomain() poll.Poll {
	winners := append([]string{}, d.WinnerIDs...)
	return poll.Poll{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		OwnerID:     d.OwnerID,
		Status:      poll.Status(d.Status),
		StartsAt:    d.StartsAt.UTC(),
		EndsAt:      d.EndsAt.UTC(),
		TotalVoters: d.TotalVoters,
		Winners:     winners,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

type Store struct {
	collection *mongo.Collection
	now        func() time.Time
}

func New(collection *mongo.Collection) *Store {
	return &Store{collection: collection, now: time.Now}
}

// EnsureIndexes creates the status index the scheduler query relies on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "starts_at", Value: 1}, {Key: "ends_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create poll indexes: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, p *poll.Poll, opts []poll.Option) error {
	now := s.now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	doc := pollDocument{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		OwnerID:     p.OwnerID,
		Status:      string(p.Status),
		StartsAt:    p.StartsAt.UTC(),
		EndsAt:      p.EndsAt.UTC(),
		TotalVoters: p.TotalVoters,
		WinnerIDs:   append([]string{}, p.Winners...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i := range opts {
		opts[i].PollID = p.ID
		doc.Options = append(doc.Options, optionDocument{
			ID:       opts[i].ID,
			Title:    opts[i].Title,
			ImageRef: opts[i].ImageRef,
			Voters:   []voterDocument{},
		})
	}

	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*poll.Poll, error) {
	doc, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	p := doc.toDomain()
	return &p, nil
}

func (s *Store) FindDueForTransition(ctx context.Context, now time.Time) ([]poll.Poll, error) {
	cur, err := s.collection.Find(ctx, dueFilter(now.UTC()),
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetProjection(bson.M{"options": 0}))
	if err != nil {
		return nil, unavailable(err)
	}
	defer cur.Close(ctx)

	res := []poll.Poll{}
	for cur.Next(ctx) {
		var doc pollDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, unavailable(err)
		}
		res = append(res, doc.toDomain())
	}
	if err := cur.Err(); err != nil {
		return nil, unavailable(err)
	}
	return res, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, expected, next poll.Status) (bool, error) {
	res, err := s.collection.UpdateOne(ctx, statusGuardFilter(id, expected), bson.M{
		"$set": bson.M{"status": string(next), "updated_at": s.now().UTC()},
	})
	if err != nil {
		return false, unavailable(err)
	}
	return res.MatchedCount == 1, nil
}

func (s *Store) UpdateStatusAndWinners(ctx context.Context, id string, expected, next poll.Status, winners []string, totalVoters int64) (bool, error) {
	if winners == nil {
		winners = []string{}
	}
	res, err := s.collection.UpdateOne(ctx, statusGuardFilter(id, expected), bson.M{
		"$set": bson.M{
			"status":       string(next),
			"winner_ids":   winners,
			"total_voters": totalVoters,
			"updated_at":   s.now().UTC(),
		},
	})
	if err != nil {
		return false, unavailable(err)
	}
	return res.MatchedCount == 1, nil
}

func (s *Store) RefreshVoterTotal(ctx context.Context, id string, total int64) error {
	res, err := s.collection.UpdateOne(ctx, activeFilter(id), bson.M{"$set": bson.M{"total_voters": total}})
	if err != nil {
		return unavailable(err)
	}
	if res.MatchedCount == 0 {
		return s.voteRejected(ctx, id, "")
	}
	return nil
}

func (s *Store) ListByPoll(ctx context.Context, pollID string) ([]poll.Option, error) {
	doc, err := s.find(ctx, pollID)
	if err != nil {
		return nil, err
	}
	res := make([]poll.Option, 0, len(doc.Options))
	for _, o := range doc.Options {
		opt := poll.Option{ID: o.ID, PollID: doc.ID, Title: o.Title, ImageRef: o.ImageRef}
		for _, v := range o.Voters {
			opt.Voters = append(opt.Voters, poll.Voter{UserID: v.UserID, VotedAt: v.VotedAt.UTC()})
		}
		res = append(res, opt)
	}
	return res, nil
}

// CastVote moves userID's vote to optionID with one pipeline update, so a
// reader sees either the old vote or the new one and never neither. The
// filter only matches an active poll that has the option.
func (s *Store) CastVote(ctx context.Context, pollID, optionID, userID string, at time.Time) error {
	res, err := s.collection.UpdateOne(ctx, voteFilter(pollID, optionID), switchVotePipeline(optionID, userID, at.UTC()))
	if err != nil {
		return unavailable(err)
	}
	if res.MatchedCount == 0 {
		return s.voteRejected(ctx, pollID, optionID)
	}
	return nil
}

func (s *Store) CancelVote(ctx context.Context, pollID, userID string) error {
	res, err := s.collection.UpdateOne(ctx, activeFilter(pollID), pullVoterUpdate(userID))
	if err != nil {
		return unavailable(err)
	}
	if res.MatchedCount == 0 {
		return s.voteRejected(ctx, pollID, "")
	}
	return nil
}

// voteRejected explains a vote write whose filter matched nothing.
func (s *Store) voteRejected(ctx context.Context, pollID, optionID string) error {
	doc, err := s.find(ctx, pollID)
	if err != nil {
		return err
	}
	if doc.Status != string(poll.StatusActive) {
		return poll.ErrNotActive
	}
	if optionID != "" {
		for _, o := range doc.Options {
			if o.ID == optionID {
				return fmt.Errorf("%w: poll %s", poll.ErrConcurrentModification, pollID)
			}
		}
		return poll.ErrOptionNotInPoll
	}
	return fmt.Errorf("%w: poll %s", poll.ErrConcurrentModification, pollID)
}

func (s *Store) find(ctx context.Context, id string) (*pollDocument, error) {
	var doc pollDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, poll.ErrNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return &doc, nil
}

func statusGuardFilter(id string, expected poll.Status) bson.M {
	return bson.M{"_id": id, "status": string(expected)}
}

func dueFilter(now time.Time) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"status": string(poll.StatusPending), "starts_at": bson.M{"$lte": now}},
		bson.M{"status": string(poll.StatusActive), "ends_at": bson.M{"$lte": now}},
		bson.M{"status": string(poll.StatusEnded)},
	}}
}

func activeFilter(id string) bson.M {
	return statusGuardFilter(id, poll.StatusActive)
}

func voteFilter(pollID, optionID string) bson.M {
	f := activeFilter(pollID)
	f["options.id"] = optionID
	return f
}

func pullVoterUpdate(userID string) bson.M {
	return bson.M{"$pull": bson.M{"options.$[].voters": bson.M{"user_id": userID}}}
}

// switchVotePipeline rewrites the options array in one stage: userID is
// dropped from every option except optionID, and appended to optionID unless
// already there, which keeps the original voted_at on a repeated vote.
func switchVotePipeline(optionID, userID string, at time.Time) mongo.Pipeline {
	voters := bson.M{"$ifNull": bson.A{"$$o.voters", bson.A{}}}
	userIDs := bson.M{"$map": bson.M{"input": voters, "as": "v", "in": "$$v.user_id"}}
	voter := bson.M{"user_id": literal(userID), "voted_at": at}

	target := bson.M{"$cond": bson.A{
		bson.M{"$in": bson.A{literal(userID), userIDs}},
		voters,
		bson.M{"$concatArrays": bson.A{voters, bson.A{voter}}},
	}}
	others := bson.M{"$filter": bson.M{
		"input": voters,
		"as":    "v",
		"cond":  bson.M{"$ne": bson.A{"$$v.user_id", literal(userID)}},
	}}

	return mongo.Pipeline{
		{{Key: "$set", Value: bson.M{"options": bson.M{"$map": bson.M{
			"input": "$options",
			"as":    "o",
			"in": bson.M{"$mergeObjects": bson.A{"$$o", bson.M{"voters": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$$o.id", literal(optionID)}},
				target,
				others,
			}}}}},
		}}}}},
	}
}

// literal keeps caller strings such as "$x" from being read as field paths.
func literal(v string) bson.M {
	return bson.M{"$literal": v}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", poll.ErrStoreUnavailable, err)
}

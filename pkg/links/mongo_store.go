package links

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// LinksCollection is the collection holding link slot documents.
const LinksCollection = "links"

const defaultOpTimeout = 5 * time.Second

type linkDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Platform  string    `bson:"platform"`
	URL       string    `bson:"url"`
	Enabled   bool      `bson:"enabled"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStore persists link slots in their own collection, keyed by user.
type MongoStore struct {
	coll      *mongo.Collection
	opTimeout time.Duration
	now       func() time.Time
}

// NewMongoStore returns a store over the links collection of db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		coll:      db.Collection(LinksCollection),
		opTimeout: defaultOpTimeout,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List implements Store.
func (s *MongoStore) List(ctx context.Context, userID uuid.UUID) ([]Link, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	cur, err := s.coll.Find(ctx,
		bson.M{"user_id": userID.String()},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("links: list: %w", err)
	}
	defer cur.Close(ctx)

	var docs []linkDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("links: decode list: %w", err)
	}

	out := make([]Link, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromLinkDoc(d))
	}
	return out, nil
}

// CountEnabled implements Store.
func (s *MongoStore) CountEnabled(ctx context.Context, userID uuid.UUID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	n, err := s.coll.CountDocuments(ctx, bson.M{"user_id": userID.String(), "enabled": true})
	if err != nil {
		return 0, fmt.Errorf("links: count enabled: %w", err)
	}
	return n, nil
}

// Create implements Store.
func (s *MongoStore) Create(ctx context.Context, link Link) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if _, err := s.coll.InsertOne(ctx, toLinkDoc(link)); err != nil {
		return fmt.Errorf("links: create: %w", err)
	}
	return nil
}

// SetEnabled implements Store.
func (s *MongoStore) SetEnabled(ctx context.Context, userID, linkID uuid.UUID, enabled bool) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": linkID.String(), "user_id": userID.String()},
		bson.M{"$set": bson.M{"enabled": enabled, "updated_at": s.now()}},
	)
	if err != nil {
		return fmt.Errorf("links: set enabled: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrLinkNotFound
	}
	return nil
}

// DisableMostRecent implements Store. The candidate set is read first and
// then updated by ID so the choice of slots is stable even if a concurrent
// write lands between the two steps.
func (s *MongoStore) DisableMostRecent(ctx context.Context, userID uuid.UUID, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	cur, err := s.coll.Find(ctx,
		bson.M{"user_id": userID.String(), "enabled": true},
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
			SetLimit(int64(n)).
			SetProjection(bson.M{"_id": 1}),
	)
	if err != nil {
		return 0, fmt.Errorf("links: find excess: %w", err)
	}
	defer cur.Close(ctx)

	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return 0, fmt.Errorf("links: decode excess: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}

	res, err := s.coll.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"enabled": false, "updated_at": s.now()}},
	)
	if err != nil {
		return 0, fmt.Errorf("links: disable excess: %w", err)
	}
	return int(res.ModifiedCount), nil
}

func toLinkDoc(l Link) linkDoc {
	return linkDoc{
		ID:        l.ID.String(),
		UserID:    l.UserID.String(),
		Platform:  l.Platform,
		URL:       l.URL,
		Enabled:   l.Enabled,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
}

func fromLinkDoc(d linkDoc) Link {
	id, _ := uuid.Parse(d.ID)
	userID, _ := uuid.Parse(d.UserID)
	return Link{
		ID:        id,
		UserID:    userID,
		Platform:  d.Platform,
		URL:       d.URL,
		Enabled:   d.Enabled,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/divyansh14-yadav/getqrbackend/pkg/plan"
)

// UsersCollection is the collection holding user documents. The subscription
// record lives embedded in the user document, mirroring the rest of the
// account data owned by the auth layer.
const UsersCollection = "users"

// defaultOpTimeout bounds every store operation so nothing in the
// reconciliation path can block indefinitely.
const defaultOpTimeout = 5 * time.Second

type recordDoc struct {
	Tier                   string     `bson:"tier"`
	ExpiresAt              *time.Time `bson:"expires_at,omitempty"`
	Active                 bool       `bson:"active"`
	ProviderCustomerID     string     `bson:"provider_customer_id,omitempty"`
	ProviderSubscriptionID string     `bson:"provider_subscription_id,omitempty"`
	LastEventAt            time.Time  `bson:"last_event_at,omitempty"`
	Version                int64      `bson:"version"`
	UpdatedAt              time.Time  `bson:"updated_at"`
}

type userDoc struct {
	ID           string     `bson:"_id"`
	Subscription *recordDoc `bson:"subscription,omitempty"`
}

// MongoStore persists subscription records inside user documents using
// optimistic versioning on the embedded subscription sub-document.
type MongoStore struct {
	coll      *mongo.Collection
	opTimeout time.Duration
	now       func() time.Time
}

// NewMongoStore returns a store over the users collection of db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		coll:      db.Collection(UsersCollection),
		opTimeout: defaultOpTimeout,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Get implements Store.
func (s *MongoStore) Get(ctx context.Context, userID uuid.UUID) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	var doc userDoc
	err := s.coll.FindOne(ctx,
		bson.M{"_id": userID.String()},
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("subscription: get record: %w", err)
	}

	if doc.Subscription == nil {
		// User exists but was never provisioned: implicit trial record.
		return NewTrialRecord(userID), nil
	}
	return fromDoc(userID, *doc.Subscription), nil
}

// CompareAndApply implements Store. The version filter makes the write a
// compare-and-swap on the embedded sub-document: a concurrent writer bumps
// the version first and this write matches nothing.
func (s *MongoStore) CompareAndApply(ctx context.Context, userID uuid.UUID, expectedVersion int64, mutate func(*Record)) (Record, bool, error) {
	cur, err := s.Get(ctx, userID)
	if err != nil {
		return Record{}, false, err
	}
	if cur.Version != expectedVersion {
		return cur, false, nil
	}

	next := cur
	mutate(&next)
	next.UserID = userID
	next.Version = expectedVersion + 1
	next.UpdatedAt = s.now()

	filter := bson.M{"_id": userID.String()}
	if expectedVersion == 0 {
		// A fresh record may exist as a missing sub-document or as an
		// unversioned implicit trial.
		filter["$or"] = bson.A{
			bson.M{"subscription": bson.M{"$exists": false}},
			bson.M{"subscription.version": int64(0)},
		}
	} else {
		filter["subscription.version"] = expectedVersion
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	res, err := s.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"subscription": toDoc(next)}})
	if err != nil {
		return Record{}, false, fmt.Errorf("subscription: apply record: %w", err)
	}
	if res.MatchedCount == 0 {
		// Either the user vanished or another writer won the race.
		fresh, err := s.Get(ctx, userID)
		if err != nil {
			return Record{}, false, err
		}
		return fresh, false, nil
	}
	return next, true, nil
}

func toDoc(r Record) recordDoc {
	return recordDoc{
		Tier:                   string(r.Tier),
		ExpiresAt:              r.ExpiresAt,
		Active:                 r.Active,
		ProviderCustomerID:     r.ProviderCustomerID,
		ProviderSubscriptionID: r.ProviderSubscriptionID,
		LastEventAt:            r.LastEventAt,
		Version:                r.Version,
		UpdatedAt:              r.UpdatedAt,
	}
}

func fromDoc(userID uuid.UUID, d recordDoc) Record {
	tier, ok := plan.ParseTier(d.Tier)
	if !ok {
		// Least privilege for anything unrecognized in storage.
		tier = plan.TierTrial
	}
	return Record{
		UserID:                 userID,
		Tier:                   tier,
		ExpiresAt:              d.ExpiresAt,
		Active:                 d.Active,
		ProviderCustomerID:     d.ProviderCustomerID,
		ProviderSubscriptionID: d.ProviderSubscriptionID,
		LastEventAt:            d.LastEventAt,
		Version:                d.Version,
		UpdatedAt:              d.UpdatedAt,
	}
}

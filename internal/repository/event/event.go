package event

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"group_chat/internal/model"
)

type (
	// EventRepo stores published events on the relay side, queried by
	// kind/author filters.
	EventRepo struct {
		collection *mongo.Collection
	}

	storedEvent struct {
		ID        string     `bson:"_id"`
		PubKey    string     `bson:"pubkey"`
		CreatedAt int64      `bson:"created_at"`
		Kind      int        `bson:"kind"`
		Tags      model.Tags `bson:"tags"`
		Content   string     `bson:"content"`
		Sig       string     `bson:"sig"`
	}
)

func NewEventRepo(db *mongo.Database) *EventRepo {
	return &EventRepo{
		collection: db.Collection("events"),
	}
}

// Insert stores an event; re-publishing the same event ID is a no-op.
func (r *EventRepo) Insert(ctx context.Context, ev *model.Event) error {
	_, err := r.collection.InsertOne(ctx, toStored(ev))
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

// Query returns events matching the kinds/authors filter, newest first,
// capped at limit when limit > 0.
func (r *EventRepo) Query(ctx context.Context, kinds []int, authors []string, limit int) ([]model.Event, error) {
	filter := bson.M{}
	if len(kinds) > 0 {
		filter["kind"] = bson.M{"$in": kinds}
	}
	if len(authors) > 0 {
		filter["pubkey"] = bson.M{"$in": authors}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var events []model.Event
	for cur.Next(ctx) {
		var st storedEvent
		if err := cur.Decode(&st); err != nil {
			return nil, err
		}
		events = append(events, fromStored(&st))
	}
	return events, cur.Err()
}

func toStored(ev *model.Event) *storedEvent {
	return &storedEvent{
		ID:        ev.ID,
		PubKey:    ev.PubKey,
		CreatedAt: ev.CreatedAt,
		Kind:      ev.Kind,
		Tags:      ev.Tags,
		Content:   ev.Content,
		Sig:       ev.Sig,
	}
}

func fromStored(st *storedEvent) model.Event {
	return model.Event{
		UnsignedEvent: model.UnsignedEvent{
			ID:        st.ID,
			PubKey:    st.PubKey,
			CreatedAt: st.CreatedAt,
			Kind:      st.Kind,
			Tags:      st.Tags,
			Content:   st.Content,
		},
		Sig: st.Sig,
	}
}

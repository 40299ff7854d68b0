// Package notify implements the Notification Service: per-user messages
// persisted to MongoDB, pushed over the websocket fanout hub, and pruned
// by an inline retention policy applied on every write. Grounded on
// original_source/app/services/notifications_service.py's
// NotificationsService (create_and_publish/unread_count/list/mark_read/
// mark_all_read), kept in the teacher's store-accessor-plus-small-struct
// idiom (internal/store collection accessors, zerolog component logger)
// rather than the Python service singleton pattern.
package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/marketpulse/ingestor/internal/domain"
	"github.com/marketpulse/ingestor/internal/store"
	"github.com/marketpulse/ingestor/internal/wsfanout"
)

// retainDays and maxPerUser are the two retention bounds
// notifications_service.py hardcodes rather than exposing as config; kept
// as unexported constants here for the same reason.
const (
	retainDays = 90
	maxPerUser = 1000
)

// Service owns the Notification collection exclusively, per spec.md §3.
type Service struct {
	store *store.Store
	hub   *wsfanout.Hub
	log   zerolog.Logger
}

func New(st *store.Store, hub *wsfanout.Hub, log zerolog.Logger) *Service {
	return &Service{store: st, hub: hub, log: log.With().Str("component", "notify").Logger()}
}

// Create persists a notification, publishes it to the user's websocket
// channel, and then prunes that user's history: age-based deletion first,
// then count-based trim of the oldest rows — exactly
// create_and_publish's order, which is why this is one method instead of
// "write" plus a separate scheduled sweep (SUPPLEMENTED FEATURES item 2).
func (s *Service) Create(ctx context.Context, userID, kind, title, content, source string, metadata map[string]any) error {
	now := time.Now().UTC()
	doc := domain.Notification{
		UserID: userID, Type: kind, Title: title, Content: content,
		Source: source, Severity: "info", Status: "unread", Metadata: metadata, CreatedAt: now,
	}
	res, err := s.store.Notifications().InsertOne(ctx, doc)
	if err != nil {
		return err
	}
	id, _ := res.InsertedID.(primitive.ObjectID)

	// A websocket publish failure never rolls back the write — the
	// notification already landed durably (SUPPLEMENTED FEATURES item 6).
	s.hub.Publish("user:"+userID, map[string]any{
		"id": id.Hex(), "type": kind, "title": title, "content": content,
		"source": source, "status": "unread", "created_at": now.Format(time.RFC3339),
	})

	s.prune(ctx, userID)
	return nil
}

func (s *Service) prune(ctx context.Context, userID string) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retainDays)
	if _, err := s.store.Notifications().DeleteMany(ctx, bson.M{"user_id": userID, "created_at": bson.M{"$lt": cutoff}}); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("age-based notification prune failed")
		return
	}

	count, err := s.store.Notifications().CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("failed to count notifications for quota trim")
		return
	}
	if count <= maxPerUser {
		return
	}
	skip := count - maxPerUser
	cur, err := s.store.Notifications().Find(ctx, bson.M{"user_id": userID},
		options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.M{"created_at": 1}).SetLimit(skip))
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("failed to select oldest notifications for quota trim")
		return
	}
	defer cur.Close(ctx)

	var ids []primitive.ObjectID
	for cur.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&doc); err == nil {
			ids = append(ids, doc.ID)
		}
	}
	if len(ids) == 0 {
		return
	}
	if _, err := s.store.Notifications().DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("count-based notification trim failed")
	}
}

// UnreadCount reports how many of userID's notifications are unread.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.store.Notifications().CountDocuments(ctx, bson.M{"user_id": userID, "status": "unread"})
}

// ListParams filters and paginates List.
type ListParams struct {
	Status   string // "read" | "unread" | ""
	Type     string // "analysis" | "alert" | "system" | ""
	Page     int
	PageSize int
}

// ListResult is one page of a user's notifications.
type ListResult struct {
	Items    []domain.Notification `json:"items"`
	Total    int64                  `json:"total"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"page_size"`
}

func (s *Service) List(ctx context.Context, userID string, p ListParams) (*ListResult, error) {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = 20
	}
	filter := bson.M{"user_id": userID}
	if p.Status == "read" || p.Status == "unread" {
		filter["status"] = p.Status
	}
	if p.Type == "analysis" || p.Type == "alert" || p.Type == "system" {
		filter["type"] = p.Type
	}

	total, err := s.store.Notifications().CountDocuments(ctx, filter)
	if err != nil {
		return nil, err
	}
	cur, err := s.store.Notifications().Find(ctx, filter, options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip(int64((p.Page - 1) * p.PageSize)).
		SetLimit(int64(p.PageSize)))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	items := make([]domain.Notification, 0, p.PageSize)
	for cur.Next(ctx) {
		var n domain.Notification
		if err := cur.Decode(&n); err == nil {
			items = append(items, n)
		}
	}
	return &ListResult{Items: items, Total: total, Page: p.Page, PageSize: p.PageSize}, nil
}

// MarkRead flips one notification to read, scoped to userID so a caller
// can never mark another user's notification.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(notificationID)
	if err != nil {
		return false, nil
	}
	res, err := s.store.Notifications().UpdateOne(ctx,
		bson.M{"_id": oid, "user_id": userID}, bson.M{"$set": bson.M{"status": "read"}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// MarkAllRead flips every unread notification for userID to read,
// returning how many were changed.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := s.store.Notifications().UpdateMany(ctx,
		bson.M{"user_id": userID, "status": "unread"}, bson.M{"$set": bson.M{"status": "read"}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/noah-isme/achievement-registry-api/internal/models"
)

// AchievementsCollection is the collection holding achievement documents.
const AchievementsCollection = "achievements"

type verificationEventDocument struct {
	Status    string    `bson:"status"`
	Verifier  string    `bson:"verifier"`
	Notes     *string   `bson:"notes,omitempty"`
	Timestamp time.Time `bson:"timestamp"`
}

type achievementDocument struct {
	ID                  string                      `bson:"_id"`
	StudentID           string                      `bson:"studentId"`
	StudentPrincipal    string                      `bson:"studentPrincipal"`
	Title               string                      `bson:"title"`
	Description         string                      `bson:"description"`
	Category            string                      `bson:"category"`
	Date                time.Time                   `bson:"date"`
	Links               []string                    `bson:"links,omitempty"`
	CertificateImage    *string                     `bson:"certificateImage,omitempty"`
	Status              string                      `bson:"status"`
	VerificationHistory []verificationEventDocument `bson:"verificationHistory"`
	CreatedAt           time.Time                   `bson:"createdAt"`
	UpdatedAt           time.Time                   `bson:"updatedAt"`
}

func toAchievementDocument(a *models.Achievement) achievementDocument {
	events := a.VerificationHistory.Events()
	history := make([]verificationEventDocument, 0, len(events))
	for _, e := range events {
		history = append(history, toEventDocument(e))
	}
	return achievementDocument{
		ID:                  a.AchievementID,
		StudentID:           a.StudentID,
		StudentPrincipal:    a.StudentPrincipal,
		Title:               a.Title,
		Description:         a.Description,
		Category:            string(a.Category),
		Date:                a.Date,
		Links:               []string(a.Links),
		CertificateImage:    a.CertificateImage,
		Status:              string(a.Status),
		VerificationHistory: history,
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
	}
}

func toEventDocument(e models.VerificationEvent) verificationEventDocument {
	return verificationEventDocument{
		Status:    string(e.Status),
		Verifier:  e.Verifier,
		Notes:     e.Notes,
		Timestamp: e.Timestamp,
	}
}

func (d achievementDocument) model() models.Achievement {
	events := make([]models.VerificationEvent, 0, len(d.VerificationHistory))
	for _, e := range d.VerificationHistory {
		events = append(events, models.VerificationEvent{
			Status:    models.VerificationStatus(e.Status),
			Verifier:  e.Verifier,
			Notes:     e.Notes,
			Timestamp: e.Timestamp.UTC(),
		})
	}
	var links models.StringList
	if len(d.Links) > 0 {
		links = models.StringList(d.Links)
	}
	return models.Achievement{
		AchievementID:       d.ID,
		StudentID:           d.StudentID,
		StudentPrincipal:    d.StudentPrincipal,
		Title:               d.Title,
		Description:         d.Description,
		Category:            models.AchievementCategory(d.Category),
		Date:                d.Date.UTC(),
		Links:               links,
		CertificateImage:    d.CertificateImage,
		Status:              models.VerificationStatus(d.Status),
		VerificationHistory: models.NewVerificationHistory(events...),
		CreatedAt:           d.CreatedAt.UTC(),
		UpdatedAt:           d.UpdatedAt.UTC(),
	}
}

// MongoAchievementRepository persists achievements as MongoDB documents. It
// reports missing or stale records with sql.ErrNoRows so services treat both
// stores alike.
type MongoAchievementRepository struct {
	coll *mongo.Collection
}

// NewMongoAchievementRepository constructs the repository.
func NewMongoAchievementRepository(db *mongo.Database) *MongoAchievementRepository {
	return &MongoAchievementRepository{coll: db.Collection(AchievementsCollection)}
}

// EnsureIndexes creates the indexes backing the list queries.
func (r *MongoAchievementRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "studentId", Value: 1}, {Key: "date", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create achievement indexes: %w", err)
	}
	return nil
}

// Create inserts a new achievement document.
func (r *MongoAchievementRepository) Create(ctx context.Context, a *models.Achievement) error {
	if _, err := r.coll.InsertOne(ctx, toAchievementDocument(a)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create achievement: %w", err)
	}
	return nil
}

// GetByID fetches a single achievement.
func (r *MongoAchievementRepository) GetByID(ctx context.Context, id string) (*models.Achievement, error) {
	var doc achievementDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get achievement: %w", err)
	}
	a := doc.model()
	return &a, nil
}

var newestFirst = bson.D{{Key: "date", Value: -1}, {Key: "createdAt", Value: -1}}

// ListByStudentID returns every achievement recorded for a student, newest first.
func (r *MongoAchievementRepository) ListByStudentID(ctx context.Context, studentID string) ([]models.Achievement, error) {
	return r.find(ctx, "list achievements by student", bson.M{"studentId": studentID}, newestFirst)
}

// ListVerifiedByCategory returns verified achievements in a category.
func (r *MongoAchievementRepository) ListVerifiedByCategory(ctx context.Context, category models.AchievementCategory) ([]models.Achievement, error) {
	filter := bson.M{"status": string(models.StatusVerified), "category": string(category)}
	return r.find(ctx, "list verified achievements", filter, newestFirst)
}

// ListPending returns the review queue, oldest submission first.
func (r *MongoAchievementRepository) ListPending(ctx context.Context) ([]models.Achievement, error) {
	filter := bson.M{"status": string(models.StatusPending)}
	return r.find(ctx, "list pending achievements", filter, bson.D{{Key: "createdAt", Value: 1}})
}

// Search matches term case-insensitively against title and description.
func (r *MongoAchievementRepository) Search(ctx context.Context, term string) ([]models.Achievement, error) {
	pattern := bson.M{"$regex": regexp.QuoteMeta(term), "$options": "i"}
	filter := bson.M{"$or": bson.A{bson.M{"title": pattern}, bson.M{"description": pattern}}}
	return r.find(ctx, "search achievements", filter, newestFirst)
}

func (r *MongoAchievementRepository) find(ctx context.Context, op string, filter interface{}, sort bson.D) ([]models.Achievement, error) {
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer cursor.Close(ctx)

	var docs []achievementDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	items := make([]models.Achievement, 0, len(docs))
	for _, d := range docs {
		items = append(items, d.model())
	}
	return items, nil
}

// ApplyTransition moves an achievement out of expected and pushes event onto
// its history in a single conditional update.
func (r *MongoAchievementRepository) ApplyTransition(ctx context.Context, id string, expected models.VerificationStatus, event models.VerificationEvent) error {
	filter := bson.M{"_id": id, "status": string(expected)}
	update := bson.M{
		"$set":  bson.M{"status": string(event.Status), "updatedAt": event.Timestamp},
		"$push": bson.M{"verificationHistory": toEventDocument(event)},
	}
	res := r.coll.FindOneAndUpdate(ctx, filter, update, options.FindOneAndUpdate().SetReturnDocument(options.After))
	if err := res.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("apply achievement transition: %w", err)
	}
	return nil
}

// Update writes the descriptive fields of a pending achievement.
func (r *MongoAchievementRepository) Update(ctx context.Context, a *models.Achievement) error {
	doc := toAchievementDocument(a)
	filter := bson.M{"_id": a.AchievementID, "status": string(models.StatusPending)}
	set := bson.M{
		"title":       doc.Title,
		"description": doc.Description,
		"date":        doc.Date,
		"links":       doc.Links,
		"updatedAt":   doc.UpdatedAt,
	}
	update := bson.M{"$set": set}
	if doc.CertificateImage != nil {
		set["certificateImage"] = *doc.CertificateImage
	} else {
		update["$unset"] = bson.M{"certificateImage": ""}
	}

	result, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update achievement: %w", err)
	}
	if result.MatchedCount == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Summary counts a student's achievements by status.
func (r *MongoAchievementRepository) Summary(ctx context.Context, studentID string) (*models.AchievementSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"studentId": studentID}}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("summarise achievements: %w", err)
	}
	defer cursor.Close(ctx)

	var groups []struct {
		Status string `bson:"_id"`
		Count  int    `bson:"count"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("summarise achievements: %w", err)
	}

	summary := &models.AchievementSummary{StudentID: studentID}
	for _, g := range groups {
		summary.Total += g.Count
		switch models.VerificationStatus(g.Status) {
		case models.StatusPending:
			summary.Pending = g.Count
		case models.StatusVerified:
			summary.Verified = g.Count
		case models.StatusRejected:
			summary.Rejected = g.Count
		}
	}
	return summary, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/RishiKendai/cellguard/internal/plagiarism"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	documentVersionsCollection = "document_versions"
	documentsCollection        = "documents"
	reportsCollection          = "reports"
)

type documentVersionDoc struct {
	ID         string `bson:"_id"`
	DocumentID string `bson:"documentId"`
}

type documentDoc struct {
	ID       string `bson:"_id"`
	ReportID string `bson:"reportId"`
}

type reportDoc struct {
	ID           string `bson:"_id"`
	CheckpointID string `bson:"checkpointId"`
}

// RelationsRepository reads the version → document → report → checkpoint chain.
type RelationsRepository struct {
	mongoRepo *MongoRepository
}

func NewRelationsRepository(mongoRepo *MongoRepository) *RelationsRepository {
	return &RelationsRepository{
		mongoRepo: mongoRepo,
	}
}

func (r *RelationsRepository) CheckpointOf(ctx context.Context, documentVersionID string) (string, error) {
	var version documentVersionDoc
	if err := r.findByID(ctx, documentVersionsCollection, documentVersionID, &version); err != nil {
		return "", fmt.Errorf("document version %s: %w", documentVersionID, err)
	}

	var document documentDoc
	if err := r.findByID(ctx, documentsCollection, version.DocumentID, &document); err != nil {
		return "", fmt.Errorf("document %s: %w", version.DocumentID, err)
	}

	var report reportDoc
	if err := r.findByID(ctx, reportsCollection, document.ReportID, &report); err != nil {
		return "", fmt.Errorf("report %s: %w", document.ReportID, err)
	}

	return report.CheckpointID, nil
}

func (r *RelationsRepository) SiblingVersions(ctx context.Context, checkpointID, excludeVersionID string) ([]string, error) {
	reportIDs, err := r.mongoRepo.Distinct(ctx, reportsCollection, "_id", bson.M{"checkpointId": checkpointID})
	if err != nil {
		return nil, fmt.Errorf("failed to find reports: %w", err)
	}
	if len(reportIDs) == 0 {
		return []string{}, nil
	}

	documentIDs, err := r.mongoRepo.Distinct(ctx, documentsCollection, "_id", bson.M{"reportId": bson.M{"$in": reportIDs}})
	if err != nil {
		return nil, fmt.Errorf("failed to find documents: %w", err)
	}
	if len(documentIDs) == 0 {
		return []string{}, nil
	}

	filter := bson.M{
		"documentId": bson.M{"$in": documentIDs},
		"_id":        bson.M{"$ne": excludeVersionID},
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetProjection(bson.M{"_id": 1})

	cursor, err := r.mongoRepo.FindMany(ctx, documentVersionsCollection, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find document versions: %w", err)
	}
	defer cursor.Close(ctx)

	var versions []documentVersionDoc
	if err := cursor.All(ctx, &versions); err != nil {
		return nil, fmt.Errorf("failed to decode document versions: %w", err)
	}

	siblings := make([]string, 0, len(versions))
	for _, v := range versions {
		siblings = append(siblings, v.ID)
	}
	return siblings, nil
}

// EnsureIndexes creates the lookup indexes used by SiblingVersions
func (r *RelationsRepository) EnsureIndexes(ctx context.Context) error {
	indexes := map[string]string{
		reportsCollection:          "checkpointId",
		documentsCollection:        "reportId",
		documentVersionsCollection: "documentId",
	}
	for collection, field := range indexes {
		model := mongo.IndexModel{Keys: bson.D{{Key: field, Value: 1}}}
		if err := r.mongoRepo.CreateIndex(ctx, collection, model); err != nil {
			return fmt.Errorf("failed to create index on %s.%s: %w", collection, field, err)
		}
	}
	return nil
}

func (r *RelationsRepository) findByID(ctx context.Context, collection, id string, out interface{}) error {
	err := r.mongoRepo.FindOne(ctx, collection, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return plagiarism.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to find in %s: %w", collection, err)
	}
	return nil
}

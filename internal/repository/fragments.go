package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RishiKendai/cellguard/internal/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const fragmentSetsCollection = "code_fragment_sets"

// fragmentSet stores every cell of a version in one document, so a set is
// written atomically and exists either whole or not at all.
type fragmentSet struct {
	DocumentVersionID string                `bson:"_id"`
	Fragments         []models.CodeFragment `bson:"fragments"`
	CreatedAt         time.Time             `bson:"createdAt"`
}

type FragmentsRepository struct {
	mongoRepo *MongoRepository
}

func NewFragmentsRepository(mongoRepo *MongoRepository) *FragmentsRepository {
	return &FragmentsRepository{
		mongoRepo: mongoRepo,
	}
}

func (r *FragmentsRepository) ListFragments(ctx context.Context, documentVersionID string) ([]models.CodeFragment, bool, error) {
	var set fragmentSet
	err := r.mongoRepo.FindOne(ctx, fragmentSetsCollection, bson.M{"_id": documentVersionID}).Decode(&set)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to find fragments: %w", err)
	}

	if set.Fragments == nil {
		set.Fragments = []models.CodeFragment{}
	}
	return set.Fragments, true, nil
}

// InsertFragments upserts with $setOnInsert, so a second insert for the same
// version leaves the first set untouched.
func (r *FragmentsRepository) InsertFragments(ctx context.Context, documentVersionID string, sources []string) error {
	now := time.Now()
	fragments := make([]models.CodeFragment, 0, len(sources))
	for i, source := range sources {
		fragments = append(fragments, models.CodeFragment{
			ID:                uuid.New().String(),
			DocumentVersionID: documentVersionID,
			CellNumber:        i,
			Source:            source,
			CreatedAt:         now,
		})
	}

	// _id comes from the filter on insert
	update := bson.M{
		"$setOnInsert": bson.M{
			"fragments": fragments,
			"createdAt": now,
		},
	}

	_, err := r.mongoRepo.UpdateOne(ctx, fragmentSetsCollection,
		bson.M{"_id": documentVersionID}, update, options.Update().SetUpsert(true))
	if err != nil {
		// A concurrent upsert for the same _id loses the race with a duplicate key
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("failed to insert fragments: %w", err)
	}

	return nil
}

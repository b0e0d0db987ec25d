// Package postgres provides GORM-based fragment and relation storage.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RishiKendai/cellguard/internal/models"
	"github.com/RishiKendai/cellguard/internal/plagiarism"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store implements plagiarism.FragmentRepository and plagiarism.RelationRepository.
type Store struct {
	DB *gorm.DB
}

var (
	_ plagiarism.FragmentRepository = (*Store)(nil)
	_ plagiarism.RelationRepository = (*Store)(nil)
)

// NewStore connects to Postgres and runs pending migrations.
func NewStore(dsn string, maxConns int) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	return newStore(db, maxConns)
}

func newStore(db *gorm.DB, maxConns int) (*Store, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 10
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{DB: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) ListFragments(ctx context.Context, documentVersionID string) ([]models.CodeFragment, bool, error) {
	var set FragmentSet
	err := s.DB.WithContext(ctx).
		Where("document_version_id = ?", documentVersionID).
		Take(&set).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query fragment set: %w", err)
	}

	var rows []CodeFragment
	err = s.DB.WithContext(ctx).
		Where("document_version_id = ?", documentVersionID).
		Order("cell_number ASC").
		Find(&rows).Error
	if err != nil {
		return nil, false, fmt.Errorf("query fragments: %w", err)
	}

	fragments := make([]models.CodeFragment, 0, len(rows))
	for _, r := range rows {
		fragments = append(fragments, models.CodeFragment{
			ID:                r.ID,
			DocumentVersionID: r.DocumentVersionID,
			CellNumber:        r.CellNumber,
			Source:            r.Fragment,
			CreatedAt:         r.CreatedAt,
		})
	}
	return fragments, true, nil
}

// InsertFragments writes the set marker and all cells in one transaction.
// ON CONFLICT DO NOTHING on the marker turns a repeated insert into a no-op.
func (s *Store) InsertFragments(ctx context.Context, documentVersionID string, sources []string) error {
	now := time.Now().UTC()

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		set := FragmentSet{DocumentVersionID: documentVersionID, CellCount: len(sources), CreatedAt: now}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&set)
		if res.Error != nil {
			return fmt.Errorf("insert fragment set: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if len(sources) == 0 {
			return nil
		}

		rows := make([]CodeFragment, 0, len(sources))
		for i, source := range sources {
			rows = append(rows, CodeFragment{
				ID:                uuid.New().String(),
				DocumentVersionID: documentVersionID,
				CellNumber:        i,
				Fragment:          source,
				CreatedAt:         now,
			})
		}

		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "document_version_id"}, {Name: "cell_number"}},
			DoNothing: true,
		}).CreateInBatches(rows, 100).Error
		if err != nil {
			return fmt.Errorf("insert fragments: %w", err)
		}
		return nil
	})
}

func (s *Store) CheckpointOf(ctx context.Context, documentVersionID string) (string, error) {
	var checkpointID string
	err := s.DB.WithContext(ctx).
		Table("document_versions AS dv").
		Select("r.checkpoint_id").
		Joins("JOIN documents d ON d.id = dv.document_id").
		Joins("JOIN reports r ON r.id = d.report_id").
		Where("dv.id = ?", documentVersionID).
		Limit(1).
		Scan(&checkpointID).Error
	if err != nil {
		return "", fmt.Errorf("query checkpoint: %w", err)
	}
	if checkpointID == "" {
		return "", fmt.Errorf("document version %s: %w", documentVersionID, plagiarism.ErrNotFound)
	}
	return checkpointID, nil
}

func (s *Store) SiblingVersions(ctx context.Context, checkpointID, excludeVersionID string) ([]string, error) {
	siblings := make([]string, 0)
	err := s.DB.WithContext(ctx).
		Table("document_versions AS dv").
		Joins("JOIN documents d ON d.id = dv.document_id").
		Joins("JOIN reports r ON r.id = d.report_id").
		Where("r.checkpoint_id = ? AND dv.id <> ?", checkpointID, excludeVersionID).
		Order("dv.id ASC").
		Pluck("dv.id", &siblings).Error
	if err != nil {
		return nil, fmt.Errorf("query sibling versions: %w", err)
	}
	return siblings, nil
}

package postgres

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Report references the checkpoint its documents are graded against.
type Report struct {
	ID           string `gorm:"primaryKey;type:text"`
	CheckpointID string `gorm:"index;not null;type:text"`
}

func (Report) TableName() string { return "reports" }

type Document struct {
	ID       string `gorm:"primaryKey;type:text"`
	ReportID string `gorm:"index;not null;type:text"`
}

func (Document) TableName() string { return "documents" }

type DocumentVersion struct {
	ID         string `gorm:"primaryKey;type:text"`
	DocumentID string `gorm:"index;not null;type:text"`
}

func (DocumentVersion) TableName() string { return "document_versions" }

// FragmentSet marks a version as extracted, including notebooks with no code cells.
type FragmentSet struct {
	DocumentVersionID string    `gorm:"primaryKey;type:text"`
	CellCount         int       `gorm:"not null"`
	CreatedAt         time.Time `gorm:"not null"`
}

func (FragmentSet) TableName() string { return "fragment_sets" }

type CodeFragment struct {
	ID                string    `gorm:"primaryKey;type:uuid"`
	DocumentVersionID string    `gorm:"uniqueIndex:idx_code_fragments_version_cell,priority:1;not null;type:text"`
	CellNumber        int       `gorm:"uniqueIndex:idx_code_fragments_version_cell,priority:2;not null"`
	Fragment          string    `gorm:"type:text;not null"`
	CreatedAt         time.Time `gorm:"not null"`
}

func (CodeFragment) TableName() string { return "code_fragments" }

// BeforeCreate hook to ensure the row id is set.
func (f *CodeFragment) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}

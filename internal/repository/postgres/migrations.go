package postgres

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: checkpoint relation chain
		{
			ID: "001_relations",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&Report{}, &Document{}, &DocumentVersion{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("document_versions", "documents", "reports")
			},
		},

		// Migration 002: fragment cache
		{
			ID: "002_code_fragments",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&FragmentSet{}, &CodeFragment{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("code_fragments", "fragment_sets")
			},
		},
	})

	return m.Migrate()
}

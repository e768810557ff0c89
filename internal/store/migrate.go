package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm/clause"

	"github.com/hstefan/fotc/internal/model"
)

// Migrate creates the schema namespace (postgres only) and brings the five
// entity tables up to date. Order matters: referenced tables come first.
func (s *Store) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if s.schema != "" {
		if err := db.Exec("CREATE SCHEMA IF NOT EXISTS ?", clause.Table{Name: s.schema}).Error; err != nil {
			return fmt.Errorf("create schema %s: %w", s.schema, err)
		}
	}

	tables := []any{
		&model.User{},
		&model.Group{},
		&model.Membership{},
		&model.Reminder{},
		&model.Quote{},
	}
	for _, t := range tables {
		if err := db.AutoMigrate(t); err != nil {
			return fmt.Errorf("migrate %T: %w", t, err)
		}
	}
	s.log.Info("schema migrated", zap.String("schema", s.schema))
	return nil
}

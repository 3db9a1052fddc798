package database

import (
	"context"
	"fmt"
	"time"

	"wellstep/migrations"
	"wellstep/pkg/logging"
)

// Migrate runs every embedded script for dir, each in its own transaction.
// It returns the names of the scripts applied.
func (p *PostgresDB) Migrate(ctx context.Context, dir migrations.Direction) ([]string, error) {
	scripts, err := migrations.Load(dir)
	if err != nil {
		return nil, err
	}

	applied := make([]string, 0, len(scripts))
	for _, m := range scripts {
		start := time.Now()

		tx, err := p.BeginTx(ctx)
		if err != nil {
			return applied, fmt.Errorf("failed to begin migration %s: %w", m.Name, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			_ = tx.Rollback()
			p.metrics.RecordDBError("migration_error")
			return applied, fmt.Errorf("failed to execute migration %s (%s): %w", m.Name, dir, err)
		}
		if err := tx.Commit(); err != nil {
			return applied, fmt.Errorf("failed to commit migration %s: %w", m.Name, err)
		}

		p.logger.Info(ctx, "[DB_MIGRATE] Migration applied", logging.Fields{
			"migration":   m.Name,
			"direction":   string(dir),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		applied = append(applied, m.Name)
	}

	return applied, nil
}

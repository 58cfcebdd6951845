package metadatastore

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Migrator applies numbered SQL scripts whose version exceeds the
// database's user_version
type Migrator struct {
	store *SQLiteStore
	log   *zap.Logger
}

func NewMigrator(store *SQLiteStore, log *zap.Logger) *Migrator {
	return &Migrator{
		store: store,
		log:   log,
	}
}

// Up runs every pending script from source in version order
func (m *Migrator) Up(ctx context.Context, source embed.FS) error {
	list, err := source.ReadDir(".")
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return nil
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name() < list[j].Name()
	})

	current, err := m.store.userVersion(ctx)
	if err != nil {
		return err
	}
	final, err := scriptVersion(list[len(list)-1].Name())
	if err != nil {
		return err
	}
	if final > current {
		m.log.Info("Bringing up metadata migrations", zap.Int("migration_count", final-current))
	}

	for _, f := range list {
		n := f.Name()
		v, err := scriptVersion(n)
		if err != nil {
			return err
		}

		// re-read each time so an out-of-order script never runs after a newer one
		c, err := m.store.userVersion(ctx)
		if err != nil {
			return err
		}
		if v <= c {
			continue
		}

		m.log.Debug("Executing metadata migration", zap.String("migration_name", n))
		script, err := source.ReadFile(n)
		if err != nil {
			return err
		}
		if err := m.store.execTrans(ctx, string(script)); err != nil {
			return fmt.Errorf("migration %s: %w", n, err)
		}
	}

	return nil
}

// scriptVersion extracts the version from a file named like "0002_migration_name.sql"
func scriptVersion(filename string) (int, error) {
	v, err := strconv.Atoi(strings.Split(filename, "_")[0])
	if err != nil {
		return 0, fmt.Errorf("invalid migration file name %q: %w", filename, err)
	}
	return v, nil
}

package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"printlink-be/internal/config"
	"printlink-be/internal/db"
	"printlink-be/internal/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const ensureTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
`

type migration struct {
	version string
	up      string
	down    string
}

func main() {
	_ = godotenv.Load()

	mode := flag.String("mode", "up", "migration mode: up, down or status")
	dir := flag.String("dir", "./migrations", "directory holding the *.sql files")
	flag.Parse()

	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse environment: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database, err := db.NewDatabase(cfg)
	if err != nil {
		logger.L().Fatal("database unavailable", zap.Error(err))
	}
	defer database.Close()

	if err := run(database, *mode, *dir); err != nil {
		logger.L().Fatal("migration failed", zap.String("mode", *mode), zap.Error(err))
	}
}

func run(database *sql.DB, mode, dir string) error {
	if _, err := database.Exec(ensureTable); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	migrations, err := loadMigrations(dir)
	if err != nil {
		return err
	}

	switch mode {
	case "up":
		return migrateUp(database, migrations)
	case "down":
		return migrateDown(database, migrations)
	case "status":
		return printStatus(database, migrations)
	default:
		return fmt.Errorf("unknown mode: %s (use up, down or status)", mode)
	}
}

// loadMigrations reads every *.sql file in dir, ordered by file name.
func loadMigrations(dir string) ([]migration, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	out := make([]migration, 0, len(files))
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		m := migration{
			version: filepath.Base(file),
			up:      extractSection(string(content), "Up"),
			down:    extractSection(string(content), "Down"),
		}
		if strings.TrimSpace(m.up) == "" {
			return nil, fmt.Errorf("%s has no -- +migrate Up section", m.version)
		}
		out = append(out, m)
	}
	return out, nil
}

func applied(database *sql.DB, version string) (bool, error) {
	var exists bool
	err := database.QueryRow(`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, version).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", version, err)
	}
	return exists, nil
}

func migrateUp(database *sql.DB, migrations []migration) error {
	log := logger.L()
	count := 0

	for _, m := range migrations {
		done, err := applied(database, m.version)
		if err != nil {
			return err
		}
		if done {
			log.Debug("skipping applied migration", zap.String("version", m.version))
			continue
		}

		log.Info("applying migration", zap.String("version", m.version))
		err = inTx(database, func(tx *sql.Tx) error {
			if _, err := tx.Exec(m.up); err != nil {
				return err
			}
			_, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES ($1)`, m.version)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply %s: %w", m.version, err)
		}
		count++
	}

	log.Info("migrations up to date", zap.Int("applied", count))
	return nil
}

// migrateDown rolls back the most recently applied migration only.
func migrateDown(database *sql.DB, migrations []migration) error {
	log := logger.L()

	var last string
	err := database.QueryRow(`SELECT version FROM schema_migrations ORDER BY applied_at DESC, version DESC LIMIT 1`).Scan(&last)
	if err == sql.ErrNoRows {
		log.Info("nothing to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("find last migration: %w", err)
	}

	var target *migration
	for i := range migrations {
		if migrations[i].version == last {
			target = &migrations[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("migration file not found for version: %s", last)
	}
	if strings.TrimSpace(target.down) == "" {
		return fmt.Errorf("%s has no -- +migrate Down section", last)
	}

	log.Info("rolling back migration", zap.String("version", last))
	err = inTx(database, func(tx *sql.Tx) error {
		if _, err := tx.Exec(target.down); err != nil {
			return err
		}
		_, err := tx.Exec(`DELETE FROM schema_migrations WHERE version = $1`, last)
		return err
	})
	if err != nil {
		return fmt.Errorf("roll back %s: %w", last, err)
	}
	return nil
}

func printStatus(database *sql.DB, migrations []migration) error {
	for _, m := range migrations {
		done, err := applied(database, m.version)
		if err != nil {
			return err
		}
		state := "pending"
		if done {
			state = "applied"
		}
		fmt.Printf("%-8s %s\n", state, m.version)
	}
	return nil
}

func inTx(database *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := database.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// extractSection returns the SQL between "-- +migrate <section>" and the next
// marker.
func extractSection(content, section string) string {
	var part strings.Builder
	inPart := false

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "-- +migrate") {
			if inPart {
				break
			}
			inPart = trimmed == "-- +migrate "+section
			continue
		}
		if inPart {
			part.WriteString(line + "\n")
		}
	}
	return part.String()
}

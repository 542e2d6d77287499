package database

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const (
	migrationsDir = "migrations"
	// Files carrying this marker run statement by statement outside a transaction
	noTxMarker = "-- +no-transaction"
)

type migration struct {
	version string
	script  string
	noTx    bool
}

// RunMigrations brings the entity schema up to date and returns how many
// migrations this call applied. Versions are recorded in schema_migrations.
func RunMigrations(ctx context.Context, connString string, logger zerolog.Logger) (int, error) {
	cc, err := pgx.ParseConfig(connString)
	if err != nil {
		return 0, fmt.Errorf("parse connection string: %w", err)
	}
	cc.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	conn, err := pgx.ConnectConfig(ctx, cc)
	if err != nil {
		return 0, fmt.Errorf("connect for migrations: %w", err)
	}
	defer conn.Close(ctx)

	const ensure = `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`
	if _, err := conn.Exec(ctx, ensure); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	all, err := loadMigrations()
	if err != nil {
		return 0, err
	}
	done, err := appliedVersions(ctx, conn)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, m := range all {
		if done[m.version] {
			continue
		}
		if err := m.apply(ctx, conn); err != nil {
			return count, fmt.Errorf("migration %s: %w", m.version, err)
		}
		logger.Info().Str("version", m.version).Bool("transactional", !m.noTx).Msg("Migration applied")
		count++
	}

	logger.Info().Int("applied", count).Int("known", len(all)).Msg("Entity schema current")
	return count, nil
}

// loadMigrations reads the embedded .sql files sorted by name
func loadMigrations() ([]migration, error) {
	entries, err := migrationsFS.ReadDir(migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	var out []migration
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || path.Ext(name) != ".sql" {
			continue
		}
		raw, err := migrationsFS.ReadFile(path.Join(migrationsDir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		script := strings.TrimSpace(string(raw))
		out = append(out, migration{
			version: strings.TrimSuffix(name, ".sql"),
			script:  script,
			noTx:    hasMarker(script),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

func appliedVersions(ctx context.Context, conn *pgx.Conn) (map[string]bool, error) {
	rows, err := conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan applied migrations: %w", err)
	}

	done := make(map[string]bool, len(versions))
	for _, v := range versions {
		done[v] = true
	}
	return done, nil
}

func (m migration) apply(ctx context.Context, conn *pgx.Conn) error {
	if m.noTx {
		for _, stmt := range splitStatements(m.script) {
			if _, err := conn.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return record(func(sql string, args ...any) error {
			_, err := conn.Exec(ctx, sql, args...)
			return err
		}, m.version)
	}

	return pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
		if m.script != "" {
			if _, err := tx.Exec(ctx, m.script); err != nil {
				return err
			}
		}
		return record(func(sql string, args ...any) error {
			_, err := tx.Exec(ctx, sql, args...)
			return err
		}, m.version)
	})
}

func record(exec func(sql string, args ...any) error, version string) error {
	if err := exec(`INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
		return fmt.Errorf("record version: %w", err)
	}
	return nil
}

func hasMarker(script string) bool {
	for _, line := range strings.Split(script, "\n") {
		if strings.EqualFold(strings.TrimSpace(line), noTxMarker) {
			return true
		}
	}
	return false
}

// splitStatements drops comment lines and splits on semicolons. It does not
// understand quoted semicolons, so no-transaction files must avoid them.
func splitStatements(script string) []string {
	var kept []string
	for _, line := range strings.Split(script, "\n") {
		t := strings.TrimSpace(line)
		if t != "" && !strings.HasPrefix(t, "--") {
			kept = append(kept, line)
		}
	}

	var stmts []string
	for _, part := range strings.Split(strings.Join(kept, "\n"), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

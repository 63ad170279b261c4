// Package migrate applies the postgres schema with goose. The SQL files ship
// inside the binary; a directory on disk can stand in for them while
// authoring new migrations.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where new migrations are authored.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Embedded returns the migrations compiled into the binary.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Source resolves dir to a migration filesystem; "" means the embedded set.
func Source(dir string) fs.FS {
	if dir == "" {
		return Embedded()
	}
	return os.DirFS(dir)
}

// Step reports one applied or rolled back migration.
type Step struct {
	Version   int64
	Path      string
	Direction string
}

// Migrator runs goose commands against one database. It does not own db.
type Migrator struct {
	provider *goose.Provider
}

func New(db *sql.DB, migrations fs.FS) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Migrator{provider: provider}, nil
}

// Apply runs up, down, redo or status.
func (m *Migrator) Apply(ctx context.Context, command string) ([]Step, error) {
	switch command {
	case "up":
		results, err := m.provider.Up(ctx)
		return steps(results...), wrap("up", err)
	case "down":
		result, err := m.provider.Down(ctx)
		return steps(result), wrap("down", err)
	case "redo":
		down, err := m.provider.Down(ctx)
		if err != nil {
			return steps(down), wrap("redo", err)
		}
		up, err := m.provider.UpByOne(ctx)
		return steps(down, up), wrap("redo", err)
	case "status":
		statuses, err := m.provider.Status(ctx)
		if err != nil {
			return nil, wrap("status", err)
		}
		out := make([]Step, 0, len(statuses))
		for _, st := range statuses {
			out = append(out, Step{Version: st.Source.Version, Path: st.Source.Path, Direction: string(st.State)})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown migrate command %q", command)
	}
}

// To moves the schema up or down until it sits at target.
func (m *Migrator) To(ctx context.Context, target int64) ([]Step, error) {
	current, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, wrap("version", err)
	}
	switch {
	case current < target:
		results, err := m.provider.UpTo(ctx, target)
		return steps(results...), wrap(fmt.Sprintf("up-to %d", target), err)
	case current > target:
		results, err := m.provider.DownTo(ctx, target)
		return steps(results...), wrap(fmt.Sprintf("down-to %d", target), err)
	}
	return nil, nil
}

func steps(results ...*goose.MigrationResult) []Step {
	out := make([]Step, 0, len(results))
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		out = append(out, Step{Version: r.Source.Version, Path: r.Source.Path, Direction: r.Direction})
	}
	return out
}

func wrap(op string, err error) error {
	if err == nil || errors.Is(err, goose.ErrNoNextVersion) {
		return nil
	}
	return fmt.Errorf("goose %s: %w", op, err)
}

// ParseVersion validates a YYYYMMDDHHMMSS migration version.
func ParseVersion(raw string) (int64, error) {
	v, err := strconv.ParseInt(raw, 10, 64)
	if len(raw) != len(versionLayout) || err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", raw)
	}
	return v, nil
}

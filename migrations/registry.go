// Package migrations exposes the embedded 3-D Secure ledger schema per SQL
// dialect and hands it to a persistence client for registration.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	threeds "github.com/goliatone/go-threeds"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	sourceLabel  = "go-threeds"
	migrationDir = "data/sql/migrations"
	upSuffix     = ".up.sql"
	downSuffix   = ".down.sql"
)

// FilesystemSpec is the migration set of one dialect.
type FilesystemSpec struct {
	Dialect string
	Path    string
	FS      fs.FS
}

// Migration is one versioned up/down pair.
type Migration struct {
	Version string
	Name    string
	Up      string
	Down    string
}

type Registration struct {
	SourceLabel       string
	ValidationTargets []string
	Filesystems       []FilesystemSpec
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

// WithValidationTargets limits registration to the named dialects.
func WithValidationTargets(targets ...string) Option {
	return func(r *Registration) {
		var dialects []string
		for _, target := range targets {
			dialect := normalizeDialect(target)
			if dialect != "" && !slices.Contains(dialects, dialect) {
				dialects = append(dialects, dialect)
			}
		}
		if len(dialects) > 0 {
			r.ValidationTargets = dialects
		}
	}
}

// Filesystems returns the postgres set at the migrations root and the
// sqlite set under sqlite/. Every up file must have a matching down file.
func Filesystems(sources ...fs.FS) ([]FilesystemSpec, error) {
	root := threeds.GetMigrationsFS()
	if len(sources) > 0 && sources[0] != nil {
		root = sources[0]
	}
	base, err := fs.Sub(root, migrationDir)
	if err != nil {
		return nil, fmt.Errorf("migrations: open %s: %w", migrationDir, err)
	}
	sqliteFS, err := fs.Sub(base, DialectSQLite)
	if err != nil {
		return nil, fmt.Errorf("migrations: open sqlite set: %w", err)
	}

	specs := []FilesystemSpec{
		{Dialect: DialectPostgres, Path: migrationDir, FS: base},
		{Dialect: DialectSQLite, Path: path.Join(migrationDir, DialectSQLite), FS: sqliteFS},
	}
	for _, spec := range specs {
		if _, err := listMigrations(spec); err != nil {
			return nil, err
		}
	}
	return specs, nil
}

// List returns the migrations of one dialect ordered by version.
func List(dialect string) ([]Migration, error) {
	specs, err := Filesystems()
	if err != nil {
		return nil, err
	}
	dialect = normalizeDialect(dialect)
	for _, spec := range specs {
		if spec.Dialect == dialect {
			return listMigrations(spec)
		}
	}
	return nil, fmt.Errorf("migrations: unknown dialect %q", dialect)
}

// Register calls registerFn once per targeted dialect. Both dialects are
// targeted unless WithValidationTargets narrows them.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel:       sourceLabel,
		ValidationTargets: []string{DialectPostgres, DialectSQLite},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}

	specs, err := Filesystems()
	if err != nil {
		return reg, err
	}
	reg.Filesystems = specs

	for _, target := range reg.ValidationTargets {
		index := slices.IndexFunc(specs, func(spec FilesystemSpec) bool { return spec.Dialect == target })
		if index < 0 {
			return reg, fmt.Errorf("migrations: unknown dialect %q", target)
		}
		spec := specs[index]
		if err := registerFn(ctx, spec.Dialect, reg.SourceLabel, spec.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s from %s: %w", spec.Dialect, spec.Path, err)
		}
	}
	return reg, nil
}

func listMigrations(spec FilesystemSpec) ([]Migration, error) {
	ups, err := fs.Glob(spec.FS, "*"+upSuffix)
	if err != nil {
		return nil, fmt.Errorf("migrations: scan %s: %w", spec.Path, err)
	}
	if len(ups) == 0 {
		return nil, fmt.Errorf("migrations: %s set at %s is empty", spec.Dialect, spec.Path)
	}
	downs, err := fs.Glob(spec.FS, "*"+downSuffix)
	if err != nil {
		return nil, fmt.Errorf("migrations: scan %s: %w", spec.Path, err)
	}
	if len(downs) != len(ups) {
		return nil, fmt.Errorf("migrations: %s set has %d up and %d down files", spec.Dialect, len(ups), len(downs))
	}

	slices.Sort(ups)
	out := make([]Migration, 0, len(ups))
	for _, up := range ups {
		stem := strings.TrimSuffix(up, upSuffix)
		down := stem + downSuffix
		if !slices.Contains(downs, down) {
			return nil, fmt.Errorf("migrations: %s %s has no %s", spec.Dialect, up, down)
		}
		version, name, ok := strings.Cut(stem, "_")
		if !ok || version == "" || name == "" {
			return nil, fmt.Errorf("migrations: %s %s is not named <version>_<name>", spec.Dialect, up)
		}
		out = append(out, Migration{Version: version, Name: name, Up: up, Down: down})
	}
	return out, nil
}

func normalizeDialect(dialect string) string {
	return strings.ToLower(strings.TrimSpace(dialect))
}

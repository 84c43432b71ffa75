package schema

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	kpool "github.com/Lelouch-Britannia/KubePlayground/pkg/conn/db/postgres/pool"
	"github.com/fsnotify/fsnotify"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
)

// Schema keeps the database tables in step with the schema
// repository: a directory of numbered subdirectories, each holding
// the .sql files to reach that version.
type Schema struct {
	pool       kpool.Pool
	repository string
}

func New(pool kpool.Pool, repository string) *Schema {
	return &Schema{pool: pool, repository: repository}
}

// Version reads the schema version recorded in the database.
// A database without the version table is version 0.
func (s *Schema) Version(ctx context.Context) (int, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return -1, err
	}
	defer conn.Release()

	var version int
	if err := conn.QueryRow(
		ctx, `SELECT max("version") FROM "schema_version"`,
	).Scan(&version); err != nil {
		if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) {
			if pgerr.Code == pgerrcode.UndefinedTable {
				return 0, nil
			}
		}
		return -1, err
	}
	return version, nil
}

// Upgrade applies every version in the repository newer than the
// database, in one transaction.
func (s *Schema) Upgrade(ctx context.Context) error {
	versions, err := s.versions()
	if err != nil {
		return err
	}

	current, err := s.Version(ctx)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, v := range versions {
		if v.number <= current {
			continue
		}
		if err := v.apply(ctx, tx); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM "schema_version"`); err != nil {
			return err
		}
		if _, err := tx.Exec(
			ctx, `INSERT INTO "schema_version" ("version") VALUES ($1)`, v.number,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Context derives a context which gets cancelled when the schema
// repository runs ahead of the database, watching the repository for
// new versions being dropped in.
func (s *Schema) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	cctx, can := context.WithCancelCause(ctx)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		can(err)
		return cctx, func() {}
	}
	if err := w.Add(s.repository); err != nil {
		can(err)
		return cctx, func() {}
	}

	checkVersion := func() {
		versions, err := s.versions()
		if err != nil {
			can(fmt.Errorf("failed to read schema repository: %w", err))
			return
		}
		current, err := s.Version(ctx)
		if err != nil {
			can(fmt.Errorf("failed to get current schema version: %w", err))
			return
		}
		for _, v := range versions {
			if current < v.number {
				can(fmt.Errorf(
					"schema is outdated: %d (in db) < %d (in repository)",
					current, v.number,
				))
				return
			}
		}
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-cctx.Done():
				return
			case ev := <-w.Events:
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) {
					continue
				}
				if s.repository != filepath.Dir(ev.Name) {
					continue
				}
				checkVersion()
			}
		}
	}()

	checkVersion()
	return cctx, func() { can(nil) }
}

type version struct {
	number int
	root   string
}

func (v version) apply(ctx context.Context, conn kpool.Queryer) error {
	return filepath.WalkDir(v.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}

		query, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		_, err = conn.Exec(ctx, string(query))
		return err
	})
}

func (s *Schema) versions() ([]version, error) {
	dir, err := os.ReadDir(s.repository)
	if err != nil {
		return nil, err
	}

	versions := make([]version, 0, len(dir))
	for _, entry := range dir {
		if !entry.IsDir() {
			continue
		}
		n, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		versions = append(versions, version{
			number: n,
			root:   filepath.Join(s.repository, entry.Name()),
		})
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].number < versions[j].number
	})
	return versions, nil
}

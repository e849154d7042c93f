// SPDX-License-Identifier: ice License 1.0

package router

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/tern/v2/migrate"
	"github.com/pkg/errors"

	"github.com/ice-blockchain/rwrouter/log"
)

// NewStringDDL splits ddl on `----` and runs every statement on the write target; objects that already exist are skipped.
func NewStringDDL(ddl string) DDL {
	return &stringDDL{Data: ddl}
}

// NewFilesystemDDL runs versioned tern migrations from fsys on the write target.
func NewFilesystemDDL(fsys fs.FS, schemaTableName string) DDL {
	return &filesystemDDL{FS: fsys, SchemeTable: schemaTableName}
}

func (d *stringDDL) run(ctx context.Context, conn Handle) error {
	for statement := range strings.SplitSeq(d.Data, "----") {
		if strings.TrimSpace(statement) == "" {
			continue
		}
		if _, err := conn.Exec(ctx, statement); !ignorableDDLError(err) {
			return errors.Wrapf(err, "failed to execute DDL statement: %v", statement)
		}
	}

	return nil
}

func (d *filesystemDDL) run(ctx context.Context, conn Handle) error {
	schemaTable := d.SchemeTable
	if schemaTable == "" {
		const defaultSchemaTable = "rwrouter_schema_migrations"
		log.Info("schema table name not provided for migrations, using default: " + defaultSchemaTable)
		schemaTable = defaultSchemaTable
	}
	acquirer, ok := conn.(Acquirer)
	if !ok {
		return ErrNotAcquirable
	}
	dedicated, err := acquirer.Acquire(ctx)
	if err != nil {
		return errors.Wrap(err, "cannot acquire connection for migration")
	}
	defer dedicated.Release()

	m, err := migrate.NewMigrator(ctx, dedicated.Conn(), schemaTable)
	if err != nil {
		return errors.Wrap(err, "cannot create migrator")
	}
	if err = m.LoadMigrations(d.FS); err != nil {
		return errors.Wrap(err, "cannot load migrations from fs")
	}
	if v, vErr := m.GetCurrentVersion(ctx); vErr == nil {
		log.Info(fmt.Sprintf("current schema version: %d", v))
	}
	if err = doAfterConnect(ctx, "0", dedicated.Conn()); err != nil {
		return errors.Wrap(err, "cannot set session parameters before migration")
	}
	defer func() {
		if dErr := doAfterConnect(ctx, "", dedicated.Conn()); dErr != nil {
			log.Error(errors.Wrap(dErr, "cannot reset session parameters after migration"))
		}
	}()
	m.OnStart = func(sequence int32, name, direction, _ string) {
		log.Info(fmt.Sprintf("starting migration: %d: %s: %s", sequence, name, direction))
	}

	return errors.Wrap(m.Migrate(ctx), "migration failed")
}

func ignorableDDLError(err error) bool {
	if err == nil {
		return true
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.SQLState() {
	case pgerrcode.DuplicateObject, pgerrcode.DuplicateTable, pgerrcode.DuplicateSchema, pgerrcode.DuplicateFunction:
		return true
	default:
		return false
	}
}

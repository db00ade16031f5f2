package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/AlexTsimba/traffboard-sub001/internal/schema"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TxRunner runs fn inside a single database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(pgx.Tx) error) error
}

// Queryer runs single statements outside a transaction.
type Queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type recordRepository struct {
	tx       TxRunner
	query    Queryer
	registry *schema.Registry
}

// NewRecordRepository wires the duplicate-safe bulk loader. Each Load call
// copies its batch into a transaction-scoped staging table and moves it into
// the target table with ON CONFLICT DO NOTHING, so the natural key uniqueness
// constraint decides what is a duplicate even across concurrent uploads.
func NewRecordRepository(tx TxRunner, query Queryer, registry *schema.Registry) RecordRepository {
	if registry == nil {
		registry = schema.Default()
	}
	return &recordRepository{tx: tx, query: query, registry: registry}
}

func (r *recordRepository) Load(ctx context.Context, jobID uuid.UUID, kind schema.Kind, records []schema.Record) (LoadResult, error) {
	if len(records) == 0 {
		return LoadResult{}, nil
	}
	def, ok := r.registry.Definition(kind)
	if !ok {
		return LoadResult{}, fmt.Errorf("load records: unknown kind %q", kind)
	}

	plan := newLoadPlan(def)
	rows := make([][]any, 0, len(records))
	for _, record := range records {
		row := make([]any, 0, len(plan.columns))
		row = append(row, jobID)
		row = append(row, record.Row(plan.fields)...)
		rows = append(rows, row)
	}

	var inserted int64
	err := r.tx.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, plan.createStaging); err != nil {
			return fmt.Errorf("create staging table for %s: %w", def.Table, err)
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{plan.stagingTable}, plan.columns, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("copy %s staging: %w", def.Table, err)
		}
		tag, err := tx.Exec(ctx, plan.insert)
		if err != nil {
			return fmt.Errorf("insert %s: %w", def.Table, err)
		}
		inserted = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return LoadResult{}, err
	}

	return LoadResult{
		Inserted:   int(inserted),
		Duplicates: len(records) - int(inserted),
	}, nil
}

func (r *recordRepository) Count(ctx context.Context, kind schema.Kind) (int64, error) {
	def, ok := r.registry.Definition(kind)
	if !ok {
		return 0, fmt.Errorf("count records: unknown kind %q", kind)
	}
	var count int64
	sql := "SELECT COUNT(*) FROM " + pgx.Identifier{def.Table}.Sanitize()
	if err := r.query.QueryRow(ctx, sql).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", def.Table, err)
	}
	return count, nil
}

type loadPlan struct {
	fields        []schema.Field
	columns       []string
	stagingTable  string
	createStaging string
	insert        string
}

func newLoadPlan(def schema.Definition) loadPlan {
	fields := def.StoredFields()
	columns := make([]string, 0, len(fields)+1)
	columns = append(columns, "import_job_id")
	for _, field := range fields {
		columns = append(columns, field.Column)
	}

	quoted := make([]string, len(columns))
	for i, column := range columns {
		quoted[i] = pgx.Identifier{column}.Sanitize()
	}
	keys := def.NaturalKeyColumns()
	quotedKeys := make([]string, len(keys))
	for i, column := range keys {
		quotedKeys[i] = pgx.Identifier{column}.Sanitize()
	}

	staging := "staging_" + def.Table
	table := pgx.Identifier{def.Table}.Sanitize()
	stagingIdent := pgx.Identifier{staging}.Sanitize()
	columnList := strings.Join(quoted, ", ")

	return loadPlan{
		fields:       fields,
		columns:      columns,
		stagingTable: staging,
		createStaging: fmt.Sprintf(
			"CREATE TEMP TABLE %s ON COMMIT DROP AS SELECT %s FROM %s WITH NO DATA",
			stagingIdent, columnList, table,
		),
		insert: fmt.Sprintf(
			"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO NOTHING",
			table, columnList, columnList, stagingIdent, strings.Join(quotedKeys, ", "),
		),
	}
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/AlexTsimba/traffboard-sub001/internal/schema"
	"github.com/AlexTsimba/traffboard-sub001/internal/transformations"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeTx struct {
	pgx.Tx
	statements []string
	copyTable  pgx.Identifier
	copyCols   []string
	copied     [][]any
	inserted   int64
	insertErr  error
}

func (f *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.statements = append(f.statements, sql)
	if strings.HasPrefix(sql, "INSERT") {
		if f.insertErr != nil {
			return pgconn.CommandTag{}, f.insertErr
		}
		return pgconn.NewCommandTag(fmt.Sprintf("INSERT 0 %d", f.inserted)), nil
	}
	return pgconn.NewCommandTag("CREATE TABLE AS"), nil
}

func (f *fakeTx) CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	f.copyTable = table
	f.copyCols = columns
	for src.Next() {
		values, err := src.Values()
		if err != nil {
			return 0, err
		}
		f.copied = append(f.copied, values)
	}
	return int64(len(f.copied)), src.Err()
}

type fakeTxRunner struct {
	tx    *fakeTx
	calls int
}

func (r *fakeTxRunner) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	r.calls++
	return fn(r.tx)
}

func trafficRecords(n int) []schema.Record {
	tr := transformations.NewTransformer(nil)
	headers := []string{"Date", "Foreign Brand ID", "Foreign Partner ID", "Foreign Campaign ID", "All Clicks"}
	records := make([]schema.Record, n)
	for i := range records {
		records[i] = tr.Transform([]string{"2024-03-01", "1", "2", fmt.Sprint(i), "10"}, headers, schema.KindTrafficReport)
	}
	return records
}

func TestRecordRepositoryLoadCountsDuplicates(t *testing.T) {
	tx := &fakeTx{inserted: 3}
	runner := &fakeTxRunner{tx: tx}
	repo := NewRecordRepository(runner, nil, nil)
	jobID := uuid.New()

	result, err := repo.Load(context.Background(), jobID, schema.KindTrafficReport, trafficRecords(4))
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if result.Inserted != 3 || result.Duplicates != 1 {
		t.Fatalf("unexpected load result: %+v", result)
	}
	if runner.calls != 1 {
		t.Fatalf("expected a single transaction, got %d", runner.calls)
	}
	if len(tx.statements) != 2 {
		t.Fatalf("expected staging + insert statements, got %v", tx.statements)
	}
	if !strings.Contains(tx.statements[0], "ON COMMIT DROP") {
		t.Fatalf("staging table must be transaction scoped: %s", tx.statements[0])
	}
	if !strings.Contains(tx.statements[1], "ON CONFLICT") || !strings.Contains(tx.statements[1], "DO NOTHING") {
		t.Fatalf("insert must skip natural key conflicts: %s", tx.statements[1])
	}
	if tx.copyTable[0] != "staging_traffic_reports" {
		t.Fatalf("unexpected staging table %v", tx.copyTable)
	}
	if len(tx.copyCols) != 20 || tx.copyCols[0] != "import_job_id" {
		t.Fatalf("unexpected copy columns %v", tx.copyCols)
	}
	if len(tx.copied) != 4 || tx.copied[0][0] != jobID {
		t.Fatalf("unexpected copied rows: %d", len(tx.copied))
	}
}

func TestRecordRepositoryLoadEmptyBatchSkipsTransaction(t *testing.T) {
	runner := &fakeTxRunner{tx: &fakeTx{}}
	repo := NewRecordRepository(runner, nil, nil)

	result, err := repo.Load(context.Background(), uuid.New(), schema.KindPlayersData, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != (LoadResult{}) || runner.calls != 0 {
		t.Fatalf("expected no work for an empty batch, got %+v calls=%d", result, runner.calls)
	}
}

func TestRecordRepositoryLoadPropagatesStorageErrors(t *testing.T) {
	boom := errors.New("connection reset")
	runner := &fakeTxRunner{tx: &fakeTx{insertErr: boom}}
	repo := NewRecordRepository(runner, nil, nil)

	_, err := repo.Load(context.Background(), uuid.New(), schema.KindTrafficReport, trafficRecords(2))
	if !errors.Is(err, boom) {
		t.Fatalf("expected storage error to propagate, got %v", err)
	}
}

func TestRecordRepositoryLoadRejectsUnknownKind(t *testing.T) {
	repo := NewRecordRepository(&fakeTxRunner{tx: &fakeTx{}}, nil, nil)

	if _, err := repo.Load(context.Background(), uuid.New(), schema.Kind("ledger"), trafficRecords(1)); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestLoadPlanPlayerStatements(t *testing.T) {
	def, _ := schema.Default().Definition(schema.KindPlayersData)
	plan := newLoadPlan(def)

	if len(plan.columns) != 35 {
		t.Fatalf("expected job id plus 34 stored columns, got %d", len(plan.columns))
	}
	for _, column := range plan.columns {
		if column == "partners_email" {
			t.Fatalf("partners email must never be loaded")
		}
	}
	if !strings.HasSuffix(plan.insert, `ON CONFLICT ("player_id", "date") DO NOTHING`) {
		t.Fatalf("unexpected insert statement: %s", plan.insert)
	}
	if !strings.HasPrefix(plan.createStaging, `CREATE TEMP TABLE "staging_player_records" ON COMMIT DROP AS SELECT "import_job_id"`) {
		t.Fatalf("unexpected staging statement: %s", plan.createStaging)
	}
}

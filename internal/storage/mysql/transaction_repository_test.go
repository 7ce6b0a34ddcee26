package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"testing/fstest"

	xerrors "cuffie-gateway/internal/errors"
)

func TestMemoryTransactionRepositoryRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	repo, err := NewMemoryTransactionRepository(dir)
	if err != nil {
		t.Fatalf("failed to create memory repo: %v", err)
	}

	ctx := context.Background()
	alice := "0x00000000000000000000000000000000000000A1"
	bob := "0x00000000000000000000000000000000000000b2"
	for i, from := range []string{alice, bob, alice} {
		record := TransactionRecord{
			Method:    "approve",
			ChainID:   56,
			From:      from,
			To:        "0xe9e7CEA3DedcA5984780Bafc599bD69ADd087D56",
			Hash:      fmt.Sprintf("0x%064x", i+1),
			GasPrice:  "5000000000",
			Gas:       46000,
			Amount:    "10",
			CreatedAt: int64(100 + i),
		}
		if err := repo.Save(ctx, record); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	latest, err := repo.ListLatest(ctx, 2)
	if err != nil {
		t.Fatalf("list latest failed: %v", err)
	}
	if len(latest) != 2 || latest[0].CreatedAt != 102 {
		t.Fatalf("unexpected latest records: %+v", latest)
	}
	if latest[0].ID == "" {
		t.Fatal("expected an id to be assigned")
	}

	mine, err := repo.ListByAccount(ctx, alice, 0)
	if err != nil {
		t.Fatalf("list by account failed: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 records for alice, got %d", len(mine))
	}

	reopened, err := NewMemoryTransactionRepository(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	restored, _ := reopened.ListLatest(ctx, 0)
	if len(restored) != 3 || restored[0].CreatedAt != 102 {
		t.Fatalf("unexpected restored records: %+v", restored)
	}
}

func TestMemoryTransactionRepositoryKeepsNewestOnLoad(t *testing.T) {
	dir := t.TempDir()
	var lines []byte
	for i := 0; i < 600; i++ {
		encoded, err := json.Marshal(TransactionRecord{ID: fmt.Sprintf("tx-%d", i), Method: "approve", CreatedAt: int64(i)})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		lines = append(append(lines, encoded...), '\n')
	}
	if err := os.WriteFile(filepath.Join(dir, "transactions.log"), lines, 0o644); err != nil {
		t.Fatalf("write ledger: %v", err)
	}

	repo, err := NewMemoryTransactionRepository(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	records, _ := repo.ListLatest(context.Background(), 0)
	if len(records) != memoryCacheSize {
		t.Fatalf("expected %d cached records, got %d", memoryCacheSize, len(records))
	}
	if records[0].CreatedAt != 599 || records[len(records)-1].CreatedAt != 600-memoryCacheSize {
		t.Fatalf("unexpected window %d..%d", records[0].CreatedAt, records[len(records)-1].CreatedAt)
	}
}

func TestMemoryTransactionRepositoryWriteFailureIsStorageError(t *testing.T) {
	repo := &MemoryTransactionRepository{dataFile: t.TempDir()}
	err := repo.Save(context.Background(), TransactionRecord{Method: "approve"})
	if !xerrors.HasCode(err, xerrors.CodeStorageFailure) {
		t.Fatalf("expected storage failure, got %v", err)
	}
	if !xerrors.RetryableError(err) {
		t.Fatal("storage failures are retryable")
	}
}

func TestSQLTransactionRepositorySave(t *testing.T) {
	t.Parallel()

	db, driver := newMockDB(t, []mockOperation{
		execOp(insertTransactionSQL(), mockResult{rowsAffected: 1}),
	})
	defer driver.assertConsumed(t)
	defer db.Close()

	repo := &SQLTransactionRepository{db: db}
	record := TransactionRecord{Method: "claimBoughtAmount", ChainID: 56, From: "0xA1", To: "0xB2", Hash: "0xFF"}
	if err := repo.Save(context.Background(), record); err != nil {
		t.Fatalf("save failed: %v", err)
	}
}

func TestSQLTransactionRepositoryListByAccount(t *testing.T) {
	t.Parallel()

	rows := mockRowsData{
		columns: []string{"id", "method", "network", "chain_id", "from_address", "to_address", "tx_hash", "gas_price", "gas", "amount", "created_at"},
		values: [][]driver.Value{
			{"b", "BuymyCuffies", "bsc", int64(56), "0xa1", "0xsale", "0x02", "5", int64(90000), "10", int64(20)},
			{"a", "approve", "bsc", int64(56), "0xa1", "0xbusd", "0x01", "5", int64(46000), "10", int64(10)},
		},
	}

	db, driver := newMockDB(t, []mockOperation{
		queryOp(`SELECT id, method, network, chain_id, from_address, to_address, tx_hash, gas_price, gas, amount, created_at
    FROM transactions WHERE from_address = ? ORDER BY created_at DESC LIMIT ?`, rows),
	})
	defer driver.assertConsumed(t)
	defer db.Close()

	repo := &SQLTransactionRepository{db: db}
	list, err := repo.ListByAccount(context.Background(), "0xA1", 5)
	if err != nil {
		t.Fatalf("list by account failed: %v", err)
	}
	if len(list) != 2 || list[0].Method != "BuymyCuffies" || list[1].Gas != 46000 {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestSQLTransactionRepositoryRunMigrations(t *testing.T) {
	t.Parallel()

	ops := []mockOperation{
		execOp(createMigrationsTable, mockResult{}),
		queryOp(`SELECT version FROM schema_migrations`, mockRowsData{columns: []string{"version"}}),
		beginOp(),
		execOp(readMigrationStatement(), mockResult{}),
		execOp(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`, mockResult{rowsAffected: 1}),
		commitOp(),
	}
	db, driver := newMockDB(t, ops)
	defer driver.assertConsumed(t)
	defer db.Close()

	repo := &SQLTransactionRepository{db: db}
	if err := repo.runMigrations(context.Background()); err != nil {
		t.Fatalf("run migrations failed: %v", err)
	}
}

func TestSQLTransactionRepositorySkipsAppliedMigrations(t *testing.T) {
	t.Parallel()

	ops := []mockOperation{
		execOp(createMigrationsTable, mockResult{}),
		queryOp(`SELECT version FROM schema_migrations`, mockRowsData{
			columns: []string{"version"},
			values:  [][]driver.Value{{"0001"}},
		}),
	}
	db, driver := newMockDB(t, ops)
	defer driver.assertConsumed(t)
	defer db.Close()

	repo := &SQLTransactionRepository{db: db}
	if err := repo.runMigrations(context.Background()); err != nil {
		t.Fatalf("run migrations failed: %v", err)
	}
}

func TestLoadMigrationsOrdersByVersion(t *testing.T) {
	t.Parallel()

	source := fstest.MapFS{
		"0002_b.sql": {Data: []byte("SELECT 2;")},
		"0001_a.sql": {Data: []byte("SELECT 1; SELECT 11;")},
		"empty.sql":  {Data: []byte("  ")},
		"README.md":  {Data: []byte("ignored")},
	}
	list, err := loadMigrations(source)
	if err != nil {
		t.Fatalf("load migrations: %v", err)
	}
	if len(list) != 2 || list[0].version != "0001" || len(list[0].statements) != 2 {
		t.Fatalf("unexpected migrations: %+v", list)
	}
}

func TestNormalizeDSN(t *testing.T) {
	t.Parallel()

	dsn, err := normalizeDSN("cuffie:secret@tcp(127.0.0.1:3306)/cuffie?parseTime=true")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if strings.Contains(dsn, "parseTime=true") || !strings.Contains(dsn, "timeout=5s") {
		t.Fatalf("unexpected dsn %q", dsn)
	}
	if _, err := normalizeDSN(" "); err == nil {
		t.Fatal("expected empty dsn to be rejected")
	}
}

func insertTransactionSQL() string {
	return `INSERT INTO transactions
    (id, method, network, chain_id, from_address, to_address, tx_hash, gas_price, gas, amount, created_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
}

func readMigrationStatement() string {
	content, err := embeddedMigrations.ReadFile("0001_create_transactions.sql")
	if err != nil {
		panic(fmt.Sprintf("failed to read migration: %v", err))
	}
	statements := splitStatements(string(content))
	if len(statements) == 0 {
		panic("no statements in migration")
	}
	return statements[0]
}

type operationType int

const (
	opExec operationType = iota
	opQuery
	opBegin
	opCommit
	opRollback
)

type mockOperation struct {
	typ    operationType
	query  string
	result mockResult
	rows   mockRowsData
	err    error
}

type mockResult struct {
	lastInsertID int64
	rowsAffected int64
}

func (r mockResult) LastInsertId() (int64, error) { return r.lastInsertID, nil }
func (r mockResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

type mockRowsData struct {
	columns []string
	values  [][]driver.Value
}

type queueDriver struct {
	ops []mockOperation
	idx int32
}

var driverSeq atomic.Int32

func newMockDB(t *testing.T, ops []mockOperation) (*sql.DB, *queueDriver) {
	t.Helper()

	drv := &queueDriver{ops: ops}
	name := fmt.Sprintf("mock-mysql-%d", driverSeq.Add(1))
	sql.Register(name, drv)

	db, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("open mock db failed: %v", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, drv
}

func execOp(query string, result mockResult) mockOperation {
	return mockOperation{typ: opExec, query: query, result: result}
}

func queryOp(query string, rows mockRowsData) mockOperation {
	return mockOperation{typ: opQuery, query: query, rows: rows}
}

func beginOp() mockOperation { return mockOperation{typ: opBegin} }

func commitOp() mockOperation { return mockOperation{typ: opCommit} }

func (d *queueDriver) assertConsumed(t *testing.T) {
	t.Helper()

	if int(atomic.LoadInt32(&d.idx)) != len(d.ops) {
		t.Fatalf("not all operations consumed: %d/%d", atomic.LoadInt32(&d.idx), len(d.ops))
	}
}

func (d *queueDriver) Open(string) (driver.Conn, error) {
	return &mockConn{driver: d}, nil
}

func (d *queueDriver) next(expected operationType, query string) (*mockOperation, error) {
	idx := int(atomic.LoadInt32(&d.idx))
	if idx >= len(d.ops) {
		return nil, fmt.Errorf("unexpected operation: %v", expected)
	}
	op := &d.ops[idx]
	if op.typ != expected {
		return nil, fmt.Errorf("expected operation %v, got %v", expected, op.typ)
	}
	atomic.AddInt32(&d.idx, 1)
	if op.query != "" && normalizeSQL(op.query) != normalizeSQL(query) {
		return nil, fmt.Errorf("unexpected query. want %q got %q", normalizeSQL(op.query), normalizeSQL(query))
	}
	return op, nil
}

type mockConn struct {
	driver *queueDriver
}

func (c *mockConn) Prepare(query string) (driver.Stmt, error) {
	return nil, fmt.Errorf("prepare not supported: %s", query)
}

func (c *mockConn) Close() error { return nil }

func (c *mockConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *mockConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	op, err := c.driver.next(opBegin, "")
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return &mockTx{driver: c.driver}, nil
}

func (c *mockConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	op, err := c.driver.next(opExec, query)
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return op.result, nil
}

func (c *mockConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	op, err := c.driver.next(opQuery, query)
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return &mockRows{columns: op.rows.columns, values: op.rows.values}, nil
}

// CheckNamedValue accepts every argument type, including uint64.
func (c *mockConn) CheckNamedValue(*driver.NamedValue) error { return nil }

func (c *mockConn) Ping(context.Context) error { return nil }

type mockTx struct {
	driver *queueDriver
}

func (t *mockTx) Commit() error {
	op, err := t.driver.next(opCommit, "")
	if err != nil {
		return err
	}
	return op.err
}

func (t *mockTx) Rollback() error {
	op, err := t.driver.next(opRollback, "")
	if err != nil {
		return err
	}
	return op.err
}

type mockRows struct {
	columns []string
	values  [][]driver.Value
	idx     int
}

func (r *mockRows) Columns() []string { return r.columns }
func (r *mockRows) Close() error      { return nil }

func (r *mockRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.idx])
	r.idx++
	return nil
}

func normalizeSQL(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

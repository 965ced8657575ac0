package store

import (
	"context"
	"fmt"
	"reflect"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MockDBQuerier records every statement and returns canned results
type MockDBQuerier struct {
	QueryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	ExecFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)

	Statements []string
	Args       [][]any
}

func (m *MockDBQuerier) record(sql string, args []any) {
	m.Statements = append(m.Statements, sql)
	m.Args = append(m.Args, args)
}

func (m *MockDBQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	m.record(sql, args)
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, sql, args...)
	}
	return &MockPGXRows{}, nil
}

func (m *MockDBQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.record(sql, args)
	if m.QueryRowFunc != nil {
		return m.QueryRowFunc(ctx, sql, args...)
	}
	return &MockRow{}
}

func (m *MockDBQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.record(sql, args)
	if m.ExecFunc != nil {
		return m.ExecFunc(ctx, sql, args...)
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

type MockRow struct {
	ScanFunc func(dest ...any) error
}

func (m *MockRow) Scan(dest ...any) error {
	if m.ScanFunc != nil {
		return m.ScanFunc(dest...)
	}
	return nil
}

// rowOf scans one fixed row.
func rowOf(values ...any) *MockRow {
	return &MockRow{ScanFunc: func(dest ...any) error { return setDest(dest, values) }}
}

// MockPGXRows serves Data one row at a time
type MockPGXRows struct {
	pgx.Rows
	Data [][]any
	idx  int
	err  error
}

func (m *MockPGXRows) Next() bool {
	if m.idx >= len(m.Data) {
		return false
	}
	m.idx++
	return true
}

func (m *MockPGXRows) Scan(dest ...any) error {
	return setDest(dest, m.Data[m.idx-1])
}

func (m *MockPGXRows) Close()     {}
func (m *MockPGXRows) Err() error { return m.err }

// setDest copies values into scan destinations, converting between
// compatible kinds the way the drivers do.
func setDest(dest []any, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(values))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if values[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		v := reflect.ValueOf(values[i])
		if target.Kind() == reflect.Ptr && v.Kind() != reflect.Ptr {
			ptr := reflect.New(target.Type().Elem())
			ptr.Elem().Set(v.Convert(target.Type().Elem()))
			target.Set(ptr)
			continue
		}
		if !v.Type().ConvertibleTo(target.Type()) {
			return fmt.Errorf("scan: cannot assign %T to %s", values[i], target.Type())
		}
		target.Set(v.Convert(target.Type()))
	}
	return nil
}

// MockClickHouseConn implements driver.Conn for the archive
type MockClickHouseConn struct {
	driver.Conn
	QueryFunc func(ctx context.Context, query string, args ...interface{}) (driver.Rows, error)
	Batch     *MockBatch
	Queries   []string
	QueryArgs [][]interface{}
}

func (m *MockClickHouseConn) Query(ctx context.Context, query string, args ...interface{}) (driver.Rows, error) {
	m.Queries = append(m.Queries, query)
	m.QueryArgs = append(m.QueryArgs, args)
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, query, args...)
	}
	return &MockCHRows{}, nil
}

func (m *MockClickHouseConn) PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error) {
	m.Queries = append(m.Queries, query)
	if m.Batch == nil {
		m.Batch = &MockBatch{}
	}
	return m.Batch, nil
}

type MockBatch struct {
	driver.Batch
	AppendErr error
	SendErr   error
	Appended  [][]interface{}
	Sent      bool
	Aborted   bool
}

func (m *MockBatch) IsSent() bool { return m.Sent }
func (m *MockBatch) Rows() int    { return len(m.Appended) }

func (m *MockBatch) Append(v ...interface{}) error {
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.Appended = append(m.Appended, v)
	return nil
}

func (m *MockBatch) Send() error {
	if m.SendErr != nil {
		return m.SendErr
	}
	m.Sent = true
	return nil
}

func (m *MockBatch) Abort() error {
	m.Aborted = true
	return nil
}

type MockCHRows struct {
	driver.Rows
	Data [][]any
	idx  int
}

func (m *MockCHRows) Next() bool {
	if m.idx >= len(m.Data) {
		return false
	}
	m.idx++
	return true
}

func (m *MockCHRows) Scan(dest ...interface{}) error {
	return setDest(dest, m.Data[m.idx-1])
}

func (m *MockCHRows) Close() error { return nil }
func (m *MockCHRows) Err() error   { return nil }

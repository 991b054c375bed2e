package postgres

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/guileen/memquery/types"
)

// fakeRows replays fixed values through the pgx.Rows interface.
type fakeRows struct {
	fields []pgconn.FieldDescription
	values [][]any
	pos    int
	err    error
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return r.fields }
func (r *fakeRows) Scan(...any) error                            { return errors.New("not supported") }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.values) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) {
	return append([]any(nil), r.values[r.pos-1]...), nil
}

type mockQuerier struct {
	mock.Mock
}

func (m *mockQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	called := m.Called(sql, args)
	rows, _ := called.Get(0).(pgx.Rows)
	return rows, called.Error(1)
}

func TestLoad(t *testing.T) {
	id := uuid.New()
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := &fakeRows{
		fields: []pgconn.FieldDescription{
			{Name: "id", DataTypeOID: pgtype.Int4OID},
			{Name: "name", DataTypeOID: pgtype.TextOID},
			{Name: "ref", DataTypeOID: pgtype.UUIDOID},
			{Name: "price", DataTypeOID: pgtype.NumericOID},
			{Name: "created", DataTypeOID: pgtype.TimestamptzOID},
		},
		values: [][]any{
			{int32(1), "ann", [16]byte(id), pgtype.Numeric{Int: big.NewInt(1250), Exp: -2, Valid: true}, at},
			{int32(2), nil, nil, pgtype.Numeric{}, nil},
		},
	}
	q := &mockQuerier{}
	q.On("Query", "select * from users where id > $1", []any{0}).Return(rows, nil)

	rel, err := Load(context.Background(), q, "users", "select * from users where id > $1", 0)
	require.NoError(t, err)
	q.AssertExpectations(t)
	assert.True(t, rows.closed)

	assert.Equal(t, "users", rel.Name())
	assert.Equal(t, types.ColumnTypeNumeric, rel.Schema().ColumnAt(3).Type)
	assert.Equal(t, [][]any{
		{int64(1), "ann", id, 12.5, at},
		{int64(2), nil, nil, nil, nil},
	}, rel.Values())
}

func TestLoad_Errors(t *testing.T) {
	q := &mockQuerier{}
	q.On("Query", "bad", []any(nil)).Return(nil, errors.New("syntax error"))
	_, err := Load(context.Background(), q, "r", "bad")
	assert.ErrorContains(t, err, "syntax error")

	rows := &fakeRows{
		fields: []pgconn.FieldDescription{{Name: "a", DataTypeOID: pgtype.Int8OID}},
		err:    errors.New("connection reset"),
	}
	q = &mockQuerier{}
	q.On("Query", "select a", []any(nil)).Return(rows, nil)
	_, err = Load(context.Background(), q, "r", "select a")
	assert.ErrorContains(t, err, "connection reset")

	dup := &fakeRows{fields: []pgconn.FieldDescription{{Name: "a"}, {Name: "a"}}}
	q = &mockQuerier{}
	q.On("Query", "select a, a", []any(nil)).Return(dup, nil)
	_, err = Load(context.Background(), q, "r", "select a, a")
	assert.Error(t, err)
}

func TestColumnType(t *testing.T) {
	tests := []struct {
		oid  uint32
		want types.ColumnType
	}{
		{pgtype.Int2OID, types.ColumnTypeInteger},
		{pgtype.Int8OID, types.ColumnTypeBigInt},
		{pgtype.Float8OID, types.ColumnTypeDouble},
		{pgtype.BoolOID, types.ColumnTypeBoolean},
		{pgtype.VarcharOID, types.ColumnTypeString},
		{pgtype.DateOID, types.ColumnTypeDate},
		{pgtype.ByteaOID, types.ColumnTypeBinary},
		{pgtype.JSONBOID, types.ColumnTypeJSON},
		{pgtype.PointOID, types.ColumnTypeUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ColumnType(tt.oid), "oid %d", tt.oid)
	}
}

package database

import (
	"context"
	"testing"

	"github.com/johan-st/query-console/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openPatients(t *testing.T, readOnly bool) *Connection {
	t.Helper()

	dbPath, cleanup := testutil.PatientDB(t)
	t.Cleanup(cleanup)

	opts := DefaultOpenOptions()
	opts.ReadOnly = readOnly
	conn, err := Open(context.Background(), dbPath, opts)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestReturnsRows(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"SELECT 1", true},
		{"  select * from patients", true},
		{"PRAGMA table_info(patients)", true},
		{"EXPLAIN QUERY PLAN SELECT 1", true},
		{"WITH t AS (SELECT 1) SELECT * FROM t", true},
		{"VALUES (1), (2)", true},
		{"(SELECT 1)", true},
		{"-- comment\nSELECT 1", true},
		{"/* block */ SELECT 1", true},
		{"UPDATE patients SET phone = NULL", false},
		{"INSERT INTO patients DEFAULT VALUES", false},
		{"DELETE FROM patients", false},
		{"-- only a comment", false},
		{"INSERT INTO patients (first_name) VALUES ('a') RETURNING id", true},
		{"delete from patients where id = 1 returning *", true},
		{"UPDATE patients SET last_name = 'returning' WHERE id = 1", false},
		{"UPDATE patients SET gender = NULL -- returning\nWHERE id = 1", false},
		{"UPDATE patients SET \"returning\" = 1", false},
		{"UPDATE patients SET phone = returning_phone", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, ReturnsRows(tt.query))
		})
	}
}

func TestService_SQLite(t *testing.T) {
	conn := openPatients(t, false)
	svc := NewService(conn, ServiceOptions{})
	ctx := context.Background()

	t.Run("ordered rows and columns", func(t *testing.T) {
		res, err := svc.Execute(ctx, "SELECT * FROM patients ORDER BY last_name LIMIT 10")
		require.NoError(t, err)
		require.True(t, res.Success, res.Error)
		require.Len(t, res.Data, 10)

		assert.Equal(t, []string{
			"id", "first_name", "last_name", "date_of_birth",
			"gender", "email", "phone", "created_at",
		}, res.Columns())

		last, _ := res.Data[0].Get("last_name")
		assert.Equal(t, "Anderson", last)
		email, ok := res.Data[0].Get("email")
		assert.True(t, ok)
		assert.Nil(t, email)
		id, _ := res.Data[0].Get("id")
		assert.IsType(t, int64(0), id)
	})

	t.Run("filter by name", func(t *testing.T) {
		res, err := svc.Execute(ctx, "SELECT * FROM patients WHERE last_name LIKE 'S%' ORDER BY last_name")
		require.NoError(t, err)
		require.True(t, res.Success)

		var names []string
		for _, row := range res.Data {
			v, _ := row.Get("last_name")
			names = append(names, v.(string))
		}
		assert.Equal(t, []string{"Sanchez", "Smith", "Stewart"}, names)
	})

	t.Run("no rows", func(t *testing.T) {
		res, err := svc.Execute(ctx, "SELECT * FROM patients WHERE id < 0")
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Empty(t, res.Data)
		assert.NotNil(t, res.Data)
	})

	t.Run("sql error", func(t *testing.T) {
		res, err := svc.Execute(ctx, "SELECT * FROM nope")
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "no such table: nope")
		assert.Empty(t, res.Data)
	})

	t.Run("statement without rows", func(t *testing.T) {
		res, err := svc.Execute(ctx, "UPDATE patients SET phone = '555-0000' WHERE last_name = 'Smith'")
		require.NoError(t, err)
		require.True(t, res.Success, res.Error)
		require.Len(t, res.Data, 1)

		affected, _ := res.Data[0].Get(ColumnRowsAffected)
		assert.Equal(t, int64(1), affected)
		assert.Equal(t, []string{ColumnRowsAffected, ColumnLastInsertID}, res.Data[0].Columns())
	})

	t.Run("insert returning rows", func(t *testing.T) {
		res, err := svc.Execute(ctx, "INSERT INTO patients (first_name, last_name, date_of_birth) "+
			"VALUES ('Ada', 'Lovelace', '1815-12-10') RETURNING id, last_name")
		require.NoError(t, err)
		require.True(t, res.Success, res.Error)
		require.Len(t, res.Data, 1)

		assert.Equal(t, []string{"id", "last_name"}, res.Columns())
		last, _ := res.Data[0].Get("last_name")
		assert.Equal(t, "Lovelace", last)
		id, _ := res.Data[0].Get("id")
		assert.IsType(t, int64(0), id)

		count, err := svc.Execute(ctx, "SELECT COUNT(*) AS n FROM patients WHERE last_name = 'Lovelace'")
		require.NoError(t, err)
		n, _ := count.Data[0].Get("n")
		assert.Equal(t, int64(1), n)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, svc.Ping(ctx))
	})
}

func TestService_ReadOnly(t *testing.T) {
	conn := openPatients(t, true)
	svc := NewService(conn, ServiceOptions{})

	res, err := svc.Execute(context.Background(), "DELETE FROM patients")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)

	res, err = svc.Execute(context.Background(), "SELECT COUNT(*) AS n FROM patients")
	require.NoError(t, err)
	require.True(t, res.Success)
	n, _ := res.Data[0].Get("n")
	assert.Equal(t, int64(12), n)
}

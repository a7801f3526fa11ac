package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRowsNoOp(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	n, err := CopyFrom(context.Background(), mock, "curated_factors", []string{"id", "name"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_CopiesRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"curated_factors"}, []string{"id", "name"}).WillReturnResult(2)

	rows := [][]any{
		{"f1", "organic barley"},
		{"f2", "glass bottle"},
	}
	n, err := CopyFrom(context.Background(), mock, "curated_factors", []string{"id", "name"}, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_WrapsError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"curated_factors"}, []string{"id"}).WillReturnError(assert.AnError)

	_, err = CopyFrom(context.Background(), mock, "curated_factors", []string{"id"}, [][]any{{"f1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO curated_factors")
}

package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var fundColumns = []string{"fund_name", "cik"}

func TestCopyChunked_EmptyRows(t *testing.T) {
	n, err := CopyChunked(context.TODO(), nil, "funds", fundColumns, nil, 0)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyChunked_SingleChunk(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"funds"}, fundColumns).WillReturnResult(3)

	rows := [][]any{{"Berkshire Hathaway", "0001067983"}, {"Sequoia Fund", "0000089043"}, {"Mairs & Power Inc", "0001070134"}}
	n, err := CopyChunked(context.Background(), mock, "funds", fundColumns, rows, 0)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyChunked_SplitsRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"funds"}, fundColumns).WillReturnResult(2)
	mock.ExpectCopyFrom(pgx.Identifier{"funds"}, fundColumns).WillReturnResult(2)
	mock.ExpectCopyFrom(pgx.Identifier{"funds"}, fundColumns).WillReturnResult(1)

	rows := make([][]any, 5)
	for i := range rows {
		rows[i] = []any{fmt.Sprintf("FUND %d", i), fmt.Sprintf("%010d", i+1)}
	}
	n, err := CopyChunked(context.Background(), mock, "funds", fundColumns, rows, 2)
	assert.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyChunked_ErrorKeepsCount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"funds"}, fundColumns).WillReturnResult(2)
	mock.ExpectCopyFrom(pgx.Identifier{"funds"}, fundColumns).WillReturnError(fmt.Errorf("copy failed"))

	rows := [][]any{{"A", "0000000001"}, {"B", "0000000002"}, {"C", "0000000003"}}
	n, err := CopyChunked(context.Background(), mock, "funds", fundColumns, rows, 2)
	require.Error(t, err)
	assert.Equal(t, int64(2), n)
	assert.Contains(t, err.Error(), "COPY INTO funds rows 2-3")
	assert.NoError(t, mock.ExpectationsWereMet())
}

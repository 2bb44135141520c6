package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/holdings-cli/internal/model"
)

func sliceSource(funds []model.Fund) registrySource {
	return func(fn func(model.Fund) error) (int, error) {
		for _, f := range funds {
			if err := fn(f); err != nil {
				return 0, err
			}
		}
		return len(funds), nil
	}
}

func TestLoadRegistry_InsertsAndMerges(t *testing.T) {
	ctx := context.Background()
	useSQLiteConfig(t)
	st, err := initMigratedStore(ctx)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	n, err := loadRegistry(ctx, st, sliceSource([]model.Fund{
		{FundName: "BERKSHIRE HATHAWAY INC", CIK: "0001067983"},
		{FundName: "BLACKROCK INC.", CIK: "0001364742"},
		{FundName: "BERKSHIRE HATHAWAY", CIK: "0001067983"},
	}))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	total, err := st.CountFunds(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	fund, err := st.GetFundByCIK(ctx, "0001067983")
	require.NoError(t, err)
	assert.Contains(t, fund.FundName, "BERKSHIRE HATHAWAY INC")
}

func TestLoadRegistry_FlushesFullBatches(t *testing.T) {
	ctx := context.Background()
	useSQLiteConfig(t)
	st, err := initMigratedStore(ctx)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	funds := make([]model.Fund, registryBatchSize+3)
	for i := range funds {
		funds[i] = model.Fund{FundName: fmt.Sprintf("FUND %d", i), CIK: fmt.Sprintf("%010d", 1000000+i)}
	}

	n, err := loadRegistry(ctx, st, sliceSource(funds))
	require.NoError(t, err)
	assert.Equal(t, int64(len(funds)), n)

	total, err := st.CountFunds(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(funds)), total)
}

func TestLoadRegistry_SourceError(t *testing.T) {
	ctx := context.Background()
	useSQLiteConfig(t)
	st, err := initMigratedStore(ctx)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	_, err = loadRegistry(ctx, st, func(fn func(model.Fund) error) (int, error) {
		return 0, errors.New("connection reset")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read registry")
}

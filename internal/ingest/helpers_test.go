package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/model"
	"github.com/sells-group/holdings-cli/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const (
	testCIK  = "0001099281"
	testName = "THIRD AVENUE MANAGEMENT LLC"
)

type row struct {
	name   string
	cusip  string
	value  int64
	shares int64
}

// thirteenF renders a minimal 13F-HR full-submission text.
func thirteenF(cik, accession, filed, period string, rows ...row) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<SEC-HEADER>\nACCESSION NUMBER:\t\t%s\nCONFORMED SUBMISSION TYPE:\t13F-HR\n", accession)
	fmt.Fprintf(&b, "CONFORMED PERIOD OF REPORT:\t%s\nFILED AS OF DATE:\t\t%s\n", period, filed)
	fmt.Fprintf(&b, "\t\tCOMPANY CONFORMED NAME:\t\t\t%s\n\t\tCENTRAL INDEX KEY:\t\t\t%s\n</SEC-HEADER>\n", testName, cik)
	b.WriteString("<XML>\n<informationTable>\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "<infoTable><nameOfIssuer>%s</nameOfIssuer><cusip>%s</cusip><value>%d</value>"+
			"<shrsOrPrnAmt><sshPrnamt>%d</sshPrnamt></shrsOrPrnAmt></infoTable>\n", r.name, r.cusip, r.value, r.shares)
	}
	b.WriteString("</informationTable>\n</XML>\n")
	return b.String()
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "ingest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedFund(t *testing.T, st store.Store) model.Fund {
	t.Helper()
	funds := []model.Fund{{FundName: testName, CIK: testCIK}}
	_, err := st.InsertFunds(context.Background(), funds)
	require.NoError(t, err)
	return funds[0]
}

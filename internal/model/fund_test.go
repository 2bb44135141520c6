package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilingTypeOrder(t *testing.T) {
	t.Parallel()

	require.Len(t, FilingTypes, 2)
	assert.Equal(t, "NPORT-P", string(FilingTypes[0]))
	assert.Equal(t, "13F-HR", string(FilingTypes[1]))
}

func TestFetchStatusValues(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "running", string(FetchStatusRunning))
	assert.Equal(t, "complete", string(FetchStatusComplete))
	assert.Equal(t, "failed", string(FetchStatusFailed))
}

func TestNormalizeCIK(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1067983", "0001067983", false},
		{"0001067983", "0001067983", false},
		{" 89043 ", "0000089043", false},
		{"CIK0000806636", "0000806636", false},
		{"", "", true},
		{"12345678901", "", true},
		{"12a45", "", true},
		{"-5", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeCIK(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTrimCIK(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1067983", TrimCIK("0001067983"))
	assert.Equal(t, "0", TrimCIK("0000000000"))
}

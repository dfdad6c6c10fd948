package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    int64
		wantErr bool
	}{
		{"whole units", "400", 40000, false},
		{"two decimals", "400.00", 40000, false},
		{"cents", "0.01", 1, false},
		{"one decimal", "12.5", 1250, false},
		{"empty", "", 0, true},
		{"not a number", "abc", 0, true},
		{"three decimals", "1.005", 0, true},
		{"zero", "0", 0, true},
		{"negative", "-5.00", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, fields := parseAmount(tt.in)
			if tt.wantErr {
				assert.NotEmpty(t, fields)
				return
			}
			assert.Empty(t, fields)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "400.00", formatAmount(40000))
	assert.Equal(t, "0.01", formatAmount(1))
	assert.Equal(t, "0.00", formatAmount(0))
	assert.Equal(t, "12.50", formatAmount(1250))
}

func TestTransferRequestValidate(t *testing.T) {
	valid := transferRequest{
		SourceAccountID:          "7b6f3a52-88df-44e3-9e93-1a6fd26b8d28",
		DestinationAccountNumber: "1234567890",
		Amount:                   "100.00",
		BeneficiaryName:          "Marie Durand",
		Password:                 "secret",
	}
	assert.Empty(t, valid.Validate())

	missing := transferRequest{}
	fields := missing.Validate()
	assert.Len(t, fields, 5)

	badID := valid
	badID.SourceAccountID = "not-a-uuid"
	fields = badID.Validate()
	assert.Len(t, fields, 1)
	assert.Equal(t, "source_account_id", fields[0].Field)
}

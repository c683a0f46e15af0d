package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgersift/ledgersift/internal/common"
	"github.com/ledgersift/ledgersift/internal/model"
)

func TestParseCSV(t *testing.T) {
	input := `description,amount,date
coffee,3.50,2024-01-15
taxi ride,12.80,2024-01-16
`
	payloads, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, payloads, 2)

	assert.Equal(t, "coffee", payloads[0]["description"])
	assert.Equal(t, "3.50", payloads[0]["amount"])
	assert.Equal(t, "taxi ride", payloads[1]["description"])
}

func TestParseCSVShortRow(t *testing.T) {
	// The csv reader enforces consistent field counts per record.
	input := "description,amount\ncoffee\n"
	_, err := ParseCSV(strings.NewReader(input))
	assert.Error(t, err)
}

func TestParseCSVEmpty(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestParseCSVHeaderOnly(t *testing.T) {
	payloads, err := ParseCSV(strings.NewReader("description,amount\n"))
	require.NoError(t, err)
	assert.Empty(t, payloads)
}

func TestParseJSON(t *testing.T) {
	input := `[
		{"description": "coffee", "amount": 3.5},
		{"desc": "taxi", "amount": "12.80", "date": "2024-01-16"}
	]`
	payloads, err := ParseJSON(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, payloads, 2)

	assert.Equal(t, "coffee", payloads[0].Description())
	assert.Equal(t, "taxi", payloads[1].Description())
}

func TestParseJSONItemsWrapper(t *testing.T) {
	input := `{"items": [
		{"description": "coffee", "amount": 3.5},
		{"desc": "taxi"}
	]}`
	payloads, err := ParseJSON(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, payloads, 2)

	assert.Equal(t, "coffee", payloads[0].Description())
	assert.Equal(t, "taxi", payloads[1].Description())

	// An object without items yields no records; Validate rejects it later.
	payloads, err = ParseJSON(strings.NewReader(`{"description": "coffee"}`))
	require.NoError(t, err)
	assert.Empty(t, payloads)
	assert.ErrorIs(t, Validate(payloads), common.ErrInvalidInput)
}

func TestParseJSONMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"truncated", `[{"description": "coffee"`},
		{"truncated wrapper", `{"items": [{"description": "coffee"`},
		{"items not a list", `{"items": "coffee"}`},
		{"garbage", `not json at all`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJSON(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, common.ErrInvalidInput)
		})
	}
}

func TestParseDispatch(t *testing.T) {
	csvPayloads, err := Parse("upload.CSV", strings.NewReader("description\ncoffee\n"))
	require.NoError(t, err)
	require.Len(t, csvPayloads, 1)

	jsonPayloads, err := Parse("upload.json", strings.NewReader(`[{"description": "coffee"}]`))
	require.NoError(t, err)
	require.Len(t, jsonPayloads, 1)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		payloads []model.Payload
		wantErr  bool
	}{
		{
			name:     "all records have description",
			payloads: []model.Payload{{"description": "coffee"}, {"desc": "taxi"}},
			wantErr:  false,
		},
		{
			name:     "empty description value is still valid",
			payloads: []model.Payload{{"description": ""}},
			wantErr:  false,
		},
		{
			name:     "record missing description field",
			payloads: []model.Payload{{"description": "coffee"}, {"amount": 5}},
			wantErr:  true,
		},
		{
			name:     "empty list",
			payloads: []model.Payload{},
			wantErr:  true,
		},
		{
			name:     "nil list",
			payloads: nil,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.payloads)
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

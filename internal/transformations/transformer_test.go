package transformations

import (
	"testing"
	"time"

	"github.com/AlexTsimba/traffboard-sub001/internal/schema"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransform_PlayerBlanksBecomeNull(t *testing.T) {
	tr := NewTransformer(nil)

	record := tr.Transform(
		[]string{"", "", ""},
		[]string{"Player ID", "FTD Sum", "Sign Up Date"},
		schema.KindPlayersData,
	)

	assert.Equal(t, schema.KindPlayersData, record.Kind)
	for _, name := range []string{"playerId", "ftdSum", "signUpDate"} {
		value, ok := record.Values[name]
		require.True(t, ok, "field %s missing", name)
		assert.Nil(t, value, "field %s", name)
	}
}

func TestTransform_TrafficDefaults(t *testing.T) {
	tr := NewTransformer(nil)

	record := tr.Transform(
		[]string{"2023-01-01", "7", "garbage", "", " mobile "},
		[]string{"Date", "Foreign Brand ID", "All Clicks", "CR", "Device Type"},
		schema.KindTrafficReport,
	)

	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), record.Get("date"))
	assert.Equal(t, int64(7), record.Get("foreignBrandId"))
	assert.Equal(t, int64(0), record.Get("allClicks"))
	assert.Equal(t, float64(0), record.Get("cr"))
	assert.Equal(t, "mobile", record.Get("deviceType"))
	// Columns absent from the file still carry their defaults.
	assert.Equal(t, int64(0), record.Get("uniqueClicks"))
	assert.Equal(t, "", record.Get("country"))
	assert.Len(t, record.Values, 19)
}

func TestTransform_PlayerValues(t *testing.T) {
	tr := NewTransformer(nil)

	record := tr.Transform(
		[]string{"1001", "TRUE", "0", "12.5", "x", "someone@example.com", "3"},
		[]string{"Player ID", "Duplicate", "Disabled", "Deposits sum", "Casino bets count", "Partners email", "FTD count"},
		schema.KindPlayersData,
	)

	assert.Equal(t, int64(1001), record.Get("playerId"))
	assert.Equal(t, true, record.Get("duplicate"))
	assert.Equal(t, false, record.Get("disabled"))
	assert.Equal(t, 12.5, record.Get("depositsSum"))
	assert.Equal(t, int64(0), record.Get("casinoBetsCount"))
	assert.Equal(t, int64(3), record.Get("ftdCount"))
	assert.Nil(t, record.Get("cashoutsSum"))

	_, stored := record.Values["partnersEmail"]
	assert.False(t, stored)
	assert.Len(t, record.Values, 34)
}

func TestTransform_FirstDuplicateColumnWins(t *testing.T) {
	tr := NewTransformer(nil)

	record := tr.Transform(
		[]string{"5", "9"},
		[]string{"All Clicks", "all_clicks"},
		schema.KindTrafficReport,
	)
	assert.Equal(t, int64(5), record.Get("allClicks"))
}

func TestTransform_UnknownKindYieldsEmptyRecord(t *testing.T) {
	tr := NewTransformer(nil)

	record := tr.Transform([]string{"1"}, []string{"Date"}, schema.Kind("ledger"))
	assert.Empty(t, record.Values)
}

func TestTransform_IsTotal(t *testing.T) {
	tr := NewTransformer(nil)
	registry := schema.Default()

	headersFor := func(kind schema.Kind) []string {
		def, _ := registry.Definition(kind)
		headers := make([]string, len(def.Fields))
		for i, field := range def.Fields {
			headers[i] = field.Variants[0]
		}
		return headers
	}

	properties := gopter.NewProperties(nil)
	properties.Property("every stored field is populated for any row", prop.ForAll(
		func(row []string, players bool) bool {
			kind := schema.KindTrafficReport
			if players {
				kind = schema.KindPlayersData
			}
			def, _ := registry.Definition(kind)
			record := tr.Transform(row, headersFor(kind), kind)
			if len(record.Values) != len(def.StoredFields()) {
				return false
			}
			for _, field := range def.StoredFields() {
				if _, ok := record.Values[field.Name]; !ok {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AnyString()),
		gen.Bool(),
	))
	properties.TestingRun(t)
}

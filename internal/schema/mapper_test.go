package schema

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapperResolvesKnownVariants(t *testing.T) {
	mapper := NewMapper(Default())

	tests := []struct {
		header string
		kind   Kind
		want   string
	}{
		{"Foreign Brand ID", KindTrafficReport, "foreignBrandId"},
		{"foreign_brand_id", KindTrafficReport, "foreignBrandId"},
		{"foreignBrandId", KindTrafficReport, "foreignBrandId"},
		{"  FOREIGN BRAND ID  ", KindTrafficReport, "foreignBrandId"},
		{"All Clicks", KindTrafficReport, "allClicks"},
		{"Player ID", KindPlayersData, "playerId"},
		{"Tag: clickid", KindPlayersData, "tagClickid"},
		{"CashOuts count", KindPlayersData, "cashoutsCount"},
		{"Casino Real NGR", KindPlayersData, "casinoRealNgr"},
		{"Self-excluded", KindPlayersData, "selfExcluded"},
		{"Partners email", KindPlayersData, "partnersEmail"},
		{"Partner ID", KindPlayersData, "partnerId"},
		{"Partner ID", KindTrafficReport, "foreignPartnerId"},
	}

	for _, tc := range tests {
		t.Run(tc.header+"/"+string(tc.kind), func(t *testing.T) {
			assert.Equal(t, tc.want, mapper.Map(tc.header, tc.kind))
		})
	}
}

func TestMapperFallsBackToCamelCase(t *testing.T) {
	mapper := NewMapper(Default())

	tests := []struct {
		header string
		want   string
	}{
		{"Extra Column", "extraColumn"},
		{"net revenue (USD)", "netRevenueUsd"},
		{"  sub_id-3 ", "subId3"},
		{"Café Name", "cafeName"},
		{"alreadyCamel", "alreadyCamel"},
		{"Abc 1def", "abc1Def"},
		{"Sub 2id", "sub2Id"},
		{"sub2Id", "sub2Id"},
		{"All-clicks", "allClicks"},
		{"", "column"},
		{"---", "column"},
	}

	for _, tc := range tests {
		t.Run(tc.header, func(t *testing.T) {
			assert.Equal(t, tc.want, mapper.Map(tc.header, KindTrafficReport))
		})
	}
}

func TestMapperUnknownKindUsesFallback(t *testing.T) {
	mapper := NewMapper(Default())
	assert.Equal(t, "foreignBrandId", mapper.Map("Foreign Brand ID", Kind("unknown")))
	_, ok := mapper.Lookup("Foreign Brand ID", Kind("unknown"))
	assert.False(t, ok)
}

func TestMapperCanonicalFields(t *testing.T) {
	mapper := NewMapper(Default())

	traffic := mapper.CanonicalFields(KindTrafficReport)
	require.Len(t, traffic, 19)
	assert.Equal(t, "date", traffic[0])
	assert.Contains(t, traffic, "uniqueClicks")

	players := mapper.CanonicalFields(KindPlayersData)
	require.Len(t, players, 35)
	assert.Contains(t, players, "partnersEmail")
	assert.Contains(t, players, "casinoWinsSum")

	assert.Nil(t, mapper.CanonicalFields(Kind("unknown")))
}

func TestMapperCanonicalNamesAreFixedPoints(t *testing.T) {
	mapper := NewMapper(Default())
	for _, kind := range Default().Kinds() {
		for _, name := range mapper.CanonicalFields(kind) {
			assert.Equal(t, name, mapper.Map(name, kind), "kind %s", kind)
		}
	}
}

func TestMapperIsIdempotentProperty(t *testing.T) {
	mapper := NewMapper(Default())
	properties := gopter.NewProperties(nil)

	properties.Property("mapping twice equals mapping once", prop.ForAll(
		func(header string) bool {
			once := mapper.Map(header, KindTrafficReport)
			return mapper.Map(once, KindTrafficReport) == once
		},
		gen.RegexMatch(`[A-Za-z0-9]{1,8}([ _-][A-Za-z0-9]{1,8}){0,3}`),
	))

	properties.Property("every declared variant maps to its field", prop.ForAll(
		func(idx int) bool {
			def, _ := Default().Definition(KindPlayersData)
			field := def.Fields[idx%len(def.Fields)]
			for _, variant := range field.Variants {
				if mapper.Map(variant, KindPlayersData) != field.Name {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}

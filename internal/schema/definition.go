package schema

import (
	"math"
	"strings"
)

// Kind identifies one of the fixed record shapes an upload can be loaded into.
type Kind string

const (
	KindTrafficReport Kind = "traffic_report"
	KindPlayersData   Kind = "players_data"
)

func (k Kind) String() string { return string(k) }

// ParseKind resolves a kind name, ignoring case and surrounding whitespace.
func ParseKind(value string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindTrafficReport:
		return KindTrafficReport, true
	case KindPlayersData:
		return KindPlayersData, true
	}
	return "", false
}

// FieldType enumerates the semantic types a column is coerced into.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeInteger FieldType = "integer"
	FieldTypeDecimal FieldType = "decimal"
	FieldTypeDate    FieldType = "date"
	FieldTypeBoolean FieldType = "boolean"
)

// Absent controls what a numeric field becomes when its value is missing or unparseable.
type Absent string

const (
	AbsentZero Absent = "zero"
	AbsentNull Absent = "null"
)

// Field describes one column of a record shape.
type Field struct {
	Name     string
	Column   string
	Type     FieldType
	OnAbsent Absent
	// Required fields must be non-empty unless Nullable is also set.
	Required bool
	Nullable bool
	// Detect marks the columns the detector insists on before accepting a file.
	Detect bool
	// Excluded fields are recognised in headers but never stored.
	Excluded bool
	// Limit is the exclusive bound on the magnitude of a decimal value.
	// Zero means DecimalLimit.
	Limit    float64
	Variants []string
}

// DecimalLimit matches the NUMERIC(20, 6) columns decimals are stored in.
const DecimalLimit = 1e14

// Stored reports whether the field is persisted.
func (f Field) Stored() bool { return !f.Excluded }

// InRange reports whether v fits the storage column of a decimal field.
// Other field types always fit.
func (f Field) InRange(v float64) bool {
	if f.Type != FieldTypeDecimal {
		return true
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DecimalLimit
	}
	return math.Abs(v) < limit
}

// Definition is the static description of one record shape.
type Definition struct {
	Kind            Kind
	Table           string
	ExpectedColumns int
	Fields          []Field
	NaturalKey      []string
}

// Field returns the field with the given canonical name.
func (d Definition) Field(name string) (Field, bool) {
	for _, field := range d.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

// StoredFields returns the persisted fields in declaration order.
func (d Definition) StoredFields() []Field {
	fields := make([]Field, 0, len(d.Fields))
	for _, field := range d.Fields {
		if field.Stored() {
			fields = append(fields, field)
		}
	}
	return fields
}

// DetectionFields returns the columns a header row must contain for this shape.
func (d Definition) DetectionFields() []Field {
	var fields []Field
	for _, field := range d.Fields {
		if field.Detect {
			fields = append(fields, field)
		}
	}
	return fields
}

// NaturalKeyColumns maps the natural key field names onto table columns.
func (d Definition) NaturalKeyColumns() []string {
	columns := make([]string, 0, len(d.NaturalKey))
	for _, name := range d.NaturalKey {
		if field, ok := d.Field(name); ok {
			columns = append(columns, field.Column)
		}
	}
	return columns
}

func trafficReportDefinition() Definition {
	return Definition{
		Kind:            KindTrafficReport,
		Table:           "traffic_reports",
		ExpectedColumns: 19,
		Fields: []Field{
			{Name: "date", Column: "date", Type: FieldTypeDate, OnAbsent: AbsentNull, Required: true, Detect: true, Variants: []string{"Date", "Report Date"}},
			{Name: "foreignBrandId", Column: "foreign_brand_id", Type: FieldTypeInteger, OnAbsent: AbsentZero, Required: true, Detect: true, Variants: []string{"Foreign Brand ID", "Brand ID"}},
			{Name: "foreignPartnerId", Column: "foreign_partner_id", Type: FieldTypeInteger, OnAbsent: AbsentZero, Required: true, Detect: true, Variants: []string{"Foreign Partner ID", "Partner ID"}},
			{Name: "foreignCampaignId", Column: "foreign_campaign_id", Type: FieldTypeInteger, OnAbsent: AbsentZero, Required: true, Detect: true, Variants: []string{"Foreign Campaign ID", "Campaign ID"}},
			{Name: "foreignLandingId", Column: "foreign_landing_id", Type: FieldTypeInteger, OnAbsent: AbsentZero, Variants: []string{"Foreign Landing ID", "Landing ID"}},
			{Name: "trafficSource", Column: "traffic_source", Type: FieldTypeString, Nullable: true, Variants: []string{"Traffic Source", "Source"}},
			{Name: "deviceType", Column: "device_type", Type: FieldTypeString, Variants: []string{"Device Type", "Device"}},
			{Name: "userAgentFamily", Column: "user_agent_family", Type: FieldTypeString, Variants: []string{"User Agent Family", "Browser"}},
			{Name: "osFamily", Column: "os_family", Type: FieldTypeString, Variants: []string{"OS Family", "OS"}},
			{Name: "country", Column: "country", Type: FieldTypeString, Variants: []string{"Country", "Geo"}},
			{Name: "allClicks", Column: "all_clicks", Type: FieldTypeInteger, OnAbsent: AbsentZero, Detect: true, Variants: []string{"All Clicks", "Clicks"}},
			{Name: "uniqueClicks", Column: "unique_clicks", Type: FieldTypeInteger, OnAbsent: AbsentZero, Detect: true, Variants: []string{"Unique Clicks"}},
			{Name: "registrationsCount", Column: "registrations_count", Type: FieldTypeInteger, OnAbsent: AbsentZero, Variants: []string{"Registrations Count", "Registrations"}},
			{Name: "ftdCount", Column: "ftd_count", Type: FieldTypeInteger, OnAbsent: AbsentZero, Variants: []string{"FTD Count", "FTDs"}},
			{Name: "depositsCount", Column: "deposits_count", Type: FieldTypeInteger, OnAbsent: AbsentZero, Variants: []string{"Deposits Count", "Deposits"}},
			{Name: "cr", Column: "cr", Type: FieldTypeDecimal, OnAbsent: AbsentZero, Variants: []string{"CR"}},
			{Name: "cftd", Column: "cftd", Type: FieldTypeDecimal, OnAbsent: AbsentZero, Variants: []string{"CFTD"}},
			{Name: "cd", Column: "cd", Type: FieldTypeDecimal, OnAbsent: AbsentZero, Variants: []string{"CD"}},
			{Name: "rftd", Column: "rftd", Type: FieldTypeDecimal, OnAbsent: AbsentZero, Variants: []string{"RFTD"}},
		},
		NaturalKey: []string{
			"date", "foreignBrandId", "foreignPartnerId", "foreignCampaignId", "foreignLandingId",
			"trafficSource", "deviceType", "userAgentFamily", "osFamily", "country",
		},
	}
}

func playersDataDefinition() Definition {
	return Definition{
		Kind:            KindPlayersData,
		Table:           "player_records",
		ExpectedColumns: 35,
		Fields: []Field{
			{Name: "playerId", Column: "player_id", Type: FieldTypeInteger, OnAbsent: AbsentNull, Required: true, Detect: true, Variants: []string{"Player ID"}},
			{Name: "originalPlayerId", Column: "original_player_id", Type: FieldTypeInteger, OnAbsent: AbsentNull, Detect: true, Variants: []string{"Original player ID"}},
			{Name: "signUpDate", Column: "sign_up_date", Type: FieldTypeDate, OnAbsent: AbsentNull, Detect: true, Variants: []string{"Sign up date", "Signup date"}},
			{Name: "firstDepositDate", Column: "first_deposit_date", Type: FieldTypeDate, OnAbsent: AbsentNull, Variants: []string{"First deposit date"}},
			{Name: "partnerId", Column: "partner_id", Type: FieldTypeInteger, OnAbsent: AbsentNull, Detect: true, Variants: []string{"Partner ID"}},
			{Name: "companyName", Column: "company_name", Type: FieldTypeString, Variants: []string{"Company name"}},
			{Name: "partnersEmail", Column: "partners_email", Type: FieldTypeString, Excluded: true, Variants: []string{"Partners email", "Partner email"}},
			{Name: "partnerTags", Column: "partner_tags", Type: FieldTypeString, Variants: []string{"Partner tags"}},
			{Name: "campaignId", Column: "campaign_id", Type: FieldTypeInteger, OnAbsent: AbsentNull, Variants: []string{"Campaign ID"}},
			{Name: "campaignName", Column: "campaign_name", Type: FieldTypeString, Variants: []string{"Campaign name"}},
			{Name: "promoId", Column: "promo_id", Type: FieldTypeInteger, OnAbsent: AbsentNull, Variants: []string{"Promo ID"}},
			{Name: "promoCode", Column: "promo_code", Type: FieldTypeString, Variants: []string{"Promo code"}},
			{Name: "playerCountry", Column: "player_country", Type: FieldTypeString, Required: true, Detect: true, Variants: []string{"Player country"}},
			{Name: "tagClickid", Column: "tag_clickid", Type: FieldTypeString, Variants: []string{"Tag: clickid", "Tag clickid"}},
			{Name: "tagOs", Column: "tag_os", Type: FieldTypeString, Variants: []string{"Tag: os", "Tag os"}},
			{Name: "tagSource", Column: "tag_source", Type: FieldTypeString, Nullable: true, Variants: []string{"Tag: source", "Tag source"}},
			{Name: "tagSub2", Column: "tag_sub2", Type: FieldTypeString, Variants: []string{"Tag: sub2", "Tag sub2"}},
			{Name: "tagWebId", Column: "tag_web_id", Type: FieldTypeString, Variants: []string{"Tag: webID", "Tag webID"}},
			{Name: "date", Column: "date", Type: FieldTypeDate, OnAbsent: AbsentNull, Required: true, Variants: []string{"Date"}},
			{Name: "prequalified", Column: "prequalified", Type: FieldTypeBoolean, Variants: []string{"Prequalified"}},
			{Name: "duplicate", Column: "duplicate", Type: FieldTypeBoolean, Variants: []string{"Duplicate"}},
			{Name: "selfExcluded", Column: "self_excluded", Type: FieldTypeBoolean, Variants: []string{"Self-excluded", "Self excluded"}},
			{Name: "disabled", Column: "disabled", Type: FieldTypeBoolean, Variants: []string{"Disabled"}},
			{Name: "currency", Column: "currency", Type: FieldTypeString, Required: true, Detect: true, Variants: []string{"Currency"}},
			{Name: "ftdCount", Column: "ftd_count", Type: FieldTypeInteger, OnAbsent: AbsentZero, Detect: true, Variants: []string{"FTD count"}},
			{Name: "ftdSum", Column: "ftd_sum", Type: FieldTypeDecimal, OnAbsent: AbsentNull, Detect: true, Variants: []string{"FTD sum"}},
			{Name: "depositsCount", Column: "deposits_count", Type: FieldTypeInteger, OnAbsent: AbsentZero, Variants: []string{"Deposits count"}},
			{Name: "depositsSum", Column: "deposits_sum", Type: FieldTypeDecimal, OnAbsent: AbsentNull, Variants: []string{"Deposits sum"}},
			{Name: "cashoutsCount", Column: "cashouts_count", Type: FieldTypeInteger, OnAbsent: AbsentZero, Variants: []string{"CashOuts count", "Cashouts count"}},
			{Name: "cashoutsSum", Column: "cashouts_sum", Type: FieldTypeDecimal, OnAbsent: AbsentNull, Variants: []string{"CashOuts sum", "Cashouts sum"}},
			{Name: "casinoBetsCount", Column: "casino_bets_count", Type: FieldTypeInteger, OnAbsent: AbsentZero, Variants: []string{"Casino bets count"}},
			{Name: "casinoRealNgr", Column: "casino_real_ngr", Type: FieldTypeDecimal, OnAbsent: AbsentNull, Variants: []string{"Casino Real NGR", "Casino NGR"}},
			{Name: "fixedPerPlayer", Column: "fixed_per_player", Type: FieldTypeDecimal, OnAbsent: AbsentNull, Variants: []string{"Fixed per player"}},
			{Name: "casinoBetsSum", Column: "casino_bets_sum", Type: FieldTypeDecimal, OnAbsent: AbsentNull, Variants: []string{"Casino bets sum"}},
			{Name: "casinoWinsSum", Column: "casino_wins_sum", Type: FieldTypeDecimal, OnAbsent: AbsentNull, Variants: []string{"Casino wins sum"}},
		},
		NaturalKey: []string{"playerId", "date"},
	}
}

package address

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/textnorm"
)

// NameFallback is used when a row carries no recognizable name column.
const NameFallback = "N/A"

const defaultPhoneRegion = "BR"

// Record is the canonical form of one spreadsheet row.
type Record struct {
	Name          string
	Category      string
	Rating        float64
	Reviews       int
	Address       model.Address
	PostalCodeRaw string
	Phone         string
	Website       string
	Status        model.LeadStatus
}

// Lead converts the record into an unsaved lead.
func (r Record) Lead() *model.Lead {
	return &model.Lead{
		Name:     r.Name,
		Category: r.Category,
		Address:  r.Address,
		Phone:    r.Phone,
		Website:  r.Website,
		Rating:   r.Rating,
		Reviews:  r.Reviews,
		Status:   r.Status,
		Priority: model.PriorityStandard,
	}
}

// Normalizer resolves logical fields from rows using a header table.
type Normalizer struct {
	fields      map[Field][]string
	phoneRegion string
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithFields replaces the variants of the given fields.
func WithFields(specs ...FieldSpec) Option {
	return func(n *Normalizer) {
		for _, s := range specs {
			n.fields[s.Field] = s.Variants
		}
	}
}

// WithPhoneRegion sets the default region used to parse phone numbers.
func WithPhoneRegion(region string) Option {
	return func(n *Normalizer) {
		n.phoneRegion = region
	}
}

// NewNormalizer creates a Normalizer over DefaultFields.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		fields:      make(map[Field][]string, len(DefaultFields)),
		phoneRegion: defaultPhoneRegion,
	}
	for _, s := range DefaultFields {
		n.fields[s.Field] = s.Variants
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Lookup returns the raw value of a logical field, repaired for mojibake.
func (n *Normalizer) Lookup(row Row, f Field) (string, bool) {
	v, ok := row.lookup(n.fields[f])
	if !ok {
		return "", false
	}
	return textnorm.FixMojibake(v), true
}

// String returns the field value or def when no header matches.
func (n *Normalizer) String(row Row, f Field, def string) string {
	if v, ok := n.Lookup(row, f); ok {
		return v
	}
	return def
}

// Float returns the first locale decimal in the field, or 0.
func (n *Normalizer) Float(row Row, f Field) float64 {
	v, ok := n.Lookup(row, f)
	if !ok {
		return 0
	}
	return ParseDecimal(v)
}

// Int returns the first whole number in the field, or 0.
func (n *Normalizer) Int(row Row, f Field) int {
	v, ok := n.Lookup(row, f)
	if !ok {
		return 0
	}
	return ParseCount(v)
}

// Normalize builds a Record from a row. Missing fields take defaults; only a
// row with neither a name nor any address information is rejected.
func (n *Normalizer) Normalize(row Row) (Record, error) {
	rec := Record{
		Name:     n.String(row, FieldName, NameFallback),
		Category: n.String(row, FieldCategory, ""),
		Rating:   n.Float(row, FieldRating),
		Reviews:  n.Int(row, FieldReviews),
		Website:  n.String(row, FieldWebsite, ""),
		Status:   StatusFromPotential(n.String(row, FieldPotential, "")),
	}

	rec.Address = model.Address{
		Street:       n.String(row, FieldStreet, ""),
		Neighborhood: n.String(row, FieldNeighborhood, ""),
		City:         n.String(row, FieldCity, ""),
		State:        NormalizeState(n.String(row, FieldState, "")),
	}
	// House numbers are matched exactly: "Número de Avaliações" must not leak into the street.
	if num, ok := row.exact(n.fields[FieldNumber]); ok && rec.Address.Street != "" {
		rec.Address.Street += ", " + num
	}
	rec.PostalCodeRaw = n.String(row, FieldPostalCode, "")

	if full, ok := n.Lookup(row, FieldFullAddress); ok {
		rec.Address = mergeAddress(rec.Address, ParseFullAddress(full))
	}

	if rec.PostalCodeRaw == "" {
		rec.PostalCodeRaw = rec.Address.PostalCode
	}
	rec.Address.PostalCode = ""
	if rec.PostalCodeRaw != "" {
		if cep, err := model.PadPostalCode(rec.PostalCodeRaw); err == nil {
			rec.Address.PostalCode = cep
		}
	}

	rec.Phone = NormalizePhone(n.String(row, FieldPhone, ""), n.phoneRegion)

	if rec.Name == NameFallback && rec.Address == (model.Address{}) {
		return rec, model.NewValidation("normalize row", eris.New("row has no name and no address"))
	}
	return rec, nil
}

// mergeAddress fills empty components of base from parsed.
func mergeAddress(base, parsed model.Address) model.Address {
	if base.Street == "" {
		base.Street = parsed.Street
	}
	if base.Neighborhood == "" {
		base.Neighborhood = parsed.Neighborhood
	}
	if base.City == "" {
		base.City = parsed.City
	}
	if base.State == "" {
		base.State = parsed.State
	}
	if base.PostalCode == "" {
		base.PostalCode = parsed.PostalCode
	}
	return base
}

// potentialTop holds the folded spellings of ALTÍSSIMO, including the one
// left behind when the Í byte is lost to a bad decode.
var potentialTop = []string{"altissimo", "altassimo"}

// StatusFromPotential maps a sales-potential cell to a lead status.
func StatusFromPotential(v string) model.LeadStatus {
	folded := textnorm.FoldKey(v)
	if folded == "" {
		return model.LeadStatusNeedsAnalysis
	}
	for _, p := range potentialTop {
		if strings.Contains(folded, p) {
			return model.LeadStatusQualified
		}
	}
	return model.LeadStatusNeedsAnalysis
}

// NormalizePhone formats a phone number as E.164. Unparseable or invalid
// input is returned trimmed.
func NormalizePhone(raw, region string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	num, err := phonenumbers.Parse(trimmed, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return trimmed
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

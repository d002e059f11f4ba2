package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-cli/internal/model"
)

func TestNormalizer_RatingHeaderVariants(t *testing.T) {
	t.Parallel()

	n := NewNormalizer()
	for _, header := range []string{"Avaliação", "AvaliaÃ§Ã£o", "Nota", "nota da casa"} {
		t.Run(header, func(t *testing.T) {
			t.Parallel()
			row := NewRow([]string{"Nome", header}, []string{"Cantina", "4,7"})
			assert.InDelta(t, 4.7, n.Float(row, FieldRating), 1e-9)
		})
	}
}

func TestNormalizer_FreeTextRatingKeepsFirstNumber(t *testing.T) {
	t.Parallel()

	n := NewNormalizer()
	// "Anotações" reaches the rating field through the "nota" variant.
	row := NewRow([]string{"Nome", "Cidade", "Anotações"}, []string{"Pizzaria", "Guarulhos", "ligar dia 5, nota 2"})
	rec, err := n.Normalize(row)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, rec.Rating, 1e-9)
}

func TestNormalizer_ExactBeforeFuzzy(t *testing.T) {
	t.Parallel()

	n := NewNormalizer()
	// "Cidade do Dono" contains "cidade" but the exact "Cidade" column wins.
	row := NewRow([]string{"Cidade do Dono", "Cidade"}, []string{"Recife", "Guarulhos"})
	assert.Equal(t, "Guarulhos", n.String(row, FieldCity, ""))
}

func TestNormalizer_FuzzyBothDirections(t *testing.T) {
	t.Parallel()

	n := NewNormalizer()

	// Header contains the variant.
	row := NewRow([]string{"Bairro do restaurante"}, []string{"Moema"})
	assert.Equal(t, "Moema", n.String(row, FieldNeighborhood, ""))

	// Variant contains the header.
	row = NewRow([]string{"Bair"}, []string{"Pinheiros"})
	v, ok := n.Lookup(row, FieldNeighborhood)
	require.True(t, ok)
	assert.Equal(t, "Pinheiros", v)
}

func TestNormalizer_FirstNonEmptyWins(t *testing.T) {
	t.Parallel()

	n := NewNormalizer()
	row := NewRow([]string{"Nome", "Restaurante"}, []string{"  ", "Bar do Zé"})
	assert.Equal(t, "Bar do Zé", n.String(row, FieldName, NameFallback))
}

func TestNormalizer_Defaults(t *testing.T) {
	t.Parallel()

	n := NewNormalizer()
	row := NewRow([]string{"Cidade"}, []string{"Osasco"})

	assert.Equal(t, NameFallback, n.String(row, FieldName, NameFallback))
	assert.Equal(t, 0.0, n.Float(row, FieldRating))
	assert.Equal(t, 0, n.Int(row, FieldReviews))
	assert.Equal(t, "", n.String(row, FieldPhone, ""))
}

func TestNormalizer_Normalize(t *testing.T) {
	t.Parallel()

	n := NewNormalizer()
	headers := []string{"Nome", "AvaliaÃ§Ã£o", "Nº Avaliações", "Rua", "Número", "Bairro", "Cidade", "Estado", "CEP", "Telefone", "Potencial de Vendas"}
	cells := []string{"Cantina da Mooca", "4,6", "1.234 avaliações", "Rua da Mooca", "120", "Mooca", "SÃ£o Paulo", "São Paulo", "3103-000", "(11) 98765-4321", "ALTÍSSIMO"}

	rec, err := n.Normalize(NewRow(headers, cells))
	require.NoError(t, err)

	assert.Equal(t, "Cantina da Mooca", rec.Name)
	assert.InDelta(t, 4.6, rec.Rating, 1e-9)
	assert.Equal(t, 1234, rec.Reviews)
	assert.Equal(t, "Rua da Mooca, 120", rec.Address.Street)
	assert.Equal(t, "Mooca", rec.Address.Neighborhood)
	assert.Equal(t, "São Paulo", rec.Address.City)
	assert.Equal(t, "SP", rec.Address.State)
	assert.Equal(t, "03103000", rec.Address.PostalCode)
	assert.Equal(t, "+5511987654321", rec.Phone)
	assert.Equal(t, model.LeadStatusQualified, rec.Status)
}

func TestNormalizer_PadsSevenDigitPostalCode(t *testing.T) {
	t.Parallel()

	n := NewNormalizer()
	rec, err := n.Normalize(NewRow([]string{"Nome", "CEP"}, []string{"Bar", "1310100"}))
	require.NoError(t, err)
	assert.Equal(t, "01310100", rec.Address.PostalCode)
	assert.Equal(t, "1310100", rec.PostalCodeRaw)
}

func TestNormalizer_InvalidPostalCodeLeftEmpty(t *testing.T) {
	t.Parallel()

	n := NewNormalizer()
	rec, err := n.Normalize(NewRow([]string{"Nome", "CEP"}, []string{"Bar", "12-34"}))
	require.NoError(t, err)
	assert.Equal(t, "", rec.Address.PostalCode)
	assert.Equal(t, "12-34", rec.PostalCodeRaw)
}

func TestNormalizer_FullAddressFallback(t *testing.T) {
	t.Parallel()

	n := NewNormalizer()
	row := NewRow(
		[]string{"title", "Endereço"},
		[]string{"Padaria Real", "R. Augusta, 1500 - Consolação, São Paulo - SP, 01304-001"},
	)
	rec, err := n.Normalize(row)
	require.NoError(t, err)

	assert.Equal(t, "Padaria Real", rec.Name)
	assert.Equal(t, model.Address{
		Street:       "R. Augusta, 1500",
		Neighborhood: "Consolação",
		City:         "São Paulo",
		State:        "SP",
		PostalCode:   "01304001",
	}, rec.Address)
}

func TestNormalizer_ExplicitColumnsBeatFullAddress(t *testing.T) {
	t.Parallel()

	n := NewNormalizer()
	row := NewRow(
		[]string{"Nome", "Cidade", "Endereço"},
		[]string{"Bar", "Guarulhos", "Rua B, 2 - Centro, Santos - SP, 11010-000"},
	)
	rec, err := n.Normalize(row)
	require.NoError(t, err)
	assert.Equal(t, "Guarulhos", rec.Address.City)
	assert.Equal(t, "Centro", rec.Address.Neighborhood)
	assert.Equal(t, "11010000", rec.Address.PostalCode)
}

func TestNormalizer_RejectsEmptyRow(t *testing.T) {
	t.Parallel()

	n := NewNormalizer()
	_, err := n.Normalize(NewRow([]string{"Avaliação"}, []string{"4,5"}))
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}

func TestNormalizer_NumberMatchedExactly(t *testing.T) {
	t.Parallel()

	n := NewNormalizer()
	row := NewRow([]string{"Nome", "Rua", "Número de Avaliações"}, []string{"Bar", "Rua C", "88"})
	rec, err := n.Normalize(row)
	require.NoError(t, err)
	assert.Equal(t, "Rua C", rec.Address.Street)
	assert.Equal(t, 88, rec.Reviews)
}

func TestNormalizer_WithFields(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(WithFields(FieldSpec{Field: FieldName, Variants: []string{"Razão Social"}}))
	row := NewRow([]string{"Razão Social", "Nome"}, []string{"ACME LTDA", "Acme"})
	assert.Equal(t, "ACME LTDA", n.String(row, FieldName, NameFallback))
}

func TestStatusFromPotential(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want model.LeadStatus
	}{
		{"ALTÍSSIMO", model.LeadStatusQualified},
		{"altíssimo", model.LeadStatusQualified},
		{"Potencial ALTISSIMO", model.LeadStatusQualified},
		{"ALTÃSSIMO", model.LeadStatusQualified},
		{"ALTO", model.LeadStatusNeedsAnalysis},
		{"MÉDIO", model.LeadStatusNeedsAnalysis},
		{"", model.LeadStatusNeedsAnalysis},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, StatusFromPotential(tt.in))
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "+5511987654321", NormalizePhone("(11) 98765-4321", "BR"))
	assert.Equal(t, "+551133334444", NormalizePhone("+55 11 3333-4444", "BR"))
	assert.Equal(t, "ligar depois", NormalizePhone(" ligar depois ", "BR"))
	assert.Equal(t, "", NormalizePhone("   ", "BR"))
}

func TestRecordLead(t *testing.T) {
	t.Parallel()

	rec := Record{Name: "Bar", Status: model.LeadStatusQualified, Rating: 4.1}
	l := rec.Lead()
	assert.Equal(t, "Bar", l.Name)
	assert.Equal(t, model.LeadStatusQualified, l.Status)
	assert.Equal(t, model.PriorityStandard, l.Priority)
	assert.False(t, l.Assigned())
}

package address

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/textnorm"
)

// numberRe matches one number with optional "." or "," group or decimal
// separators. Separators must sit between digits, so "5, 2" is two numbers.
var numberRe = regexp.MustCompile(`-?\d+(?:[.,]\d+)*`)

// ParseDecimal parses the first locale-formatted number in s. A comma is the
// decimal separator when present ("1.234,5"); otherwise the dot is ("4.5").
// Unparseable input yields 0.
func ParseDecimal(s string) float64 {
	clean := numberRe.FindString(s)
	if strings.Contains(clean, ",") {
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.ReplaceAll(clean, ",", ".")
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0
	}
	return f
}

// ParseCount parses the first number in s, dropping group separators
// ("1.234 avaliações" -> 1234).
func ParseCount(s string) int {
	clean := strings.TrimPrefix(numberRe.FindString(s), "-")
	clean = strings.NewReplacer(".", "", ",", "").Replace(clean)
	n, err := strconv.Atoi(clean)
	if err != nil {
		return 0
	}
	return n
}

// ufNames maps folded state names to their two-letter UF code.
var ufNames = map[string]string{
	"acre": "AC", "alagoas": "AL", "amapa": "AP", "amazonas": "AM",
	"bahia": "BA", "ceara": "CE", "distrito federal": "DF", "espirito santo": "ES",
	"goias": "GO", "maranhao": "MA", "mato grosso": "MT", "mato grosso do sul": "MS",
	"minas gerais": "MG", "para": "PA", "paraiba": "PB", "parana": "PR",
	"pernambuco": "PE", "piaui": "PI", "rio de janeiro": "RJ", "rio grande do norte": "RN",
	"rio grande do sul": "RS", "rondonia": "RO", "roraima": "RR", "santa catarina": "SC",
	"sao paulo": "SP", "sergipe": "SE", "tocantins": "TO",
}

// ufCodes is the set of valid UF codes.
var ufCodes = func() map[string]bool {
	m := make(map[string]bool, len(ufNames))
	for _, uf := range ufNames {
		m[uf] = true
	}
	return m
}()

// NormalizeState returns the UF code for a state given as code or full
// name. Unknown input is returned trimmed.
func NormalizeState(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if up := strings.ToUpper(s); ufCodes[up] {
		return up
	}
	if uf, ok := ufNames[textnorm.FoldKey(s)]; ok {
		return uf
	}
	return s
}

var (
	cepRe      = regexp.MustCompile(`\b(\d{5})-?(\d{3})\b`)
	stateTail  = regexp.MustCompile(`\s*-\s*([A-Za-z]{2})\s*,?\s*$`)
	trailingPc = regexp.MustCompile(`[\s,\-]+$`)
)

// ParseFullAddress splits a one-line address in the
// "street, number - neighborhood, city - UF, 00000-000" shape used by map
// exports. Parts that cannot be located stay empty.
func ParseFullAddress(s string) model.Address {
	var addr model.Address
	rest := strings.TrimSpace(textnorm.FixMojibake(s))
	if rest == "" {
		return addr
	}

	if m := cepRe.FindStringSubmatchIndex(rest); m != nil {
		addr.PostalCode = rest[m[2]:m[3]] + rest[m[4]:m[5]]
		rest = rest[:m[0]] + rest[m[1]:]
	}
	rest = trailingPc.ReplaceAllString(strings.TrimSpace(rest), "")

	if m := stateTail.FindStringSubmatch(rest); m != nil && ufCodes[strings.ToUpper(m[1])] {
		addr.State = strings.ToUpper(m[1])
		rest = strings.TrimSpace(rest[:len(rest)-len(m[0])])
	}

	if i := strings.LastIndex(rest, ","); i >= 0 {
		addr.City = strings.TrimSpace(rest[i+1:])
		rest = strings.TrimSpace(rest[:i])
	}

	if i := strings.LastIndex(rest, " - "); i >= 0 {
		addr.Neighborhood = strings.TrimSpace(rest[i+3:])
		rest = strings.TrimSpace(rest[:i])
	}
	addr.Street = rest
	return addr
}

// Package address turns spreadsheet rows with inconsistent headers and
// encodings into canonical lead records.
package address

// Field names a logical column of a prospect spreadsheet.
type Field string

const (
	FieldName         Field = "name"
	FieldCategory     Field = "category"
	FieldRating       Field = "rating"
	FieldReviews      Field = "reviews"
	FieldStreet       Field = "street"
	FieldNumber       Field = "number"
	FieldNeighborhood Field = "neighborhood"
	FieldCity         Field = "city"
	FieldState        Field = "state"
	FieldPostalCode   Field = "postal_code"
	FieldPhone        Field = "phone"
	FieldWebsite      Field = "website"
	FieldPotential    Field = "sales_potential"
	FieldFullAddress  Field = "full_address"
)

// FieldSpec lists the header spellings seen for one logical field, in
// lookup order. Mis-encoded spellings are listed explicitly so exact
// matching catches them before the fuzzy pass.
type FieldSpec struct {
	Field    Field
	Variants []string
}

// DefaultFields is the header table for the restaurant exports in use.
var DefaultFields = []FieldSpec{
	{FieldName, []string{"Nome", "nome", "NOME", "Nome do Restaurante", "Restaurante", "Estabelecimento", "Name", "name", "title", "Título", "TÃ­tulo"}},
	{FieldCategory, []string{"Categoria", "categoria", "Category", "category", "categoryName", "Tipo"}},
	{FieldRating, []string{"Avaliação", "AvaliaÃ§Ã£o", "Avaliacao", "avaliação", "avaliacao", "Nota", "nota", "Rating", "rating", "totalScore"}},
	{FieldReviews, []string{"Nº Avaliações", "NÂº AvaliaÃ§Ãµes", "Quantidade de Avaliações", "Qtd Avaliações", "Avaliações", "AvaliaÃ§Ãµes", "Reviews", "reviewsCount"}},
	{FieldStreet, []string{"Rua", "rua", "Logradouro", "logradouro", "Street", "street"}},
	{FieldNumber, []string{"Número", "NÃºmero", "Numero", "number"}},
	{FieldNeighborhood, []string{"Bairro", "bairro", "BAIRRO", "Neighborhood", "neighborhood"}},
	{FieldCity, []string{"Cidade", "cidade", "CIDADE", "Município", "MunicÃ­pio", "Municipio", "City", "city"}},
	{FieldState, []string{"Estado", "estado", "UF", "uf", "State", "state"}},
	{FieldPostalCode, []string{"CEP", "cep", "Cep", "Código Postal", "CÃ³digo Postal", "postalCode", "Zip", "zip"}},
	{FieldPhone, []string{"Telefone", "telefone", "TELEFONE", "Celular", "WhatsApp", "Phone", "phone"}},
	{FieldWebsite, []string{"Site", "site", "Website", "website", "URL", "url"}},
	{FieldPotential, []string{"Potencial de Vendas", "Potencial de Venda", "Potencial", "POTENCIAL", "potencial"}},
	{FieldFullAddress, []string{"Endereço", "EndereÃ§o", "Endereco", "endereço", "endereco", "ENDEREÇO", "Endereço Completo", "Address", "address"}},
}

// CommentVariants are the headers that carry free-text comments besides the
// numbered "Comentário N" columns.
var CommentVariants = []string{"Comentário", "ComentÃ¡rio", "Comentario", "Comentários", "ComentÃ¡rios", "Observação", "ObservaÃ§Ã£o", "Observações", "Obs", "Review", "Reviews Text"}

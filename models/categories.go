package models

// UnknownCategoryLabel is the label for codes missing from the table.
const UnknownCategoryLabel = "Desconocido"

// categoryLabels maps SII document-type codes to their human labels.
var categoryLabels = map[string]string{
	"29":  "Factura de Inicio",
	"30":  "Factura",
	"32":  "Factura de Venta Bienes y Servicios No Afectos o Exentos de IVA",
	"33":  "Factura Electrónica",
	"34":  "Factura No Afecta o Exenta Electrónica",
	"35":  "Boleta",
	"38":  "Boleta Exenta",
	"39":  "Boleta Electrónica",
	"40":  "Liquidación Factura",
	"41":  "Boleta Exenta Electrónica",
	"43":  "Liquidación Factura Electrónica",
	"45":  "Factura de Compra",
	"46":  "Factura de Compra Electrónica",
	"48":  "Comprobante de Pago Electrónico",
	"52":  "Guía de Despacho Electrónica",
	"55":  "Nota de Débito",
	"56":  "Nota de Débito Electrónica",
	"60":  "Nota de Crédito",
	"61":  "Nota de Crédito Electrónica",
	"110": "Factura de Exportación Electrónica",
	"111": "Nota de Débito de Exportación Electrónica",
	"112": "Nota de Crédito de Exportación Electrónica",
	"914": "Declaración de Ingreso (DIN)",
}

// Category pairs a document-type code with its label.
type Category struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// CategoryLabel returns the human label for code, or UnknownCategoryLabel.
func CategoryLabel(code string) string {
	if label, ok := categoryLabels[code]; ok {
		return label
	}
	return UnknownCategoryLabel
}

// KnownCategories returns the full label table ordered by code.
func KnownCategories() []Category {
	codes := make([]string, 0, len(categoryLabels))
	for code := range categoryLabels {
		codes = append(codes, code)
	}
	SortCategoryCodes(codes)

	out := make([]Category, len(codes))
	for i, code := range codes {
		out[i] = Category{Code: code, Label: categoryLabels[code]}
	}
	return out
}

package relation

import "github.com/volatiletech/strmangle"

// ModelName derives the model identifier of a table: the last word is
// singularized and the result title-cased ("order_items" -> "OrderItem").
func ModelName(table string) string {
	if table == "" {
		return ""
	}
	return strmangle.TitleCase(strmangle.Singular(table))
}

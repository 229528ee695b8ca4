package ledger

import "github.com/tallyhq/tally/internal/model"

// DefaultCategories returns the starter categories for a new household.
func DefaultCategories() []model.Category {
	income := []string{"Salário", "Rendimentos", "Outras receitas"}
	expense := []string{
		"Mercado",
		"Moradia",
		"Contas de consumo",
		"Transporte",
		"Saúde",
		"Educação",
		"Restaurantes",
		"Lazer",
		"Assinaturas",
		"Tarifas bancárias",
		"Outros",
	}

	cats := make([]model.Category, 0, len(income)+len(expense))
	for _, n := range income {
		cats = append(cats, model.Category{Name: n, Kind: model.CategoryKindIncome})
	}
	for _, n := range expense {
		cats = append(cats, model.Category{Name: n, Kind: model.CategoryKindExpense})
	}
	return cats
}

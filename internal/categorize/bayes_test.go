package categorize

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally/internal/database/dbtest"
	"github.com/tallyhq/tally/internal/ledger"
	"github.com/tallyhq/tally/internal/model"
)

func seedHistory(t *testing.T) (*ledger.Service, string, map[string]string) {
	t.Helper()
	ctx := context.Background()
	db := dbtest.Open(t)
	svc := ledger.NewService(db, time.UTC)

	ws, err := svc.CreateWorkspace(ctx, "", "Casa")
	require.NoError(t, err)

	ids := map[string]string{}
	for name, kind := range map[string]model.CategoryKind{
		"Mercado":     model.CategoryKindExpense,
		"Transporte":  model.CategoryKindExpense,
		"Salário":     model.CategoryKindIncome,
		"Rendimentos": model.CategoryKindIncome,
	} {
		c := &model.Category{WorkspaceID: ws.ID, Name: name, Kind: kind}
		require.NoError(t, svc.CreateCategory(ctx, c))
		ids[name] = c.ID
	}

	history := []struct {
		desc string
		typ  model.TransactionType
		cat  string
	}{
		{"Supermercado Extra", model.TypeExpense, "Mercado"},
		{"Supermercado Pão de Açúcar", model.TypeExpense, "Mercado"},
		{"Hortifruti Natural", model.TypeExpense, "Mercado"},
		{"Uber Viagem", model.TypeExpense, "Transporte"},
		{"Posto Shell Combustível", model.TypeExpense, "Transporte"},
		{"Uber Trip Help", model.TypeExpense, "Transporte"},
		{"Pagamento Salário ACME", model.TypeIncome, "Salário"},
		{"Rendimento Poupança", model.TypeIncome, "Rendimentos"},
	}
	for _, h := range history {
		cat := ids[h.cat]
		txn := model.Transaction{
			WorkspaceID: ws.ID,
			Date:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Description: h.desc,
			Amount:      decimal.NewFromInt(10),
			Type:        h.typ,
			CategoryID:  &cat,
		}
		require.NoError(t, db.Create(&txn).Error)
	}
	return svc, ws.ID, ids
}

func TestBayesSuggester(t *testing.T) {
	svc, wsID, ids := seedHistory(t)

	in := []Input{
		{Description: "SUPERMERCADO EXTRA 123", Type: model.TypeExpense},
		{Description: "UBER *VIAGEM", Type: model.TypeExpense},
		{Description: "Pagamento Salário", Type: model.TypeIncome},
		{Description: "Livraria Cultura", Type: model.TypeExpense},
	}
	got, err := NewBayesSuggester(svc).Suggest(context.Background(), wsID, in)
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, ids["Mercado"], got[0].CategoryID)
	assert.Equal(t, ids["Transporte"], got[1].CategoryID)
	assert.Equal(t, ids["Salário"], got[2].CategoryID)
	assert.Empty(t, got[3].CategoryID, "no known words, no guess")
}

func TestBayesSuggester_NeedsTwoCategories(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	svc := ledger.NewService(db, time.UTC)
	ws, err := svc.CreateWorkspace(ctx, "", "Casa")
	require.NoError(t, err)

	c := &model.Category{WorkspaceID: ws.ID, Name: "Mercado"}
	require.NoError(t, svc.CreateCategory(ctx, c))
	require.NoError(t, db.Create(&model.Transaction{
		WorkspaceID: ws.ID, Description: "Supermercado", Amount: decimal.NewFromInt(1),
		Type: model.TypeExpense, CategoryID: &c.ID,
	}).Error)

	got, err := NewBayesSuggester(svc).Suggest(ctx, ws.ID, inputs("Supermercado"))
	require.NoError(t, err)
	assert.Equal(t, []Suggestion{{}}, got)
}

func TestBayesSuggester_IgnoresDeletedCategories(t *testing.T) {
	svc, wsID, ids := seedHistory(t)
	require.NoError(t, svc.DeleteCategory(context.Background(), wsID, ids["Transporte"]))

	got, err := NewBayesSuggester(svc).Suggest(context.Background(), wsID, inputs("Uber Viagem"))
	require.NoError(t, err)
	assert.NotEqual(t, ids["Transporte"], got[0].CategoryID)
}

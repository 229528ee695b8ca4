package batch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tallyhq/tally/internal/auditlog"
	"github.com/tallyhq/tally/internal/categorize"
	"github.com/tallyhq/tally/internal/database/dbtest"
	"github.com/tallyhq/tally/internal/grid"
	"github.com/tallyhq/tally/internal/importer"
	"github.com/tallyhq/tally/internal/ledger"
	"github.com/tallyhq/tally/internal/model"
)

const checkingCSV = `EXTRATO DE CONTA CORRENTE - Ag 0001;;;;;;
Cliente: Família Souza;;;;;;
Período: 01/01/2024 a 31/01/2024;;;;;;
;;;;;;
Data;Descrição;Docto;Situação;Crédito;Débito;Saldo
01/01/2024;SALDO ANTERIOR;;;;;1.000,00
05/01/2024;Pagamento Salário;123;OK;5000,00;;6.000,00
06/01/2024;Supermercado Extra;456;OK;;280,00;5.720,00
07/01/2024;Farmácia;789;OK;;45,90;5.674,10
TOTAL;;;;5000,00;325,90;
`

const cardCSV = `Lançamentos - fatura janeiro;;;
Cartão;Visa final 1234;;
Titular;MARIA SOUZA;;
Data;Descrição;Valor (US$);Valor (R$)
45300;Supermercado;0;350,50
45301;Deb Autom De Fatura;0;-1500
`

var fixedNow = time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc       *Service
	db        *gorm.DB
	ledger    *ledger.Service
	ws        string
	salary    string
	groceries string
	health    string
	auditPath string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := dbtest.Open(t)
	lg := ledger.NewService(db, time.UTC)

	ws, err := lg.CreateWorkspace(ctx, "", "Casa")
	require.NoError(t, err)

	f := &fixture{db: db, ledger: lg, ws: ws.ID}
	for _, c := range []struct {
		dst  *string
		name string
		kind model.CategoryKind
	}{
		{&f.salary, "Salário", model.CategoryKindIncome},
		{&f.groceries, "Mercado", model.CategoryKindExpense},
		{&f.health, "Saúde", model.CategoryKindExpense},
	} {
		cat := &model.Category{WorkspaceID: ws.ID, Name: c.name, Kind: c.kind}
		require.NoError(t, lg.CreateCategory(ctx, cat))
		*c.dst = cat.ID
	}
	require.NoError(t, lg.CreateAccount(ctx, &model.Account{ID: "acc-1", WorkspaceID: ws.ID, Name: "Conta Corrente"}))
	require.NoError(t, lg.CreateCard(ctx, &model.CreditCard{ID: "card-1", WorkspaceID: ws.ID, Name: "Visa", LastFour: "1234"}))
	require.NoError(t, lg.CreateRule(ctx, &model.CategoryRule{WorkspaceID: ws.ID, Pattern: "supermercado", CategoryID: f.groceries}))

	f.auditPath = t.TempDir() + "/audit.csv"
	f.svc = NewService(db, importer.DefaultRegistry(importer.Options{Location: time.UTC}),
		WithSuggester(categorize.NewChain(nil, categorize.NewRuleSuggester(lg))),
		WithAudit(auditlog.New(f.auditPath)),
		WithClock(func() time.Time { return fixedNow }),
	)
	return f
}

func (f *fixture) upload(t *testing.T, name, body string) *model.ImportBatch {
	t.Helper()
	b, err := f.svc.Upload(context.Background(), UploadParams{WorkspaceID: f.ws, FileName: name, File: strings.NewReader(body)})
	require.NoError(t, err)
	return b
}

func (f *fixture) ledgerCount(t *testing.T) int {
	t.Helper()
	txns, err := f.ledger.ListTransactions(context.Background(), f.ws, ledger.TransactionFilter{})
	require.NoError(t, err)
	return len(txns)
}

func boolPtr(b bool) *bool { return &b }
func strPtr(s string) *string { return &s }

func TestUpload_Checking(t *testing.T) {
	f := setup(t)
	b := f.upload(t, "extrato.csv", checkingCSV)

	assert.Equal(t, model.BatchParsed, b.Status)
	assert.Equal(t, "checking", b.Parser)
	assert.Equal(t, model.ImportTypeChecking, b.ImportType)
	require.Len(t, b.Rows, 3)

	salary := b.Rows[0]
	assert.Equal(t, 0, salary.Position)
	assert.Equal(t, "Pagamento Salário", salary.Description)
	assert.Equal(t, "5000.00", salary.Amount.StringFixed(2))
	assert.Equal(t, model.TypeIncome, salary.Type)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), salary.Date)
	require.NotNil(t, salary.Document)
	assert.Equal(t, "123", *salary.Document)
	assert.False(t, salary.Confirmed)
	assert.Nil(t, salary.SuggestedCategoryID)

	require.NotNil(t, b.Rows[1].SuggestedCategoryID, "rule matched")
	assert.Equal(t, f.groceries, *b.Rows[1].SuggestedCategoryID)

	p, err := f.svc.Preview(context.Background(), f.ws, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Pending)
	assert.Zero(t, p.Confirmed)
	assert.Equal(t, "Farmácia", p.Batch.Rows[2].Description)
	assert.Equal(t, "5.674,10", p.Batch.Rows[2].RawData["balance"])

	entries, err := auditlog.Read(f.auditPath)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, auditlog.ActionUploaded, entries[0].Action)
	assert.Equal(t, auditlog.ActionParsed, entries[1].Action)
	assert.Equal(t, "parser=checking rows=3", entries[1].Details)
}

func TestUpload_Card(t *testing.T) {
	f := setup(t)
	b := f.upload(t, "fatura.csv", cardCSV)

	assert.Equal(t, model.ImportTypeCard, b.ImportType)
	require.Len(t, b.Rows, 1, "automatic invoice payment is skipped")
	assert.Equal(t, "350.50", b.Rows[0].Amount.StringFixed(2))
	assert.Equal(t, model.TypeExpense, b.Rows[0].Type)
	assert.Equal(t, "Visa final 1234", b.Rows[0].RawData["card"])
	assert.Equal(t, time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), b.Rows[0].Date)
}

func TestUpload_UnrecognizedMarksFailed(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Upload(context.Background(), UploadParams{
		WorkspaceID: f.ws, FileName: "relatorio.csv", File: strings.NewReader("Relatório;Valor\nAluguel;1500\n"),
	})
	require.ErrorIs(t, err, importer.ErrFormatNotRecognized)

	batches, err := f.svc.List(context.Background(), f.ws)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, model.BatchFailed, batches[0].Status)
	assert.Contains(t, batches[0].Error, "statement format not recognized")

	entries, err := auditlog.Read(f.auditPath)
	require.NoError(t, err)
	assert.Equal(t, auditlog.ActionFailed, entries[len(entries)-1].Action)
}

func TestUpload_NoTransactions(t *testing.T) {
	f := setup(t)
	empty := strings.Replace(cardCSV, "45300;Supermercado;0;350,50\n", "", 1)

	_, err := f.svc.Upload(context.Background(), UploadParams{WorkspaceID: f.ws, FileName: "fatura.csv", File: strings.NewReader(empty)})
	require.ErrorIs(t, err, importer.ErrNoTransactions)
}

func TestUpload_UnreadableFile(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Upload(context.Background(), UploadParams{WorkspaceID: f.ws, FileName: "extrato.xls", File: strings.NewReader("binary")})
	require.ErrorIs(t, err, grid.ErrUnsupportedFile)

	batches, err := f.svc.List(context.Background(), f.ws)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, model.BatchFailed, batches[0].Status)
}

func TestUpload_StoreFailureMarksFailed(t *testing.T) {
	f := setup(t)
	err := f.db.Callback().Create().Before("gorm:create").Register("test:fail_rows", func(tx *gorm.DB) {
		if tx.Statement.Schema != nil && tx.Statement.Schema.Table == "imported_rows" {
			_ = tx.AddError(errors.New("disk full"))
		}
	})
	require.NoError(t, err)

	_, err = f.svc.Upload(context.Background(), UploadParams{WorkspaceID: f.ws, FileName: "extrato.csv", File: strings.NewReader(checkingCSV)})
	require.ErrorContains(t, err, "disk full")

	batches, err := f.svc.List(context.Background(), f.ws)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, model.BatchFailed, batches[0].Status)
	assert.Contains(t, batches[0].Error, "disk full")
}

func TestUpload_UnknownWorkspace(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Upload(context.Background(), UploadParams{WorkspaceID: "nope", FileName: "a.csv", File: strings.NewReader(checkingCSV)})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestPreview_WorkspaceScoped(t *testing.T) {
	f := setup(t)
	b := f.upload(t, "extrato.csv", checkingCSV)

	_, err := f.svc.Preview(context.Background(), "other", b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	b := f.upload(t, "extrato.csv", checkingCSV)

	require.NoError(t, f.svc.Delete(ctx, f.ws, b.ID))

	var rows int64
	require.NoError(t, f.db.Model(&model.ImportedRow{}).Where("batch_id = ?", b.ID).Count(&rows).Error)
	assert.Zero(t, rows)

	assert.ErrorIs(t, f.svc.Delete(ctx, f.ws, b.ID), ErrNotFound)
}

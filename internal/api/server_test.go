package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally/internal/batch"
	"github.com/tallyhq/tally/internal/categorize"
	"github.com/tallyhq/tally/internal/database/dbtest"
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
TOTAL;;;;5000,00;280,00;
`

type testServer struct {
	srv       *Server
	ledger    *ledger.Service
	ws        string
	account   string
	groceries string
	salary    string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	db := dbtest.Open(t)
	lg := ledger.NewService(db, time.UTC)

	ws, err := lg.CreateWorkspace(ctx, "", "Casa")
	require.NoError(t, err)

	acc := &model.Account{WorkspaceID: ws.ID, Name: "Conta Corrente"}
	require.NoError(t, lg.CreateAccount(ctx, acc))
	groceries := &model.Category{WorkspaceID: ws.ID, Name: "Mercado", Kind: model.CategoryKindExpense}
	require.NoError(t, lg.CreateCategory(ctx, groceries))
	salary := &model.Category{WorkspaceID: ws.ID, Name: "Salário", Kind: model.CategoryKindIncome}
	require.NoError(t, lg.CreateCategory(ctx, salary))
	require.NoError(t, lg.CreateRule(ctx, &model.CategoryRule{WorkspaceID: ws.ID, Pattern: "supermercado", CategoryID: groceries.ID}))
	require.NoError(t, lg.CreateRule(ctx, &model.CategoryRule{WorkspaceID: ws.ID, Pattern: "salário", CategoryID: salary.ID}))

	registry := importer.DefaultRegistry(importer.Options{Location: time.UTC})
	batches := batch.NewService(db, registry,
		batch.WithSuggester(categorize.NewChain(nil, categorize.NewRuleSuggester(lg))))

	return &testServer{
		srv:       New(batches, lg, registry, Options{Location: time.UTC}),
		ledger:    lg,
		ws:        ws.ID,
		account:   acc.ID,
		groceries: groceries.ID,
		salary:    salary.ID,
	}
}

func (ts *testServer) do(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	if req.Header.Get("X-Workspace-ID") == "" && ts.ws != "" {
		req.Header.Set("X-Workspace-ID", ts.ws)
	}
	resp, err := ts.srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(body) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(body, &out), string(body))
	}
	return resp.StatusCode, out
}

func (ts *testServer) json(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return ts.do(t, req)
}

func (ts *testServer) upload(t *testing.T, name, content string) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return ts.do(t, req)
}

func TestHealthAndParsers(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.json(t, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	code, body = ts.json(t, http.MethodGet, "/api/v1/parsers", nil)
	assert.Equal(t, http.StatusOK, code)
	parsers := body["parsers"].([]any)
	require.Len(t, parsers, 2)
	assert.Equal(t, "checking", parsers[0].(map[string]any)["name"])
}

func TestWorkspaceHeader(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/imports", nil)
	resp, err := ts.srv.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/imports", nil)
	req.Header.Set("X-Workspace-ID", "nope")
	code, _ := ts.do(t, req)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCreateWorkspace(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.json(t, http.MethodPost, "/api/v1/workspaces", map[string]string{"name": "Praia"})
	assert.Equal(t, http.StatusCreated, code)
	assert.NotEmpty(t, body["id"])

	code, _ = ts.json(t, http.MethodPost, "/api/v1/workspaces", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestImportReviewCommit(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.upload(t, "extrato.csv", checkingCSV)
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "parsed", body["status"])
	assert.Equal(t, "checking", body["parser"])
	assert.EqualValues(t, 2, body["count"])
	id := body["id"].(string)

	code, body = ts.json(t, http.MethodGet, "/api/v1/imports/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, body["pending"])
	rows := body["batch"].(map[string]any)["rows"].([]any)
	require.Len(t, rows, 2)
	first := rows[0].(map[string]any)
	assert.Equal(t, "Pagamento Salário", first["description"])
	assert.Equal(t, ts.salary, first["suggestedCategoryId"])

	code, body = ts.json(t, http.MethodPatch, "/api/v1/imports/"+id+"/rows/"+first["id"].(string),
		map[string]any{"confirmed": true})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, true, body["confirmed"])

	code, body = ts.json(t, http.MethodPost, "/api/v1/imports/"+id+"/confirm",
		map[string]string{"accountId": ts.account})
	require.Equal(t, http.StatusOK, code, body)
	assert.Len(t, body["transactions"], 1)
	assert.Equal(t, "confirmed", body["batch"].(map[string]any)["status"])

	code, _ = ts.json(t, http.MethodPost, "/api/v1/imports/"+id+"/confirm",
		map[string]string{"accountId": ts.account})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = ts.json(t, http.MethodDelete, "/api/v1/imports/"+id, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, body = ts.json(t, http.MethodGet, "/api/v1/transactions?type=income", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["transactions"], 1)
	summary := body["summary"].(map[string]any)
	assert.EqualValues(t, 1, summary["count"])
	assert.Equal(t, "5000", summary["income"])
}

func TestConfirmAllFlag(t *testing.T) {
	ts := newTestServer(t)

	_, body := ts.upload(t, "extrato.csv", checkingCSV)
	id := body["id"].(string)

	code, body := ts.json(t, http.MethodPost, "/api/v1/imports/"+id+"/confirm",
		map[string]any{"accountId": ts.account, "all": true})
	require.Equal(t, http.StatusOK, code, body)
	assert.Len(t, body["transactions"], 2)
}

func TestConfirmAllRejectedLeavesRowsPending(t *testing.T) {
	ts := newTestServer(t)

	_, body := ts.upload(t, "extrato.csv", checkingCSV)
	id := body["id"].(string)

	code, _ := ts.json(t, http.MethodPost, "/api/v1/imports/"+id+"/confirm", map[string]any{"all": true})
	require.Equal(t, http.StatusBadRequest, code)

	code, body = ts.json(t, http.MethodGet, "/api/v1/imports/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, body["confirmed"])
	assert.EqualValues(t, 2, body["pending"])
}

func TestConfirmAllRowsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	_, body := ts.upload(t, "extrato.csv", checkingCSV)
	id := body["id"].(string)

	code, body := ts.json(t, http.MethodPost, "/api/v1/imports/"+id+"/rows/confirm", nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.EqualValues(t, 2, body["confirmed"])

	code, body = ts.json(t, http.MethodGet, "/api/v1/imports/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, body["confirmed"])
}

func TestConfirmViolations(t *testing.T) {
	ts := newTestServer(t)

	_, body := ts.upload(t, "extrato.csv", checkingCSV)
	id := body["id"].(string)

	code, body := ts.json(t, http.MethodPost, "/api/v1/imports/"+id+"/confirm", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)
	violations := body["violations"].([]any)
	require.NotEmpty(t, violations)
	fields := make([]string, len(violations))
	for i, v := range violations {
		fields[i] = v.(map[string]any)["field"].(string)
	}
	assert.Contains(t, fields, "destination")
	assert.Contains(t, fields, "rows")
}

func TestUploadErrors(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.upload(t, "notes.csv", "hello;world\n1;2\n")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, body["error"], "statement format not recognized")
	assert.Len(t, body["supportedFormats"], 2)

	titleOnly := "EXTRATO DE CONTA CORRENTE - Ag 0001;;;;;;\nCliente: Família Souza;;;;;;\n" +
		"Período: 01/01/2024 a 31/01/2024;;;;;;\n;;;;;;\n05/01/2024;Pix;1;OK;10,00;;\n;;;;;;\n"
	code, body = ts.upload(t, "extrato.csv", titleOnly)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, body["error"], "header not found")
	assert.Len(t, body["supportedFormats"], 2)

	code, _ = ts.upload(t, "statement.pdf", "%PDF-1.4")
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	code, _ = ts.do(t, req)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestImportNotFound(t *testing.T) {
	ts := newTestServer(t)

	code, _ := ts.json(t, http.MethodGet, "/api/v1/imports/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestReferenceData(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.json(t, http.MethodPost, "/api/v1/people", map[string]string{"name": "Maria", "workspaceId": "other"})
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, ts.ws, body["workspaceId"])
	personID := body["id"].(string)

	code, body = ts.json(t, http.MethodGet, "/api/v1/people", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["people"], 1)

	code, _ = ts.json(t, http.MethodPost, "/api/v1/cards", map[string]string{"name": "Visa", "lastFour": "12"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.json(t, http.MethodDelete, "/api/v1/people/"+personID, nil)
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = ts.json(t, http.MethodDelete, "/api/v1/people/"+personID, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestTransactionFilterValidation(t *testing.T) {
	ts := newTestServer(t)

	code, _ := ts.json(t, http.MethodGet, "/api/v1/transactions?from=01/02/2024", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.json(t, http.MethodGet, "/api/v1/transactions?type=transfer", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestExportCSV(t *testing.T) {
	ts := newTestServer(t)

	_, body := ts.upload(t, "extrato.csv", checkingCSV)
	id := body["id"].(string)
	code, _ := ts.json(t, http.MethodPost, "/api/v1/imports/"+id+"/confirm",
		map[string]any{"accountId": ts.account, "all": true})
	require.Equal(t, http.StatusOK, code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions/export.csv?from=2024-01-06&to=2024-01-06", nil)
	req.Header.Set("X-Workspace-ID", ts.ws)
	resp, err := ts.srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".csv")
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(string(out), "\ufeff")), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, ledger.Header, lines[0])
	assert.Contains(t, lines[1], "Supermercado Extra")
	assert.Contains(t, lines[1], "Mercado")
}

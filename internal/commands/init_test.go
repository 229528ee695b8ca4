package commands_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tallyhq/tally/internal/commands"
	"github.com/tallyhq/tally/internal/config"
	"github.com/tallyhq/tally/internal/database"
	"github.com/tallyhq/tally/internal/ledger"
	"github.com/tallyhq/tally/internal/model"
)

func runTally(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := commands.NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func initWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	_, err := runTally(t, "init", dir, "--name", "Família Souza")
	require.NoError(t, err)
	return dir
}

// withDB opens the workspace database directly.
func withDB(t *testing.T, dir string, fn func(db *gorm.DB, ws string)) {
	t.Helper()
	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)

	db, err := database.Open(config.DatabaseConfig{
		Driver: database.DriverSQLite,
		DSN:    filepath.Join(dir, cfg.Database.DSN),
	})
	require.NoError(t, err)
	defer database.Close(db)

	fn(db, cfg.Workspace.ID)
}

func withLedger(t *testing.T, dir string, fn func(lg *ledger.Service, ws string)) {
	t.Helper()
	withDB(t, dir, func(db *gorm.DB, ws string) {
		fn(ledger.NewService(db, nil), ws)
	})
}

func TestInit_CreatesStructure(t *testing.T) {
	dir := initWorkspace(t)

	for _, d := range []string{"inbox", filepath.Join("inbox", "processed"), "logs"} {
		info, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir(), "%s should be a directory", d)
	}
	for _, f := range []string{config.FileName, "tally.db", ".gitignore"} {
		_, err := os.Stat(filepath.Join(dir, f))
		assert.NoError(t, err, "%s should exist", f)
	}
}

func TestInit_Config(t *testing.T) {
	dir := initWorkspace(t)

	data, err := os.ReadFile(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	contents := string(data)
	assert.Contains(t, contents, "name: Família Souza")
	assert.Contains(t, contents, "timezone: America/Sao_Paulo")

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Workspace.ID)
}

func TestInit_SeedsWorkspace(t *testing.T) {
	dir := initWorkspace(t)

	withLedger(t, dir, func(lg *ledger.Service, ws string) {
		w, err := lg.GetWorkspace(context.Background(), ws)
		require.NoError(t, err)
		assert.Equal(t, "Família Souza", w.Name)

		cats, err := lg.ListCategories(context.Background(), ws)
		require.NoError(t, err)
		assert.Len(t, cats, len(ledger.DefaultCategories()))
	})
}

func TestInit_Gitignore(t *testing.T) {
	dir := initWorkspace(t)

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	for _, pattern := range []string{"tally.db*", ".env", "inbox/"} {
		assert.Contains(t, string(data), pattern)
	}
}

func TestInit_RequiresName(t *testing.T) {
	_, err := runTally(t, "init", t.TempDir())
	require.Error(t, err, "init without --name should fail")
}

func TestInit_RefusesExistingWorkspace(t *testing.T) {
	dir := initWorkspace(t)
	_, err := runTally(t, "init", dir, "--name", "Outra")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestParsers(t *testing.T) {
	out, err := runTally(t, "parsers")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "checking"))
	assert.True(t, strings.HasPrefix(lines[1], "card"))
}

func TestParse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extrato.csv")
	require.NoError(t, os.WriteFile(path, []byte(checkingCSV), 0o644))

	out, err := runTally(t, "parse", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Parser: checking (checking), 2 transactions")
	assert.Contains(t, out, "2024-01-05")
	assert.Contains(t, out, "5000.00")
	assert.Contains(t, out, "Supermercado Extra")
}

func TestParse_UnrecognizedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.csv")
	require.NoError(t, os.WriteFile(path, []byte("a;b\n1;2\n"), 0o644))

	_, err := runTally(t, "parse", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement format not recognized")
}

func TestParse_MissingFile(t *testing.T) {
	_, err := runTally(t, "parse", filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
}

// prepareLedger creates an account and rules that categorize checkingCSV.
func prepareLedger(t *testing.T, dir string) string {
	t.Helper()
	ctx := context.Background()
	var id string
	withLedger(t, dir, func(lg *ledger.Service, ws string) {
		acc := &model.Account{WorkspaceID: ws, Name: "Conta Corrente"}
		require.NoError(t, lg.CreateAccount(ctx, acc))
		id = acc.ID

		cats, err := lg.ListCategories(ctx, ws)
		require.NoError(t, err)
		byKind := map[model.CategoryKind]string{}
		for _, c := range cats {
			if byKind[c.Kind] == "" {
				byKind[c.Kind] = c.ID
			}
		}
		require.NoError(t, lg.CreateRule(ctx, &model.CategoryRule{WorkspaceID: ws, Pattern: "salário", CategoryID: byKind[model.CategoryKindIncome]}))
		require.NoError(t, lg.CreateRule(ctx, &model.CategoryRule{WorkspaceID: ws, Pattern: "supermercado", CategoryID: byKind[model.CategoryKindExpense]}))
	})
	return id
}

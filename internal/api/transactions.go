package api

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tallyhq/tally/internal/ledger"
	"github.com/tallyhq/tally/internal/model"
)

const dateParam = "2006-01-02"

func (s *Server) listTransactions(c *fiber.Ctx) error {
	f, err := s.filter(c)
	if err != nil {
		return err
	}
	txns, err := s.ledger.ListTransactions(c.UserContext(), workspaceID(c), f)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"transactions": txns,
		"summary":      ledger.Summarize(txns),
	})
}

func (s *Server) exportCSV(c *fiber.Ctx) error {
	return s.export(c, "csv", "text/csv; charset=utf-8", ledger.WriteCSV)
}

func (s *Server) exportXLSX(c *fiber.Ctx) error {
	return s.export(c, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", ledger.WriteXLSX)
}

func (s *Server) export(c *fiber.Ctx, ext, contentType string, write func(io.Writer, []ledger.ExportRow) error) error {
	f, err := s.filter(c)
	if err != nil {
		return err
	}
	rows, err := s.ledger.ExportRows(c.UserContext(), workspaceID(c), f)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := write(&buf, rows); err != nil {
		return fmt.Errorf("exporting transactions: %w", err)
	}
	c.Attachment(fmt.Sprintf("transactions_%s.%s", time.Now().In(s.loc).Format("20060102"), ext))
	c.Set(fiber.HeaderContentType, contentType)
	return c.Send(buf.Bytes())
}

// filter reads the transaction filter from the query string. Dates are
// calendar days in the server location; to is inclusive.
func (s *Server) filter(c *fiber.Ctx) (ledger.TransactionFilter, error) {
	f := ledger.TransactionFilter{
		AccountID:  c.Query("accountId"),
		CardID:     c.Query("cardId"),
		CategoryID: c.Query("categoryId"),
		PersonID:   c.Query("personId"),
		BatchID:    c.Query("batchId"),
		Type:       model.TransactionType(strings.ToUpper(c.Query("type"))),
	}
	switch f.Type {
	case "", model.TypeIncome, model.TypeExpense:
	default:
		return f, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("unknown transaction type %q", f.Type))
	}

	var err error
	if f.From, err = s.date(c, "from"); err != nil {
		return f, err
	}
	if f.To, err = s.date(c, "to"); err != nil {
		return f, err
	}
	return f, nil
}

func (s *Server) date(c *fiber.Ctx, key string) (time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(dateParam, v, s.loc)
	if err != nil {
		return time.Time{}, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("%s must be YYYY-MM-DD", key))
	}
	return t, nil
}

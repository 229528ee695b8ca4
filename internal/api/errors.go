package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/tallyhq/tally/internal/batch"
	"github.com/tallyhq/tally/internal/grid"
	"github.com/tallyhq/tally/internal/importer"
	"github.com/tallyhq/tally/internal/ledger"
)

// handleError maps service errors to status codes. Unexpected errors are
// logged and reported without detail.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var (
		fe  *fiber.Error
		cve *batch.CommitValidationError
		mre *importer.MalformedRowError
	)

	switch {
	case errors.As(err, &fe):
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})

	case errors.Is(err, importer.ErrFormatNotRecognized),
		errors.Is(err, importer.ErrNoTransactions),
		errors.Is(err, grid.ErrUnsupportedFile),
		errors.As(err, &mre):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":            err.Error(),
			"supportedFormats": s.registry.Catalog(),
		})

	case errors.As(err, &cve):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":      "commit rejected",
			"violations": cve.Violations,
		})

	case errors.Is(err, ledger.ErrInvalid):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})

	case errors.Is(err, batch.ErrCommitConflict), errors.Is(err, batch.ErrBatchNotEditable):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})

	case errors.Is(err, batch.ErrNotFound), errors.Is(err, ledger.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}

	s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "err", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
}

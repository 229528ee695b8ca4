package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tallyhq/tally/internal/batch"
)

func (s *Server) uploadImport(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart field \"file\" is required")
	}
	f, err := fh.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "cannot read uploaded file")
	}
	defer f.Close()

	b, err := s.batches.Upload(c.UserContext(), batch.UploadParams{
		WorkspaceID: workspaceID(c),
		FileName:    fh.Filename,
		File:        f,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":         b.ID,
		"status":     b.Status,
		"parser":     b.Parser,
		"importType": b.ImportType,
		"count":      len(b.Rows),
	})
}

func (s *Server) listImports(c *fiber.Ctx) error {
	batches, err := s.batches.List(c.UserContext(), workspaceID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"imports": batches})
}

func (s *Server) previewImport(c *fiber.Ctx) error {
	p, err := s.batches.Preview(c.UserContext(), workspaceID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(p)
}

func (s *Server) patchRow(c *fiber.Ctx) error {
	var patch batch.RowPatch
	if err := c.BodyParser(&patch); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	row, err := s.batches.PatchRow(c.UserContext(), workspaceID(c), c.Params("id"), c.Params("rowId"), patch)
	if err != nil {
		return err
	}
	return c.JSON(row)
}

func (s *Server) confirmImport(c *fiber.Ctx) error {
	var p batch.ConfirmParams
	if err := c.BodyParser(&p); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	res, err := s.batches.Confirm(c.UserContext(), workspaceID(c), c.Params("id"), p)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (s *Server) confirmAllRows(c *fiber.Ctx) error {
	n, err := s.batches.ConfirmAll(c.UserContext(), workspaceID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"confirmed": n})
}

func (s *Server) deleteImport(c *fiber.Ctx) error {
	if err := s.batches.Delete(c.UserContext(), workspaceID(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

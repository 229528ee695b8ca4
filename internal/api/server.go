// Package api serves the REST interface under /api/v1.
package api

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/tallyhq/tally/internal/batch"
	"github.com/tallyhq/tally/internal/buildinfo"
	"github.com/tallyhq/tally/internal/importer"
	"github.com/tallyhq/tally/internal/ledger"
)

// WorkspaceHeader scopes every workspace route.
const WorkspaceHeader = "X-Workspace-ID"

const workspaceKey = "workspace"

// Options configures the HTTP layer.
type Options struct {
	BodyLimitMB int
	CORSOrigins []string
	Location    *time.Location // for date query parameters; nil means time.Local
	Logger      *log.Logger
}

// Server wires the services to fiber routes.
type Server struct {
	app      *fiber.App
	batches  *batch.Service
	ledger   *ledger.Service
	registry *importer.Registry
	loc      *time.Location
	logger   *log.Logger
}

// New builds the fiber app and registers all routes.
func New(batches *batch.Service, lg *ledger.Service, registry *importer.Registry, opts Options) *Server {
	s := &Server{
		batches:  batches,
		ledger:   lg,
		registry: registry,
		loc:      opts.Location,
		logger:   opts.Logger,
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}

	limit := opts.BodyLimitMB
	if limit <= 0 {
		limit = 10
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "tally " + buildinfo.Version,
		BodyLimit:             limit << 20,
		ErrorHandler:          s.handleError,
		DisableStartupMessage: true,
	})

	origins := "*"
	if len(opts.CORSOrigins) > 0 {
		origins = strings.Join(opts.CORSOrigins, ",")
	}
	s.app.Use(recover.New())
	s.app.Use(logger.New(logger.Config{
		Output: s.logger.StandardLog(log.StandardLogOptions{ForceLevel: log.InfoLevel}).Writer(),
		Format: "${status} ${method} ${path} ${latency}\n",
	}))
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, " + WorkspaceHeader,
	}))

	s.routes()
	return s
}

// App exposes the fiber app, for tests.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) routes() {
	api := s.app.Group("/api/v1")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "version": buildinfo.Version})
	})
	api.Get("/parsers", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"parsers": s.registry.Catalog()})
	})
	api.Post("/workspaces", s.createWorkspace)

	ws := api.Group("", s.requireWorkspace)

	ws.Post("/imports", s.uploadImport)
	ws.Get("/imports", s.listImports)
	ws.Get("/imports/:id", s.previewImport)
	ws.Patch("/imports/:id/rows/:rowId", s.patchRow)
	ws.Post("/imports/:id/rows/confirm", s.confirmAllRows)
	ws.Post("/imports/:id/confirm", s.confirmImport)
	ws.Delete("/imports/:id", s.deleteImport)

	accounts.mount(ws, "/accounts", s.ledger)
	cards.mount(ws, "/cards", s.ledger)
	categories.mount(ws, "/categories", s.ledger)
	people.mount(ws, "/people", s.ledger)
	rules.mount(ws, "/rules", s.ledger)

	ws.Get("/transactions", s.listTransactions)
	ws.Get("/transactions/export.csv", s.exportCSV)
	ws.Get("/transactions/export.xlsx", s.exportXLSX)
}

// requireWorkspace resolves the workspace header. Authentication is out of
// scope; the header is trusted.
func (s *Server) requireWorkspace(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Get(WorkspaceHeader))
	if id == "" {
		return fiber.NewError(fiber.StatusBadRequest, WorkspaceHeader+" header is required")
	}
	if _, err := s.ledger.GetWorkspace(c.UserContext(), id); err != nil {
		return err
	}
	c.Locals(workspaceKey, id)
	return c.Next()
}

func workspaceID(c *fiber.Ctx) string {
	id, _ := c.Locals(workspaceKey).(string)
	return id
}

func (s *Server) createWorkspace(c *fiber.Ctx) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	ws, err := s.ledger.CreateWorkspace(c.UserContext(), "", req.Name)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(ws)
}

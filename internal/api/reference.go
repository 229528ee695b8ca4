package api

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/tallyhq/tally/internal/ledger"
	"github.com/tallyhq/tally/internal/model"
)

// resource mounts list, create and delete routes for one kind of
// reference data.
type resource[T any] struct {
	key    string
	list   func(*ledger.Service, context.Context, string) ([]T, error)
	create func(*ledger.Service, context.Context, *T) error
	remove func(*ledger.Service, context.Context, string, string) error
	scope  func(*T, string)
}

var (
	accounts = resource[model.Account]{
		key:    "accounts",
		list:   (*ledger.Service).ListAccounts,
		create: (*ledger.Service).CreateAccount,
		remove: (*ledger.Service).DeleteAccount,
		scope:  func(a *model.Account, ws string) { a.ID, a.WorkspaceID = "", ws },
	}
	cards = resource[model.CreditCard]{
		key:    "cards",
		list:   (*ledger.Service).ListCards,
		create: (*ledger.Service).CreateCard,
		remove: (*ledger.Service).DeleteCard,
		scope:  func(c *model.CreditCard, ws string) { c.ID, c.WorkspaceID = "", ws },
	}
	categories = resource[model.Category]{
		key:    "categories",
		list:   (*ledger.Service).ListCategories,
		create: (*ledger.Service).CreateCategory,
		remove: (*ledger.Service).DeleteCategory,
		scope:  func(c *model.Category, ws string) { c.ID, c.WorkspaceID = "", ws },
	}
	people = resource[model.Person]{
		key:    "people",
		list:   (*ledger.Service).ListPeople,
		create: (*ledger.Service).CreatePerson,
		remove: (*ledger.Service).DeletePerson,
		scope:  func(p *model.Person, ws string) { p.ID, p.WorkspaceID = "", ws },
	}
	rules = resource[model.CategoryRule]{
		key:    "rules",
		list:   (*ledger.Service).ListRules,
		create: (*ledger.Service).CreateRule,
		remove: (*ledger.Service).DeleteRule,
		scope:  func(r *model.CategoryRule, ws string) { r.ID, r.WorkspaceID = "", ws },
	}
)

func (r resource[T]) mount(g fiber.Router, path string, svc *ledger.Service) {
	g.Get(path, func(c *fiber.Ctx) error {
		items, err := r.list(svc, c.UserContext(), workspaceID(c))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{r.key: items})
	})

	g.Post(path, func(c *fiber.Ctx) error {
		item := new(T)
		if err := c.BodyParser(item); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		r.scope(item, workspaceID(c))
		if err := r.create(svc, c.UserContext(), item); err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(item)
	})

	g.Delete(path+"/:id", func(c *fiber.Ctx) error {
		if err := r.remove(svc, c.UserContext(), workspaceID(c), c.Params("id")); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

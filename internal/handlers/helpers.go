package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/skilllink/skilllink-api/internal/middleware"
	"github.com/skilllink/skilllink-api/internal/models"
	"github.com/skilllink/skilllink-api/internal/utils"
)

func getPrincipal(c *fiber.Ctx) (models.Principal, error) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return models.Principal{}, utils.Unauthorized("Not authorized")
	}
	return p, nil
}

func paramUUID(c *fiber.Ctx, name, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, utils.BadRequest("Invalid " + what + " id")
	}
	return id, nil
}

func parseBody(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return utils.BadRequest("Invalid request body")
	}
	return nil
}

func ok(c *fiber.Ctx, message string, data any) error {
	return respond(c, fiber.StatusOK, message, data)
}

func created(c *fiber.Ctx, message string, data any) error {
	return respond(c, fiber.StatusCreated, message, data)
}

func respond(c *fiber.Ctx, status int, message string, data any) error {
	body := fiber.Map{"success": true, "data": data}
	if message != "" {
		body["message"] = message
	}
	return c.Status(status).JSON(body)
}

// parseDate accepts RFC 3339 timestamps and plain 2006-01-02 dates.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, utils.BadRequest("Invalid date: " + s)
}

func optionalUUID(s string) (*uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

type FieldErrors map[string][]string

func (e FieldErrors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

func validationFail(c *fiber.Ctx, errs FieldErrors) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"message": "Validation error",
		"errors":  errs,
	})
}

// Guards are the middleware chains that protect routes, by audience.
type Guards struct {
	Any    []fiber.Handler
	User   []fiber.Handler
	Worker []fiber.Handler
}

// With returns chain followed by h. The result never shares chain's backing
// array, so guard chains can be extended independently.
func With(chain []fiber.Handler, h fiber.Handler) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(chain)+1)
	out = append(out, chain...)
	return append(out, h)
}

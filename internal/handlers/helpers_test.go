package handlers

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestWithDoesNotAliasChain(t *testing.T) {
	var calls []string
	mark := func(name string) fiber.Handler {
		return func(*fiber.Ctx) error {
			calls = append(calls, name)
			return nil
		}
	}
	base := make([]fiber.Handler, 1, 4)
	base[0] = mark("auth")

	user := With(base, mark("user"))
	worker := With(base, mark("worker"))

	assert.Len(t, base, 1)
	assert.Len(t, user, 2)
	assert.Len(t, worker, 2)
	for _, h := range append(user, worker...) {
		_ = h(nil)
	}
	assert.Equal(t, []string{"auth", "user", "auth", "worker"}, calls)
}

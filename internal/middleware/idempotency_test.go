package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/nestegg-app/nestegg/internal/auth"
	"github.com/nestegg-app/nestegg/internal/logging"
)

func setupTestApp(t *testing.T) (*fiber.App, *int64) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	var calls int64
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.LocalAccountID, c.Get("X-Test-Account"))
		return c.Next()
	})
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/savings/deposit", func(c *fiber.Ctx) error {
		n := atomic.AddInt64(&calls, 1)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"call": n})
	})

	return app, &calls
}

func post(t *testing.T, app *fiber.App, account, key string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/savings/deposit", strings.NewReader(`{"amount": 10}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("X-Test-Account", account)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestIdempotencyHeaderIsOptional(t *testing.T) {
	app, calls := setupTestApp(t)

	post(t, app, "acc-1", "")
	post(t, app, "acc-1", "")

	if *calls != 2 {
		t.Fatalf("expected both requests to reach the handler, got %d", *calls)
	}
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	app, calls := setupTestApp(t)

	status, first := post(t, app, "acc-1", "abc123")
	if status != fiber.StatusOK {
		t.Fatalf("expected status %d got %d", fiber.StatusOK, status)
	}

	// Second request should return the cached response without invoking handler again.
	status, second := post(t, app, "acc-1", "abc123")
	if status != fiber.StatusOK {
		t.Fatalf("expected cached status %d got %d", fiber.StatusOK, status)
	}
	if first != second {
		t.Fatalf("expected cached payload %s got %s", first, second)
	}
	if *calls != 1 {
		t.Fatalf("handler ran %d times", *calls)
	}
}

func TestIdempotencyKeysAreScopedToAccount(t *testing.T) {
	app, calls := setupTestApp(t)

	post(t, app, "acc-1", "same-key")
	post(t, app, "acc-2", "same-key")

	if *calls != 2 {
		t.Fatalf("expected the key to be reusable across accounts, handler ran %d times", *calls)
	}
}

func TestIdempotencyWithoutRedis(t *testing.T) {
	app := fiber.New()
	app.Use(Idempotency(nil, time.Minute, logging.Discard()))
	app.Post("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	req := httptest.NewRequest(fiber.MethodPost, "/", nil)
	req.Header.Set(idempotencyKeyHeader, "k")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("expected pass-through, got %d", resp.StatusCode)
	}
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/nestegg-app/nestegg/internal/account"
	"github.com/nestegg-app/nestegg/internal/auth"
	"github.com/nestegg-app/nestegg/internal/response"
)

const localAccount = "account"

// JWTAuth validates bearer tokens and loads the account they were issued for.
// Deactivated accounts are rejected even while their token is still valid.
func JWTAuth(tokens *auth.TokenIssuer, accounts account.Repository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return response.NewError(http.StatusUnauthorized, "No token provided", nil)
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])

		accountID, err := tokens.Parse(tokenStr)
		if err != nil {
			return response.NewError(http.StatusUnauthorized, "Invalid or expired token", err)
		}

		acc, err := accounts.FindByID(c.UserContext(), accountID)
		if err != nil {
			return response.NewError(http.StatusUnauthorized, "User not found", err)
		}
		if !acc.IsActive {
			return response.NewError(http.StatusUnauthorized, "Account is deactivated", account.ErrAccountInactive)
		}

		c.Locals(auth.LocalAccountID, acc.ID)
		c.Locals(localAccount, acc)
		return c.Next()
	}
}

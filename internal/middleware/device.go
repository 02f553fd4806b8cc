package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/nestegg-app/nestegg/internal/account"
	"github.com/nestegg-app/nestegg/internal/auth"
)

const deviceIDHeader = "X-Device-ID"

// DeviceGate admits requests only from a device that is registered and
// verified on the authenticated account. It must run after JWTAuth.
func DeviceGate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		deviceID := strings.TrimSpace(c.Get(deviceIDHeader))
		if deviceID == "" {
			return auth.DeviceRequired()
		}

		acc, ok := c.Locals(localAccount).(account.Account)
		if !ok || !acc.IsDeviceVerified(deviceID) {
			return auth.DeviceNotVerified(deviceID)
		}

		c.Locals(auth.LocalDeviceID, deviceID)
		return c.Next()
	}
}

package auth

import "github.com/gofiber/fiber/v2"

// Keys under which the auth middlewares store request identity in fiber locals.
const (
	LocalAccountID = "account_id"
	LocalDeviceID  = "device_id"
)

// AccountID returns the authenticated account id, or "" before JWT auth ran.
func AccountID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalAccountID).(string)
	return id
}

// DeviceID returns the verified device id, or "" before the device gate ran.
func DeviceID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalDeviceID).(string)
	return id
}

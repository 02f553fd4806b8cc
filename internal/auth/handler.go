package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/nestegg-app/nestegg/internal/account"
	"github.com/nestegg-app/nestegg/internal/ledger"
	"github.com/nestegg-app/nestegg/internal/response"
	"github.com/nestegg-app/nestegg/internal/validation"
)

// Handler exposes the /auth endpoints.
type Handler struct {
	svc       *Service
	validator *validation.Validator
}

func NewHandler(svc *Service, v *validation.Validator) *Handler {
	return &Handler{svc: svc, validator: v}
}

type registerRequest struct {
	FullName    string `json:"fullName" validate:"required,min=3,max=50"`
	Email       string `json:"email" validate:"required,email"`
	PhoneNumber string `json:"phoneNumber" validate:"required,min=10,max=15,phone"`
	Password    string `json:"password" validate:"required,min=8"`
	DeviceID    string `json:"deviceId" validate:"required"`
	DeviceName  string `json:"deviceName" validate:"omitempty,max=100"`
}

func (r *registerRequest) trim() {
	r.FullName = strings.TrimSpace(r.FullName)
	r.Email = strings.TrimSpace(r.Email)
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
	r.DeviceID = strings.TrimSpace(r.DeviceID)
	r.DeviceName = strings.TrimSpace(r.DeviceName)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	DeviceID string `json:"deviceId" validate:"required"`
}

type userResponse struct {
	ID          string           `json:"id"`
	FullName    string           `json:"fullName"`
	Email       string           `json:"email"`
	PhoneNumber string           `json:"phoneNumber"`
	Balance     decimal.Decimal  `json:"balance"`
	IsActive    bool             `json:"isActive"`
	CreatedAt   time.Time        `json:"createdAt"`
	Devices     []deviceResponse `json:"devices,omitempty"`
}

type deviceResponse struct {
	DeviceID     string     `json:"deviceId"`
	DeviceName   string     `json:"deviceName"`
	IsVerified   bool       `json:"isVerified"`
	VerifiedAt   *time.Time `json:"verifiedAt,omitempty"`
	RegisteredAt time.Time  `json:"registeredAt"`
}

func toUser(acc account.Account, balance decimal.Decimal) userResponse {
	return userResponse{
		ID:          acc.ID,
		FullName:    acc.FullName,
		Email:       acc.Email,
		PhoneNumber: acc.PhoneNumber,
		Balance:     balance.Round(2),
		IsActive:    acc.IsActive,
		CreatedAt:   acc.CreatedAt,
	}
}

// Register opens an account bound to the caller's device, pending verification.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return response.NewError(http.StatusBadRequest, "Invalid request body", err)
	}
	req.trim()
	if err := h.validator.Struct(req); err != nil {
		return err
	}

	acc, err := h.svc.Register(c.UserContext(), account.Registration{
		FullName:    req.FullName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Password:    req.Password,
		DeviceID:    req.DeviceID,
		DeviceName:  req.DeviceName,
	})
	if err != nil {
		return accountError(err, req.DeviceID)
	}

	return response.OK(c, http.StatusCreated, "Registration successful. Please wait for device verification.", fiber.Map{
		"userId":       acc.ID,
		"email":        acc.Email,
		"deviceStatus": "pending_verification",
	})
}

// Login authenticates credentials and the device and returns a bearer token.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.NewError(http.StatusBadRequest, "Invalid request body", err)
	}
	req.Email = strings.TrimSpace(req.Email)
	req.DeviceID = strings.TrimSpace(req.DeviceID)
	if err := h.validator.Struct(req); err != nil {
		return err
	}

	session, err := h.svc.Login(c.UserContext(), req.Email, req.Password, req.DeviceID)
	if err != nil {
		return accountError(err, req.DeviceID)
	}

	return response.OK(c, http.StatusOK, "Login successful", fiber.Map{
		"user":      toUser(session.Account, session.Balance),
		"token":     session.Token,
		"expiresAt": session.ExpiresAt,
	})
}

// Profile returns the authenticated account with its devices.
func (h *Handler) Profile(c *fiber.Ctx) error {
	profile, err := h.svc.Profile(c.UserContext(), AccountID(c))
	if err != nil {
		return accountError(err, DeviceID(c))
	}

	user := toUser(profile.Account, profile.Balance)
	user.Devices = make([]deviceResponse, 0, len(profile.Account.Devices))
	for _, d := range profile.Account.Devices {
		user.Devices = append(user.Devices, deviceResponse{
			DeviceID:     d.DeviceID,
			DeviceName:   d.DeviceName,
			IsVerified:   d.IsVerified,
			VerifiedAt:   d.VerifiedAt,
			RegisteredAt: d.RegisteredAt,
		})
	}
	return response.OK(c, http.StatusOK, "", fiber.Map{"user": user})
}

// Logout is stateless; clients discard their token.
func (h *Handler) Logout(c *fiber.Ctx) error {
	return response.OK(c, http.StatusOK, "Logout successful", nil)
}

func accountError(err error, deviceID string) error {
	switch {
	case errors.Is(err, account.ErrDuplicateIdentity):
		return response.NewError(http.StatusConflict, "User with this email or phone number already exists", err)
	case errors.Is(err, account.ErrInvalidCredentials):
		return response.NewError(http.StatusUnauthorized, "Invalid credentials", err)
	case errors.Is(err, account.ErrAccountInactive):
		return response.NewError(http.StatusUnauthorized, "Account is deactivated", err)
	case errors.Is(err, account.ErrDeviceNotVerified):
		return DeviceNotVerified(deviceID)
	case errors.Is(err, account.ErrDeviceRequired):
		return DeviceRequired()
	case errors.Is(err, account.ErrWeakPassword):
		return response.NewError(http.StatusBadRequest, "Password must be at least 8 characters", err)
	case errors.Is(err, account.ErrNotFound), errors.Is(err, ledger.ErrAccountNotFound):
		return response.NewError(http.StatusNotFound, "User not found", err)
	default:
		return err
	}
}

// DeviceNotVerified is the 403 returned whenever the device gate rejects a request.
func DeviceNotVerified(deviceID string) *response.Error {
	return &response.Error{
		Status:   http.StatusForbidden,
		Message:  "Device not verified. Please contact admin for verification.",
		Code:     response.CodeDeviceNotVerified,
		DeviceID: deviceID,
		Err:      account.ErrDeviceNotVerified,
	}
}

// DeviceRequired is the 403 returned when no device id was presented.
func DeviceRequired() *response.Error {
	return &response.Error{
		Status:  http.StatusForbidden,
		Message: "Device ID is required",
		Code:    response.CodeDeviceRequired,
		Err:     account.ErrDeviceRequired,
	}
}

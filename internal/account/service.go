package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// Service manages the account lifecycle and the login-time device gate.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new account service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Register creates an active account bound to a single unverified device.
func (s *Service) Register(ctx context.Context, reg Registration) (Account, error) {
	if reg.DeviceID == "" {
		return Account{}, ErrDeviceRequired
	}
	if len(reg.Password) < minPasswordLength {
		return Account{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, err
	}

	deviceName := reg.DeviceName
	if deviceName == "" {
		deviceName = DefaultDeviceName
	}

	now := s.now()
	account := Account{
		ID:           uuid.New().String(),
		FullName:     reg.FullName,
		Email:        NormalizeEmail(reg.Email),
		PhoneNumber:  strings.TrimSpace(reg.PhoneNumber),
		PasswordHash: hash,
		Devices: []Device{{
			DeviceID:     reg.DeviceID,
			DeviceName:   deviceName,
			RegisteredAt: now,
		}},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, account); err != nil {
		return Account{}, err
	}

	return account, nil
}

// Authenticate verifies credentials and the device gate. A device id seen for
// the first time is registered unverified before the gate is checked, so the
// caller gets ErrDeviceNotVerified and an administrator can verify it later.
func (s *Service) Authenticate(ctx context.Context, email, password, deviceID string) (Account, error) {
	account, err := s.repo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Account{}, ErrInvalidCredentials
		}
		return Account{}, err
	}

	if err := bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(password)); err != nil {
		return Account{}, ErrInvalidCredentials
	}

	if !account.IsActive {
		return Account{}, ErrAccountInactive
	}

	if deviceID == "" {
		return Account{}, ErrDeviceRequired
	}

	if !account.HasDevice(deviceID) {
		device := Device{DeviceID: deviceID, DeviceName: DefaultDeviceName, RegisteredAt: s.now()}
		if err := s.repo.AddDevice(ctx, account.ID, device); err != nil {
			return Account{}, err
		}
		account.Devices = append(account.Devices, device)
	}

	if !account.IsDeviceVerified(deviceID) {
		return Account{}, ErrDeviceNotVerified
	}

	return account, nil
}

// Get loads an account by identifier.
func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	return s.repo.FindByID(ctx, id)
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

package account

import (
	"errors"
	"time"
)

// DefaultDeviceName labels devices registered without a client supplied name.
const DefaultDeviceName = "Unknown Device"

var (
	// ErrNotFound indicates no account matches the lookup.
	ErrNotFound = errors.New("account not found")
	// ErrDuplicateIdentity is returned when the email or phone number is already registered.
	ErrDuplicateIdentity = errors.New("user with this email or phone number already exists")
	// ErrInvalidCredentials covers both unknown emails and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive is returned for deactivated accounts.
	ErrAccountInactive = errors.New("account is deactivated")
	// ErrDeviceNotVerified is returned when credentials are valid but the
	// presented device has not been verified yet.
	ErrDeviceNotVerified = errors.New("device not verified")
	// ErrDeviceRequired is returned when no device identifier was supplied.
	ErrDeviceRequired = errors.New("device id is required")
	// ErrWeakPassword rejects passwords shorter than the minimum length.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
)

// Account represents a registered saver. The balance lives with the ledger.
type Account struct {
	ID           string
	FullName     string
	Email        string
	PhoneNumber  string
	PasswordHash []byte
	Devices      []Device
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Device is a client device bound to an account.
type Device struct {
	DeviceID     string
	DeviceName   string
	IsVerified   bool
	VerifiedAt   *time.Time
	RegisteredAt time.Time
}

// HasDevice reports whether deviceID is already registered on the account.
func (a Account) HasDevice(deviceID string) bool {
	_, ok := a.device(deviceID)
	return ok
}

// IsDeviceVerified reports whether deviceID is registered and verified.
// Unknown and empty identifiers are never verified.
func (a Account) IsDeviceVerified(deviceID string) bool {
	d, ok := a.device(deviceID)
	return ok && d.IsVerified
}

func (a Account) device(deviceID string) (Device, bool) {
	if deviceID == "" {
		return Device{}, false
	}
	for _, d := range a.Devices {
		if d.DeviceID == deviceID {
			return d, true
		}
	}
	return Device{}, false
}

// Registration carries the data required to open an account.
type Registration struct {
	FullName    string
	Email       string
	PhoneNumber string
	Password    string
	DeviceID    string
	DeviceName  string
}

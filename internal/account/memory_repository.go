package account

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu       sync.RWMutex
	accounts map[string]Account
	byEmail  map[string]string
	byPhone  map[string]string
}

// NewMemoryRepository builds an in-memory account store for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		accounts: make(map[string]Account),
		byEmail:  make(map[string]string),
		byPhone:  make(map[string]string),
	}
}

func (r *memoryRepository) Create(_ context.Context, account Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[account.Email]; exists {
		return ErrDuplicateIdentity
	}
	if _, exists := r.byPhone[account.PhoneNumber]; exists {
		return ErrDuplicateIdentity
	}
	account.Devices = append([]Device(nil), account.Devices...)
	r.accounts[account.ID] = account
	r.byEmail[account.Email] = account.ID
	r.byPhone[account.PhoneNumber] = account.ID
	return nil
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return Account{}, ErrNotFound
	}
	return r.copyOf(id), nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.accounts[id]; !ok {
		return Account{}, ErrNotFound
	}
	return r.copyOf(id), nil
}

func (r *memoryRepository) AddDevice(_ context.Context, accountID string, device Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[accountID]
	if !ok {
		return ErrNotFound
	}
	if account.HasDevice(device.DeviceID) {
		return nil
	}
	account.Devices = append(account.Devices, device)
	r.accounts[accountID] = account
	return nil
}

// copyOf must be called with the lock held.
func (r *memoryRepository) copyOf(id string) Account {
	account := r.accounts[id]
	account.Devices = append([]Device(nil), account.Devices...)
	return account
}

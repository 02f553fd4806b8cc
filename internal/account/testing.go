package account

import "time"

// MarkDeviceVerified flips a device to verified on the in-memory repository.
// Production verification is an out-of-band database update.
func MarkDeviceVerified(repo Repository, accountID, deviceID string, at time.Time) bool {
	mem, ok := repo.(*memoryRepository)
	if !ok {
		return false
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()
	account, ok := mem.accounts[accountID]
	if !ok {
		return false
	}
	for i := range account.Devices {
		if account.Devices[i].DeviceID == deviceID {
			verifiedAt := at.UTC()
			account.Devices[i].IsVerified = true
			account.Devices[i].VerifiedAt = &verifiedAt
			mem.accounts[accountID] = account
			return true
		}
	}
	return false
}

// Deactivate marks an account inactive on the in-memory repository.
func Deactivate(repo Repository, accountID string) bool {
	mem, ok := repo.(*memoryRepository)
	if !ok {
		return false
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()
	account, ok := mem.accounts[accountID]
	if !ok {
		return false
	}
	account.IsActive = false
	mem.accounts[accountID] = account
	return true
}

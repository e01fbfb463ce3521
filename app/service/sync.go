package service

import (
	"context"
	"strings"
)

type SyncResult struct {
	Total      int
	Valid      int
	Invalid    int
	Recreated  int
	Failed     int
	FirstError string
}

// SyncCustomers ensures every guardian in the set (all guardians when ids is
// empty) carries a valid gateway customer id. A guardian with a valid id is
// untouched, so re-running is a no-op. Invalid ids are cleared before the
// recreate attempt, so a failed recreate still leaves the ledger honest.
func (s *BillingService) SyncCustomers(ctx context.Context, guardianIDs []uint64) (*SyncResult, error) {
	if err := s.ensureGateway(); err != nil {
		return nil, err
	}

	guardians, err := s.guardianRepo.List(ctx, guardianIDs)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{Total: len(guardians)}
	for _, guardian := range guardians {
		if ctx.Err() != nil {
			break
		}
		if guardian == nil {
			continue
		}

		if guardian.HasCustomerRef() {
			valid, err := s.gw.ValidateCustomer(ctx, *guardian.CustomerRef)
			if err != nil {
				result.Failed++
				result.FirstError = keepFirst(result.FirstError, err.Error())
				continue
			}
			if valid {
				result.Valid++
				continue
			}

			result.Invalid++
			if err := s.guardianRepo.UpdateCustomerRef(ctx, guardian.ID, nil); err != nil {
				result.Failed++
				result.FirstError = keepFirst(result.FirstError, err.Error())
				continue
			}
			guardian.CustomerRef = nil
		}

		customerID, err := s.gw.CreateCustomer(ctx, guardian)
		if err != nil {
			result.Failed++
			result.FirstError = keepFirst(result.FirstError, err.Error())
			continue
		}
		customerID = strings.TrimSpace(customerID)
		if err := s.guardianRepo.UpdateCustomerRef(ctx, guardian.ID, &customerID); err != nil {
			result.Failed++
			result.FirstError = keepFirst(result.FirstError, err.Error())
			continue
		}
		guardian.CustomerRef = &customerID
		result.Recreated++
		result.Valid++
	}

	return result, nil
}

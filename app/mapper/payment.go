package mapper

import (
	"time"

	"github.com/brightpath-edu/ms-go-billing/app/entity"
	"github.com/brightpath-edu/ms-go-billing/app/service"
	"github.com/brightpath-edu/ms-go-billing/app/types"
)

func PaymentToResponse(item *entity.Payment) *types.Payment {
	if item == nil {
		return nil
	}

	result := &types.Payment{
		ID:               item.ID,
		GuardianID:       item.GuardianID,
		StudentID:        item.StudentID,
		Amount:           item.Amount.StringFixed(2),
		Currency:         item.Currency,
		Kind:             item.Kind,
		Status:           entity.StatusName(item.Status),
		PaidTermFees:     item.PaidTermFees,
		PaidForBooks:     item.PaidForBooks,
		ProviderChargeID: derefString(item.ProviderChargeID),
		FailureMessage:   derefString(item.FailureMessage),
		CreatedAt:        item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        item.UpdatedAt.UTC().Format(time.RFC3339),
	}

	if trial := item.Metadata.Trial; trial != nil {
		result.Trial = &types.TrialMetadata{
			TrialEndDate:    trial.TrialEndDate.UTC().Format(time.RFC3339),
			PaymentMethodID: trial.PaymentMethodID,
			SelectTermFees:  trial.ProductSelection.TermFees,
			SelectBooks:     trial.ProductSelection.Books,
		}
	}
	if manual := item.Metadata.Manual; manual != nil {
		result.Manual = &types.ManualMetadata{
			Notes:      manual.Notes,
			OperatorID: manual.OperatorID,
		}
	}

	return result
}

func PaymentsToResponse(items []*entity.Payment) []*types.Payment {
	result := make([]*types.Payment, 0, len(items))
	for _, item := range items {
		result = append(result, PaymentToResponse(item))
	}
	return result
}

func TermFeeStatusToResponse(studentID uint64, status service.TermFeeStatus) *types.PaymentStatusResponse {
	result := &types.PaymentStatusResponse{
		StudentID:       studentID,
		HasPaidTermFees: status.HasPaidTermFees,
	}
	if status.LastPaymentDate != nil {
		result.LastPaymentDate = status.LastPaymentDate.UTC().Format(time.RFC3339)
	}
	return result
}

func ReconcileResultToResponse(result *service.ReconcileResult) *types.ReconcileTrialsResponse {
	response := &types.ReconcileTrialsResponse{
		Total:       result.Total,
		Succeeded:   result.Succeeded,
		Failed:      result.Failed,
		Skipped:     result.Skipped,
		LedgerDrift: result.LedgerDrift,
		FirstError:  result.FirstError,
		Outcomes:    make([]types.ReconcileOutcomeResponse, 0, len(result.Outcomes)),
	}
	for _, outcome := range result.Outcomes {
		response.Outcomes = append(response.Outcomes, types.ReconcileOutcomeResponse{
			PaymentID: outcome.PaymentID,
			Outcome:   outcome.Outcome,
			ChargeID:  outcome.ChargeID,
			Error:     outcome.Error,
		})
	}
	return response
}

func SyncResultToResponse(result *service.SyncResult) *types.SyncCustomersResponse {
	return &types.SyncCustomersResponse{
		Total:      result.Total,
		Valid:      result.Valid,
		Invalid:    result.Invalid,
		Recreated:  result.Recreated,
		Failed:     result.Failed,
		FirstError: result.FirstError,
	}
}

func BulkInvoiceResultToResponse(result *service.BulkInvoiceResult) *types.BulkInvoiceResponse {
	response := &types.BulkInvoiceResponse{
		Total:      result.Total,
		Succeeded:  result.Succeeded,
		Failed:     result.Failed,
		Skipped:    result.Skipped,
		FirstError: result.FirstError,
		Outcomes:   make([]types.GuardianOutcomeResponse, 0, len(result.Outcomes)),
	}
	for _, outcome := range result.Outcomes {
		response.Outcomes = append(response.Outcomes, types.GuardianOutcomeResponse{
			GuardianID: outcome.GuardianID,
			Outcome:    outcome.Outcome,
			InvoiceID:  outcome.InvoiceID,
			Error:      outcome.Error,
		})
	}
	return response
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

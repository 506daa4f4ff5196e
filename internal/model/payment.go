package model

import (
	"github.com/mitrakarya/lending/internal/domain"
)

func PaymentFromEntity(data *domain.Payment) Payment {
	return Payment{
		ID:             data.ID,
		LoanID:         data.LoanID,
		MemberID:       data.MemberID,
		GroupID:        data.GroupID,
		OfficerID:      data.OfficerID,
		PaymentDate:    data.PaymentDate,
		AmountReceived: data.AmountReceived,
		PaymentMode:    data.PaymentMode,
		ReceiptNo:      data.ReceiptNo,
		Remarks:        data.Remarks,
		Purpose:        string(data.Purpose),
		ChargeID:       data.ChargeID,
		CreatedOn:      data.CreatedOn,
	}
}

func PaymentToEntity(data Payment) *domain.Payment {
	return &domain.Payment{
		ID:             data.ID,
		LoanID:         data.LoanID,
		MemberID:       data.MemberID,
		GroupID:        data.GroupID,
		OfficerID:      data.OfficerID,
		PaymentDate:    data.PaymentDate,
		AmountReceived: data.AmountReceived,
		PaymentMode:    data.PaymentMode,
		ReceiptNo:      data.ReceiptNo,
		Remarks:        data.Remarks,
		Purpose:        domain.PaymentPurpose(data.Purpose),
		ChargeID:       data.ChargeID,
		CreatedOn:      data.CreatedOn,
	}
}

func PaymentsToEntity(data []Payment) []domain.Payment {
	responses := make([]domain.Payment, len(data))
	for i, p := range data {
		responses[i] = *PaymentToEntity(p)
	}

	return responses
}

func AllocationFromEntity(data *domain.PaymentAllocation) PaymentAllocation {
	return PaymentAllocation{
		ID:             data.ID,
		PaymentID:      data.PaymentID,
		InstallmentID:  data.InstallmentID,
		PrincipalAlloc: data.PrincipalAlloc,
		InterestAlloc:  data.InterestAlloc,
	}
}

func AllocationsToEntity(data []PaymentAllocation) []domain.PaymentAllocation {
	responses := make([]domain.PaymentAllocation, len(data))
	for i, a := range data {
		responses[i] = domain.PaymentAllocation{
			ID:             a.ID,
			PaymentID:      a.PaymentID,
			InstallmentID:  a.InstallmentID,
			PrincipalAlloc: a.PrincipalAlloc,
			InterestAlloc:  a.InterestAlloc,
		}
	}

	return responses
}

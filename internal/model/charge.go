package model

import (
	"github.com/mitrakarya/lending/internal/domain"
)

func ChargeFromEntity(data *domain.Charge) Charge {
	return Charge{
		ID:              data.ID,
		LoanID:          data.LoanID,
		Type:            string(data.Type),
		ChargeDate:      data.ChargeDate,
		Amount:          data.Amount,
		WaivedAmount:    data.WaivedAmount,
		CollectedAmount: data.CollectedAmount,
		IsCollected:     data.IsCollected,
		PaymentMode:     data.PaymentMode,
		ReceiptNo:       data.ReceiptNo,
		CollectedOn:     data.CollectedOn,
		Remarks:         data.Remarks,
	}
}

func ChargeToEntity(data Charge) *domain.Charge {
	return &domain.Charge{
		ID:              data.ID,
		LoanID:          data.LoanID,
		Type:            domain.ChargeType(data.Type),
		ChargeDate:      data.ChargeDate,
		Amount:          data.Amount,
		WaivedAmount:    data.WaivedAmount,
		CollectedAmount: data.CollectedAmount,
		IsCollected:     data.IsCollected,
		PaymentMode:     data.PaymentMode,
		ReceiptNo:       data.ReceiptNo,
		CollectedOn:     data.CollectedOn,
		Remarks:         data.Remarks,
	}
}

func ChargesToEntity(data []Charge) []domain.Charge {
	responses := make([]domain.Charge, len(data))
	for i, c := range data {
		responses[i] = *ChargeToEntity(c)
	}

	return responses
}

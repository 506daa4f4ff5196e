package model

import (
	"github.com/mitrakarya/lending/internal/domain"
)

func InstallmentFromEntity(data *domain.Installment) Installment {
	return Installment{
		ID:            data.ID,
		LoanID:        data.LoanID,
		No:            data.No,
		DueDate:       data.DueDate,
		PrincipalDue:  data.PrincipalDue,
		InterestDue:   data.InterestDue,
		TotalDue:      data.TotalDue,
		PrincipalPaid: data.PrincipalPaid,
		InterestPaid:  data.InterestPaid,
		TotalPaid:     data.TotalPaid,
		Status:        string(data.Status),
		PaidDate:      data.PaidDate,
	}
}

func InstallmentToEntity(data Installment) *domain.Installment {
	return &domain.Installment{
		ID:            data.ID,
		LoanID:        data.LoanID,
		No:            data.No,
		DueDate:       data.DueDate,
		PrincipalDue:  data.PrincipalDue,
		InterestDue:   data.InterestDue,
		TotalDue:      data.TotalDue,
		PrincipalPaid: data.PrincipalPaid,
		InterestPaid:  data.InterestPaid,
		TotalPaid:     data.TotalPaid,
		Status:        domain.InstallmentStatus(data.Status),
		PaidDate:      data.PaidDate,
	}
}

func InstallmentsToEntity(data []Installment) []domain.Installment {
	responses := make([]domain.Installment, len(data))
	for i, inst := range data {
		responses[i] = *InstallmentToEntity(inst)
	}

	return responses
}

package model

import (
	"github.com/mitrakarya/lending/internal/domain"
)

func LoanFromEntity(data *domain.Loan) Loan {
	return Loan{
		ID:                    data.ID,
		AccountNo:             data.AccountNo,
		MemberID:              data.MemberID,
		GroupID:               data.GroupID,
		OfficerID:             data.OfficerID,
		BranchID:              data.BranchID,
		RegionID:              data.RegionID,
		ProductID:             data.ProductID,
		DisburseDate:          data.DisburseDate,
		FirstDueDate:          data.FirstDueDate,
		DurationWeeks:         data.DurationWeeks,
		InstallmentType:       data.InstallmentType,
		PrincipalAmount:       data.PrincipalAmount,
		InterestTotal:         data.InterestTotal,
		TotalOutstanding:      data.TotalOutstanding,
		InstallmentAmount:     data.InstallmentAmount,
		MinWeeksBeforeClosure: data.MinWeeksBeforeClosure,
		AllowEarlyClosure:     data.AllowEarlyClosure,
		AdvanceBalance:        data.AdvanceBalance,
		Status:                LoanStatus(data.Status),
		DeactivatedOn:         data.DeactivatedOn,
		ClosingDate:           data.ClosingDate,
		CreatedOn:             data.CreatedOn,
	}
}

func LoanToEntity(data Loan) *domain.Loan {
	return &domain.Loan{
		ID:                    data.ID,
		AccountNo:             data.AccountNo,
		MemberID:              data.MemberID,
		GroupID:               data.GroupID,
		OfficerID:             data.OfficerID,
		BranchID:              data.BranchID,
		RegionID:              data.RegionID,
		ProductID:             data.ProductID,
		DisburseDate:          data.DisburseDate,
		FirstDueDate:          data.FirstDueDate,
		DurationWeeks:         data.DurationWeeks,
		InstallmentType:       data.InstallmentType,
		PrincipalAmount:       data.PrincipalAmount,
		InterestTotal:         data.InterestTotal,
		TotalOutstanding:      data.TotalOutstanding,
		InstallmentAmount:     data.InstallmentAmount,
		MinWeeksBeforeClosure: data.MinWeeksBeforeClosure,
		AllowEarlyClosure:     data.AllowEarlyClosure,
		AdvanceBalance:        data.AdvanceBalance,
		Status:                domain.LoanStatus(data.Status),
		DeactivatedOn:         data.DeactivatedOn,
		ClosingDate:           data.ClosingDate,
		CreatedOn:             data.CreatedOn,
	}
}

func LoansToEntity(data []Loan) []domain.Loan {
	responses := make([]domain.Loan, len(data))
	for i, l := range data {
		responses[i] = *LoanToEntity(l)
	}

	return responses
}

package model

import (
	"github.com/mitrakarya/lending/internal/domain"
)

func LedgerEntryFromEntity(data *domain.LedgerEntry) LedgerEntry {
	return LedgerEntry{
		ID:                 data.ID,
		LoanID:             data.LoanID,
		TxnDate:            data.TxnDate,
		TxnType:            string(data.TxnType),
		RefTable:           data.RefTable,
		RefID:              data.RefID,
		Debit:              data.Debit,
		Credit:             data.Credit,
		PrincipalComponent: data.PrincipalComponent,
		InterestComponent:  data.InterestComponent,
		BalanceOutstanding: data.BalanceOutstanding,
		Narration:          data.Narration,
		CreatedOn:          data.CreatedOn,
	}
}

func LedgerEntryToEntity(data LedgerEntry) *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:                 data.ID,
		LoanID:             data.LoanID,
		TxnDate:            data.TxnDate,
		TxnType:            domain.TxnType(data.TxnType),
		RefTable:           data.RefTable,
		RefID:              data.RefID,
		Debit:              data.Debit,
		Credit:             data.Credit,
		PrincipalComponent: data.PrincipalComponent,
		InterestComponent:  data.InterestComponent,
		BalanceOutstanding: data.BalanceOutstanding,
		Narration:          data.Narration,
		CreatedOn:          data.CreatedOn,
	}
}

func LedgerEntriesToEntity(data []LedgerEntry) []domain.LedgerEntry {
	responses := make([]domain.LedgerEntry, len(data))
	for i, e := range data {
		responses[i] = *LedgerEntryToEntity(e)
	}

	return responses
}

func MemberToEntity(data Member) *domain.Member {
	return &domain.Member{
		ID:        data.ID,
		FullName:  data.FullName,
		GroupID:   data.GroupID,
		OfficerID: data.OfficerID,
		BranchID:  data.BranchID,
		RegionID:  data.RegionID,
		IsActive:  data.IsActive,
	}
}

package domain

import "github.com/shopspring/decimal"

// DealEscrowSummary 交易维度的募集资金汇总
// 每次请求都对虚拟账户全集实时归并, 不读任何落库计数器, 因而不存在口径漂移
type DealEscrowSummary struct {
	DealID           string          `json:"deal_id"`
	EscrowAccountNo  string          `json:"escrow_account_no"`
	EscrowStatus     EscrowStatus    `json:"escrow_status"`
	TotalExpected    decimal.Decimal `json:"total_expected"`
	TotalReceived    decimal.Decimal `json:"total_received"`
	TotalVerified    decimal.Decimal `json:"total_verified"`
	TotalTransferred decimal.Decimal `json:"total_transferred"`
	TotalRefunded    decimal.Decimal `json:"total_refunded"`
	VACount          int             `json:"va_count"`
	PaidVACount      int             `json:"paid_va_count"`
}

// BuildDealEscrowSummary 对虚拟账户集合做纯归并
// TotalReceived 不区分状态; TotalVerified 含 verified 与 transferred;
// PaidVACount 统计实收金额大于零的账户
func BuildDealEscrowSummary(account *EscrowAccount, vas []*VirtualAccount) *DealEscrowSummary {
	s := &DealEscrowSummary{
		DealID:           account.DealID,
		EscrowAccountNo:  account.AccountNo,
		EscrowStatus:     account.Status,
		TotalExpected:    decimal.Zero,
		TotalReceived:    decimal.Zero,
		TotalVerified:    decimal.Zero,
		TotalTransferred: decimal.Zero,
		TotalRefunded:    decimal.Zero,
	}
	for _, va := range vas {
		s.VACount++
		s.TotalExpected = s.TotalExpected.Add(va.ExpectedAmount)
		s.TotalReceived = s.TotalReceived.Add(va.ReceivedAmount)
		if va.ReceivedAmount.GreaterThan(decimal.Zero) {
			s.PaidVACount++
		}
		switch va.Status {
		case VAStatusVerified:
			s.TotalVerified = s.TotalVerified.Add(va.ReceivedAmount)
		case VAStatusTransferred:
			s.TotalVerified = s.TotalVerified.Add(va.ReceivedAmount)
			s.TotalTransferred = s.TotalTransferred.Add(va.ReceivedAmount)
		case VAStatusRefunded:
			s.TotalRefunded = s.TotalRefunded.Add(va.ReceivedAmount)
		}
	}
	return s
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// 事件主题常量, 同时作为 Kafka topic 与 outbox 路由键
const (
	EscrowAccountCreatedEventType   = "escrow.account.created"
	EscrowAccountActivatedEventType = "escrow.account.activated"
	EscrowAccountSuspendedEventType = "escrow.account.suspended"
	EscrowAccountResumedEventType   = "escrow.account.resumed"
	EscrowAccountClosedEventType    = "escrow.account.closed"
	VirtualAccountCreatedEventType  = "escrow.va.created"
	PaymentRecordedEventType        = "escrow.payment.recorded"
	PaymentVerifiedEventType        = "escrow.payment.verified"
	VirtualAccountsExpiredEventType = "escrow.va.expired"
	DisbursementRequestedEventType  = "escrow.disbursement.requested"
	DisbursementApprovedEventType   = "escrow.disbursement.approved"
	DisbursementRejectedEventType   = "escrow.disbursement.rejected"
	DisbursementCompletedEventType  = "escrow.disbursement.completed"
	DisbursementFailedEventType     = "escrow.disbursement.failed"
	RefundRequestedEventType        = "escrow.refund.requested"
	RefundApprovedEventType         = "escrow.refund.approved"
	RefundRejectedEventType         = "escrow.refund.rejected"
	RefundCompletedEventType        = "escrow.refund.completed"
	RefundFailedEventType           = "escrow.refund.failed"
)

// EscrowAccountCreatedEvent 托管账户开户申请已受理
type EscrowAccountCreatedEvent struct {
	AccountNo   string    `json:"account_no"`
	DealID      string    `json:"deal_id"`
	SPVID       string    `json:"spv_id"`
	BankPartner string    `json:"bank_partner"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// EscrowAccountActivatedEvent 托管账户已激活
type EscrowAccountActivatedEvent struct {
	AccountNo     string    `json:"account_no"`
	DealID        string    `json:"deal_id"`
	AccountNumber string    `json:"account_number"`
	IFSCCode      string    `json:"ifsc_code"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// EscrowAccountStatusChangedEvent 托管账户行政状态变更 (冻结/解冻/关闭)
type EscrowAccountStatusChangedEvent struct {
	AccountNo  string       `json:"account_no"`
	DealID     string       `json:"deal_id"`
	OldStatus  EscrowStatus `json:"old_status"`
	NewStatus  EscrowStatus `json:"new_status"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// VirtualAccountCreatedEvent 虚拟账户已分配
type VirtualAccountCreatedEvent struct {
	VANumber        string          `json:"va_number"`
	EscrowAccountNo string          `json:"escrow_account_no"`
	DealID          string          `json:"deal_id"`
	InvestorID      string          `json:"investor_id"`
	CommitmentID    string          `json:"commitment_id"`
	ExpectedAmount  decimal.Decimal `json:"expected_amount"`
	ExpiresAt       time.Time       `json:"expires_at"`
	OccurredAt      time.Time       `json:"occurred_at"`
}

// PaymentRecordedEvent 入金已记账
type PaymentRecordedEvent struct {
	TransactionNo   string          `json:"transaction_no"`
	VANumber        string          `json:"va_number"`
	DealID          string          `json:"deal_id"`
	InvestorID      string          `json:"investor_id"`
	Amount          decimal.Decimal `json:"amount"`
	UTRNumber       string          `json:"utr_number"`
	IsAmountMatched bool            `json:"is_amount_matched"`
	OccurredAt      time.Time       `json:"occurred_at"`
}

// PaymentVerifiedEvent 入金核验通过
type PaymentVerifiedEvent struct {
	TransactionNo   string          `json:"transaction_no"`
	VANumber        string          `json:"va_number"`
	EscrowAccountNo string          `json:"escrow_account_no"`
	DealID          string          `json:"deal_id"`
	Amount          decimal.Decimal `json:"amount"`
	VerifiedBy      string          `json:"verified_by"`
	OccurredAt      time.Time       `json:"occurred_at"`
}

// VirtualAccountsExpiredEvent 过期清扫批次结果
type VirtualAccountsExpiredEvent struct {
	ExpiredCount int64     `json:"expired_count"`
	SweptAt      time.Time `json:"swept_at"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// TransferOrderEvent 出款/退款单生命周期事件的统一载荷
type TransferOrderEvent struct {
	OrderNo         string          `json:"order_no"`
	EscrowAccountNo string          `json:"escrow_account_no"`
	DealID          string          `json:"deal_id"`
	Amount          decimal.Decimal `json:"amount"`
	Status          TransferStatus  `json:"status"`
	Actor           string          `json:"actor"`
	Reason          string          `json:"reason"`
	OccurredAt      time.Time       `json:"occurred_at"`
}

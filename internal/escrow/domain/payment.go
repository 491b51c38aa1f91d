package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/idgen"
)

// PaymentMode 入金支付方式
type PaymentMode string

const (
	PaymentModeNEFT  PaymentMode = "NEFT"
	PaymentModeRTGS  PaymentMode = "RTGS"
	PaymentModeIMPS  PaymentMode = "IMPS"
	PaymentModeUPI   PaymentMode = "UPI"
	PaymentModeOther PaymentMode = "OTHER"
)

// PaymentStatus 支付流水状态
type PaymentStatus string

const (
	PaymentStatusReceived PaymentStatus = "received" // 已入账待核验
	PaymentStatusVerified PaymentStatus = "verified" // 核验通过
	PaymentStatusRefunded PaymentStatus = "refunded" // 已原路退回
)

// PaymentTransaction 入金流水, 每次 RecordPayment 追加一行
// 创建后不可变, 仅允许追加核验与退款两类元数据
type PaymentTransaction struct {
	ID                  uint            `json:"id"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	TransactionNo       string          `json:"transaction_no"`
	VANumber            string          `json:"va_number"`
	EscrowAccountNo     string          `json:"escrow_account_no"`
	DealID              string          `json:"deal_id"`
	InvestorID          string          `json:"investor_id"`
	Amount              decimal.Decimal `json:"amount"`
	PaymentMode         PaymentMode     `json:"payment_mode"`
	Status              PaymentStatus   `json:"status"`
	UTRNumber           string          `json:"utr_number"`
	SenderAccountNumber string          `json:"sender_account_number"`
	SenderIFSCCode      string          `json:"sender_ifsc_code"`
	SenderBankName      string          `json:"sender_bank_name"`
	IsAmountMatched     bool            `json:"is_amount_matched"`
	VerifiedBy          string          `json:"verified_by"`
	VerifiedAt          *time.Time      `json:"verified_at"`
	RefundedAt          *time.Time      `json:"refunded_at"`
	RefundReference     string          `json:"refund_reference"`
}

// NewPaymentTransaction 记录一笔入金流水
// IsAmountMatched 在写入时刻计算: 实收金额是否恰好等于虚拟账户期望金额,
// 不一致的入金照常入账, 留待人工对账, 不在此处拒绝
func NewPaymentTransaction(va *VirtualAccount, amount decimal.Decimal, mode PaymentMode, utrNumber, senderAccountNumber, senderIFSCCode, senderBankName string) *PaymentTransaction {
	return &PaymentTransaction{
		TransactionNo:       fmt.Sprintf("PAY%d", idgen.GenID()),
		VANumber:            va.VANumber,
		EscrowAccountNo:     va.EscrowAccountNo,
		DealID:              va.DealID,
		InvestorID:          va.InvestorID,
		Amount:              amount,
		PaymentMode:         mode,
		Status:              PaymentStatusReceived,
		UTRNumber:           utrNumber,
		SenderAccountNumber: senderAccountNumber,
		SenderIFSCCode:      senderIFSCCode,
		SenderBankName:      senderBankName,
		IsAmountMatched:     amount.Equal(va.ExpectedAmount),
	}
}

// MarkVerified 追加核验元数据
func (p *PaymentTransaction) MarkVerified(verifiedBy string) error {
	if p.Status != PaymentStatusReceived {
		return NewInvalidOperation("payment %s is %s, only received can be verified", p.TransactionNo, p.Status)
	}
	p.Status = PaymentStatusVerified
	p.VerifiedBy = verifiedBy
	now := time.Now()
	p.VerifiedAt = &now
	return nil
}

// MarkRefunded 追加退款元数据, 核验前后均可退
func (p *PaymentTransaction) MarkRefunded(refundReference string) error {
	if p.Status != PaymentStatusReceived && p.Status != PaymentStatusVerified {
		return NewInvalidOperation("payment %s is %s, cannot be refunded", p.TransactionNo, p.Status)
	}
	p.Status = PaymentStatusRefunded
	p.RefundReference = refundReference
	now := time.Now()
	p.RefundedAt = &now
	return nil
}

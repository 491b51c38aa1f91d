package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/fsm"
	"github.com/wyfcoding/pkg/idgen"
)

// TransferStatus 出款/退款单状态
type TransferStatus string

const (
	TransferStatusPending    TransferStatus = "pending"    // 已发起, 等待复核
	TransferStatusApproved   TransferStatus = "approved"   // 复核通过
	TransferStatusProcessing TransferStatus = "processing" // 银行划付执行中
	TransferStatusCompleted  TransferStatus = "completed"  // 划付完成
	TransferStatusFailed     TransferStatus = "failed"     // 划付失败
	TransferStatusRejected   TransferStatus = "rejected"   // 复核拒绝
)

// RefundReason 退款原因, 仅审计用途
type RefundReason string

const (
	RefundReasonDealCancelled      RefundReason = "deal-cancelled"
	RefundReasonOverSubscription   RefundReason = "over-subscription"
	RefundReasonInvestorWithdrawal RefundReason = "investor-withdrawal"
	RefundReasonAmountMismatch     RefundReason = "amount-mismatch"
	RefundReasonComplianceIssue    RefundReason = "compliance-issue"
	RefundReasonOther              RefundReason = "other"
)

// Valid 是否为已知退款原因
func (r RefundReason) Valid() bool {
	switch r {
	case RefundReasonDealCancelled, RefundReasonOverSubscription, RefundReasonInvestorWithdrawal,
		RefundReasonAmountMismatch, RefundReasonComplianceIssue, RefundReasonOther:
		return true
	}
	return false
}

func newTransferFSM(status TransferStatus) *fsm.Machine[string, string] {
	m := fsm.NewMachine[string, string](string(status))
	m.AddTransition(string(TransferStatusPending), "APPROVE", string(TransferStatusApproved))
	m.AddTransition(string(TransferStatusPending), "REJECT", string(TransferStatusRejected))
	m.AddTransition(string(TransferStatusApproved), "PROCESS", string(TransferStatusProcessing))
	m.AddTransition(string(TransferStatusProcessing), "COMPLETE", string(TransferStatusCompleted))
	m.AddTransition(string(TransferStatusProcessing), "FAIL", string(TransferStatusFailed))
	return m
}

// Disbursement 出款单聚合根, 托管账户向被投企业的划付申请
// 发起与复核是两次独立操作, 发起人不得复核自己的出款单
type Disbursement struct {
	ID                       uint            `json:"id"`
	CreatedAt                time.Time       `json:"created_at"`
	UpdatedAt                time.Time       `json:"updated_at"`
	DisbursementNo           string          `json:"disbursement_no"`
	EscrowAccountNo          string          `json:"escrow_account_no"`
	DealID                   string          `json:"deal_id"`
	Amount                   decimal.Decimal `json:"amount"`
	BeneficiaryName          string          `json:"beneficiary_name"`
	BeneficiaryAccountNumber string          `json:"beneficiary_account_number"`
	BeneficiaryIFSCCode      string          `json:"beneficiary_ifsc_code"`
	BeneficiaryBankName      string          `json:"beneficiary_bank_name"`
	TrancheNumber            int             `json:"tranche_number"`
	TrancheOf                int             `json:"tranche_of"`
	Status                   TransferStatus  `json:"status"`
	RequestedBy              string          `json:"requested_by"`
	RequestedAt              time.Time       `json:"requested_at"`
	ApprovedBy               string          `json:"approved_by"`
	ApprovedAt               *time.Time      `json:"approved_at"`
	Remark                   string          `json:"remark"`
	UTRNumber                string          `json:"utr_number"`
	FailureReason            string          `json:"failure_reason"`
	CompletedAt              *time.Time      `json:"completed_at"`
	fsm                      *fsm.Machine[string, string]
}

// Beneficiary 出款收款方要素
type Beneficiary struct {
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	IFSCCode      string `json:"ifsc_code"`
	BankName      string `json:"bank_name"`
}

// NewDisbursement 发起出款申请
func NewDisbursement(escrowAccountNo, dealID string, amount decimal.Decimal, beneficiary Beneficiary, trancheNumber, trancheOf int, requestedBy string) *Disbursement {
	d := &Disbursement{
		DisbursementNo:           fmt.Sprintf("DSB%d", idgen.GenID()),
		EscrowAccountNo:          escrowAccountNo,
		DealID:                   dealID,
		Amount:                   amount,
		BeneficiaryName:          beneficiary.Name,
		BeneficiaryAccountNumber: beneficiary.AccountNumber,
		BeneficiaryIFSCCode:      beneficiary.IFSCCode,
		BeneficiaryBankName:      beneficiary.BankName,
		TrancheNumber:            trancheNumber,
		TrancheOf:                trancheOf,
		Status:                   TransferStatusPending,
		RequestedBy:              requestedBy,
		RequestedAt:              time.Now(),
	}
	d.initFSM()
	return d
}

func (d *Disbursement) initFSM() {
	d.fsm = newTransferFSM(d.Status)
}

// InitFSM 确保状态机已初始化
func (d *Disbursement) InitFSM() {
	if d.fsm == nil {
		d.initFSM()
	}
}

// Approve 复核通过, 复核人不得与发起人相同
func (d *Disbursement) Approve(ctx context.Context, approver, remark string) error {
	d.InitFSM()
	if approver == d.RequestedBy {
		return NewInvalidOperation("disbursement %s cannot be approved by its requester %s", d.DisbursementNo, approver)
	}
	if err := d.fsm.Trigger(ctx, "APPROVE"); err != nil {
		return NewInvalidOperation("disbursement %s is %s, cannot be approved", d.DisbursementNo, d.Status)
	}
	d.Status = TransferStatusApproved
	d.ApprovedBy = approver
	d.Remark = remark
	now := time.Now()
	d.ApprovedAt = &now
	return nil
}

// Reject 复核拒绝
func (d *Disbursement) Reject(ctx context.Context, approver, remark string) error {
	d.InitFSM()
	if err := d.fsm.Trigger(ctx, "REJECT"); err != nil {
		return NewInvalidOperation("disbursement %s is %s, cannot be rejected", d.DisbursementNo, d.Status)
	}
	d.Status = TransferStatusRejected
	d.ApprovedBy = approver
	d.Remark = remark
	now := time.Now()
	d.ApprovedAt = &now
	return nil
}

// StartProcessing 银行划付开始执行
func (d *Disbursement) StartProcessing(ctx context.Context) error {
	d.InitFSM()
	if err := d.fsm.Trigger(ctx, "PROCESS"); err != nil {
		return NewInvalidOperation("disbursement %s is %s, cannot start processing", d.DisbursementNo, d.Status)
	}
	d.Status = TransferStatusProcessing
	return nil
}

// Complete 划付完成, 记录银行回执
func (d *Disbursement) Complete(ctx context.Context, utrNumber string) error {
	d.InitFSM()
	if err := d.fsm.Trigger(ctx, "COMPLETE"); err != nil {
		return NewInvalidOperation("disbursement %s is %s, cannot complete", d.DisbursementNo, d.Status)
	}
	d.Status = TransferStatusCompleted
	d.UTRNumber = utrNumber
	now := time.Now()
	d.CompletedAt = &now
	return nil
}

// Fail 划付失败
func (d *Disbursement) Fail(ctx context.Context, reason string) error {
	d.InitFSM()
	if err := d.fsm.Trigger(ctx, "FAIL"); err != nil {
		return NewInvalidOperation("disbursement %s is %s, cannot fail", d.DisbursementNo, d.Status)
	}
	d.Status = TransferStatusFailed
	d.FailureReason = reason
	return nil
}

// Refund 退款单聚合根, 托管资金原路退回投资人
// 收款要素取自原入金流水的付款方信息, 不允许改道其他账户
type Refund struct {
	ID                       uint            `json:"id"`
	CreatedAt                time.Time       `json:"created_at"`
	UpdatedAt                time.Time       `json:"updated_at"`
	RefundNo                 string          `json:"refund_no"`
	EscrowAccountNo          string          `json:"escrow_account_no"`
	DealID                   string          `json:"deal_id"`
	VANumber                 string          `json:"va_number"`
	PaymentTransactionNo     string          `json:"payment_transaction_no"`
	InvestorID               string          `json:"investor_id"`
	Amount                   decimal.Decimal `json:"amount"`
	Reason                   RefundReason    `json:"reason"`
	BeneficiaryAccountNumber string          `json:"beneficiary_account_number"`
	BeneficiaryIFSCCode      string          `json:"beneficiary_ifsc_code"`
	BeneficiaryBankName      string          `json:"beneficiary_bank_name"`
	Status                   TransferStatus  `json:"status"`
	RequestedBy              string          `json:"requested_by"`
	RequestedAt              time.Time       `json:"requested_at"`
	ApprovedBy               string          `json:"approved_by"`
	ApprovedAt               *time.Time      `json:"approved_at"`
	Remark                   string          `json:"remark"`
	UTRNumber                string          `json:"utr_number"`
	FailureReason            string          `json:"failure_reason"`
	CompletedAt              *time.Time      `json:"completed_at"`
	fsm                      *fsm.Machine[string, string]
}

// NewRefund 发起退款申请, 金额取虚拟账户实收全额, 收款方取原付款流水要素
func NewRefund(va *VirtualAccount, payment *PaymentTransaction, reason RefundReason, requestedBy string) *Refund {
	r := &Refund{
		RefundNo:                 fmt.Sprintf("RFD%d", idgen.GenID()),
		EscrowAccountNo:          va.EscrowAccountNo,
		DealID:                   va.DealID,
		VANumber:                 va.VANumber,
		PaymentTransactionNo:     payment.TransactionNo,
		InvestorID:               va.InvestorID,
		Amount:                   va.ReceivedAmount,
		Reason:                   reason,
		BeneficiaryAccountNumber: payment.SenderAccountNumber,
		BeneficiaryIFSCCode:      payment.SenderIFSCCode,
		BeneficiaryBankName:      payment.SenderBankName,
		Status:                   TransferStatusPending,
		RequestedBy:              requestedBy,
		RequestedAt:              time.Now(),
	}
	r.initFSM()
	return r
}

func (r *Refund) initFSM() {
	r.fsm = newTransferFSM(r.Status)
}

// InitFSM 确保状态机已初始化
func (r *Refund) InitFSM() {
	if r.fsm == nil {
		r.initFSM()
	}
}

// Approve 复核通过, 复核人不得与发起人相同
func (r *Refund) Approve(ctx context.Context, approver, remark string) error {
	r.InitFSM()
	if approver == r.RequestedBy {
		return NewInvalidOperation("refund %s cannot be approved by its requester %s", r.RefundNo, approver)
	}
	if err := r.fsm.Trigger(ctx, "APPROVE"); err != nil {
		return NewInvalidOperation("refund %s is %s, cannot be approved", r.RefundNo, r.Status)
	}
	r.Status = TransferStatusApproved
	r.ApprovedBy = approver
	r.Remark = remark
	now := time.Now()
	r.ApprovedAt = &now
	return nil
}

// Reject 复核拒绝
func (r *Refund) Reject(ctx context.Context, approver, remark string) error {
	r.InitFSM()
	if err := r.fsm.Trigger(ctx, "REJECT"); err != nil {
		return NewInvalidOperation("refund %s is %s, cannot be rejected", r.RefundNo, r.Status)
	}
	r.Status = TransferStatusRejected
	r.ApprovedBy = approver
	r.Remark = remark
	now := time.Now()
	r.ApprovedAt = &now
	return nil
}

// StartProcessing 银行退款开始执行
func (r *Refund) StartProcessing(ctx context.Context) error {
	r.InitFSM()
	if err := r.fsm.Trigger(ctx, "PROCESS"); err != nil {
		return NewInvalidOperation("refund %s is %s, cannot start processing", r.RefundNo, r.Status)
	}
	r.Status = TransferStatusProcessing
	return nil
}

// Complete 退款完成, 记录银行回执
func (r *Refund) Complete(ctx context.Context, utrNumber string) error {
	r.InitFSM()
	if err := r.fsm.Trigger(ctx, "COMPLETE"); err != nil {
		return NewInvalidOperation("refund %s is %s, cannot complete", r.RefundNo, r.Status)
	}
	r.Status = TransferStatusCompleted
	r.UTRNumber = utrNumber
	now := time.Now()
	r.CompletedAt = &now
	return nil
}

// Fail 退款失败
func (r *Refund) Fail(ctx context.Context, reason string) error {
	r.InitFSM()
	if err := r.fsm.Trigger(ctx, "FAIL"); err != nil {
		return NewInvalidOperation("refund %s is %s, cannot fail", r.RefundNo, r.Status)
	}
	r.Status = TransferStatusFailed
	r.FailureReason = reason
	return nil
}

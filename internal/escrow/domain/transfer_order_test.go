package domain

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func newTestDisbursement() *Disbursement {
	return NewDisbursement("ESC1", "deal-1", decimal.NewFromInt(900000), Beneficiary{
		Name:          "Acme Pvt Ltd",
		AccountNumber: "60200987654321",
		IFSCCode:      "ICIC0004321",
		BankName:      "ICICI",
	}, 1, 3, "founder-1")
}

func TestNewDisbursement(t *testing.T) {
	d := newTestDisbursement()

	assert.Contains(t, d.DisbursementNo, "DSB")
	assert.Equal(t, TransferStatusPending, d.Status)
	assert.Equal(t, "founder-1", d.RequestedBy)
	assert.False(t, d.RequestedAt.IsZero())
	assert.Equal(t, 1, d.TrancheNumber)
	assert.Equal(t, 3, d.TrancheOf)
	assert.Nil(t, d.ApprovedAt)
}

func TestDisbursementSelfApprovalRejected(t *testing.T) {
	ctx := context.Background()
	d := newTestDisbursement()

	err := d.Approve(ctx, "founder-1", "ok")
	assert.Error(t, err)
	assert.Equal(t, ErrCodeInvalidOperation, CodeOf(err))
	assert.Equal(t, TransferStatusPending, d.Status)
	assert.Empty(t, d.ApprovedBy)
}

func TestDisbursementApprovalFlow(t *testing.T) {
	ctx := context.Background()
	d := newTestDisbursement()

	assert.NoError(t, d.Approve(ctx, "compliance-1", "docs checked"))
	assert.Equal(t, TransferStatusApproved, d.Status)
	assert.Equal(t, "compliance-1", d.ApprovedBy)
	assert.NotNil(t, d.ApprovedAt)

	// 复核是一次性的
	err := d.Approve(ctx, "compliance-2", "again")
	assert.Equal(t, ErrCodeInvalidOperation, CodeOf(err))
	assert.Equal(t, "compliance-1", d.ApprovedBy)

	assert.NoError(t, d.StartProcessing(ctx))
	assert.Equal(t, TransferStatusProcessing, d.Status)

	assert.NoError(t, d.Complete(ctx, "UTRDSB1"))
	assert.Equal(t, TransferStatusCompleted, d.Status)
	assert.Equal(t, "UTRDSB1", d.UTRNumber)
	assert.NotNil(t, d.CompletedAt)
}

func TestDisbursementRejectAndFail(t *testing.T) {
	ctx := context.Background()

	d := newTestDisbursement()
	assert.NoError(t, d.Reject(ctx, "compliance-1", "missing board resolution"))
	assert.Equal(t, TransferStatusRejected, d.Status)
	assert.Equal(t, "missing board resolution", d.Remark)

	// 已拒绝的单不能再推进
	assert.Error(t, d.StartProcessing(ctx))

	d2 := newTestDisbursement()
	assert.NoError(t, d2.Approve(ctx, "compliance-1", ""))
	assert.NoError(t, d2.StartProcessing(ctx))
	assert.NoError(t, d2.Fail(ctx, "bank rejected beneficiary"))
	assert.Equal(t, TransferStatusFailed, d2.Status)
	assert.Equal(t, "bank rejected beneficiary", d2.FailureReason)
}

func TestDisbursementProcessingRequiresApproval(t *testing.T) {
	ctx := context.Background()
	d := newTestDisbursement()

	err := d.StartProcessing(ctx)
	assert.Error(t, err)
	assert.Equal(t, ErrCodeInvalidOperation, CodeOf(err))

	err = d.Complete(ctx, "UTR1")
	assert.Error(t, err)
}

func TestNewRefundCopiesSenderDetails(t *testing.T) {
	ctx := context.Background()
	va := newTestVA(500000)
	assert.NoError(t, va.AcceptPayment(ctx, decimal.NewFromInt(400000), PaymentModeNEFT, "UTR1"))
	payment := NewPaymentTransaction(va, decimal.NewFromInt(400000), PaymentModeNEFT, "UTR1", "60200111122223", "SBIN0000456", "SBI")

	r := NewRefund(va, payment, RefundReasonAmountMismatch, "ops-1")

	assert.Contains(t, r.RefundNo, "RFD")
	assert.Equal(t, TransferStatusPending, r.Status)
	assert.True(t, r.Amount.Equal(decimal.NewFromInt(400000)))
	assert.Equal(t, RefundReasonAmountMismatch, r.Reason)
	// 退款只能原路退回付款账户
	assert.Equal(t, "60200111122223", r.BeneficiaryAccountNumber)
	assert.Equal(t, "SBIN0000456", r.BeneficiaryIFSCCode)
	assert.Equal(t, "SBI", r.BeneficiaryBankName)
	assert.Equal(t, payment.TransactionNo, r.PaymentTransactionNo)
}

func TestRefundApprovalFlow(t *testing.T) {
	ctx := context.Background()
	va := newTestVA(500000)
	assert.NoError(t, va.AcceptPayment(ctx, decimal.NewFromInt(500000), PaymentModeUPI, "UTR9"))
	payment := NewPaymentTransaction(va, decimal.NewFromInt(500000), PaymentModeUPI, "UTR9", "602001", "SBIN0000456", "SBI")
	r := NewRefund(va, payment, RefundReasonDealCancelled, "ops-1")

	err := r.Approve(ctx, "ops-1", "self")
	assert.Equal(t, ErrCodeInvalidOperation, CodeOf(err))

	assert.NoError(t, r.Approve(ctx, "compliance-1", ""))
	assert.NoError(t, r.StartProcessing(ctx))
	assert.NoError(t, r.Complete(ctx, "UTRRFD1"))
	assert.Equal(t, TransferStatusCompleted, r.Status)
}

func TestRefundReasonValid(t *testing.T) {
	valid := []RefundReason{
		RefundReasonDealCancelled, RefundReasonOverSubscription, RefundReasonInvestorWithdrawal,
		RefundReasonAmountMismatch, RefundReasonComplianceIssue, RefundReasonOther,
	}
	for _, r := range valid {
		assert.True(t, r.Valid(), "reason %s", r)
	}
	assert.False(t, RefundReason("buyer-remorse").Valid())
	assert.False(t, RefundReason("").Valid())
}

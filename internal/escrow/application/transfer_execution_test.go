package application

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/wyfcoding/escrowsettlement/internal/escrow/domain"
)

type executionMocks struct {
	escrowRepo       *mockEscrowAccountRepo
	vaRepo           *mockVirtualAccountRepo
	paymentRepo      *mockPaymentRepo
	disbursementRepo *mockDisbursementRepo
	refundRepo       *mockRefundRepo
	publisher        *mockEventPublisher
}

func newExecutionManager() (*TransferExecutionManager, *executionMocks) {
	m := &executionMocks{
		escrowRepo:       new(mockEscrowAccountRepo),
		vaRepo:           new(mockVirtualAccountRepo),
		paymentRepo:      new(mockPaymentRepo),
		disbursementRepo: new(mockDisbursementRepo),
		refundRepo:       new(mockRefundRepo),
		publisher:        new(mockEventPublisher),
	}
	mgr := NewTransferExecutionManager(m.escrowRepo, m.vaRepo, m.paymentRepo,
		m.disbursementRepo, m.refundRepo, m.publisher, testLogger())
	return mgr, m
}

func approvedDisbursement(escrowAccountNo, amount string, trancheNumber, trancheOf int) *domain.Disbursement {
	d := domain.NewDisbursement(escrowAccountNo, "deal-1", decimal.RequireFromString(amount),
		testBeneficiary(), trancheNumber, trancheOf, "fund-ops")
	_ = d.Approve(context.Background(), "compliance-lead", "")
	return d
}

func processingDisbursement(escrowAccountNo, amount string, trancheNumber, trancheOf int) *domain.Disbursement {
	d := approvedDisbursement(escrowAccountNo, amount, trancheNumber, trancheOf)
	_ = d.StartProcessing(context.Background())
	return d
}

func approvedRefund(va *domain.VirtualAccount) *domain.Refund {
	payment := domain.NewPaymentTransaction(va, va.ReceivedAmount, domain.PaymentModeRTGS,
		"UTR12345", "00112233445566", "ICIC0000001", "ICICI Bank")
	r := domain.NewRefund(va, payment, domain.RefundReasonDealCancelled, "fund-ops")
	_ = r.Approve(context.Background(), "compliance-lead", "")
	return r
}

func TestSagaDebitDisbursement(t *testing.T) {
	mgr, mocks := newExecutionManager()
	ctx := context.Background()

	escrow := activeEscrowAccount("1000000")
	d := approvedDisbursement(escrow.AccountNo, "600000", 1, 1)
	mocks.disbursementRepo.On("FindByNo", ctx, d.DisbursementNo).Return(d, nil)
	mocks.escrowRepo.On("FindByAccountNo", ctx, escrow.AccountNo).Return(escrow, nil)
	mocks.escrowRepo.On("Update", ctx, escrow).Return(nil)
	mocks.disbursementRepo.On("Update", ctx, d).Return(nil)

	err := mgr.SagaDebitDisbursement(ctx, nil, d.DisbursementNo)
	assert.NoError(t, err)
	assert.Equal(t, domain.TransferStatusProcessing, d.Status)
	assert.True(t, escrow.CurrentBalance.Equal(decimal.RequireFromString("400000")))
	assert.True(t, escrow.TotalDisbursed.Equal(decimal.RequireFromString("600000")))
	mocks.escrowRepo.AssertExpectations(t)
	mocks.disbursementRepo.AssertExpectations(t)
}

func TestSagaDebitDisbursement_InsufficientBalance(t *testing.T) {
	mgr, mocks := newExecutionManager()
	ctx := context.Background()

	escrow := activeEscrowAccount("100000")
	d := approvedDisbursement(escrow.AccountNo, "600000", 1, 1)
	mocks.disbursementRepo.On("FindByNo", ctx, d.DisbursementNo).Return(d, nil)
	mocks.escrowRepo.On("FindByAccountNo", ctx, escrow.AccountNo).Return(escrow, nil)

	err := mgr.SagaDebitDisbursement(ctx, nil, d.DisbursementNo)
	assert.True(t, domain.IsCode(err, domain.ErrCodeInsufficientBalance))
	assert.True(t, escrow.CurrentBalance.Equal(decimal.RequireFromString("100000")))
	mocks.escrowRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestSagaDebitDisbursement_NotFound(t *testing.T) {
	mgr, mocks := newExecutionManager()
	ctx := context.Background()

	mocks.disbursementRepo.On("FindByNo", ctx, "DSB404").Return(nil, nil)

	err := mgr.SagaDebitDisbursement(ctx, nil, "DSB404")
	assert.True(t, domain.IsCode(err, domain.ErrCodeNotFound))
}

func TestSagaCreditDisbursement(t *testing.T) {
	mgr, mocks := newExecutionManager()
	ctx := context.Background()

	escrow := activeEscrowAccount("400000")
	escrow.TotalDisbursed = decimal.RequireFromString("600000")
	d := processingDisbursement(escrow.AccountNo, "600000", 1, 1)
	mocks.disbursementRepo.On("FindByNo", ctx, d.DisbursementNo).Return(d, nil)
	mocks.escrowRepo.On("FindByAccountNo", ctx, escrow.AccountNo).Return(escrow, nil)
	mocks.escrowRepo.On("Update", ctx, escrow).Return(nil)
	mocks.disbursementRepo.On("Update", ctx, d).Return(nil)
	mocks.publisher.On("Publish", ctx, domain.DisbursementFailedEventType, d.DisbursementNo, mock.Anything).Return(nil)

	err := mgr.SagaCreditDisbursement(ctx, nil, d.DisbursementNo)
	assert.NoError(t, err)
	assert.Equal(t, domain.TransferStatusFailed, d.Status)
	assert.True(t, escrow.CurrentBalance.Equal(decimal.RequireFromString("1000000")))
	assert.True(t, escrow.TotalDisbursed.IsZero())
	mocks.publisher.AssertExpectations(t)
}

func TestSagaCreditDisbursement_NothingToCompensate(t *testing.T) {
	mgr, mocks := newExecutionManager()
	ctx := context.Background()

	d := approvedDisbursement("ESC1", "600000", 1, 1)
	mocks.disbursementRepo.On("FindByNo", ctx, d.DisbursementNo).Return(d, nil)

	err := mgr.SagaCreditDisbursement(ctx, nil, d.DisbursementNo)
	assert.NoError(t, err)
	assert.Equal(t, domain.TransferStatusApproved, d.Status)
	mocks.disbursementRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	mocks.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCompleteDisbursement_MidTranche(t *testing.T) {
	mgr, mocks := newExecutionManager()
	ctx := context.Background()

	d := processingDisbursement("ESC1", "600000", 1, 2)
	mocks.disbursementRepo.On("FindByNo", ctx, d.DisbursementNo).Return(d, nil)
	mocks.disbursementRepo.On("Update", ctx, d).Return(nil)
	mocks.publisher.On("PublishInTx", ctx, mock.Anything, domain.DisbursementCompletedEventType, d.DisbursementNo, mock.Anything).Return(nil)

	err := mgr.CompleteDisbursement(ctx, d.DisbursementNo, "UTRBANK001")
	assert.NoError(t, err)
	assert.Equal(t, domain.TransferStatusCompleted, d.Status)
	assert.Equal(t, "UTRBANK001", d.UTRNumber)
	assert.NotNil(t, d.CompletedAt)
	mocks.vaRepo.AssertNotCalled(t, "FindByDealID", mock.Anything, mock.Anything)
}

func TestCompleteDisbursement_FinalTranche(t *testing.T) {
	mgr, mocks := newExecutionManager()
	ctx := context.Background()

	d := processingDisbursement("ESC1", "600000", 2, 2)
	verified := verifiedVirtualAccount("500000")
	unpaid := activeVirtualAccount("300000")
	mocks.disbursementRepo.On("FindByNo", ctx, d.DisbursementNo).Return(d, nil)
	mocks.disbursementRepo.On("Update", ctx, d).Return(nil)
	mocks.vaRepo.On("FindByDealID", ctx, d.DealID).Return([]*domain.VirtualAccount{verified, unpaid}, nil)
	mocks.vaRepo.On("Update", ctx, verified).Return(nil)
	mocks.publisher.On("PublishInTx", ctx, mock.Anything, domain.DisbursementCompletedEventType, d.DisbursementNo, mock.Anything).Return(nil)

	err := mgr.CompleteDisbursement(ctx, d.DisbursementNo, "UTRBANK002")
	assert.NoError(t, err)
	assert.Equal(t, domain.VAStatusTransferred, verified.Status)
	assert.Equal(t, domain.VAStatusActive, unpaid.Status)
	mocks.vaRepo.AssertExpectations(t)
}

func TestCompleteDisbursement_Idempotent(t *testing.T) {
	mgr, mocks := newExecutionManager()
	ctx := context.Background()

	d := processingDisbursement("ESC1", "600000", 1, 1)
	_ = d.Complete(ctx, "UTRBANK001")
	mocks.disbursementRepo.On("FindByNo", ctx, d.DisbursementNo).Return(d, nil)

	err := mgr.CompleteDisbursement(ctx, d.DisbursementNo, "UTRBANK001")
	assert.NoError(t, err)
	mocks.disbursementRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestFailDisbursement(t *testing.T) {
	mgr, mocks := newExecutionManager()
	ctx := context.Background()

	escrow := activeEscrowAccount("400000")
	escrow.TotalDisbursed = decimal.RequireFromString("600000")
	d := processingDisbursement(escrow.AccountNo, "600000", 1, 1)
	mocks.disbursementRepo.On("FindByNo", ctx, d.DisbursementNo).Return(d, nil)
	mocks.escrowRepo.On("FindByAccountNo", ctx, escrow.AccountNo).Return(escrow, nil)
	mocks.disbursementRepo.On("Update", ctx, d).Return(nil)
	mocks.escrowRepo.On("Update", ctx, escrow).Return(nil)
	mocks.publisher.On("Publish", ctx, domain.DisbursementFailedEventType, d.DisbursementNo, mock.Anything).Return(nil)

	err := mgr.FailDisbursement(ctx, d.DisbursementNo, "account blocked by beneficiary bank")
	assert.NoError(t, err)
	assert.Equal(t, domain.TransferStatusFailed, d.Status)
	assert.Equal(t, "account blocked by beneficiary bank", d.FailureReason)
	assert.True(t, escrow.CurrentBalance.Equal(decimal.RequireFromString("1000000")))
	assert.True(t, escrow.TotalDisbursed.IsZero())
}

func TestExecuteDisbursement_OnlyApproved(t *testing.T) {
	mgr, mocks := newExecutionManager()
	ctx := context.Background()

	pending := domain.NewDisbursement("ESC1", "deal-1", decimal.RequireFromString("600000"), testBeneficiary(), 1, 1, "fund-ops")
	mocks.disbursementRepo.On("FindByNo", ctx, pending.DisbursementNo).Return(pending, nil)

	err := mgr.ExecuteDisbursement(ctx, pending.DisbursementNo)
	assert.True(t, domain.IsCode(err, domain.ErrCodeInvalidOperation))
}

func TestExecuteDisbursement_AlreadyProcessing(t *testing.T) {
	mgr, mocks := newExecutionManager()
	ctx := context.Background()

	d := processingDisbursement("ESC1", "600000", 1, 1)
	mocks.disbursementRepo.On("FindByNo", ctx, d.DisbursementNo).Return(d, nil)

	assert.NoError(t, mgr.ExecuteDisbursement(ctx, d.DisbursementNo))
}

func TestSagaDebitRefund_VerifiedOccupiesBalance(t *testing.T) {
	mgr, mocks := newExecutionManager()
	ctx := context.Background()

	va := verifiedVirtualAccount("500000")
	escrow := activeEscrowAccount("500000")
	r := approvedRefund(va)
	mocks.refundRepo.On("FindByNo", ctx, r.RefundNo).Return(r, nil)
	mocks.vaRepo.On("FindByVANumber", ctx, va.VANumber).Return(va, nil)
	mocks.escrowRepo.On("FindByAccountNo", ctx, r.EscrowAccountNo).Return(escrow, nil)
	mocks.escrowRepo.On("Update", ctx, escrow).Return(nil)
	mocks.refundRepo.On("Update", ctx, r).Return(nil)

	err := mgr.SagaDebitRefund(ctx, nil, r.RefundNo)
	assert.NoError(t, err)
	assert.Equal(t, domain.TransferStatusProcessing, r.Status)
	assert.True(t, escrow.CurrentBalance.IsZero())
	assert.True(t, escrow.TotalDisbursed.IsZero())
}

func TestSagaDebitRefund_UnverifiedLeavesBalance(t *testing.T) {
	mgr, mocks := newExecutionManager()
	ctx := context.Background()

	va := receivedVirtualAccount("500000", "450000")
	r := approvedRefund(va)
	mocks.refundRepo.On("FindByNo", ctx, r.RefundNo).Return(r, nil)
	mocks.vaRepo.On("FindByVANumber", ctx, va.VANumber).Return(va, nil)
	mocks.refundRepo.On("Update", ctx, r).Return(nil)

	err := mgr.SagaDebitRefund(ctx, nil, r.RefundNo)
	assert.NoError(t, err)
	assert.Equal(t, domain.TransferStatusProcessing, r.Status)
	mocks.escrowRepo.AssertNotCalled(t, "FindByAccountNo", mock.Anything, mock.Anything)
	mocks.escrowRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestCompleteRefund(t *testing.T) {
	mgr, mocks := newExecutionManager()
	ctx := context.Background()

	va := verifiedVirtualAccount("500000")
	payment := domain.NewPaymentTransaction(va, va.ReceivedAmount, domain.PaymentModeRTGS,
		"UTR12345", "00112233445566", "ICIC0000001", "ICICI Bank")
	_ = payment.MarkVerified("ops-admin")
	r := domain.NewRefund(va, payment, domain.RefundReasonDealCancelled, "fund-ops")
	_ = r.Approve(ctx, "compliance-lead", "")
	_ = r.StartProcessing(ctx)

	mocks.refundRepo.On("FindByNo", ctx, r.RefundNo).Return(r, nil)
	mocks.vaRepo.On("FindByVANumber", ctx, va.VANumber).Return(va, nil)
	mocks.paymentRepo.On("FindByTransactionNo", ctx, payment.TransactionNo).Return(payment, nil)
	mocks.refundRepo.On("Update", ctx, r).Return(nil)
	mocks.vaRepo.On("Update", ctx, va).Return(nil)
	mocks.paymentRepo.On("Update", ctx, payment).Return(nil)
	mocks.publisher.On("PublishInTx", ctx, mock.Anything, domain.RefundCompletedEventType, r.RefundNo, mock.Anything).Return(nil)

	err := mgr.CompleteRefund(ctx, r.RefundNo, "UTRBANK003")
	assert.NoError(t, err)
	assert.Equal(t, domain.TransferStatusCompleted, r.Status)
	assert.Equal(t, "UTRBANK003", r.UTRNumber)
	assert.Equal(t, domain.VAStatusRefunded, va.Status)
	assert.Equal(t, domain.PaymentStatusRefunded, payment.Status)
	assert.Equal(t, "UTRBANK003", payment.RefundReference)
	mocks.publisher.AssertExpectations(t)
}

func TestFailRefund_RestoresVerifiedBalance(t *testing.T) {
	mgr, mocks := newExecutionManager()
	ctx := context.Background()

	va := verifiedVirtualAccount("500000")
	escrow := activeEscrowAccount("0")
	r := approvedRefund(va)
	_ = r.StartProcessing(ctx)
	mocks.refundRepo.On("FindByNo", ctx, r.RefundNo).Return(r, nil)
	mocks.vaRepo.On("FindByVANumber", ctx, va.VANumber).Return(va, nil)
	mocks.escrowRepo.On("FindByAccountNo", ctx, r.EscrowAccountNo).Return(escrow, nil)
	mocks.escrowRepo.On("Update", ctx, escrow).Return(nil)
	mocks.refundRepo.On("Update", ctx, r).Return(nil)
	mocks.publisher.On("Publish", ctx, domain.RefundFailedEventType, r.RefundNo, mock.Anything).Return(nil)

	err := mgr.FailRefund(ctx, r.RefundNo, "beneficiary account closed")
	assert.NoError(t, err)
	assert.Equal(t, domain.TransferStatusFailed, r.Status)
	assert.True(t, escrow.CurrentBalance.Equal(decimal.RequireFromString("500000")))
}

func TestExecuteRefund_OnlyApproved(t *testing.T) {
	mgr, mocks := newExecutionManager()
	ctx := context.Background()

	va := verifiedVirtualAccount("500000")
	payment := domain.NewPaymentTransaction(va, va.ReceivedAmount, domain.PaymentModeRTGS,
		"UTR12345", "00112233445566", "ICIC0000001", "ICICI Bank")
	r := domain.NewRefund(va, payment, domain.RefundReasonDealCancelled, "fund-ops")
	mocks.refundRepo.On("FindByNo", ctx, r.RefundNo).Return(r, nil)

	err := mgr.ExecuteRefund(ctx, r.RefundNo)
	assert.True(t, domain.IsCode(err, domain.ErrCodeInvalidOperation))
}

package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/wyfcoding/escrowsettlement/internal/escrow/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type mockEscrowAccountRepo struct {
	mock.Mock
}

func (m *mockEscrowAccountRepo) Save(ctx context.Context, account *domain.EscrowAccount) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *mockEscrowAccountRepo) Update(ctx context.Context, account *domain.EscrowAccount) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *mockEscrowAccountRepo) FindByAccountNo(ctx context.Context, accountNo string) (*domain.EscrowAccount, error) {
	args := m.Called(ctx, accountNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EscrowAccount), args.Error(1)
}

func (m *mockEscrowAccountRepo) FindByDealID(ctx context.Context, dealID string) (*domain.EscrowAccount, error) {
	args := m.Called(ctx, dealID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EscrowAccount), args.Error(1)
}

func (m *mockEscrowAccountRepo) List(ctx context.Context, offset, limit int) ([]*domain.EscrowAccount, int64, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*domain.EscrowAccount), args.Get(1).(int64), args.Error(2)
}

// WithTx 测试中事务退化为直通执行
func (m *mockEscrowAccountRepo) WithTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

func (m *mockEscrowAccountRepo) ExecWithBarrier(ctx context.Context, barrier any, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

type mockVirtualAccountRepo struct {
	mock.Mock
}

func (m *mockVirtualAccountRepo) Save(ctx context.Context, va *domain.VirtualAccount) error {
	args := m.Called(ctx, va)
	return args.Error(0)
}

func (m *mockVirtualAccountRepo) Update(ctx context.Context, va *domain.VirtualAccount) error {
	args := m.Called(ctx, va)
	return args.Error(0)
}

func (m *mockVirtualAccountRepo) FindByVANumber(ctx context.Context, vaNumber string) (*domain.VirtualAccount, error) {
	args := m.Called(ctx, vaNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VirtualAccount), args.Error(1)
}

func (m *mockVirtualAccountRepo) FindByCommitmentID(ctx context.Context, commitmentID string) (*domain.VirtualAccount, error) {
	args := m.Called(ctx, commitmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VirtualAccount), args.Error(1)
}

func (m *mockVirtualAccountRepo) FindByDealID(ctx context.Context, dealID string) ([]*domain.VirtualAccount, error) {
	args := m.Called(ctx, dealID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.VirtualAccount), args.Error(1)
}

func (m *mockVirtualAccountRepo) FindByEscrowAccountNo(ctx context.Context, escrowAccountNo string) ([]*domain.VirtualAccount, error) {
	args := m.Called(ctx, escrowAccountNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.VirtualAccount), args.Error(1)
}

func (m *mockVirtualAccountRepo) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockVirtualAccountRepo) WithTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

type mockPaymentRepo struct {
	mock.Mock
}

func (m *mockPaymentRepo) Save(ctx context.Context, payment *domain.PaymentTransaction) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *mockPaymentRepo) Update(ctx context.Context, payment *domain.PaymentTransaction) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *mockPaymentRepo) FindByTransactionNo(ctx context.Context, transactionNo string) (*domain.PaymentTransaction, error) {
	args := m.Called(ctx, transactionNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentTransaction), args.Error(1)
}

func (m *mockPaymentRepo) FindByVANumber(ctx context.Context, vaNumber string) ([]*domain.PaymentTransaction, error) {
	args := m.Called(ctx, vaNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PaymentTransaction), args.Error(1)
}

func (m *mockPaymentRepo) FindByUTR(ctx context.Context, utrNumber string) (*domain.PaymentTransaction, error) {
	args := m.Called(ctx, utrNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentTransaction), args.Error(1)
}

func (m *mockPaymentRepo) FindByDealID(ctx context.Context, dealID string, offset, limit int) ([]*domain.PaymentTransaction, int64, error) {
	args := m.Called(ctx, dealID, offset, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*domain.PaymentTransaction), args.Get(1).(int64), args.Error(2)
}

type mockDisbursementRepo struct {
	mock.Mock
}

func (m *mockDisbursementRepo) Save(ctx context.Context, disbursement *domain.Disbursement) error {
	args := m.Called(ctx, disbursement)
	return args.Error(0)
}

func (m *mockDisbursementRepo) Update(ctx context.Context, disbursement *domain.Disbursement) error {
	args := m.Called(ctx, disbursement)
	return args.Error(0)
}

func (m *mockDisbursementRepo) FindByNo(ctx context.Context, disbursementNo string) (*domain.Disbursement, error) {
	args := m.Called(ctx, disbursementNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Disbursement), args.Error(1)
}

func (m *mockDisbursementRepo) FindByDealID(ctx context.Context, dealID string, offset, limit int) ([]*domain.Disbursement, int64, error) {
	args := m.Called(ctx, dealID, offset, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*domain.Disbursement), args.Get(1).(int64), args.Error(2)
}

func (m *mockDisbursementRepo) FindPendingApproval(ctx context.Context, offset, limit int) ([]*domain.Disbursement, int64, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*domain.Disbursement), args.Get(1).(int64), args.Error(2)
}

type mockRefundRepo struct {
	mock.Mock
}

func (m *mockRefundRepo) Save(ctx context.Context, refund *domain.Refund) error {
	args := m.Called(ctx, refund)
	return args.Error(0)
}

func (m *mockRefundRepo) Update(ctx context.Context, refund *domain.Refund) error {
	args := m.Called(ctx, refund)
	return args.Error(0)
}

func (m *mockRefundRepo) FindByNo(ctx context.Context, refundNo string) (*domain.Refund, error) {
	args := m.Called(ctx, refundNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Refund), args.Error(1)
}

func (m *mockRefundRepo) FindByDealID(ctx context.Context, dealID string, offset, limit int) ([]*domain.Refund, int64, error) {
	args := m.Called(ctx, dealID, offset, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*domain.Refund), args.Get(1).(int64), args.Error(2)
}

func (m *mockRefundRepo) FindPendingApproval(ctx context.Context, offset, limit int) ([]*domain.Refund, int64, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*domain.Refund), args.Get(1).(int64), args.Error(2)
}

type mockEventPublisher struct {
	mock.Mock
}

func (m *mockEventPublisher) Publish(ctx context.Context, topic string, key string, event any) error {
	args := m.Called(ctx, topic, key, event)
	return args.Error(0)
}

func (m *mockEventPublisher) PublishInTx(ctx context.Context, tx any, topic string, key string, event any) error {
	args := m.Called(ctx, tx, topic, key, event)
	return args.Error(0)
}

type mockEscrowReadRepo struct {
	mock.Mock
}

func (m *mockEscrowReadRepo) Save(ctx context.Context, account *domain.EscrowAccount) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *mockEscrowReadRepo) GetByAccountNo(ctx context.Context, accountNo string) (*domain.EscrowAccount, error) {
	args := m.Called(ctx, accountNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EscrowAccount), args.Error(1)
}

func (m *mockEscrowReadRepo) GetByDealID(ctx context.Context, dealID string) (*domain.EscrowAccount, error) {
	args := m.Called(ctx, dealID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EscrowAccount), args.Error(1)
}

func (m *mockEscrowReadRepo) Delete(ctx context.Context, account *domain.EscrowAccount) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

type mockSummaryCache struct {
	mock.Mock
}

func (m *mockSummaryCache) Save(ctx context.Context, summary *domain.DealEscrowSummary) error {
	args := m.Called(ctx, summary)
	return args.Error(0)
}

func (m *mockSummaryCache) Get(ctx context.Context, dealID string) (*domain.DealEscrowSummary, error) {
	args := m.Called(ctx, dealID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DealEscrowSummary), args.Error(1)
}

func (m *mockSummaryCache) Delete(ctx context.Context, dealID string) error {
	args := m.Called(ctx, dealID)
	return args.Error(0)
}

func activeEscrowAccount(balance string) *domain.EscrowAccount {
	account := domain.NewEscrowAccount("deal-1", "hdfc", "spv-1")
	_ = account.Activate(domain.BankDetails{
		AccountNumber: "50100123456789",
		AccountName:   "ACME DEAL ESCROW",
		IFSCCode:      "HDFC0001234",
		BranchName:    "Mumbai Main",
	})
	account.CurrentBalance = decimal.RequireFromString(balance)
	account.TotalReceived = account.CurrentBalance
	return account
}

func activeVirtualAccount(expected string) *domain.VirtualAccount {
	return domain.NewVirtualAccount("ESC1", "deal-1", "inv-1", "cmt-1",
		"Ravi Kumar", "HDFC0001234", decimal.RequireFromString(expected), domain.GenerateExpiry(0))
}

func receivedVirtualAccount(expected, received string) *domain.VirtualAccount {
	va := activeVirtualAccount(expected)
	_ = va.AcceptPayment(context.Background(), decimal.RequireFromString(received), domain.PaymentModeRTGS, "UTR001")
	return va
}

func verifiedVirtualAccount(amount string) *domain.VirtualAccount {
	va := receivedVirtualAccount(amount, amount)
	_ = va.VerifyPayment(context.Background(), "ops-admin")
	return va
}

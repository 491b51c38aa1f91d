package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/wyfcoding/escrowsettlement/internal/escrow/domain"
)

func TestCreateEscrowAccount(t *testing.T) {
	repo := new(mockEscrowAccountRepo)
	publisher := new(mockEventPublisher)
	svc := NewEscrowCommandService(repo, publisher, testLogger())
	ctx := context.Background()

	repo.On("FindByDealID", ctx, "deal-1").Return(nil, nil)
	repo.On("Save", ctx, mock.Anything).Return(nil)
	publisher.On("PublishInTx", ctx, mock.Anything, domain.EscrowAccountCreatedEventType, mock.Anything, mock.Anything).Return(nil)

	account, err := svc.CreateEscrowAccount(ctx, CreateEscrowAccountCommand{
		DealID:      "deal-1",
		SPVID:       "spv-1",
		BankPartner: "hdfc",
	})
	assert.NoError(t, err)
	assert.Contains(t, account.AccountNo, "ESC")
	assert.Equal(t, domain.EscrowStatusPendingSetup, account.Status)
	repo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestCreateEscrowAccount_DuplicateDeal(t *testing.T) {
	repo := new(mockEscrowAccountRepo)
	svc := NewEscrowCommandService(repo, nil, testLogger())
	ctx := context.Background()

	existing := domain.NewEscrowAccount("deal-1", "hdfc", "spv-1")
	repo.On("FindByDealID", ctx, "deal-1").Return(existing, nil)

	_, err := svc.CreateEscrowAccount(ctx, CreateEscrowAccountCommand{DealID: "deal-1", BankPartner: "hdfc"})
	assert.True(t, domain.IsCode(err, domain.ErrCodeInvalidOperation))
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestCreateEscrowAccount_MissingFields(t *testing.T) {
	repo := new(mockEscrowAccountRepo)
	svc := NewEscrowCommandService(repo, nil, testLogger())

	_, err := svc.CreateEscrowAccount(context.Background(), CreateEscrowAccountCommand{DealID: "deal-1"})
	assert.True(t, domain.IsCode(err, domain.ErrCodeInvalidOperation))
}

func TestActivateEscrowAccount(t *testing.T) {
	repo := new(mockEscrowAccountRepo)
	svc := NewEscrowCommandService(repo, nil, testLogger())
	ctx := context.Background()

	account := domain.NewEscrowAccount("deal-1", "hdfc", "spv-1")
	repo.On("FindByAccountNo", ctx, account.AccountNo).Return(account, nil)
	repo.On("Update", ctx, account).Return(nil)

	got, err := svc.ActivateEscrowAccount(ctx, ActivateEscrowAccountCommand{
		AccountNo: account.AccountNo,
		BankDetails: domain.BankDetails{
			AccountNumber: "50100123456789",
			AccountName:   "ACME DEAL ESCROW",
			IFSCCode:      "HDFC0001234",
			BranchName:    "Mumbai Main",
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, domain.EscrowStatusActive, got.Status)
	assert.Equal(t, "50100123456789", got.BankAccountNumber)
	assert.Equal(t, "HDFC0001234", got.IFSCCode)
	assert.NotNil(t, got.ActivatedAt)
	repo.AssertExpectations(t)
}

func TestActivateEscrowAccount_NotFound(t *testing.T) {
	repo := new(mockEscrowAccountRepo)
	svc := NewEscrowCommandService(repo, nil, testLogger())
	ctx := context.Background()

	repo.On("FindByAccountNo", ctx, "ESC404").Return(nil, nil)

	_, err := svc.ActivateEscrowAccount(ctx, ActivateEscrowAccountCommand{AccountNo: "ESC404"})
	assert.True(t, domain.IsCode(err, domain.ErrCodeNotFound))
}

func TestActivateEscrowAccount_AlreadyActive(t *testing.T) {
	repo := new(mockEscrowAccountRepo)
	svc := NewEscrowCommandService(repo, nil, testLogger())
	ctx := context.Background()

	account := activeEscrowAccount("0")
	repo.On("FindByAccountNo", ctx, account.AccountNo).Return(account, nil)

	_, err := svc.ActivateEscrowAccount(ctx, ActivateEscrowAccountCommand{AccountNo: account.AccountNo})
	assert.True(t, domain.IsCode(err, domain.ErrCodeInvalidOperation))
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestSuspendAndResumeEscrowAccount(t *testing.T) {
	repo := new(mockEscrowAccountRepo)
	svc := NewEscrowCommandService(repo, nil, testLogger())
	ctx := context.Background()

	account := activeEscrowAccount("0")
	repo.On("FindByAccountNo", ctx, account.AccountNo).Return(account, nil)
	repo.On("Update", ctx, account).Return(nil)

	assert.NoError(t, svc.SuspendEscrowAccount(ctx, account.AccountNo))
	assert.Equal(t, domain.EscrowStatusSuspended, account.Status)

	assert.NoError(t, svc.ResumeEscrowAccount(ctx, account.AccountNo))
	assert.Equal(t, domain.EscrowStatusActive, account.Status)
}

func TestSuspendEscrowAccount_PendingSetup(t *testing.T) {
	repo := new(mockEscrowAccountRepo)
	svc := NewEscrowCommandService(repo, nil, testLogger())
	ctx := context.Background()

	account := domain.NewEscrowAccount("deal-1", "hdfc", "spv-1")
	repo.On("FindByAccountNo", ctx, account.AccountNo).Return(account, nil)

	err := svc.SuspendEscrowAccount(ctx, account.AccountNo)
	assert.True(t, domain.IsCode(err, domain.ErrCodeInvalidOperation))
}

func TestCloseEscrowAccount(t *testing.T) {
	repo := new(mockEscrowAccountRepo)
	svc := NewEscrowCommandService(repo, nil, testLogger())
	ctx := context.Background()

	account := activeEscrowAccount("0")
	repo.On("FindByAccountNo", ctx, account.AccountNo).Return(account, nil)
	repo.On("Update", ctx, account).Return(nil)

	assert.NoError(t, svc.CloseEscrowAccount(ctx, account.AccountNo))
	assert.Equal(t, domain.EscrowStatusClosed, account.Status)
	assert.NotNil(t, account.ClosedAt)
}

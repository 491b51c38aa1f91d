package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestRefreshAccount(t *testing.T) {
	repo := new(mockEscrowAccountRepo)
	readRepo := new(mockEscrowReadRepo)
	svc := NewEscrowProjectionService(repo, readRepo, nil, testLogger())
	ctx := context.Background()

	account := activeEscrowAccount("500000")
	repo.On("FindByAccountNo", ctx, account.AccountNo).Return(account, nil)
	readRepo.On("Save", ctx, account).Return(nil)

	assert.NoError(t, svc.RefreshAccount(ctx, account.AccountNo))
	readRepo.AssertExpectations(t)
}

func TestRefreshAccount_MissingAccount(t *testing.T) {
	repo := new(mockEscrowAccountRepo)
	readRepo := new(mockEscrowReadRepo)
	svc := NewEscrowProjectionService(repo, readRepo, nil, testLogger())
	ctx := context.Background()

	repo.On("FindByAccountNo", ctx, "ESC404").Return(nil, nil)

	assert.NoError(t, svc.RefreshAccount(ctx, "ESC404"))
	readRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestRefreshAccount_NoReadRepo(t *testing.T) {
	repo := new(mockEscrowAccountRepo)
	svc := NewEscrowProjectionService(repo, nil, nil, testLogger())

	assert.NoError(t, svc.RefreshAccount(context.Background(), "ESC1"))
	repo.AssertNotCalled(t, "FindByAccountNo", mock.Anything, mock.Anything)
}

func TestInvalidateSummary(t *testing.T) {
	summaryCache := new(mockSummaryCache)
	svc := NewEscrowProjectionService(new(mockEscrowAccountRepo), nil, summaryCache, testLogger())
	ctx := context.Background()

	summaryCache.On("Delete", ctx, "deal-1").Return(nil)

	assert.NoError(t, svc.InvalidateSummary(ctx, "deal-1"))
	summaryCache.AssertExpectations(t)
}

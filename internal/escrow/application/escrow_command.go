// Package application 提供资金托管模块的业务逻辑编排。
package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/wyfcoding/escrowsettlement/internal/escrow/domain"
	"github.com/wyfcoding/pkg/contextx"
	"github.com/wyfcoding/pkg/messagequeue"
)

// EscrowCommandService 处理托管账户生命周期的写操作
// Writes 统一走 MySQL + Outbox 事件发布。
type EscrowCommandService struct {
	repo      domain.EscrowAccountRepository
	publisher messagequeue.EventPublisher
	logger    *slog.Logger
}

// NewEscrowCommandService 创建托管账户命令服务
func NewEscrowCommandService(repo domain.EscrowAccountRepository, publisher messagequeue.EventPublisher, logger *slog.Logger) *EscrowCommandService {
	return &EscrowCommandService{
		repo:      repo,
		publisher: publisher,
		logger:    logger.With("module", "escrow_command"),
	}
}

// CreateEscrowAccountCommand 开户申请命令
type CreateEscrowAccountCommand struct {
	DealID      string
	SPVID       string
	BankPartner string
}

// CreateEscrowAccount 受理开户申请, 一个交易仅允许一个托管账户
func (s *EscrowCommandService) CreateEscrowAccount(ctx context.Context, cmd CreateEscrowAccountCommand) (*domain.EscrowAccount, error) {
	if cmd.DealID == "" || cmd.BankPartner == "" {
		return nil, domain.NewInvalidOperation("deal id and bank partner are required")
	}

	existing, err := s.repo.FindByDealID(ctx, cmd.DealID)
	if err != nil {
		return nil, domain.NewFetchError(err)
	}
	if existing != nil {
		return nil, domain.NewInvalidOperation("deal %s already has escrow account %s", cmd.DealID, existing.AccountNo)
	}

	account := domain.NewEscrowAccount(cmd.DealID, cmd.BankPartner, cmd.SPVID)

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Save(txCtx, account); err != nil {
			return err
		}
		if s.publisher == nil {
			return nil
		}
		event := domain.EscrowAccountCreatedEvent{
			AccountNo:   account.AccountNo,
			DealID:      account.DealID,
			SPVID:       account.SPVID,
			BankPartner: account.BankPartner,
			OccurredAt:  time.Now(),
		}
		return s.publisher.PublishInTx(ctx, contextx.GetTx(txCtx), domain.EscrowAccountCreatedEventType, account.AccountNo, event)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "escrow account created", "account_no", account.AccountNo, "deal_id", account.DealID)
	return account, nil
}

// ActivateEscrowAccountCommand 银行开户回执命令
type ActivateEscrowAccountCommand struct {
	AccountNo   string
	BankDetails domain.BankDetails
}

// ActivateEscrowAccount 回填银行账户要素并激活
func (s *EscrowCommandService) ActivateEscrowAccount(ctx context.Context, cmd ActivateEscrowAccountCommand) (*domain.EscrowAccount, error) {
	account, err := s.loadAccount(ctx, cmd.AccountNo)
	if err != nil {
		return nil, err
	}
	if err := account.Activate(cmd.BankDetails); err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Update(txCtx, account); err != nil {
			return err
		}
		if s.publisher == nil {
			return nil
		}
		event := domain.EscrowAccountActivatedEvent{
			AccountNo:     account.AccountNo,
			DealID:        account.DealID,
			AccountNumber: account.BankAccountNumber,
			IFSCCode:      account.IFSCCode,
			OccurredAt:    time.Now(),
		}
		return s.publisher.PublishInTx(ctx, contextx.GetTx(txCtx), domain.EscrowAccountActivatedEventType, account.AccountNo, event)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "escrow account activated", "account_no", account.AccountNo, "bank_account", account.BankAccountNumber)
	return account, nil
}

// SuspendEscrowAccount 行政冻结托管账户
func (s *EscrowCommandService) SuspendEscrowAccount(ctx context.Context, accountNo string) error {
	return s.changeStatus(ctx, accountNo, domain.EscrowAccountSuspendedEventType, func(a *domain.EscrowAccount) error {
		return a.Suspend()
	})
}

// ResumeEscrowAccount 解除冻结
func (s *EscrowCommandService) ResumeEscrowAccount(ctx context.Context, accountNo string) error {
	return s.changeStatus(ctx, accountNo, domain.EscrowAccountResumedEventType, func(a *domain.EscrowAccount) error {
		return a.Resume()
	})
}

// CloseEscrowAccount 关闭托管账户
func (s *EscrowCommandService) CloseEscrowAccount(ctx context.Context, accountNo string) error {
	return s.changeStatus(ctx, accountNo, domain.EscrowAccountClosedEventType, func(a *domain.EscrowAccount) error {
		return a.Close()
	})
}

func (s *EscrowCommandService) changeStatus(ctx context.Context, accountNo, eventType string, transition func(*domain.EscrowAccount) error) error {
	account, err := s.loadAccount(ctx, accountNo)
	if err != nil {
		return err
	}

	oldStatus := account.Status
	if err := transition(account); err != nil {
		return err
	}

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Update(txCtx, account); err != nil {
			return err
		}
		if s.publisher == nil {
			return nil
		}
		event := domain.EscrowAccountStatusChangedEvent{
			AccountNo:  account.AccountNo,
			DealID:     account.DealID,
			OldStatus:  oldStatus,
			NewStatus:  account.Status,
			OccurredAt: time.Now(),
		}
		return s.publisher.PublishInTx(ctx, contextx.GetTx(txCtx), eventType, account.AccountNo, event)
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "escrow account status changed",
		"account_no", account.AccountNo, "old_status", oldStatus, "new_status", account.Status)
	return nil
}

func (s *EscrowCommandService) loadAccount(ctx context.Context, accountNo string) (*domain.EscrowAccount, error) {
	if accountNo == "" {
		return nil, domain.NewInvalidOperation("escrow account no is required")
	}
	account, err := s.repo.FindByAccountNo(ctx, accountNo)
	if err != nil {
		return nil, domain.NewFetchError(err)
	}
	if account == nil {
		return nil, domain.NewNotFound("escrow account %s not found", accountNo)
	}
	return account, nil
}

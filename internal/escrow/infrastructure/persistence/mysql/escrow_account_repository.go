// 包 mysql 托管领域的 MySQL 仓储实现
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/dtm-labs/client/dtmcli"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/escrowsettlement/internal/escrow/domain"
	"github.com/wyfcoding/pkg/contextx"
)

// EscrowAccountModel 托管账户数据库模型
type EscrowAccountModel struct {
	gorm.Model
	AccountNo         string          `gorm:"column:account_no;type:varchar(64);uniqueIndex;not null"`
	DealID            string          `gorm:"column:deal_id;type:varchar(64);uniqueIndex;not null"`
	SPVID             string          `gorm:"column:spv_id;type:varchar(64)"`
	BankPartner       string          `gorm:"column:bank_partner;type:varchar(64);not null"`
	BankAccountNumber string          `gorm:"column:bank_account_number;type:varchar(64)"`
	BankAccountName   string          `gorm:"column:bank_account_name;type:varchar(128)"`
	IFSCCode          string          `gorm:"column:ifsc_code;type:varchar(16)"`
	BranchName        string          `gorm:"column:branch_name;type:varchar(128)"`
	Status            string          `gorm:"column:status;type:varchar(32);not null;index"`
	CurrentBalance    decimal.Decimal `gorm:"column:current_balance;type:decimal(20,2);not null;default:0"`
	TotalReceived     decimal.Decimal `gorm:"column:total_received;type:decimal(20,2);not null;default:0"`
	TotalDisbursed    decimal.Decimal `gorm:"column:total_disbursed;type:decimal(20,2);not null;default:0"`
	SetupRequestedAt  time.Time       `gorm:"column:setup_requested_at;not null"`
	ActivatedAt       *time.Time      `gorm:"column:activated_at"`
	ClosedAt          *time.Time      `gorm:"column:closed_at"`
	Version           int64           `gorm:"column:version;not null;default:0"`
}

func (EscrowAccountModel) TableName() string {
	return "escrow_accounts"
}

// EscrowAccountMySQLRepository 托管账户 MySQL 仓储实现
type EscrowAccountMySQLRepository struct {
	db *gorm.DB
}

// NewEscrowAccountRepository 创建托管账户仓储
func NewEscrowAccountRepository(db *gorm.DB) domain.EscrowAccountRepository {
	_ = db.AutoMigrate(&EscrowAccountModel{})
	return &EscrowAccountMySQLRepository{db: db}
}

func (r *EscrowAccountMySQLRepository) getDB(ctx context.Context) *gorm.DB {
	if tx := contextx.GetTx(ctx); tx != nil {
		if gormTx, ok := tx.(*gorm.DB); ok {
			return gormTx
		}
	}
	return r.db.WithContext(ctx)
}

func (r *EscrowAccountMySQLRepository) Save(ctx context.Context, account *domain.EscrowAccount) error {
	model := r.toModel(account)
	if err := r.getDB(ctx).Create(model).Error; err != nil {
		return err
	}
	account.ID = model.ID
	account.CreatedAt = model.CreatedAt
	account.UpdatedAt = model.UpdatedAt
	return nil
}

// Update 乐观锁更新, 只覆盖可变列, 版本不匹配说明有并发修改
func (r *EscrowAccountMySQLRepository) Update(ctx context.Context, account *domain.EscrowAccount) error {
	currentVersion := account.Version
	result := r.getDB(ctx).Model(&EscrowAccountModel{}).
		Where("account_no = ? AND version = ?", account.AccountNo, currentVersion).
		Updates(map[string]any{
			"bank_account_number": account.BankAccountNumber,
			"bank_account_name":   account.BankAccountName,
			"ifsc_code":           account.IFSCCode,
			"branch_name":         account.BranchName,
			"status":              string(account.Status),
			"current_balance":     account.CurrentBalance,
			"total_received":      account.TotalReceived,
			"total_disbursed":     account.TotalDisbursed,
			"activated_at":        account.ActivatedAt,
			"closed_at":           account.ClosedAt,
			"version":             currentVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("optimistic lock failed: escrow account modified by another transaction")
	}
	account.Version = currentVersion + 1
	return nil
}

func (r *EscrowAccountMySQLRepository) FindByAccountNo(ctx context.Context, accountNo string) (*domain.EscrowAccount, error) {
	var model EscrowAccountModel
	if err := r.getDB(ctx).Where("account_no = ?", accountNo).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.toDomain(&model), nil
}

func (r *EscrowAccountMySQLRepository) FindByDealID(ctx context.Context, dealID string) (*domain.EscrowAccount, error) {
	var model EscrowAccountModel
	if err := r.getDB(ctx).Where("deal_id = ?", dealID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.toDomain(&model), nil
}

func (r *EscrowAccountMySQLRepository) List(ctx context.Context, offset, limit int) ([]*domain.EscrowAccount, int64, error) {
	var models []EscrowAccountModel
	var total int64
	db := r.getDB(ctx).Model(&EscrowAccountModel{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	result := make([]*domain.EscrowAccount, len(models))
	for i, m := range models {
		result[i] = r.toDomain(&m)
	}
	return result, total, nil
}

func (r *EscrowAccountMySQLRepository) WithTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := contextx.WithTx(ctx, tx)
		return fn(txCtx)
	})
}

// ExecWithBarrier 经子事务屏障落库, 屏障表与业务数据共用同一个本地事务
func (r *EscrowAccountMySQLRepository) ExecWithBarrier(ctx context.Context, barrier any, fn func(txCtx context.Context) error) error {
	bb, ok := barrier.(*dtmcli.BranchBarrier)
	if !ok {
		return r.WithTx(ctx, fn)
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return bb.CallWithDB(sqlDB, func(tx *sql.Tx) error {
		gormTx, err := gorm.Open(gormmysql.New(gormmysql.Config{Conn: tx}), &gorm.Config{})
		if err != nil {
			return err
		}
		return fn(contextx.WithTx(ctx, gormTx.WithContext(ctx)))
	})
}

func (r *EscrowAccountMySQLRepository) toModel(a *domain.EscrowAccount) *EscrowAccountModel {
	return &EscrowAccountModel{
		Model:             gorm.Model{ID: a.ID, CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt},
		AccountNo:         a.AccountNo,
		DealID:            a.DealID,
		SPVID:             a.SPVID,
		BankPartner:       a.BankPartner,
		BankAccountNumber: a.BankAccountNumber,
		BankAccountName:   a.BankAccountName,
		IFSCCode:          a.IFSCCode,
		BranchName:        a.BranchName,
		Status:            string(a.Status),
		CurrentBalance:    a.CurrentBalance,
		TotalReceived:     a.TotalReceived,
		TotalDisbursed:    a.TotalDisbursed,
		SetupRequestedAt:  a.SetupRequestedAt,
		ActivatedAt:       a.ActivatedAt,
		ClosedAt:          a.ClosedAt,
		Version:           a.Version,
	}
}

func (r *EscrowAccountMySQLRepository) toDomain(m *EscrowAccountModel) *domain.EscrowAccount {
	return &domain.EscrowAccount{
		ID:                m.Model.ID,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
		AccountNo:         m.AccountNo,
		DealID:            m.DealID,
		SPVID:             m.SPVID,
		BankPartner:       m.BankPartner,
		BankAccountNumber: m.BankAccountNumber,
		BankAccountName:   m.BankAccountName,
		IFSCCode:          m.IFSCCode,
		BranchName:        m.BranchName,
		Status:            domain.EscrowStatus(m.Status),
		CurrentBalance:    m.CurrentBalance,
		TotalReceived:     m.TotalReceived,
		TotalDisbursed:    m.TotalDisbursed,
		SetupRequestedAt:  m.SetupRequestedAt,
		ActivatedAt:       m.ActivatedAt,
		ClosedAt:          m.ClosedAt,
		Version:           m.Version,
	}
}

package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/escrowsettlement/internal/escrow/domain"
	"github.com/wyfcoding/pkg/contextx"
)

// VirtualAccountModel 虚拟账户数据库模型
// commitment_id 唯一索引保证一笔认缴只会分配一个虚拟账户
type VirtualAccountModel struct {
	gorm.Model
	VANumber          string          `gorm:"column:va_number;type:varchar(64);uniqueIndex;not null"`
	EscrowAccountNo   string          `gorm:"column:escrow_account_no;type:varchar(64);index;not null"`
	DealID            string          `gorm:"column:deal_id;type:varchar(64);index;not null"`
	InvestorID        string          `gorm:"column:investor_id;type:varchar(64);index;not null"`
	CommitmentID      string          `gorm:"column:commitment_id;type:varchar(64);uniqueIndex;not null"`
	BeneficiaryName   string          `gorm:"column:beneficiary_name;type:varchar(128)"`
	IFSCCode          string          `gorm:"column:ifsc_code;type:varchar(16)"`
	ExpectedAmount    decimal.Decimal `gorm:"column:expected_amount;type:decimal(20,2);not null"`
	ReceivedAmount    decimal.Decimal `gorm:"column:received_amount;type:decimal(20,2);not null;default:0"`
	Status            string          `gorm:"column:status;type:varchar(32);not null;index"`
	ExpiresAt         time.Time       `gorm:"column:expires_at;not null;index"`
	PaymentReference  string          `gorm:"column:payment_reference;type:varchar(128)"`
	PaymentMode       string          `gorm:"column:payment_mode;type:varchar(16)"`
	PaymentReceivedAt *time.Time      `gorm:"column:payment_received_at"`
	PaymentVerifiedAt *time.Time      `gorm:"column:payment_verified_at"`
	VerifiedBy        string          `gorm:"column:verified_by;type:varchar(64)"`
	Version           int64           `gorm:"column:version;not null;default:0"`
}

func (VirtualAccountModel) TableName() string {
	return "virtual_accounts"
}

// VirtualAccountMySQLRepository 虚拟账户 MySQL 仓储实现
type VirtualAccountMySQLRepository struct {
	db *gorm.DB
}

// NewVirtualAccountRepository 创建虚拟账户仓储
func NewVirtualAccountRepository(db *gorm.DB) domain.VirtualAccountRepository {
	_ = db.AutoMigrate(&VirtualAccountModel{})
	return &VirtualAccountMySQLRepository{db: db}
}

func (r *VirtualAccountMySQLRepository) getDB(ctx context.Context) *gorm.DB {
	if tx := contextx.GetTx(ctx); tx != nil {
		if gormTx, ok := tx.(*gorm.DB); ok {
			return gormTx
		}
	}
	return r.db.WithContext(ctx)
}

func (r *VirtualAccountMySQLRepository) Save(ctx context.Context, va *domain.VirtualAccount) error {
	model := r.toModel(va)
	if err := r.getDB(ctx).Create(model).Error; err != nil {
		return err
	}
	va.ID = model.ID
	va.CreatedAt = model.CreatedAt
	va.UpdatedAt = model.UpdatedAt
	return nil
}

// Update 乐观锁更新, 状态迁移的读-校验-写依赖版本列保证原子性:
// 两个并发调用读到同一版本, 只有先提交者生效, 后者重读后会被状态守卫拒绝
func (r *VirtualAccountMySQLRepository) Update(ctx context.Context, va *domain.VirtualAccount) error {
	currentVersion := va.Version
	result := r.getDB(ctx).Model(&VirtualAccountModel{}).
		Where("va_number = ? AND version = ?", va.VANumber, currentVersion).
		Updates(map[string]any{
			"received_amount":     va.ReceivedAmount,
			"status":              string(va.Status),
			"payment_reference":   va.PaymentReference,
			"payment_mode":        string(va.PaymentMode),
			"payment_received_at": va.PaymentReceivedAt,
			"payment_verified_at": va.PaymentVerifiedAt,
			"verified_by":         va.VerifiedBy,
			"version":             currentVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("optimistic lock failed: virtual account modified by another transaction")
	}
	va.Version = currentVersion + 1
	return nil
}

func (r *VirtualAccountMySQLRepository) FindByVANumber(ctx context.Context, vaNumber string) (*domain.VirtualAccount, error) {
	var model VirtualAccountModel
	if err := r.getDB(ctx).Where("va_number = ?", vaNumber).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.toDomain(&model), nil
}

func (r *VirtualAccountMySQLRepository) FindByCommitmentID(ctx context.Context, commitmentID string) (*domain.VirtualAccount, error) {
	var model VirtualAccountModel
	if err := r.getDB(ctx).Where("commitment_id = ?", commitmentID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.toDomain(&model), nil
}

func (r *VirtualAccountMySQLRepository) FindByDealID(ctx context.Context, dealID string) ([]*domain.VirtualAccount, error) {
	var models []VirtualAccountModel
	if err := r.getDB(ctx).Where("deal_id = ?", dealID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	result := make([]*domain.VirtualAccount, len(models))
	for i, m := range models {
		result[i] = r.toDomain(&m)
	}
	return result, nil
}

func (r *VirtualAccountMySQLRepository) FindByEscrowAccountNo(ctx context.Context, escrowAccountNo string) ([]*domain.VirtualAccount, error) {
	var models []VirtualAccountModel
	if err := r.getDB(ctx).Where("escrow_account_no = ?", escrowAccountNo).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	result := make([]*domain.VirtualAccount, len(models))
	for i, m := range models {
		result[i] = r.toDomain(&m)
	}
	return result, nil
}

// ExpireDue 单条条件 UPDATE 完成批量过期, 重复执行无副作用
// 版本列一并递增, 使清扫与并发的入金记账互斥
func (r *VirtualAccountMySQLRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	result := r.getDB(ctx).Model(&VirtualAccountModel{}).
		Where("status = ? AND expires_at <= ?", string(domain.VAStatusActive), now).
		Updates(map[string]any{
			"status":  string(domain.VAStatusExpired),
			"version": gorm.Expr("version + 1"),
		})
	return result.RowsAffected, result.Error
}

func (r *VirtualAccountMySQLRepository) WithTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := contextx.WithTx(ctx, tx)
		return fn(txCtx)
	})
}

func (r *VirtualAccountMySQLRepository) toModel(v *domain.VirtualAccount) *VirtualAccountModel {
	return &VirtualAccountModel{
		Model:             gorm.Model{ID: v.ID, CreatedAt: v.CreatedAt, UpdatedAt: v.UpdatedAt},
		VANumber:          v.VANumber,
		EscrowAccountNo:   v.EscrowAccountNo,
		DealID:            v.DealID,
		InvestorID:        v.InvestorID,
		CommitmentID:      v.CommitmentID,
		BeneficiaryName:   v.BeneficiaryName,
		IFSCCode:          v.IFSCCode,
		ExpectedAmount:    v.ExpectedAmount,
		ReceivedAmount:    v.ReceivedAmount,
		Status:            string(v.Status),
		ExpiresAt:         v.ExpiresAt,
		PaymentReference:  v.PaymentReference,
		PaymentMode:       string(v.PaymentMode),
		PaymentReceivedAt: v.PaymentReceivedAt,
		PaymentVerifiedAt: v.PaymentVerifiedAt,
		VerifiedBy:        v.VerifiedBy,
		Version:           v.Version,
	}
}

func (r *VirtualAccountMySQLRepository) toDomain(m *VirtualAccountModel) *domain.VirtualAccount {
	v := &domain.VirtualAccount{
		ID:                m.Model.ID,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
		VANumber:          m.VANumber,
		EscrowAccountNo:   m.EscrowAccountNo,
		DealID:            m.DealID,
		InvestorID:        m.InvestorID,
		CommitmentID:      m.CommitmentID,
		BeneficiaryName:   m.BeneficiaryName,
		IFSCCode:          m.IFSCCode,
		ExpectedAmount:    m.ExpectedAmount,
		ReceivedAmount:    m.ReceivedAmount,
		Status:            domain.VAStatus(m.Status),
		ExpiresAt:         m.ExpiresAt,
		PaymentReference:  m.PaymentReference,
		PaymentMode:       domain.PaymentMode(m.PaymentMode),
		PaymentReceivedAt: m.PaymentReceivedAt,
		PaymentVerifiedAt: m.PaymentVerifiedAt,
		VerifiedBy:        m.VerifiedBy,
		Version:           m.Version,
	}
	v.InitFSM()
	return v
}

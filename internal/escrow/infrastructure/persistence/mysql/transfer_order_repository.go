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

// DisbursementModel 出款单数据库模型
type DisbursementModel struct {
	gorm.Model
	DisbursementNo           string          `gorm:"column:disbursement_no;type:varchar(64);uniqueIndex;not null"`
	EscrowAccountNo          string          `gorm:"column:escrow_account_no;type:varchar(64);index;not null"`
	DealID                   string          `gorm:"column:deal_id;type:varchar(64);index;not null"`
	Amount                   decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null"`
	BeneficiaryName          string          `gorm:"column:beneficiary_name;type:varchar(128);not null"`
	BeneficiaryAccountNumber string          `gorm:"column:beneficiary_account_number;type:varchar(64);not null"`
	BeneficiaryIFSCCode      string          `gorm:"column:beneficiary_ifsc_code;type:varchar(16);not null"`
	BeneficiaryBankName      string          `gorm:"column:beneficiary_bank_name;type:varchar(128)"`
	TrancheNumber            int             `gorm:"column:tranche_number;not null;default:1"`
	TrancheOf                int             `gorm:"column:tranche_of;not null;default:1"`
	Status                   string          `gorm:"column:status;type:varchar(32);not null;index"`
	RequestedBy              string          `gorm:"column:requested_by;type:varchar(64);not null"`
	RequestedAt              time.Time       `gorm:"column:requested_at;not null"`
	ApprovedBy               string          `gorm:"column:approved_by;type:varchar(64)"`
	ApprovedAt               *time.Time      `gorm:"column:approved_at"`
	Remark                   string          `gorm:"column:remark;type:varchar(255)"`
	UTRNumber                string          `gorm:"column:utr_number;type:varchar(64);index"`
	FailureReason            string          `gorm:"column:failure_reason;type:varchar(255)"`
	CompletedAt              *time.Time      `gorm:"column:completed_at"`
}

func (DisbursementModel) TableName() string {
	return "disbursements"
}

// RefundModel 退款单数据库模型
type RefundModel struct {
	gorm.Model
	RefundNo                 string          `gorm:"column:refund_no;type:varchar(64);uniqueIndex;not null"`
	EscrowAccountNo          string          `gorm:"column:escrow_account_no;type:varchar(64);index;not null"`
	DealID                   string          `gorm:"column:deal_id;type:varchar(64);index;not null"`
	VANumber                 string          `gorm:"column:va_number;type:varchar(64);index;not null"`
	PaymentTransactionNo     string          `gorm:"column:payment_transaction_no;type:varchar(64);not null"`
	InvestorID               string          `gorm:"column:investor_id;type:varchar(64);index;not null"`
	Amount                   decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null"`
	Reason                   string          `gorm:"column:reason;type:varchar(32);not null"`
	BeneficiaryAccountNumber string          `gorm:"column:beneficiary_account_number;type:varchar(64);not null"`
	BeneficiaryIFSCCode      string          `gorm:"column:beneficiary_ifsc_code;type:varchar(16);not null"`
	BeneficiaryBankName      string          `gorm:"column:beneficiary_bank_name;type:varchar(128)"`
	Status                   string          `gorm:"column:status;type:varchar(32);not null;index"`
	RequestedBy              string          `gorm:"column:requested_by;type:varchar(64);not null"`
	RequestedAt              time.Time       `gorm:"column:requested_at;not null"`
	ApprovedBy               string          `gorm:"column:approved_by;type:varchar(64)"`
	ApprovedAt               *time.Time      `gorm:"column:approved_at"`
	Remark                   string          `gorm:"column:remark;type:varchar(255)"`
	UTRNumber                string          `gorm:"column:utr_number;type:varchar(64);index"`
	FailureReason            string          `gorm:"column:failure_reason;type:varchar(255)"`
	CompletedAt              *time.Time      `gorm:"column:completed_at"`
}

func (RefundModel) TableName() string {
	return "refunds"
}

// DisbursementMySQLRepository 出款单 MySQL 仓储实现
type DisbursementMySQLRepository struct {
	db *gorm.DB
}

// NewDisbursementRepository 创建出款单仓储
func NewDisbursementRepository(db *gorm.DB) domain.DisbursementRepository {
	_ = db.AutoMigrate(&DisbursementModel{})
	return &DisbursementMySQLRepository{db: db}
}

func (r *DisbursementMySQLRepository) getDB(ctx context.Context) *gorm.DB {
	if tx := contextx.GetTx(ctx); tx != nil {
		if gormTx, ok := tx.(*gorm.DB); ok {
			return gormTx
		}
	}
	return r.db.WithContext(ctx)
}

func (r *DisbursementMySQLRepository) Save(ctx context.Context, disbursement *domain.Disbursement) error {
	model := r.toModel(disbursement)
	if err := r.getDB(ctx).Create(model).Error; err != nil {
		return err
	}
	disbursement.ID = model.ID
	disbursement.CreatedAt = model.CreatedAt
	disbursement.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *DisbursementMySQLRepository) Update(ctx context.Context, disbursement *domain.Disbursement) error {
	return r.getDB(ctx).Model(&DisbursementModel{}).
		Where("disbursement_no = ?", disbursement.DisbursementNo).
		Updates(map[string]any{
			"status":         string(disbursement.Status),
			"approved_by":    disbursement.ApprovedBy,
			"approved_at":    disbursement.ApprovedAt,
			"remark":         disbursement.Remark,
			"utr_number":     disbursement.UTRNumber,
			"failure_reason": disbursement.FailureReason,
			"completed_at":   disbursement.CompletedAt,
		}).Error
}

func (r *DisbursementMySQLRepository) FindByNo(ctx context.Context, disbursementNo string) (*domain.Disbursement, error) {
	var model DisbursementModel
	if err := r.getDB(ctx).Where("disbursement_no = ?", disbursementNo).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.toDomain(&model), nil
}

func (r *DisbursementMySQLRepository) FindByDealID(ctx context.Context, dealID string, offset, limit int) ([]*domain.Disbursement, int64, error) {
	var models []DisbursementModel
	var total int64
	db := r.getDB(ctx).Model(&DisbursementModel{}).Where("deal_id = ?", dealID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	result := make([]*domain.Disbursement, len(models))
	for i, m := range models {
		result[i] = r.toDomain(&m)
	}
	return result, total, nil
}

// FindPendingApproval 待复核单按发起时间从旧到新排队
func (r *DisbursementMySQLRepository) FindPendingApproval(ctx context.Context, offset, limit int) ([]*domain.Disbursement, int64, error) {
	var models []DisbursementModel
	var total int64
	db := r.getDB(ctx).Model(&DisbursementModel{}).Where("status = ?", string(domain.TransferStatusPending))
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Order("created_at ASC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	result := make([]*domain.Disbursement, len(models))
	for i, m := range models {
		result[i] = r.toDomain(&m)
	}
	return result, total, nil
}

func (r *DisbursementMySQLRepository) toModel(d *domain.Disbursement) *DisbursementModel {
	return &DisbursementModel{
		Model:                    gorm.Model{ID: d.ID, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt},
		DisbursementNo:           d.DisbursementNo,
		EscrowAccountNo:          d.EscrowAccountNo,
		DealID:                   d.DealID,
		Amount:                   d.Amount,
		BeneficiaryName:          d.BeneficiaryName,
		BeneficiaryAccountNumber: d.BeneficiaryAccountNumber,
		BeneficiaryIFSCCode:      d.BeneficiaryIFSCCode,
		BeneficiaryBankName:      d.BeneficiaryBankName,
		TrancheNumber:            d.TrancheNumber,
		TrancheOf:                d.TrancheOf,
		Status:                   string(d.Status),
		RequestedBy:              d.RequestedBy,
		RequestedAt:              d.RequestedAt,
		ApprovedBy:               d.ApprovedBy,
		ApprovedAt:               d.ApprovedAt,
		Remark:                   d.Remark,
		UTRNumber:                d.UTRNumber,
		FailureReason:            d.FailureReason,
		CompletedAt:              d.CompletedAt,
	}
}

func (r *DisbursementMySQLRepository) toDomain(m *DisbursementModel) *domain.Disbursement {
	d := &domain.Disbursement{
		ID:                       m.Model.ID,
		CreatedAt:                m.CreatedAt,
		UpdatedAt:                m.UpdatedAt,
		DisbursementNo:           m.DisbursementNo,
		EscrowAccountNo:          m.EscrowAccountNo,
		DealID:                   m.DealID,
		Amount:                   m.Amount,
		BeneficiaryName:          m.BeneficiaryName,
		BeneficiaryAccountNumber: m.BeneficiaryAccountNumber,
		BeneficiaryIFSCCode:      m.BeneficiaryIFSCCode,
		BeneficiaryBankName:      m.BeneficiaryBankName,
		TrancheNumber:            m.TrancheNumber,
		TrancheOf:                m.TrancheOf,
		Status:                   domain.TransferStatus(m.Status),
		RequestedBy:              m.RequestedBy,
		RequestedAt:              m.RequestedAt,
		ApprovedBy:               m.ApprovedBy,
		ApprovedAt:               m.ApprovedAt,
		Remark:                   m.Remark,
		UTRNumber:                m.UTRNumber,
		FailureReason:            m.FailureReason,
		CompletedAt:              m.CompletedAt,
	}
	d.InitFSM()
	return d
}

// RefundMySQLRepository 退款单 MySQL 仓储实现
type RefundMySQLRepository struct {
	db *gorm.DB
}

// NewRefundRepository 创建退款单仓储
func NewRefundRepository(db *gorm.DB) domain.RefundRepository {
	_ = db.AutoMigrate(&RefundModel{})
	return &RefundMySQLRepository{db: db}
}

func (r *RefundMySQLRepository) getDB(ctx context.Context) *gorm.DB {
	if tx := contextx.GetTx(ctx); tx != nil {
		if gormTx, ok := tx.(*gorm.DB); ok {
			return gormTx
		}
	}
	return r.db.WithContext(ctx)
}

func (r *RefundMySQLRepository) Save(ctx context.Context, refund *domain.Refund) error {
	model := r.toModel(refund)
	if err := r.getDB(ctx).Create(model).Error; err != nil {
		return err
	}
	refund.ID = model.ID
	refund.CreatedAt = model.CreatedAt
	refund.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *RefundMySQLRepository) Update(ctx context.Context, refund *domain.Refund) error {
	return r.getDB(ctx).Model(&RefundModel{}).
		Where("refund_no = ?", refund.RefundNo).
		Updates(map[string]any{
			"status":         string(refund.Status),
			"approved_by":    refund.ApprovedBy,
			"approved_at":    refund.ApprovedAt,
			"remark":         refund.Remark,
			"utr_number":     refund.UTRNumber,
			"failure_reason": refund.FailureReason,
			"completed_at":   refund.CompletedAt,
		}).Error
}

func (r *RefundMySQLRepository) FindByNo(ctx context.Context, refundNo string) (*domain.Refund, error) {
	var model RefundModel
	if err := r.getDB(ctx).Where("refund_no = ?", refundNo).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.toDomain(&model), nil
}

func (r *RefundMySQLRepository) FindByDealID(ctx context.Context, dealID string, offset, limit int) ([]*domain.Refund, int64, error) {
	var models []RefundModel
	var total int64
	db := r.getDB(ctx).Model(&RefundModel{}).Where("deal_id = ?", dealID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	result := make([]*domain.Refund, len(models))
	for i, m := range models {
		result[i] = r.toDomain(&m)
	}
	return result, total, nil
}

// FindPendingApproval 待复核单按发起时间从旧到新排队
func (r *RefundMySQLRepository) FindPendingApproval(ctx context.Context, offset, limit int) ([]*domain.Refund, int64, error) {
	var models []RefundModel
	var total int64
	db := r.getDB(ctx).Model(&RefundModel{}).Where("status = ?", string(domain.TransferStatusPending))
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Order("created_at ASC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	result := make([]*domain.Refund, len(models))
	for i, m := range models {
		result[i] = r.toDomain(&m)
	}
	return result, total, nil
}

func (r *RefundMySQLRepository) toModel(refund *domain.Refund) *RefundModel {
	return &RefundModel{
		Model:                    gorm.Model{ID: refund.ID, CreatedAt: refund.CreatedAt, UpdatedAt: refund.UpdatedAt},
		RefundNo:                 refund.RefundNo,
		EscrowAccountNo:          refund.EscrowAccountNo,
		DealID:                   refund.DealID,
		VANumber:                 refund.VANumber,
		PaymentTransactionNo:     refund.PaymentTransactionNo,
		InvestorID:               refund.InvestorID,
		Amount:                   refund.Amount,
		Reason:                   string(refund.Reason),
		BeneficiaryAccountNumber: refund.BeneficiaryAccountNumber,
		BeneficiaryIFSCCode:      refund.BeneficiaryIFSCCode,
		BeneficiaryBankName:      refund.BeneficiaryBankName,
		Status:                   string(refund.Status),
		RequestedBy:              refund.RequestedBy,
		RequestedAt:              refund.RequestedAt,
		ApprovedBy:               refund.ApprovedBy,
		ApprovedAt:               refund.ApprovedAt,
		Remark:                   refund.Remark,
		UTRNumber:                refund.UTRNumber,
		FailureReason:            refund.FailureReason,
		CompletedAt:              refund.CompletedAt,
	}
}

func (r *RefundMySQLRepository) toDomain(m *RefundModel) *domain.Refund {
	refund := &domain.Refund{
		ID:                       m.Model.ID,
		CreatedAt:                m.CreatedAt,
		UpdatedAt:                m.UpdatedAt,
		RefundNo:                 m.RefundNo,
		EscrowAccountNo:          m.EscrowAccountNo,
		DealID:                   m.DealID,
		VANumber:                 m.VANumber,
		PaymentTransactionNo:     m.PaymentTransactionNo,
		InvestorID:               m.InvestorID,
		Amount:                   m.Amount,
		Reason:                   domain.RefundReason(m.Reason),
		BeneficiaryAccountNumber: m.BeneficiaryAccountNumber,
		BeneficiaryIFSCCode:      m.BeneficiaryIFSCCode,
		BeneficiaryBankName:      m.BeneficiaryBankName,
		Status:                   domain.TransferStatus(m.Status),
		RequestedBy:              m.RequestedBy,
		RequestedAt:              m.RequestedAt,
		ApprovedBy:               m.ApprovedBy,
		ApprovedAt:               m.ApprovedAt,
		Remark:                   m.Remark,
		UTRNumber:                m.UTRNumber,
		FailureReason:            m.FailureReason,
		CompletedAt:              m.CompletedAt,
	}
	refund.InitFSM()
	return refund
}

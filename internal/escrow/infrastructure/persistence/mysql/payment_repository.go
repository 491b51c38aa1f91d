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

// PaymentTransactionModel 入金流水数据库模型, 只增不删
type PaymentTransactionModel struct {
	gorm.Model
	TransactionNo       string          `gorm:"column:transaction_no;type:varchar(64);uniqueIndex;not null"`
	VANumber            string          `gorm:"column:va_number;type:varchar(64);index;not null"`
	EscrowAccountNo     string          `gorm:"column:escrow_account_no;type:varchar(64);index;not null"`
	DealID              string          `gorm:"column:deal_id;type:varchar(64);index;not null"`
	InvestorID          string          `gorm:"column:investor_id;type:varchar(64);index;not null"`
	Amount              decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null"`
	PaymentMode         string          `gorm:"column:payment_mode;type:varchar(16);not null"`
	Status              string          `gorm:"column:status;type:varchar(32);not null;index"`
	UTRNumber           string          `gorm:"column:utr_number;type:varchar(64);index"`
	SenderAccountNumber string          `gorm:"column:sender_account_number;type:varchar(64)"`
	SenderIFSCCode      string          `gorm:"column:sender_ifsc_code;type:varchar(16)"`
	SenderBankName      string          `gorm:"column:sender_bank_name;type:varchar(128)"`
	IsAmountMatched     bool            `gorm:"column:is_amount_matched;not null;default:false"`
	VerifiedBy          string          `gorm:"column:verified_by;type:varchar(64)"`
	VerifiedAt          *time.Time      `gorm:"column:verified_at"`
	RefundedAt          *time.Time      `gorm:"column:refunded_at"`
	RefundReference     string          `gorm:"column:refund_reference;type:varchar(64)"`
}

func (PaymentTransactionModel) TableName() string {
	return "payment_transactions"
}

// PaymentTransactionMySQLRepository 入金流水 MySQL 仓储实现
type PaymentTransactionMySQLRepository struct {
	db *gorm.DB
}

// NewPaymentTransactionRepository 创建入金流水仓储
func NewPaymentTransactionRepository(db *gorm.DB) domain.PaymentTransactionRepository {
	_ = db.AutoMigrate(&PaymentTransactionModel{})
	return &PaymentTransactionMySQLRepository{db: db}
}

func (r *PaymentTransactionMySQLRepository) getDB(ctx context.Context) *gorm.DB {
	if tx := contextx.GetTx(ctx); tx != nil {
		if gormTx, ok := tx.(*gorm.DB); ok {
			return gormTx
		}
	}
	return r.db.WithContext(ctx)
}

func (r *PaymentTransactionMySQLRepository) Save(ctx context.Context, payment *domain.PaymentTransaction) error {
	model := r.toModel(payment)
	if err := r.getDB(ctx).Create(model).Error; err != nil {
		return err
	}
	payment.ID = model.ID
	payment.CreatedAt = model.CreatedAt
	payment.UpdatedAt = model.UpdatedAt
	return nil
}

// Update 只覆盖核验与退款元数据列, 账务列建档后不再变更
func (r *PaymentTransactionMySQLRepository) Update(ctx context.Context, payment *domain.PaymentTransaction) error {
	return r.getDB(ctx).Model(&PaymentTransactionModel{}).
		Where("transaction_no = ?", payment.TransactionNo).
		Updates(map[string]any{
			"status":           string(payment.Status),
			"verified_by":      payment.VerifiedBy,
			"verified_at":      payment.VerifiedAt,
			"refunded_at":      payment.RefundedAt,
			"refund_reference": payment.RefundReference,
		}).Error
}

func (r *PaymentTransactionMySQLRepository) FindByTransactionNo(ctx context.Context, transactionNo string) (*domain.PaymentTransaction, error) {
	var model PaymentTransactionModel
	if err := r.getDB(ctx).Where("transaction_no = ?", transactionNo).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.toDomain(&model), nil
}

func (r *PaymentTransactionMySQLRepository) FindByVANumber(ctx context.Context, vaNumber string) ([]*domain.PaymentTransaction, error) {
	var models []PaymentTransactionModel
	if err := r.getDB(ctx).Where("va_number = ?", vaNumber).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	result := make([]*domain.PaymentTransaction, len(models))
	for i, m := range models {
		result[i] = r.toDomain(&m)
	}
	return result, nil
}

func (r *PaymentTransactionMySQLRepository) FindByUTR(ctx context.Context, utrNumber string) (*domain.PaymentTransaction, error) {
	var model PaymentTransactionModel
	if err := r.getDB(ctx).Where("utr_number = ?", utrNumber).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.toDomain(&model), nil
}

func (r *PaymentTransactionMySQLRepository) FindByDealID(ctx context.Context, dealID string, offset, limit int) ([]*domain.PaymentTransaction, int64, error) {
	var models []PaymentTransactionModel
	var total int64
	db := r.getDB(ctx).Model(&PaymentTransactionModel{}).Where("deal_id = ?", dealID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	result := make([]*domain.PaymentTransaction, len(models))
	for i, m := range models {
		result[i] = r.toDomain(&m)
	}
	return result, total, nil
}

func (r *PaymentTransactionMySQLRepository) toModel(p *domain.PaymentTransaction) *PaymentTransactionModel {
	return &PaymentTransactionModel{
		Model:               gorm.Model{ID: p.ID, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt},
		TransactionNo:       p.TransactionNo,
		VANumber:            p.VANumber,
		EscrowAccountNo:     p.EscrowAccountNo,
		DealID:              p.DealID,
		InvestorID:          p.InvestorID,
		Amount:              p.Amount,
		PaymentMode:         string(p.PaymentMode),
		Status:              string(p.Status),
		UTRNumber:           p.UTRNumber,
		SenderAccountNumber: p.SenderAccountNumber,
		SenderIFSCCode:      p.SenderIFSCCode,
		SenderBankName:      p.SenderBankName,
		IsAmountMatched:     p.IsAmountMatched,
		VerifiedBy:          p.VerifiedBy,
		VerifiedAt:          p.VerifiedAt,
		RefundedAt:          p.RefundedAt,
		RefundReference:     p.RefundReference,
	}
}

func (r *PaymentTransactionMySQLRepository) toDomain(m *PaymentTransactionModel) *domain.PaymentTransaction {
	return &domain.PaymentTransaction{
		ID:                  m.Model.ID,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
		TransactionNo:       m.TransactionNo,
		VANumber:            m.VANumber,
		EscrowAccountNo:     m.EscrowAccountNo,
		DealID:              m.DealID,
		InvestorID:          m.InvestorID,
		Amount:              m.Amount,
		PaymentMode:         domain.PaymentMode(m.PaymentMode),
		Status:              domain.PaymentStatus(m.Status),
		UTRNumber:           m.UTRNumber,
		SenderAccountNumber: m.SenderAccountNumber,
		SenderIFSCCode:      m.SenderIFSCCode,
		SenderBankName:      m.SenderBankName,
		IsAmountMatched:     m.IsAmountMatched,
		VerifiedBy:          m.VerifiedBy,
		VerifiedAt:          m.VerifiedAt,
		RefundedAt:          m.RefundedAt,
		RefundReference:     m.RefundReference,
	}
}

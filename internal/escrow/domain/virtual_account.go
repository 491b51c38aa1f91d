package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/fsm"
	"github.com/wyfcoding/pkg/idgen"
)

// VAStatus 虚拟账户状态
type VAStatus string

const (
	VAStatusActive          VAStatus = "active"           // 已分配, 等待入金
	VAStatusPaymentReceived VAStatus = "payment-received" // 已收到银行入金
	VAStatusVerified        VAStatus = "verified"         // 金额核验通过
	VAStatusExpired         VAStatus = "expired"          // 有效期内未入金 (终态)
	VAStatusRefunded        VAStatus = "refunded"         // 已退回投资人 (终态)
	VAStatusTransferred     VAStatus = "transferred"      // 已划转给被投企业 (终态)
)

// DefaultVAValidityDays 虚拟账户默认有效天数
const DefaultVAValidityDays = 14

// vaTransitions 虚拟账户状态机的全部合法边, 状态机与迁移判定共用同一张表
var vaTransitions = []struct {
	from  VAStatus
	event string
	to    VAStatus
}{
	{VAStatusActive, "RECEIVE", VAStatusPaymentReceived},
	{VAStatusActive, "EXPIRE", VAStatusExpired},
	{VAStatusPaymentReceived, "VERIFY", VAStatusVerified},
	{VAStatusPaymentReceived, "REFUND", VAStatusRefunded},
	{VAStatusVerified, "TRANSFER", VAStatusTransferred},
	{VAStatusVerified, "REFUND", VAStatusRefunded},
}

// CanTransition 判断一次状态迁移是否合法, 纯函数, 无副作用
// expired/refunded/transferred 均为终态, 不存在任何出边
func CanTransition(from, to VAStatus) bool {
	for _, t := range vaTransitions {
		if t.from == from && t.to == to {
			return true
		}
	}
	return false
}

// GenerateExpiry 生成虚拟账户过期时间
// 总是从调用时刻起算, 不以开户时间等其他基准推算; validityDays 非正数时取默认值
func GenerateExpiry(validityDays int) time.Time {
	if validityDays <= 0 {
		validityDays = DefaultVAValidityDays
	}
	return time.Now().AddDate(0, 0, validityDays)
}

// VirtualAccount 虚拟账户聚合根
// 每个 (投资人, 交易, 认缴) 三元组仅一个, 绝不跨投资人或跨交易复用
type VirtualAccount struct {
	ID                uint            `json:"id"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	VANumber          string          `json:"va_number"`
	EscrowAccountNo   string          `json:"escrow_account_no"`
	DealID            string          `json:"deal_id"`
	InvestorID        string          `json:"investor_id"`
	CommitmentID      string          `json:"commitment_id"`
	BeneficiaryName   string          `json:"beneficiary_name"`
	IFSCCode          string          `json:"ifsc_code"`
	ExpectedAmount    decimal.Decimal `json:"expected_amount"`
	ReceivedAmount    decimal.Decimal `json:"received_amount"`
	Status            VAStatus        `json:"status"`
	ExpiresAt         time.Time       `json:"expires_at"`
	PaymentReference  string          `json:"payment_reference"`
	PaymentMode       PaymentMode     `json:"payment_mode"`
	PaymentReceivedAt *time.Time      `json:"payment_received_at"`
	PaymentVerifiedAt *time.Time      `json:"payment_verified_at"`
	VerifiedBy        string          `json:"verified_by"`
	Version           int64           `json:"version"`
	fsm               *fsm.Machine[string, string]
}

// NewVirtualAccount 为一笔认缴分配虚拟账户
// IFSC 从父托管账户复制, 入金时银行按该路由码归集
func NewVirtualAccount(escrowAccountNo, dealID, investorID, commitmentID, beneficiaryName, ifscCode string, expectedAmount decimal.Decimal, expiresAt time.Time) *VirtualAccount {
	v := &VirtualAccount{
		VANumber:        fmt.Sprintf("VA%d", idgen.GenID()),
		EscrowAccountNo: escrowAccountNo,
		DealID:          dealID,
		InvestorID:      investorID,
		CommitmentID:    commitmentID,
		BeneficiaryName: beneficiaryName,
		IFSCCode:        ifscCode,
		ExpectedAmount:  expectedAmount,
		ReceivedAmount:  decimal.Zero,
		Status:          VAStatusActive,
		ExpiresAt:       expiresAt,
	}
	v.initFSM()
	return v
}

func (v *VirtualAccount) initFSM() {
	m := fsm.NewMachine[string, string](string(v.Status))
	for _, t := range vaTransitions {
		m.AddTransition(string(t.from), t.event, string(t.to))
	}
	v.fsm = m
}

// InitFSM 确保状态机已初始化, 仓储层重建聚合后调用
func (v *VirtualAccount) InitFSM() {
	if v.fsm == nil {
		v.initFSM()
	}
}

// AcceptPayment 记录一笔银行入金
// 仅 active 可收款, 已入金/已过期/已退款/已划转的虚拟账户一律拒绝,
// 即防重复入金守卫; ReceivedAmount 为整笔覆盖而非累加, 一户一笔全额到账
func (v *VirtualAccount) AcceptPayment(ctx context.Context, amount decimal.Decimal, mode PaymentMode, reference string) error {
	v.InitFSM()
	if err := v.fsm.Trigger(ctx, "RECEIVE"); err != nil {
		return NewInvalidOperation("virtual account %s is %s, cannot accept payment", v.VANumber, v.Status)
	}
	v.Status = VAStatusPaymentReceived
	v.ReceivedAmount = amount
	v.PaymentMode = mode
	v.PaymentReference = reference
	now := time.Now()
	v.PaymentReceivedAt = &now
	return nil
}

// VerifyPayment 人工核验入金
// 严格金额相等才放行, 少付或多付须先线下处理 (退款/补款) 再核验
func (v *VirtualAccount) VerifyPayment(ctx context.Context, verifiedBy string) error {
	v.InitFSM()
	if v.Status != VAStatusPaymentReceived {
		return NewInvalidOperation("virtual account %s is %s, only payment-received can be verified", v.VANumber, v.Status)
	}
	if !v.ReceivedAmount.Equal(v.ExpectedAmount) {
		return NewAmountMismatch(v.ExpectedAmount, v.ReceivedAmount)
	}
	if err := v.fsm.Trigger(ctx, "VERIFY"); err != nil {
		return NewInvalidOperation("virtual account %s is %s, cannot verify", v.VANumber, v.Status)
	}
	v.Status = VAStatusVerified
	v.VerifiedBy = verifiedBy
	now := time.Now()
	v.PaymentVerifiedAt = &now
	return nil
}

// Expire 过期, 仅未入金的 active 账户可过期
func (v *VirtualAccount) Expire(ctx context.Context) error {
	v.InitFSM()
	if err := v.fsm.Trigger(ctx, "EXPIRE"); err != nil {
		return NewInvalidOperation("virtual account %s is %s, cannot expire", v.VANumber, v.Status)
	}
	v.Status = VAStatusExpired
	return nil
}

// MarkRefunded 资金退回投资人后落终态
func (v *VirtualAccount) MarkRefunded(ctx context.Context) error {
	v.InitFSM()
	if err := v.fsm.Trigger(ctx, "REFUND"); err != nil {
		return NewInvalidOperation("virtual account %s is %s, cannot be refunded", v.VANumber, v.Status)
	}
	v.Status = VAStatusRefunded
	return nil
}

// MarkTransferred 资金划转给被投企业后落终态
func (v *VirtualAccount) MarkTransferred(ctx context.Context) error {
	v.InitFSM()
	if err := v.fsm.Trigger(ctx, "TRANSFER"); err != nil {
		return NewInvalidOperation("virtual account %s is %s, cannot be transferred", v.VANumber, v.Status)
	}
	v.Status = VAStatusTransferred
	return nil
}

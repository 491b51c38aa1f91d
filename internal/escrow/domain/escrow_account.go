// 包 domain 资金托管服务的领域模型
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/idgen"
)

// EscrowStatus 托管账户状态
type EscrowStatus string

const (
	EscrowStatusPendingSetup EscrowStatus = "pending-setup" // 已申请, 等待银行开户
	EscrowStatusActive       EscrowStatus = "active"        // 银行要素齐备, 可收付款
	EscrowStatusSuspended    EscrowStatus = "suspended"     // 行政冻结
	EscrowStatusClosed       EscrowStatus = "closed"        // 已关闭
)

// BankDetails 银行账户要素, 激活托管账户时由银行合作方回填
type BankDetails struct {
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	IFSCCode      string `json:"ifsc_code"`
	BranchName    string `json:"branch_name"`
}

// EscrowAccount 托管账户聚合根, 每个交易 (deal) 仅一个
// 余额字段是核验与出款时同事务维护的投影, 权威口径见 DealEscrowSummary
type EscrowAccount struct {
	ID                uint            `json:"id"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	AccountNo         string          `json:"account_no"`
	DealID            string          `json:"deal_id"`
	SPVID             string          `json:"spv_id"`
	BankPartner       string          `json:"bank_partner"`
	BankAccountNumber string          `json:"bank_account_number"`
	BankAccountName   string          `json:"bank_account_name"`
	IFSCCode          string          `json:"ifsc_code"`
	BranchName        string          `json:"branch_name"`
	Status            EscrowStatus    `json:"status"`
	CurrentBalance    decimal.Decimal `json:"current_balance"`
	TotalReceived     decimal.Decimal `json:"total_received"`
	TotalDisbursed    decimal.Decimal `json:"total_disbursed"`
	SetupRequestedAt  time.Time       `json:"setup_requested_at"`
	ActivatedAt       *time.Time      `json:"activated_at"`
	ClosedAt          *time.Time      `json:"closed_at"`
	Version           int64           `json:"version"`
}

// NewEscrowAccount 创建托管账户开户申请, 此时尚无银行要素
func NewEscrowAccount(dealID, bankPartner, spvID string) *EscrowAccount {
	return &EscrowAccount{
		AccountNo:        fmt.Sprintf("ESC%d", idgen.GenID()),
		DealID:           dealID,
		SPVID:            spvID,
		BankPartner:      bankPartner,
		Status:           EscrowStatusPendingSetup,
		CurrentBalance:   decimal.Zero,
		TotalReceived:    decimal.Zero,
		TotalDisbursed:   decimal.Zero,
		SetupRequestedAt: time.Now(),
	}
}

// Activate 银行开户完成, 回填账户要素并激活
// 仅允许从 pending-setup 激活, 重复激活会被拒绝而不是静默成功
func (a *EscrowAccount) Activate(details BankDetails) error {
	if a.Status != EscrowStatusPendingSetup {
		return NewInvalidOperation("escrow account %s is %s, only pending-setup can be activated", a.AccountNo, a.Status)
	}
	a.BankAccountNumber = details.AccountNumber
	a.BankAccountName = details.AccountName
	a.IFSCCode = details.IFSCCode
	a.BranchName = details.BranchName
	a.Status = EscrowStatusActive
	now := time.Now()
	a.ActivatedAt = &now
	return nil
}

// Suspend 行政冻结, 冻结期间不允许任何资金操作
func (a *EscrowAccount) Suspend() error {
	if a.Status != EscrowStatusActive {
		return NewInvalidOperation("escrow account %s is %s, only active can be suspended", a.AccountNo, a.Status)
	}
	a.Status = EscrowStatusSuspended
	return nil
}

// Resume 解除冻结
func (a *EscrowAccount) Resume() error {
	if a.Status != EscrowStatusSuspended {
		return NewInvalidOperation("escrow account %s is %s, only suspended can be resumed", a.AccountNo, a.Status)
	}
	a.Status = EscrowStatusActive
	return nil
}

// Close 关闭托管账户
func (a *EscrowAccount) Close() error {
	if a.Status != EscrowStatusActive && a.Status != EscrowStatusSuspended {
		return NewInvalidOperation("escrow account %s is %s, cannot be closed", a.AccountNo, a.Status)
	}
	a.Status = EscrowStatusClosed
	now := time.Now()
	a.ClosedAt = &now
	return nil
}

// IsActive 资金操作前的状态判定
func (a *EscrowAccount) IsActive() bool {
	return a.Status == EscrowStatusActive
}

// Credit 入账, 在支付核验通过的同一事务内调用
func (a *EscrowAccount) Credit(amount decimal.Decimal) error {
	if !a.IsActive() {
		return NewInvalidOperation("escrow account %s is %s, cannot credit", a.AccountNo, a.Status)
	}
	a.CurrentBalance = a.CurrentBalance.Add(amount)
	a.TotalReceived = a.TotalReceived.Add(amount)
	return nil
}

// Debit 出款出账, 在出款划付启动的同一事务内调用
func (a *EscrowAccount) Debit(amount decimal.Decimal) error {
	if !a.IsActive() {
		return NewInvalidOperation("escrow account %s is %s, cannot debit", a.AccountNo, a.Status)
	}
	if amount.GreaterThan(a.CurrentBalance) {
		return NewInsufficientBalance(amount, a.CurrentBalance)
	}
	a.CurrentBalance = a.CurrentBalance.Sub(amount)
	a.TotalDisbursed = a.TotalDisbursed.Add(amount)
	return nil
}

// RestoreDebit 出款补偿回冲, 完整逆转一次 Debit 的账务影响
func (a *EscrowAccount) RestoreDebit(amount decimal.Decimal) {
	a.CurrentBalance = a.CurrentBalance.Add(amount)
	a.TotalDisbursed = a.TotalDisbursed.Sub(amount)
}

// DeductRefund 退款出账, 仅核验入账过的资金才占用余额, 不计入 TotalDisbursed
func (a *EscrowAccount) DeductRefund(amount decimal.Decimal) error {
	if !a.IsActive() {
		return NewInvalidOperation("escrow account %s is %s, cannot refund", a.AccountNo, a.Status)
	}
	if amount.GreaterThan(a.CurrentBalance) {
		return NewInsufficientBalance(amount, a.CurrentBalance)
	}
	a.CurrentBalance = a.CurrentBalance.Sub(amount)
	return nil
}

// RestoreRefund 退款补偿回冲
func (a *EscrowAccount) RestoreRefund(amount decimal.Decimal) {
	a.CurrentBalance = a.CurrentBalance.Add(amount)
}

// Package http 资金托管服务接口
package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/dtm-labs/client/dtmcli"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/escrowsettlement/internal/escrow/application"
	"github.com/wyfcoding/escrowsettlement/internal/escrow/domain"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/response"
)

type EscrowHandler struct {
	escrowCmd   *application.EscrowCommandService
	vaCmd       *application.VirtualAccountCommandService
	transferCmd *application.TransferCommandService
	execution   *application.TransferExecutionManager
	query       *application.EscrowQueryService
}

func NewEscrowHandler(
	escrowCmd *application.EscrowCommandService,
	vaCmd *application.VirtualAccountCommandService,
	transferCmd *application.TransferCommandService,
	execution *application.TransferExecutionManager,
	query *application.EscrowQueryService,
) *EscrowHandler {
	return &EscrowHandler{
		escrowCmd:   escrowCmd,
		vaCmd:       vaCmd,
		transferCmd: transferCmd,
		execution:   execution,
		query:       query,
	}
}

// 注册路由
func (h *EscrowHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/escrow")
	{
		api.POST("/accounts", h.CreateEscrowAccount)
		api.GET("/accounts", h.ListEscrowAccounts)
		api.GET("/accounts/:accountNo", h.GetEscrowAccount)
		api.POST("/accounts/:accountNo/activate", h.ActivateEscrowAccount)
		api.POST("/accounts/:accountNo/suspend", h.SuspendEscrowAccount)
		api.POST("/accounts/:accountNo/resume", h.ResumeEscrowAccount)
		api.POST("/accounts/:accountNo/close", h.CloseEscrowAccount)

		api.GET("/deals/:dealId/account", h.GetEscrowAccountByDeal)
		api.GET("/deals/:dealId/summary", h.GetDealEscrowSummary)
		api.GET("/deals/:dealId/virtual-accounts", h.ListVirtualAccountsByDeal)
		api.GET("/deals/:dealId/payments", h.ListPaymentsByDeal)
		api.GET("/deals/:dealId/disbursements", h.ListDisbursementsByDeal)
		api.GET("/deals/:dealId/refunds", h.ListRefundsByDeal)

		api.POST("/virtual-accounts", h.CreateVirtualAccount)
		api.GET("/virtual-accounts/:vaNumber", h.GetVirtualAccount)
		api.GET("/virtual-accounts/:vaNumber/payments", h.ListPaymentsByVA)
		api.POST("/virtual-accounts/:vaNumber/verify", h.VerifyPayment)

		api.POST("/payments", h.RecordPayment)
		api.GET("/payments/:transactionNo", h.GetPaymentTransaction)

		api.POST("/disbursements", h.CreateDisbursement)
		api.GET("/disbursements/:no", h.GetDisbursement)
		api.POST("/disbursements/:no/approve", h.ApproveDisbursement)
		api.POST("/disbursements/:no/reject", h.RejectDisbursement)
		api.POST("/disbursements/:no/execute", h.ExecuteDisbursement)

		api.POST("/refunds", h.CreateRefund)
		api.GET("/refunds/:no", h.GetRefund)
		api.POST("/refunds/:no/approve", h.ApproveRefund)
		api.POST("/refunds/:no/reject", h.RejectRefund)
		api.POST("/refunds/:no/execute", h.ExecuteRefund)

		api.GET("/approvals/disbursements", h.ListPendingDisbursements)
		api.GET("/approvals/refunds", h.ListPendingRefunds)

		api.POST("/callbacks/transfers", h.TransferCallback)

		saga := api.Group("/saga")
		{
			saga.POST("/disbursements/debit", h.SagaDisbursementDebit)
			saga.POST("/disbursements/credit", h.SagaDisbursementCredit)
			saga.POST("/refunds/debit", h.SagaRefundDebit)
			saga.POST("/refunds/credit", h.SagaRefundCredit)
		}
	}
}

// statusOf 业务错误码到 HTTP 状态的映射
func statusOf(err error) int {
	switch domain.CodeOf(err) {
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeInvalidOperation:
		return http.StatusConflict
	case domain.ErrCodeAmountMismatch, domain.ErrCodeInsufficientBalance:
		return http.StatusUnprocessableEntity
	case domain.ErrCodeFetchError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	response.ErrorWithStatus(c, statusOf(err), err.Error(), string(domain.CodeOf(err)))
}

func pageParams(c *gin.Context) (offset, limit int, ok bool) {
	offsetStr := c.DefaultQuery("offset", "0")
	offset, err := strconv.Atoi(offsetStr)
	if err != nil || offset < 0 {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid offset", "")
		return 0, 0, false
	}
	limitStr := c.DefaultQuery("limit", "20")
	limit, err = strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid limit", "")
		return 0, 0, false
	}
	return offset, limit, true
}

type CreateEscrowAccountRequest struct {
	DealID      string `json:"deal_id" binding:"required"`
	SPVID       string `json:"spv_id" binding:"required"`
	BankPartner string `json:"bank_partner" binding:"required"`
}

// CreateEscrowAccount 交易托管开户
func (h *EscrowHandler) CreateEscrowAccount(c *gin.Context) {
	var req CreateEscrowAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	account, err := h.escrowCmd.CreateEscrowAccount(c.Request.Context(), application.CreateEscrowAccountCommand{
		DealID:      req.DealID,
		SPVID:       req.SPVID,
		BankPartner: req.BankPartner,
	})
	if err != nil {
		logging.Error(c.Request.Context(), "failed to create escrow account", "deal_id", req.DealID, "error", err)
		respondError(c, err)
		return
	}

	response.Success(c, account)
}

type ActivateEscrowAccountRequest struct {
	AccountNumber string `json:"account_number" binding:"required"`
	AccountName   string `json:"account_name" binding:"required"`
	IFSCCode      string `json:"ifsc_code" binding:"required"`
	BranchName    string `json:"branch_name"`
}

// ActivateEscrowAccount 回填银行要素并激活
func (h *EscrowHandler) ActivateEscrowAccount(c *gin.Context) {
	var req ActivateEscrowAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	account, err := h.escrowCmd.ActivateEscrowAccount(c.Request.Context(), application.ActivateEscrowAccountCommand{
		AccountNo: c.Param("accountNo"),
		BankDetails: domain.BankDetails{
			AccountNumber: req.AccountNumber,
			AccountName:   req.AccountName,
			IFSCCode:      req.IFSCCode,
			BranchName:    req.BranchName,
		},
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, account)
}

func (h *EscrowHandler) SuspendEscrowAccount(c *gin.Context) {
	if err := h.escrowCmd.SuspendEscrowAccount(c.Request.Context(), c.Param("accountNo")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *EscrowHandler) ResumeEscrowAccount(c *gin.Context) {
	if err := h.escrowCmd.ResumeEscrowAccount(c.Request.Context(), c.Param("accountNo")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *EscrowHandler) CloseEscrowAccount(c *gin.Context) {
	if err := h.escrowCmd.CloseEscrowAccount(c.Request.Context(), c.Param("accountNo")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *EscrowHandler) GetEscrowAccount(c *gin.Context) {
	account, err := h.query.GetEscrowAccount(c.Request.Context(), c.Param("accountNo"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, account)
}

func (h *EscrowHandler) GetEscrowAccountByDeal(c *gin.Context) {
	account, err := h.query.GetEscrowAccountByDeal(c.Request.Context(), c.Param("dealId"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, account)
}

func (h *EscrowHandler) ListEscrowAccounts(c *gin.Context) {
	offset, limit, ok := pageParams(c)
	if !ok {
		return
	}
	accounts, total, err := h.query.ListEscrowAccounts(c.Request.Context(), offset, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"accounts": accounts, "total": total})
}

func (h *EscrowHandler) GetDealEscrowSummary(c *gin.Context) {
	summary, err := h.query.GetDealEscrowSummary(c.Request.Context(), c.Param("dealId"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, summary)
}

type CreateVirtualAccountRequest struct {
	EscrowAccountNo string `json:"escrow_account_no" binding:"required"`
	InvestorID      string `json:"investor_id" binding:"required"`
	CommitmentID    string `json:"commitment_id" binding:"required"`
	InvestorName    string `json:"investor_name" binding:"required"`
	ExpectedAmount  string `json:"expected_amount" binding:"required"`
	ValidityDays    int    `json:"validity_days"`
}

// CreateVirtualAccount 为认缴分配虚拟收款账户
func (h *EscrowHandler) CreateVirtualAccount(c *gin.Context) {
	var req CreateVirtualAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	amount, err := decimal.NewFromString(req.ExpectedAmount)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid expected_amount", "")
		return
	}

	va, err := h.vaCmd.CreateVirtualAccount(c.Request.Context(), application.CreateVirtualAccountCommand{
		EscrowAccountNo: req.EscrowAccountNo,
		InvestorID:      req.InvestorID,
		CommitmentID:    req.CommitmentID,
		InvestorName:    req.InvestorName,
		ExpectedAmount:  amount,
		ValidityDays:    req.ValidityDays,
	})
	if err != nil {
		logging.Error(c.Request.Context(), "failed to create virtual account", "commitment_id", req.CommitmentID, "error", err)
		respondError(c, err)
		return
	}

	response.Success(c, va)
}

func (h *EscrowHandler) GetVirtualAccount(c *gin.Context) {
	va, err := h.query.GetVirtualAccount(c.Request.Context(), c.Param("vaNumber"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, va)
}

func (h *EscrowHandler) ListVirtualAccountsByDeal(c *gin.Context) {
	vas, err := h.query.ListVirtualAccountsByDeal(c.Request.Context(), c.Param("dealId"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"virtual_accounts": vas, "total": len(vas)})
}

type RecordPaymentRequest struct {
	VANumber            string `json:"va_number" binding:"required"`
	Amount              string `json:"amount" binding:"required"`
	PaymentMode         string `json:"payment_mode"`
	UTRNumber           string `json:"utr_number" binding:"required"`
	SenderAccountNumber string `json:"sender_account_number"`
	SenderIFSCCode      string `json:"sender_ifsc_code"`
	SenderBankName      string `json:"sender_bank_name"`
}

// RecordPayment 记录银行入金通知
func (h *EscrowHandler) RecordPayment(c *gin.Context) {
	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid amount", "")
		return
	}
	mode := domain.PaymentMode(req.PaymentMode)
	if mode == "" {
		mode = domain.PaymentModeOther
	}

	payment, err := h.vaCmd.RecordPayment(c.Request.Context(), application.RecordPaymentCommand{
		VANumber:            req.VANumber,
		Amount:              amount,
		PaymentMode:         mode,
		UTRNumber:           req.UTRNumber,
		SenderAccountNumber: req.SenderAccountNumber,
		SenderIFSCCode:      req.SenderIFSCCode,
		SenderBankName:      req.SenderBankName,
	})
	if err != nil {
		logging.Error(c.Request.Context(), "failed to record payment", "va_number", req.VANumber, "utr_number", req.UTRNumber, "error", err)
		respondError(c, err)
		return
	}

	response.Success(c, payment)
}

type VerifyPaymentRequest struct {
	VerifiedBy string `json:"verified_by" binding:"required"`
}

// VerifyPayment 人工核验入金
func (h *EscrowHandler) VerifyPayment(c *gin.Context) {
	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	va, err := h.vaCmd.VerifyPayment(c.Request.Context(), application.VerifyPaymentCommand{
		VANumber:   c.Param("vaNumber"),
		VerifiedBy: req.VerifiedBy,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, va)
}

func (h *EscrowHandler) GetPaymentTransaction(c *gin.Context) {
	payment, err := h.query.GetPaymentTransaction(c.Request.Context(), c.Param("transactionNo"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, payment)
}

func (h *EscrowHandler) ListPaymentsByVA(c *gin.Context) {
	payments, err := h.query.ListPaymentsByVA(c.Request.Context(), c.Param("vaNumber"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"payments": payments, "total": len(payments)})
}

func (h *EscrowHandler) ListPaymentsByDeal(c *gin.Context) {
	offset, limit, ok := pageParams(c)
	if !ok {
		return
	}
	payments, total, err := h.query.ListPaymentsByDeal(c.Request.Context(), c.Param("dealId"), offset, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"payments": payments, "total": total})
}

type CreateDisbursementRequest struct {
	EscrowAccountNo string `json:"escrow_account_no" binding:"required"`
	Amount          string `json:"amount" binding:"required"`
	BeneficiaryName string `json:"beneficiary_name" binding:"required"`
	AccountNumber   string `json:"account_number" binding:"required"`
	IFSCCode        string `json:"ifsc_code" binding:"required"`
	BankName        string `json:"bank_name"`
	TrancheNumber   int    `json:"tranche_number"`
	TrancheOf       int    `json:"tranche_of"`
	RequestedBy     string `json:"requested_by" binding:"required"`
}

// CreateDisbursement 发起出款申请
func (h *EscrowHandler) CreateDisbursement(c *gin.Context) {
	var req CreateDisbursementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid amount", "")
		return
	}

	disbursement, err := h.transferCmd.CreateDisbursement(c.Request.Context(), application.CreateDisbursementCommand{
		EscrowAccountNo: req.EscrowAccountNo,
		Amount:          amount,
		Beneficiary: domain.Beneficiary{
			Name:          req.BeneficiaryName,
			AccountNumber: req.AccountNumber,
			IFSCCode:      req.IFSCCode,
			BankName:      req.BankName,
		},
		TrancheNumber: req.TrancheNumber,
		TrancheOf:     req.TrancheOf,
		RequestedBy:   req.RequestedBy,
	})
	if err != nil {
		logging.Error(c.Request.Context(), "failed to create disbursement", "escrow_account_no", req.EscrowAccountNo, "error", err)
		respondError(c, err)
		return
	}

	response.Success(c, disbursement)
}

type ApprovalRequest struct {
	Approver string `json:"approver" binding:"required"`
	Remark   string `json:"remark"`
}

func (h *EscrowHandler) ApproveDisbursement(c *gin.Context) {
	var req ApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	disbursement, err := h.transferCmd.ApproveDisbursement(c.Request.Context(), c.Param("no"), req.Approver, req.Remark)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, disbursement)
}

func (h *EscrowHandler) RejectDisbursement(c *gin.Context) {
	var req ApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	disbursement, err := h.transferCmd.RejectDisbursement(c.Request.Context(), c.Param("no"), req.Approver, req.Remark)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, disbursement)
}

// ExecuteDisbursement 对已复核出款单发起划付
func (h *EscrowHandler) ExecuteDisbursement(c *gin.Context) {
	if err := h.execution.ExecuteDisbursement(c.Request.Context(), c.Param("no")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *EscrowHandler) GetDisbursement(c *gin.Context) {
	disbursement, err := h.query.GetDisbursement(c.Request.Context(), c.Param("no"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, disbursement)
}

func (h *EscrowHandler) ListDisbursementsByDeal(c *gin.Context) {
	offset, limit, ok := pageParams(c)
	if !ok {
		return
	}
	disbursements, total, err := h.query.ListDisbursementsByDeal(c.Request.Context(), c.Param("dealId"), offset, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"disbursements": disbursements, "total": total})
}

func (h *EscrowHandler) ListPendingDisbursements(c *gin.Context) {
	offset, limit, ok := pageParams(c)
	if !ok {
		return
	}
	disbursements, total, err := h.query.ListPendingDisbursements(c.Request.Context(), offset, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"disbursements": disbursements, "total": total})
}

type CreateRefundRequest struct {
	VANumber      string `json:"va_number" binding:"required"`
	TransactionNo string `json:"transaction_no" binding:"required"`
	Reason        string `json:"reason" binding:"required"`
	RequestedBy   string `json:"requested_by" binding:"required"`
}

// CreateRefund 发起退款申请, 原路退回
func (h *EscrowHandler) CreateRefund(c *gin.Context) {
	var req CreateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	refund, err := h.transferCmd.CreateRefund(c.Request.Context(), application.CreateRefundCommand{
		VANumber:      req.VANumber,
		TransactionNo: req.TransactionNo,
		Reason:        domain.RefundReason(req.Reason),
		RequestedBy:   req.RequestedBy,
	})
	if err != nil {
		logging.Error(c.Request.Context(), "failed to create refund", "va_number", req.VANumber, "error", err)
		respondError(c, err)
		return
	}

	response.Success(c, refund)
}

func (h *EscrowHandler) ApproveRefund(c *gin.Context) {
	var req ApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	refund, err := h.transferCmd.ApproveRefund(c.Request.Context(), c.Param("no"), req.Approver, req.Remark)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, refund)
}

func (h *EscrowHandler) RejectRefund(c *gin.Context) {
	var req ApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	refund, err := h.transferCmd.RejectRefund(c.Request.Context(), c.Param("no"), req.Approver, req.Remark)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, refund)
}

// ExecuteRefund 对已复核退款单发起划付
func (h *EscrowHandler) ExecuteRefund(c *gin.Context) {
	if err := h.execution.ExecuteRefund(c.Request.Context(), c.Param("no")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *EscrowHandler) GetRefund(c *gin.Context) {
	refund, err := h.query.GetRefund(c.Request.Context(), c.Param("no"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, refund)
}

func (h *EscrowHandler) ListRefundsByDeal(c *gin.Context) {
	offset, limit, ok := pageParams(c)
	if !ok {
		return
	}
	refunds, total, err := h.query.ListRefundsByDeal(c.Request.Context(), c.Param("dealId"), offset, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"refunds": refunds, "total": total})
}

func (h *EscrowHandler) ListPendingRefunds(c *gin.Context) {
	offset, limit, ok := pageParams(c)
	if !ok {
		return
	}
	refunds, total, err := h.query.ListPendingRefunds(c.Request.Context(), offset, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"refunds": refunds, "total": total})
}

type TransferCallbackRequest struct {
	OrderNo       string `json:"order_no" binding:"required"`
	Status        string `json:"status" binding:"required"`
	UTRNumber     string `json:"utr_number"`
	FailureReason string `json:"failure_reason"`
}

// TransferCallback 银行网关划付回执, 单号前缀区分出款与退款
func (h *EscrowHandler) TransferCallback(c *gin.Context) {
	var req TransferCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	ctx := c.Request.Context()
	var err error
	switch {
	case strings.HasPrefix(req.OrderNo, "DSB"):
		if req.Status == "success" {
			err = h.execution.CompleteDisbursement(ctx, req.OrderNo, req.UTRNumber)
		} else {
			err = h.execution.FailDisbursement(ctx, req.OrderNo, req.FailureReason)
		}
	case strings.HasPrefix(req.OrderNo, "RFD"):
		if req.Status == "success" {
			err = h.execution.CompleteRefund(ctx, req.OrderNo, req.UTRNumber)
		} else {
			err = h.execution.FailRefund(ctx, req.OrderNo, req.FailureReason)
		}
	default:
		response.ErrorWithStatus(c, http.StatusBadRequest, "unknown order no prefix", "")
		return
	}
	if err != nil {
		logging.Error(ctx, "failed to apply transfer callback", "order_no", req.OrderNo, "status", req.Status, "error", err)
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"order_no": req.OrderNo})
}

// sagaStatusOf DTM 分支结果映射: 409 业务失败触发回滚, 500 触发重试
func sagaStatusOf(err error) int {
	switch domain.CodeOf(err) {
	case domain.ErrCodeInsufficientBalance, domain.ErrCodeInvalidOperation,
		domain.ErrCodeNotFound, domain.ErrCodeAmountMismatch:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *EscrowHandler) sagaBranch(c *gin.Context, fn func(ctx *gin.Context, barrier *dtmcli.BranchBarrier, orderNo string) error) {
	var payload application.TransferSagaPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"dtm_result": "FAILURE", "message": err.Error()})
		return
	}
	barrier, err := dtmcli.BarrierFromQuery(c.Request.URL.Query())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"dtm_result": "FAILURE", "message": err.Error()})
		return
	}
	if err := fn(c, barrier, payload.OrderNo); err != nil {
		c.JSON(sagaStatusOf(err), gin.H{"dtm_result": "FAILURE", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"dtm_result": "SUCCESS"})
}

func (h *EscrowHandler) SagaDisbursementDebit(c *gin.Context) {
	h.sagaBranch(c, func(ctx *gin.Context, barrier *dtmcli.BranchBarrier, orderNo string) error {
		return h.execution.SagaDebitDisbursement(ctx.Request.Context(), barrier, orderNo)
	})
}

func (h *EscrowHandler) SagaDisbursementCredit(c *gin.Context) {
	h.sagaBranch(c, func(ctx *gin.Context, barrier *dtmcli.BranchBarrier, orderNo string) error {
		return h.execution.SagaCreditDisbursement(ctx.Request.Context(), barrier, orderNo)
	})
}

func (h *EscrowHandler) SagaRefundDebit(c *gin.Context) {
	h.sagaBranch(c, func(ctx *gin.Context, barrier *dtmcli.BranchBarrier, orderNo string) error {
		return h.execution.SagaDebitRefund(ctx.Request.Context(), barrier, orderNo)
	})
}

func (h *EscrowHandler) SagaRefundCredit(c *gin.Context) {
	h.sagaBranch(c, func(ctx *gin.Context, barrier *dtmcli.BranchBarrier, orderNo string) error {
		return h.execution.SagaCreditRefund(ctx.Request.Context(), barrier, orderNo)
	})
}

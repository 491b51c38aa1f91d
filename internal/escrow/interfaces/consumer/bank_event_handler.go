package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/escrowsettlement/internal/escrow/application"
	"github.com/wyfcoding/escrowsettlement/internal/escrow/domain"
)

// 银行合作方侧的外部主题
const (
	BankPaymentReceivedTopic   = "bank.payment.received"
	BankTransferCompletedTopic = "bank.transfer.completed"
	BankTransferFailedTopic    = "bank.transfer.failed"
)

// BankEventHandler 消费银行合作方的入金通知与划付回执。
type BankEventHandler struct {
	vaCmd     *application.VirtualAccountCommandService
	execution *application.TransferExecutionManager
	logger    *slog.Logger
}

func NewBankEventHandler(
	vaCmd *application.VirtualAccountCommandService,
	execution *application.TransferExecutionManager,
	logger *slog.Logger,
) *BankEventHandler {
	return &BankEventHandler{vaCmd: vaCmd, execution: execution, logger: logger}
}

func (h *BankEventHandler) Handle(ctx context.Context, msg kafka.Message) error {
	switch msg.Topic {
	case BankPaymentReceivedTopic:
		return h.handlePaymentReceived(ctx, msg)
	case BankTransferCompletedTopic:
		return h.handleTransferReceipt(ctx, msg, true)
	case BankTransferFailedTopic:
		return h.handleTransferReceipt(ctx, msg, false)
	default:
		h.logger.WarnContext(ctx, "unknown bank event topic", "topic", msg.Topic)
		return nil
	}
}

func (h *BankEventHandler) handlePaymentReceived(ctx context.Context, msg kafka.Message) error {
	var payload struct {
		VANumber            string `json:"va_number"`
		Amount              string `json:"amount"`
		PaymentMode         string `json:"payment_mode"`
		UTRNumber           string `json:"utr_number"`
		SenderAccountNumber string `json:"sender_account_number"`
		SenderIFSCCode      string `json:"sender_ifsc_code"`
		SenderBankName      string `json:"sender_bank_name"`
	}
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.ErrorContext(ctx, "failed to unmarshal bank payment event", "error", err)
		return err
	}
	if payload.VANumber == "" || payload.UTRNumber == "" {
		return nil
	}

	amount, err := decimal.NewFromString(payload.Amount)
	if err != nil {
		h.logger.ErrorContext(ctx, "invalid bank payment amount", "va_number", payload.VANumber, "amount", payload.Amount, "error", err)
		return err
	}
	mode := domain.PaymentMode(payload.PaymentMode)
	if mode == "" {
		mode = domain.PaymentModeOther
	}

	_, err = h.vaCmd.RecordPayment(ctx, application.RecordPaymentCommand{
		VANumber:            payload.VANumber,
		Amount:              amount,
		PaymentMode:         mode,
		UTRNumber:           payload.UTRNumber,
		SenderAccountNumber: payload.SenderAccountNumber,
		SenderIFSCCode:      payload.SenderIFSCCode,
		SenderBankName:      payload.SenderBankName,
	})
	if err != nil {
		if isPermanent(err) {
			// 领域拒绝是终态, 重投不会改变结果
			h.logger.ErrorContext(ctx, "bank payment rejected, dropping",
				"va_number", payload.VANumber, "utr_number", payload.UTRNumber, "error", err)
			return nil
		}
		h.logger.ErrorContext(ctx, "failed to record bank payment",
			"va_number", payload.VANumber, "utr_number", payload.UTRNumber, "error", err)
		return err
	}
	return nil
}

func (h *BankEventHandler) handleTransferReceipt(ctx context.Context, msg kafka.Message, success bool) error {
	var payload struct {
		OrderNo       string `json:"order_no"`
		UTRNumber     string `json:"utr_number"`
		FailureReason string `json:"failure_reason"`
	}
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.ErrorContext(ctx, "failed to unmarshal bank transfer receipt", "error", err)
		return err
	}
	if payload.OrderNo == "" {
		return nil
	}

	var err error
	switch {
	case strings.HasPrefix(payload.OrderNo, "DSB"):
		if success {
			err = h.execution.CompleteDisbursement(ctx, payload.OrderNo, payload.UTRNumber)
		} else {
			err = h.execution.FailDisbursement(ctx, payload.OrderNo, payload.FailureReason)
		}
	case strings.HasPrefix(payload.OrderNo, "RFD"):
		if success {
			err = h.execution.CompleteRefund(ctx, payload.OrderNo, payload.UTRNumber)
		} else {
			err = h.execution.FailRefund(ctx, payload.OrderNo, payload.FailureReason)
		}
	default:
		h.logger.WarnContext(ctx, "unknown transfer order prefix", "order_no", payload.OrderNo)
		return nil
	}
	if err != nil {
		if isPermanent(err) {
			h.logger.ErrorContext(ctx, "transfer receipt rejected, dropping",
				"order_no", payload.OrderNo, "success", success, "error", err)
			return nil
		}
		h.logger.ErrorContext(ctx, "failed to apply transfer receipt",
			"order_no", payload.OrderNo, "success", success, "error", err)
		return err
	}
	return nil
}

func isPermanent(err error) bool {
	switch domain.CodeOf(err) {
	case domain.ErrCodeNotFound, domain.ErrCodeInvalidOperation, domain.ErrCodeAmountMismatch:
		return true
	default:
		return false
	}
}

package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/wyfcoding/escrowsettlement/internal/escrow/application"
	"github.com/wyfcoding/escrowsettlement/internal/escrow/domain"
)

// EscrowProjectionHandler 消费本模块事件并刷新读模型。
type EscrowProjectionHandler struct {
	projector *application.EscrowProjectionService
	logger    *slog.Logger
}

func NewEscrowProjectionHandler(projector *application.EscrowProjectionService, logger *slog.Logger) *EscrowProjectionHandler {
	return &EscrowProjectionHandler{projector: projector, logger: logger}
}

func (h *EscrowProjectionHandler) Handle(ctx context.Context, msg kafka.Message) error {
	// 账户事件带 account_no, 流水与单据事件带 escrow_account_no, 其余字段各取所需
	var payload struct {
		AccountNo       string `json:"account_no"`
		EscrowAccountNo string `json:"escrow_account_no"`
		DealID          string `json:"deal_id"`
	}

	switch msg.Topic {
	case domain.EscrowAccountCreatedEventType,
		domain.EscrowAccountActivatedEventType,
		domain.EscrowAccountSuspendedEventType,
		domain.EscrowAccountResumedEventType,
		domain.EscrowAccountClosedEventType:
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			h.logger.ErrorContext(ctx, "failed to unmarshal escrow account event", "error", err)
			return err
		}
		if payload.AccountNo == "" {
			return nil
		}
		if err := h.projector.RefreshAccount(ctx, payload.AccountNo); err != nil {
			return err
		}
		return h.projector.InvalidateSummary(ctx, payload.DealID)

	case domain.PaymentVerifiedEventType,
		domain.DisbursementCompletedEventType,
		domain.DisbursementFailedEventType,
		domain.RefundCompletedEventType,
		domain.RefundFailedEventType:
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			h.logger.ErrorContext(ctx, "failed to unmarshal escrow balance event", "error", err)
			return err
		}
		if payload.EscrowAccountNo != "" {
			if err := h.projector.RefreshAccount(ctx, payload.EscrowAccountNo); err != nil {
				return err
			}
		}
		return h.projector.InvalidateSummary(ctx, payload.DealID)

	case domain.VirtualAccountCreatedEventType,
		domain.PaymentRecordedEventType:
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			h.logger.ErrorContext(ctx, "failed to unmarshal virtual account event", "error", err)
			return err
		}
		return h.projector.InvalidateSummary(ctx, payload.DealID)

	case domain.VirtualAccountsExpiredEventType:
		// 批量清扫不带交易维度, 残留汇总由 TTL 过期
		return nil

	default:
		h.logger.WarnContext(ctx, "unknown escrow event topic", "topic", msg.Topic)
		return nil
	}
}

package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNewPaymentTransactionAmountMatched(t *testing.T) {
	va := newTestVA(500000)

	matched := NewPaymentTransaction(va, decimal.NewFromInt(500000), PaymentModeNEFT, "UTR1", "60200", "SBIN0000456", "SBI")
	assert.True(t, matched.IsAmountMatched)
	assert.Equal(t, PaymentStatusReceived, matched.Status)
	assert.Contains(t, matched.TransactionNo, "PAY")
	assert.Equal(t, va.VANumber, matched.VANumber)
	assert.Equal(t, va.DealID, matched.DealID)

	mismatched := NewPaymentTransaction(va, decimal.NewFromInt(499999), PaymentModeNEFT, "UTR2", "60200", "SBIN0000456", "SBI")
	assert.False(t, mismatched.IsAmountMatched)
}

func TestPaymentMarkVerified(t *testing.T) {
	va := newTestVA(1000)
	p := NewPaymentTransaction(va, decimal.NewFromInt(1000), PaymentModeUPI, "UTR1", "", "", "")

	assert.NoError(t, p.MarkVerified("ops-1"))
	assert.Equal(t, PaymentStatusVerified, p.Status)
	assert.Equal(t, "ops-1", p.VerifiedBy)
	assert.NotNil(t, p.VerifiedAt)

	err := p.MarkVerified("ops-2")
	assert.Equal(t, ErrCodeInvalidOperation, CodeOf(err))
}

func TestPaymentMarkRefunded(t *testing.T) {
	va := newTestVA(1000)

	received := NewPaymentTransaction(va, decimal.NewFromInt(900), PaymentModeUPI, "UTR1", "", "", "")
	assert.NoError(t, received.MarkRefunded("RFD1"))
	assert.Equal(t, PaymentStatusRefunded, received.Status)
	assert.Equal(t, "RFD1", received.RefundReference)
	assert.NotNil(t, received.RefundedAt)

	verified := NewPaymentTransaction(va, decimal.NewFromInt(1000), PaymentModeUPI, "UTR2", "", "", "")
	assert.NoError(t, verified.MarkVerified("ops-1"))
	assert.NoError(t, verified.MarkRefunded("RFD2"))

	err := verified.MarkRefunded("RFD3")
	assert.Equal(t, ErrCodeInvalidOperation, CodeOf(err))
}

func TestDomainErrorCodes(t *testing.T) {
	err := NewNotFound("virtual account %s not found", "VA1")
	assert.Equal(t, ErrCodeNotFound, CodeOf(err))
	assert.True(t, IsCode(err, ErrCodeNotFound))
	assert.Contains(t, err.Error(), "NOT_FOUND")
	assert.Contains(t, err.Error(), "VA1")

	// 包装后错误码仍可提取
	wrapped := fmt.Errorf("record payment: %w", err)
	assert.Equal(t, ErrCodeNotFound, CodeOf(wrapped))

	fetchErr := NewFetchError(errors.New("connection refused"))
	assert.Equal(t, ErrCodeFetchError, CodeOf(fetchErr))
	assert.Contains(t, fetchErr.Error(), "connection refused")

	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))

	mismatch := NewAmountMismatch(decimal.NewFromInt(500000), decimal.NewFromInt(400000))
	assert.Contains(t, mismatch.Message, "500000")
	assert.Contains(t, mismatch.Message, "400000")
}

package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func vaWith(status VAStatus, expected, received int64) *VirtualAccount {
	return &VirtualAccount{
		Status:         status,
		ExpectedAmount: decimal.NewFromInt(expected),
		ReceivedAmount: decimal.NewFromInt(received),
	}
}

func TestBuildDealEscrowSummary(t *testing.T) {
	account := NewEscrowAccount("deal-1", "hdfc", "")
	vas := []*VirtualAccount{
		vaWith(VAStatusVerified, 500000, 500000),
		vaWith(VAStatusVerified, 500000, 1000000),
	}

	s := BuildDealEscrowSummary(account, vas)

	assert.Equal(t, "deal-1", s.DealID)
	assert.True(t, s.TotalExpected.Equal(decimal.NewFromInt(1000000)))
	assert.True(t, s.TotalReceived.Equal(decimal.NewFromInt(1500000)))
	assert.True(t, s.TotalVerified.Equal(decimal.NewFromInt(1500000)))
	assert.True(t, s.TotalTransferred.IsZero())
	assert.True(t, s.TotalRefunded.IsZero())
	assert.Equal(t, 2, s.VACount)
	assert.Equal(t, 2, s.PaidVACount)
}

func TestBuildDealEscrowSummaryMixedStatuses(t *testing.T) {
	account := NewEscrowAccount("deal-2", "hdfc", "")
	vas := []*VirtualAccount{
		vaWith(VAStatusActive, 100000, 0),
		vaWith(VAStatusPaymentReceived, 200000, 200000),
		vaWith(VAStatusVerified, 300000, 300000),
		vaWith(VAStatusTransferred, 400000, 400000),
		vaWith(VAStatusRefunded, 500000, 450000),
		vaWith(VAStatusExpired, 600000, 0),
	}

	s := BuildDealEscrowSummary(account, vas)

	assert.True(t, s.TotalExpected.Equal(decimal.NewFromInt(2100000)))
	assert.True(t, s.TotalReceived.Equal(decimal.NewFromInt(1350000)))
	// verified 口径含 transferred
	assert.True(t, s.TotalVerified.Equal(decimal.NewFromInt(700000)))
	assert.True(t, s.TotalTransferred.Equal(decimal.NewFromInt(400000)))
	assert.True(t, s.TotalRefunded.Equal(decimal.NewFromInt(450000)))
	assert.Equal(t, 6, s.VACount)
	assert.Equal(t, 4, s.PaidVACount)
}

func TestBuildDealEscrowSummaryEmpty(t *testing.T) {
	account := NewEscrowAccount("deal-3", "hdfc", "")

	s := BuildDealEscrowSummary(account, nil)

	assert.True(t, s.TotalExpected.IsZero())
	assert.True(t, s.TotalReceived.IsZero())
	assert.True(t, s.TotalVerified.IsZero())
	assert.Equal(t, 0, s.VACount)
	assert.Equal(t, 0, s.PaidVACount)
}

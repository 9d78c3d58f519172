package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		amount string
		want   int64
	}{
		{"2999.99", 299999},
		{"10.5", 1050},
		{"0.01", 1},
		{"0.005", 1},
		{"1.004", 100},
		{"100", 10000},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, MinorUnits(decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestMajorUnits(t *testing.T) {
	assert.Equal(t, "2999.99", MajorUnits(299999).StringFixed(2))
	assert.Equal(t, "0.05", MajorUnits(5).StringFixed(2))
}

func TestGatewayStatusFromCode(t *testing.T) {
	assert.Equal(t, GatewayStatusAuthorized, GatewayStatusFromCode(1))
	assert.Equal(t, GatewayStatusConfirmed, GatewayStatusFromCode(2))
	assert.Equal(t, GatewayStatusScheduled, GatewayStatusFromCode(20))
	assert.Equal(t, GatewayStatusNotFinished, GatewayStatusFromCode(42))
}

func TestOrder_CalculateTotal(t *testing.T) {
	o := &Order{Items: []OrderItem{
		{Quantity: 2, UnitPrice: decimal.RequireFromString("10.25")},
		{Quantity: 1, UnitPrice: decimal.RequireFromString("0.50")},
	}}
	o.CalculateTotal()
	assert.Equal(t, "21.00", o.Total.StringFixed(2))
}

func TestOrder_IsPayable(t *testing.T) {
	for _, s := range OrderStatuses {
		o := &Order{Status: s}
		want := s == OrderStatusPending || s == OrderStatusPaymentPending
		assert.Equal(t, want, o.IsPayable(), string(s))
	}
}

func TestParseOrderStatus(t *testing.T) {
	s, ok := ParseOrderStatus("payment_pending")
	assert.True(t, ok)
	assert.Equal(t, OrderStatusPaymentPending, s)

	_, ok = ParseOrderStatus("PAID")
	assert.False(t, ok)
}

func TestPayment_BlocksNewAuthorization(t *testing.T) {
	blocking := map[PaymentStatus]bool{
		PaymentStatusPending:    true,
		PaymentStatusAuthorized: true,
		PaymentStatusScheduled:  true,
		PaymentStatusPaid:       true,
	}
	for _, s := range []PaymentStatus{
		PaymentStatusPending, PaymentStatusAuthorized, PaymentStatusPaid, PaymentStatusDenied,
		PaymentStatusVoided, PaymentStatusRefunded, PaymentStatusAborted, PaymentStatusScheduled,
	} {
		p := &Payment{Status: s}
		assert.Equal(t, blocking[s], p.BlocksNewAuthorization(), string(s))
	}
}

func TestCaller_CanAccess(t *testing.T) {
	assert.True(t, Caller{UserID: "u1", Role: RoleCustomer}.CanAccess("u1"))
	assert.False(t, Caller{UserID: "u1", Role: RoleCustomer}.CanAccess("u2"))
	assert.False(t, Caller{Role: RoleSeller}.CanAccess(""))
	assert.True(t, Caller{UserID: "a", Role: RoleAdmin}.CanAccess("u2"))
}

func TestCardBrand_Valid(t *testing.T) {
	assert.True(t, CardBrandHipercard.Valid())
	assert.False(t, CardBrand("visa").Valid())
}

package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusConfirmed},
		{StatusPending, StatusCancelled},
		{StatusConfirmed, StatusPacked},
		{StatusPacked, StatusShipping},
		{StatusShipping, StatusDelivered},
		{StatusDelivered, StatusReturned},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	forbidden := []struct{ from, to Status }{
		{StatusPending, StatusPacked},
		{StatusPending, StatusDelivered},
		{StatusConfirmed, StatusCancelled},
		{StatusConfirmed, StatusPending},
		{StatusCancelled, StatusConfirmed},
		{StatusReturned, StatusDelivered},
		{StatusDelivered, StatusShipping},
		{StatusPending, StatusPending},
	}
	for _, tc := range forbidden {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be rejected", tc.from, tc.to)
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusPacked,
		StatusShipping, StatusDelivered, StatusCancelled, StatusReturned} {
		assert.True(t, ValidStatus(s))
	}
	assert.False(t, ValidStatus("PAID"))
	assert.False(t, ValidStatus(""))
}

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statuses(states ...DeliveryState) []ServiceStatus {
	out := make([]ServiceStatus, len(states))
	for i, s := range states {
		out[i] = ServiceStatus{ServiceName: string(rune('a' + i)), Status: s}
	}
	return out
}

func TestDeriveOverallStatus_Precedence(t *testing.T) {
	tests := []struct {
		name     string
		services []ServiceStatus
		want     DeliveryState
	}{
		{"no consumers", nil, DeliveryDelivered},
		{"all received", statuses(DeliveryReceived, DeliveryReceived, DeliveryReceived), DeliveryDelivered},
		{"all pending", statuses(DeliveryPending, DeliveryPending), DeliveryPartiallyDelivered},
		{"all failed", statuses(DeliveryFailed, DeliveryFailed), DeliveryFailed},
		{"failed and pending", statuses(DeliveryFailed, DeliveryPending), DeliveryPartiallyDelivered},
		{"received and pending", statuses(DeliveryReceived, DeliveryPending), DeliveryPartiallyDelivered},
		{"received and failed", statuses(DeliveryReceived, DeliveryFailed), DeliveryPartiallyDelivered},
		{"mixed", statuses(DeliveryReceived, DeliveryFailed, DeliveryPending), DeliveryPartiallyDelivered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveOverallStatus(tt.services))
		})
	}
}

func newTestDeliveryStatus() *DeliveryStatus {
	log := &TransactionLog{TenantID: "T1", StoreCode: "S1", TerminalNo: 1, TransactionNo: 7, BusinessDate: "20240501"}
	return NewDeliveryStatus("ev-1", log, []byte(`{}`), []string{"report", "journal", "stock"}, time.Now())
}

func TestNewDeliveryStatus_StartsPending(t *testing.T) {
	ds := newTestDeliveryStatus()

	require.Len(t, ds.Services, 3)
	for _, s := range ds.Services {
		assert.Equal(t, DeliveryPending, s.Status)
	}
	assert.Equal(t, DeliveryPartiallyDelivered, ds.OverallStatus)
	assert.Equal(t, 7, ds.TransactionNo)
}

func TestAcknowledge_UpdatesOnlyOwnEntry(t *testing.T) {
	ds := newTestDeliveryStatus()
	at := time.Now()

	require.NoError(t, ds.Acknowledge("journal", DeliveryReceived, "", at))

	assert.Equal(t, DeliveryPending, ds.Services[0].Status)
	assert.Equal(t, DeliveryReceived, ds.Services[1].Status)
	require.NotNil(t, ds.Services[1].ReceivedAt)
	assert.Equal(t, DeliveryPending, ds.Services[2].Status)
	assert.Equal(t, DeliveryPartiallyDelivered, ds.OverallStatus)

	require.NoError(t, ds.Acknowledge("report", DeliveryReceived, "", at))
	require.NoError(t, ds.Acknowledge("stock", DeliveryReceived, "", at))
	assert.Equal(t, DeliveryDelivered, ds.OverallStatus)
}

func TestAcknowledge_AllFailed(t *testing.T) {
	ds := newTestDeliveryStatus()
	for _, s := range []string{"report", "journal", "stock"} {
		require.NoError(t, ds.Acknowledge(s, DeliveryFailed, "db down", time.Now()))
	}
	assert.Equal(t, DeliveryFailed, ds.OverallStatus)
}

func TestAcknowledge_UnknownService(t *testing.T) {
	ds := newTestDeliveryStatus()
	err := ds.Acknowledge("loyalty", DeliveryReceived, "", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAcknowledge_RejectsNonTerminalStatus(t *testing.T) {
	ds := newTestDeliveryStatus()
	err := ds.Acknowledge("report", DeliveryPending, "", time.Now())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParseAckState(t *testing.T) {
	s, err := ParseAckState("received")
	require.NoError(t, err)
	assert.Equal(t, DeliveryReceived, s)

	_, err = ParseAckState("delivered")
	assert.ErrorIs(t, err, ErrValidation)
}

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckEvent_AllowListIsExact(t *testing.T) {
	allowed := map[CartState][]CartEvent{
		StateInitial: {EventCreate, EventGet},
		StateIdle:    {EventAddItem, EventGet, EventCancelTransaction},
		StateEnteringItem: {
			EventAddItem, EventAddLineDiscount, EventCancelLineItem, EventUpdateQuantity,
			EventUpdateUnitPrice, EventSubtotal, EventGet, EventCancelTransaction,
		},
		StatePaying: {
			EventAddCartDiscount, EventAddPayment, EventBill, EventGet,
			EventCancelTransaction, EventResumeItemEntry,
		},
		StateCompleted: {EventGet},
		StateCancelled: {EventGet},
	}
	require.Len(t, allowed, len(AllCartStates()))

	for _, state := range AllCartStates() {
		for _, event := range AllCartEvents() {
			err := CheckEvent(state, event)
			if contains(allowed[state], event) {
				assert.NoError(t, err, "%s in %s", event, state)
			} else {
				assert.ErrorIs(t, err, ErrInvalidStateTransition, "%s in %s", event, state)
			}
		}
	}
}

func contains(events []CartEvent, e CartEvent) bool {
	for _, ev := range events {
		if ev == e {
			return true
		}
	}
	return false
}

func TestCheckEvent_UnknownValues(t *testing.T) {
	assert.ErrorIs(t, CheckEvent(CartState(99), EventGet), ErrInvalidStateTransition)
	assert.ErrorIs(t, CheckEvent(StateIdle, CartEvent(-1)), ErrInvalidStateTransition)
}

func TestNextState(t *testing.T) {
	tests := []struct {
		from  CartState
		event CartEvent
		want  CartState
	}{
		{StateInitial, EventCreate, StateIdle},
		{StateIdle, EventAddItem, StateEnteringItem},
		{StateEnteringItem, EventAddItem, StateEnteringItem},
		{StateEnteringItem, EventCancelLineItem, StateEnteringItem},
		{StateEnteringItem, EventSubtotal, StatePaying},
		{StatePaying, EventAddPayment, StatePaying},
		{StatePaying, EventResumeItemEntry, StateEnteringItem},
		{StatePaying, EventBill, StateCompleted},
		{StateIdle, EventCancelTransaction, StateCancelled},
		{StatePaying, EventCancelTransaction, StateCancelled},
		{StateCompleted, EventGet, StateCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"/"+tt.event.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, NextState(tt.from, tt.event))
		})
	}
}

func TestCartState_TextRoundTrip(t *testing.T) {
	for _, s := range AllCartStates() {
		b, err := s.MarshalText()
		require.NoError(t, err)

		var got CartState
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, s, got)
	}

	var s CartState
	assert.Error(t, s.UnmarshalText([]byte("shipping")))
}

func TestCartState_IsTerminal(t *testing.T) {
	assert.True(t, StateCompleted.IsTerminal())
	assert.True(t, StateCancelled.IsTerminal())
	assert.False(t, StatePaying.IsTerminal())
}

package domain

import "fmt"

type CartState int

const (
	StateInitial CartState = iota
	StateIdle
	StateEnteringItem
	StatePaying
	StateCompleted
	StateCancelled

	numCartStates
)

var cartStateNames = [numCartStates]string{
	StateInitial:      "initial",
	StateIdle:         "idle",
	StateEnteringItem: "entering_item",
	StatePaying:       "paying",
	StateCompleted:    "completed",
	StateCancelled:    "cancelled",
}

func (s CartState) IsTerminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// String representation (for logging and storage)
func (s CartState) String() string {
	if s < 0 || s >= numCartStates {
		return fmt.Sprintf("cart_state(%d)", int(s))
	}
	return cartStateNames[s]
}

func ParseCartState(v string) (CartState, error) {
	for i, name := range cartStateNames {
		if name == v {
			return CartState(i), nil
		}
	}
	return 0, fmt.Errorf("unknown cart state %q", v)
}

func (s CartState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *CartState) UnmarshalText(b []byte) error {
	parsed, err := ParseCartState(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type CartEvent int

const (
	EventCreate CartEvent = iota
	EventGet
	EventAddItem
	EventAddLineDiscount
	EventCancelLineItem
	EventUpdateQuantity
	EventUpdateUnitPrice
	EventSubtotal
	EventAddCartDiscount
	EventAddPayment
	EventBill
	EventCancelTransaction
	EventResumeItemEntry

	numCartEvents
)

var cartEventNames = [numCartEvents]string{
	EventCreate:            "create",
	EventGet:               "get",
	EventAddItem:           "add-item",
	EventAddLineDiscount:   "add-line-discount",
	EventCancelLineItem:    "cancel-line-item",
	EventUpdateQuantity:    "update-quantity",
	EventUpdateUnitPrice:   "update-unit-price",
	EventSubtotal:          "subtotal",
	EventAddCartDiscount:   "add-cart-discount",
	EventAddPayment:        "add-payment",
	EventBill:              "bill",
	EventCancelTransaction: "cancel-transaction",
	EventResumeItemEntry:   "resume-item-entry",
}

func (e CartEvent) String() string {
	if e < 0 || e >= numCartEvents {
		return fmt.Sprintf("cart_event(%d)", int(e))
	}
	return cartEventNames[e]
}

type eventSet uint32

func events(evs ...CartEvent) eventSet {
	var s eventSet
	for _, e := range evs {
		s |= 1 << uint(e)
	}
	return s
}

func (s eventSet) has(e CartEvent) bool {
	return e >= 0 && e < numCartEvents && s&(1<<uint(e)) != 0
}

// allowedEvents is indexed by state; adding a state without a row
// fails to compile because the array length is numCartStates.
var allowedEvents = [numCartStates]eventSet{
	StateInitial: events(EventCreate, EventGet),
	StateIdle:    events(EventAddItem, EventGet, EventCancelTransaction),
	StateEnteringItem: events(
		EventAddItem,
		EventAddLineDiscount,
		EventCancelLineItem,
		EventUpdateQuantity,
		EventUpdateUnitPrice,
		EventSubtotal,
		EventGet,
		EventCancelTransaction,
	),
	StatePaying: events(
		EventAddCartDiscount,
		EventAddPayment,
		EventBill,
		EventGet,
		EventCancelTransaction,
		EventResumeItemEntry,
	),
	StateCompleted: events(EventGet),
	StateCancelled: events(EventGet),
}

// CheckEvent reports whether event may be applied to a cart in state.
// It has no side effects.
func CheckEvent(state CartState, event CartEvent) error {
	if state < 0 || state >= numCartStates || !allowedEvents[state].has(event) {
		return fmt.Errorf("%w: %s in state %s", ErrInvalidStateTransition, event, state)
	}
	return nil
}

// NextState returns the state a cart moves to after an allowed event.
// Events that do not change the state return the input state.
func NextState(state CartState, event CartEvent) CartState {
	switch event {
	case EventCreate:
		return StateIdle
	case EventAddItem:
		if state == StateIdle {
			return StateEnteringItem
		}
	case EventSubtotal:
		return StatePaying
	case EventResumeItemEntry:
		return StateEnteringItem
	case EventBill:
		return StateCompleted
	case EventCancelTransaction:
		return StateCancelled
	}
	return state
}

// AllCartStates lists every state in declaration order.
func AllCartStates() []CartState {
	out := make([]CartState, 0, numCartStates)
	for s := CartState(0); s < numCartStates; s++ {
		out = append(out, s)
	}
	return out
}

// AllCartEvents lists every event in declaration order.
func AllCartEvents() []CartEvent {
	out := make([]CartEvent, 0, numCartEvents)
	for e := CartEvent(0); e < numCartEvents; e++ {
		out = append(out, e)
	}
	return out
}

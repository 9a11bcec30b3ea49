package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// State is the lifecycle state of an order. Transitions are monotonic and
// enforced exclusively by the store's compare-and-transition primitive.
type State uint8

const (
	StatePending State = iota + 1
	StateTriggered
	StateSubmitted
	StateFilled
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateTriggered:
		return "TRIGGERED"
	case StateSubmitted:
		return "SUBMITTED"
	case StateFilled:
		return "FILLED"
	case StateFailed:
		return "FAILED"
	case StateCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition is possible from s.
func (s State) Terminal() bool {
	return s == StateFilled || s == StateFailed || s == StateCancelled
}

// Trigger is the direction of the price comparison for an order.
type Trigger uint8

const (
	// TriggerBelow executes when the observed price is <= target (buy-style).
	TriggerBelow Trigger = iota + 1
	// TriggerAbove executes when the observed price is >= target (sell-style).
	TriggerAbove
)

func (t Trigger) String() string {
	switch t {
	case TriggerBelow:
		return "below"
	case TriggerAbove:
		return "above"
	default:
		return "unknown"
	}
}

// ParseTrigger parses a trigger direction. The empty string defaults to
// TriggerBelow.
func ParseTrigger(s string) (Trigger, error) {
	switch s {
	case "", "below":
		return TriggerBelow, nil
	case "above":
		return TriggerAbove, nil
	default:
		return 0, fmt.Errorf("%w: unknown trigger direction %q", ErrValidation, s)
	}
}

// MaxSlippageBps is the upper bound for an order's slippage tolerance.
const MaxSlippageBps = 10000

// Order is the central entity. The store owns all Order records; every other
// component works with copies handed out by the store API.
//
// EncryptedKey is opaque to everything except the secure codec. The decrypted
// key never lands on an Order.
type Order struct {
	ID            string
	InputMint     string
	OutputMint    string
	TargetPrice   decimal.Decimal
	Trigger       Trigger
	Amount        uint64 // smallest unit of InputMint
	SlippageBps   uint16
	TipLamports   uint64 // 0 = no tip
	EncryptedKey  string // base64(nonce || ciphertext || tag)
	State         State
	CreatedAt     time.Time
	ResolvedAt    time.Time
	FailureReason string
}

// Active reports whether the order is still cancellable / executable.
func (o *Order) Active() bool {
	return o.State == StatePending || o.State == StateTriggered
}

// Satisfied reports whether price meets the order's trigger condition.
func (o *Order) Satisfied(price decimal.Decimal) bool {
	if o.Trigger == TriggerAbove {
		return price.GreaterThanOrEqual(o.TargetPrice)
	}
	return price.LessThanOrEqual(o.TargetPrice)
}

package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"spendlog/internal/core"
)

// Event types carried in the envelope.
const (
	TypeExpenseEvent = "expense"
	TypeBudgetAlert  = "budget_alert"
)

// Expense actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// ExpenseEvent is published after every successful expense write. Deleted
// events carry only the id and owner.
type ExpenseEvent struct {
	Action    string       `json:"action"`
	OwnerID   int64        `json:"owner_id"`
	Expense   core.Expense `json:"expense"`
	Timestamp time.Time    `json:"timestamp"`
}

// BudgetAlertEvent is published when a write leaves the current month at or
// above the warning threshold.
type BudgetAlertEvent struct {
	OwnerID          int64           `json:"owner_id"`
	Year             int             `json:"year"`
	Month            int             `json:"month"`
	Alert            core.AlertLevel `json:"alert"`
	BudgetPercentage float64         `json:"budget_percentage"`
	TotalExpenses    core.Money      `json:"total_expenses"`
	MonthlyBudget    core.Money      `json:"monthly_budget"`
	Currency         string          `json:"currency"`
	Timestamp        time.Time       `json:"timestamp"`
}

func NewBudgetAlertEvent(ownerID int64, s core.DashboardSummary) BudgetAlertEvent {
	return BudgetAlertEvent{
		OwnerID:          ownerID,
		Year:             s.Year,
		Month:            s.Month,
		Alert:            s.Alert,
		BudgetPercentage: s.BudgetPercentage,
		TotalExpenses:    s.TotalExpenses,
		MonthlyBudget:    s.MonthlyBudget,
		Currency:         s.Currency,
		Timestamp:        time.Now().UTC(),
	}
}

// envelope is the wire format on the queue.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func encode(eventType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: eventType, Payload: raw})
}

// decoded holds exactly one of the event kinds.
type decoded struct {
	Expense *ExpenseEvent
	Alert   *BudgetAlertEvent
}

func decode(body []byte) (decoded, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return decoded{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	switch env.Type {
	case TypeExpenseEvent:
		var e ExpenseEvent
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return decoded{}, fmt.Errorf("unmarshal expense event: %w", err)
		}
		return decoded{Expense: &e}, nil
	case TypeBudgetAlert:
		var a BudgetAlertEvent
		if err := json.Unmarshal(env.Payload, &a); err != nil {
			return decoded{}, fmt.Errorf("unmarshal budget alert: %w", err)
		}
		return decoded{Alert: &a}, nil
	default:
		return decoded{}, fmt.Errorf("unknown event type %q", env.Type)
	}
}

package amqp

import (
	"time"

	"github.com/goccy/go-json"

	"goalplanner/internal/core"
)

// GoalEventMessage is the JSON body published for every reconciled goal mutation.
// Amounts are decimal strings so no precision is lost in transit.
type GoalEventMessage struct {
	Event        string    `json:"event"`
	GoalID       string    `json:"goalId"`
	Name         string    `json:"name"`
	Category     string    `json:"category"`
	TargetAmount string    `json:"targetAmount"`
	SavedAmount  string    `json:"savedAmount"`
	Amount       string    `json:"amount,omitempty"`
	Deadline     string    `json:"deadline,omitempty"`
	Progress     int       `json:"progress"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// NewGoalEventMessage builds the message for ev.
func NewGoalEventMessage(ev core.GoalEvent) *GoalEventMessage {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	msg := &GoalEventMessage{
		Event:        string(ev.Kind),
		GoalID:       ev.Goal.ID,
		Name:         ev.Goal.Name,
		Category:     ev.Goal.Category,
		TargetAmount: ev.Goal.TargetAmount.String(),
		SavedAmount:  ev.Goal.SavedAmount.String(),
		Deadline:     ev.Goal.Deadline.String(),
		Progress:     core.ProgressPercentage(ev.Goal),
		OccurredAt:   at.UTC(),
	}
	if ev.Kind == core.EventDeposit {
		msg.Amount = ev.Amount.String()
	}
	return msg
}

func (m *GoalEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func GoalEventMessageFromJSON(data []byte) (*GoalEventMessage, error) {
	var msg GoalEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

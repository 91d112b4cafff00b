package amqp

import (
	"encoding/json"
	"time"

	"tally/internal/core"
)

type EventType string

const (
	EventRecordArchived EventType = "record_archived"
	EventRecordRemoved  EventType = "record_removed"
	EventPeriodClosed   EventType = "period_closed"
)

// RecordPayload is the wire form of a ledger record. Dates travel as
// ISO 8601 and amounts as decimal strings so consumers in any language can
// parse them without precision loss.
type RecordPayload struct {
	Date          string   `json:"date"`
	Description   string   `json:"description"`
	Payer         string   `json:"payer"`
	Beneficiaries []string `json:"beneficiaries"`
	Amount        string   `json:"amount"`
}

func newRecordPayload(r core.Record) *RecordPayload {
	return &RecordPayload{
		Date:          r.Date.Format("2006-01-02"),
		Description:   r.Description,
		Payer:         r.Payer,
		Beneficiaries: r.Beneficiaries,
		Amount:        r.Amount.String(),
	}
}

// Event is one ledger mutation, published after the spreadsheet write
// succeeded. The archive worker consumes these to maintain the local copy.
type Event struct {
	Type         EventType      `json:"type"`
	Period       string         `json:"period"`
	Row          int            `json:"row,omitempty"`
	Record       *RecordPayload `json:"record,omitempty"`
	OpenedPeriod string         `json:"opened_period,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// NewRecordArchived builds the event for a record appended at row of period.
func NewRecordArchived(period string, row int, r core.Record) *Event {
	return &Event{
		Type:      EventRecordArchived,
		Period:    period,
		Row:       row,
		Record:    newRecordPayload(r),
		Timestamp: time.Now(),
	}
}

// NewRecordRemoved builds the event for an undone insertion.
func NewRecordRemoved(period string, row int) *Event {
	return &Event{
		Type:      EventRecordRemoved,
		Period:    period,
		Row:       row,
		Timestamp: time.Now(),
	}
}

// NewPeriodClosed builds the event for a completed rollover.
func NewPeriodClosed(closed, opened string) *Event {
	return &Event{
		Type:         EventPeriodClosed,
		Period:       closed,
		OpenedPeriod: opened,
		Timestamp:    time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON creates an event from JSON bytes
func EventFromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

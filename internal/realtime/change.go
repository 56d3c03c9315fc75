package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

type Event string

const (
	EventInsert Event = "INSERT"
	EventUpdate Event = "UPDATE"
	EventDelete Event = "DELETE"
	// EventAll only appears in filters.
	EventAll Event = "*"
)

const (
	TableRoomMessages  = "room_messages"
	TableMessages      = "messages"
	TableConversations = "conversations"
)

// Change describes one row-level write. New is empty for deletes and Old
// is empty for inserts.
type Change struct {
	Table string          `json:"table"`
	Event Event           `json:"event"`
	Old   json.RawMessage `json:"old,omitempty"`
	New   json.RawMessage `json:"new,omitempty"`
	At    time.Time       `json:"at"`
}

// NewChange marshals the before and after images of a row. Either may be
// nil.
func NewChange(table string, event Event, before, after any) (Change, error) {
	c := Change{Table: table, Event: event, At: time.Now().UTC()}
	var err error
	if before != nil {
		if c.Old, err = json.Marshal(before); err != nil {
			return Change{}, fmt.Errorf("failed to encode old row: %w", err)
		}
	}
	if after != nil {
		if c.New, err = json.Marshal(after); err != nil {
			return Change{}, fmt.Errorf("failed to encode new row: %w", err)
		}
	}
	return c, nil
}

// Decode unmarshals the row image relevant to the event into v.
func (c Change) Decode(v any) error {
	row := c.New
	if c.Event == EventDelete {
		row = c.Old
	}
	if len(row) == 0 {
		return fmt.Errorf("change on %s has no row image", c.Table)
	}
	return json.Unmarshal(row, v)
}

// Filter selects changes by table, event and an optional column equality,
// e.g. {Table: "messages", Event: EventAll, Column: "conversation_id", Value: id}.
type Filter struct {
	Table  string
	Event  Event
	Column string
	Value  string
}

func (f Filter) String() string {
	s := fmt.Sprintf("%s:%s", f.Table, f.Event)
	if f.Column != "" {
		s += fmt.Sprintf(":%s=eq.%s", f.Column, f.Value)
	}
	return s
}

func (f Filter) Matches(c Change) bool {
	if f.Table != c.Table {
		return false
	}
	if f.Event != EventAll && f.Event != c.Event {
		return false
	}
	if f.Column == "" {
		return true
	}

	var row map[string]any
	if err := c.Decode(&row); err != nil {
		return false
	}
	v, ok := row[f.Column]
	if !ok || v == nil {
		return false
	}
	return fmt.Sprint(v) == f.Value
}

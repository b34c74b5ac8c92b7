package filter

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"kanban/internal/model"
)

// DateOp names a date predicate over an item's due date.
type DateOp string

const (
	DueOn      DateOp = "due_on"
	DueBetween DateOp = "due_between"
	DueAfter   DateOp = "due_after"
	DueBefore  DateOp = "due_before"
	IsNull     DateOp = "is_null"
	IsNotNull  DateOp = "is_not_null"
	Overdue    DateOp = "overdue"
)

// DatePredicate is the structured value of a date filter. On is used by
// due_on, due_after and due_before; Start and End bound due_between
// inclusively.
type DatePredicate struct {
	Op    DateOp
	On    model.Date
	Start model.Date
	End   model.Date
}

type dateRange struct {
	Start model.Date `json:"start"`
	End   model.Date `json:"end"`
}

// ParseDatePredicate reads a single-key JSON object such as
// {"due_before":"2024-07-01"} or {"overdue":true}. A JSON string holding
// such an object is accepted too.
func ParseDatePredicate(raw []byte) (DatePredicate, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		var nested string
		if json.Unmarshal(raw, &nested) != nil || json.Unmarshal([]byte(nested), &fields) != nil {
			return DatePredicate{}, errors.New("date filter must be a JSON object")
		}
	}
	if len(fields) != 1 {
		return DatePredicate{}, fmt.Errorf("date filter needs exactly one predicate, got %d", len(fields))
	}

	for key, value := range fields {
		op := DateOp(key)
		switch op {
		case DueOn, DueAfter, DueBefore:
			var d model.Date
			if err := json.Unmarshal(value, &d); err != nil || d.IsZero() {
				return DatePredicate{}, fmt.Errorf("%s needs a YYYY-MM-DD date", op)
			}
			return DatePredicate{Op: op, On: d}, nil
		case DueBetween:
			var r dateRange
			if err := json.Unmarshal(value, &r); err != nil || r.Start.IsZero() || r.End.IsZero() {
				return DatePredicate{}, fmt.Errorf("%s needs start and end dates", op)
			}
			return DatePredicate{Op: op, Start: r.Start, End: r.End}, nil
		case IsNull, IsNotNull, Overdue:
			var flag bool
			if err := json.Unmarshal(value, &flag); err != nil || !flag {
				return DatePredicate{}, fmt.Errorf("%s must be true", op)
			}
			return DatePredicate{Op: op}, nil
		default:
			return DatePredicate{}, fmt.Errorf("unknown date predicate %q", key)
		}
	}
	return DatePredicate{}, errors.New("empty date filter")
}

func (p DatePredicate) MarshalJSON() ([]byte, error) {
	switch p.Op {
	case DueOn, DueAfter, DueBefore:
		return json.Marshal(map[DateOp]model.Date{p.Op: p.On})
	case DueBetween:
		return json.Marshal(map[DateOp]dateRange{p.Op: {Start: p.Start, End: p.End}})
	case IsNull, IsNotNull, Overdue:
		return json.Marshal(map[DateOp]bool{p.Op: true})
	}
	return nil, fmt.Errorf("unknown date predicate %q", p.Op)
}

// Match evaluates the predicate against the item's due date. Items without
// a due date only match is_null.
func (p DatePredicate) Match(item *model.Item, today model.Date) bool {
	due := item.DueDate
	switch p.Op {
	case IsNull:
		return due.IsZero()
	case IsNotNull:
		return !due.IsZero()
	}
	if due.IsZero() {
		return false
	}
	switch p.Op {
	case DueOn:
		return due.Equal(p.On)
	case DueBetween:
		return !due.Before(p.Start) && !due.After(p.End)
	case DueAfter:
		return due.After(p.On)
	case DueBefore:
		return due.Before(p.On)
	case Overdue:
		return due.Before(today) && !item.Status.Closed()
	}
	return true
}

func (p DatePredicate) scope(db *gorm.DB, today model.Date) *gorm.DB {
	switch p.Op {
	case IsNull:
		return db.Where("items.due_date IS NULL")
	case IsNotNull:
		return db.Where("items.due_date IS NOT NULL")
	case DueOn:
		return db.Where("items.due_date = ?", p.On.String())
	case DueBetween:
		return db.Where("items.due_date >= ? AND items.due_date <= ?", p.Start.String(), p.End.String())
	case DueAfter:
		return db.Where("items.due_date > ?", p.On.String())
	case DueBefore:
		return db.Where("items.due_date < ?", p.On.String())
	case Overdue:
		return db.Where("items.due_date < ? AND items.status NOT IN ?", today.String(),
			[]string{string(model.StatusDone), string(model.StatusArchived)})
	}
	return db
}

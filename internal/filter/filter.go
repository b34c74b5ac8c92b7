// Package filter evaluates a section's declarative filter against items.
//
// A Filter is a tagged variant: Kind selects which one of its fields is
// meaningful. Filters are parsed from the raw type/value pair stored on a
// section, so a malformed value is caught when the filter is built rather
// than when it is applied.
//
// Every filter can be evaluated two ways with identical results: Match runs
// in memory over loaded items, Scope pushes the same predicate into a gorm
// query.
package filter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"kanban/internal/model"
)

// Filter is a parsed section filter.
type Filter struct {
	Kind     model.FilterType
	Status   model.ItemStatus
	Priority model.ItemPriority
	UserID   uint
	TagID    uint
	Date     DatePredicate
}

// None lets every item through.
var None = Filter{Kind: model.FilterNone}

func ByStatus(s model.ItemStatus) Filter     { return Filter{Kind: model.FilterStatus, Status: s} }
func ByPriority(p model.ItemPriority) Filter { return Filter{Kind: model.FilterPriority, Priority: p} }
func ByAssignee(userID uint) Filter          { return Filter{Kind: model.FilterAssignedTo, UserID: userID} }
func ByTag(tagID uint) Filter                { return Filter{Kind: model.FilterTag, TagID: tagID} }
func ByDate(p DatePredicate) Filter          { return Filter{Kind: model.FilterDate, Date: p} }

// Parse builds a Filter from a stored filter type and raw JSON value. An
// empty or null value disables filtering whatever the type.
func Parse(kind model.FilterType, raw []byte) (Filter, error) {
	if kind == "" {
		kind = model.FilterNone
	}
	if !kind.Valid() {
		return None, fmt.Errorf("unknown filter type %q", kind)
	}
	if kind == model.FilterNone || isEmpty(raw) {
		return None, nil
	}

	switch kind {
	case model.FilterStatus:
		s, err := scalarString(raw)
		if err != nil {
			return None, err
		}
		status := model.ItemStatus(s)
		if !status.Valid() {
			return None, fmt.Errorf("unknown status %q", s)
		}
		return ByStatus(status), nil
	case model.FilterPriority:
		s, err := scalarString(raw)
		if err != nil {
			return None, err
		}
		priority := model.ItemPriority(s)
		if !priority.Valid() {
			return None, fmt.Errorf("unknown priority %q", s)
		}
		return ByPriority(priority), nil
	case model.FilterAssignedTo:
		id, err := scalarID(raw)
		if err != nil {
			return None, err
		}
		return ByAssignee(id), nil
	case model.FilterTag:
		id, err := scalarID(raw)
		if err != nil {
			return None, err
		}
		return ByTag(id), nil
	case model.FilterDate:
		p, err := ParseDatePredicate(raw)
		if err != nil {
			return None, err
		}
		return ByDate(p), nil
	}
	return None, nil
}

// FromSection parses the section's stored filter.
func FromSection(s *model.Section) (Filter, error) {
	return Parse(s.FilterType, s.FilterValue)
}

// Match reports whether the item passes the filter. Tag filters need the
// item's tags loaded.
func (f Filter) Match(item *model.Item, today model.Date) bool {
	switch f.Kind {
	case model.FilterStatus:
		return item.Status == f.Status
	case model.FilterPriority:
		return item.Priority == f.Priority
	case model.FilterAssignedTo:
		return item.AssignedTo != nil && *item.AssignedTo == f.UserID
	case model.FilterTag:
		return item.HasTag(f.TagID)
	case model.FilterDate:
		return f.Date.Match(item, today)
	default:
		return true
	}
}

// Scope narrows an items query to the rows Match accepts.
func (f Filter) Scope(today model.Date) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch f.Kind {
		case model.FilterStatus:
			return db.Where("items.status = ?", f.Status)
		case model.FilterPriority:
			return db.Where("items.priority = ?", f.Priority)
		case model.FilterAssignedTo:
			return db.Where("items.assigned_to = ?", f.UserID)
		case model.FilterTag:
			return db.Where("items.id IN (SELECT item_id FROM item_tags WHERE tag_id = ?)", f.TagID)
		case model.FilterDate:
			return f.Date.scope(db, today)
		default:
			return db
		}
	}
}

// Value renders the filter argument in its stored JSON form.
func (f Filter) Value() ([]byte, error) {
	switch f.Kind {
	case model.FilterStatus:
		return json.Marshal(f.Status)
	case model.FilterPriority:
		return json.Marshal(f.Priority)
	case model.FilterAssignedTo:
		return json.Marshal(f.UserID)
	case model.FilterTag:
		return json.Marshal(f.TagID)
	case model.FilterDate:
		return json.Marshal(f.Date)
	default:
		return nil, nil
	}
}

func isEmpty(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte(`""`))
}

func scalarString(raw []byte) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", errors.New("filter value must be a string")
	}
	return s, nil
}

// scalarID accepts a positive id either as a JSON number or a numeric string.
func scalarID(raw []byte) (uint, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, errors.New("filter value must be an id")
	}
	var n json.Number
	switch t := v.(type) {
	case json.Number:
		n = t
	case string:
		n = json.Number(t)
	default:
		return 0, errors.New("filter value must be an id")
	}
	id, err := strconv.ParseUint(n.String(), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", n.String())
	}
	return uint(id), nil
}

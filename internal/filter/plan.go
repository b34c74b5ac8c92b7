package filter

import (
	"sort"

	"gorm.io/gorm"

	"kanban/internal/model"
)

// Query holds ad-hoc list filters layered over a section's own filter.
// Zero fields are ignored.
type Query struct {
	Status     model.ItemStatus
	Priority   model.ItemPriority
	AssignedTo uint
	Unassigned bool
	// TagIDs keeps items carrying every listed tag.
	TagIDs []uint
}

func (q Query) match(item *model.Item) bool {
	if q.Status != "" && item.Status != q.Status {
		return false
	}
	if q.Priority != "" && item.Priority != q.Priority {
		return false
	}
	switch {
	case q.Unassigned:
		if item.AssignedTo != nil {
			return false
		}
	case q.AssignedTo != 0:
		if item.AssignedTo == nil || *item.AssignedTo != q.AssignedTo {
			return false
		}
	}
	for _, id := range uniqueIDs(q.TagIDs) {
		if !item.HasTag(id) {
			return false
		}
	}
	return true
}

func (q Query) scope(db *gorm.DB) *gorm.DB {
	if q.Status != "" {
		db = db.Where("items.status = ?", q.Status)
	}
	if q.Priority != "" {
		db = db.Where("items.priority = ?", q.Priority)
	}
	switch {
	case q.Unassigned:
		db = db.Where("items.assigned_to IS NULL")
	case q.AssignedTo != 0:
		db = db.Where("items.assigned_to = ?", q.AssignedTo)
	}
	if tags := uniqueIDs(q.TagIDs); len(tags) > 0 {
		db = db.Where(`items.id IN (
			SELECT item_id FROM item_tags WHERE tag_id IN ?
			GROUP BY item_id HAVING COUNT(DISTINCT tag_id) = ?)`, tags, len(tags))
	}
	return db
}

// Plan is the full selection of a section's visible items: its filter, an
// optional ad-hoc query and the item limit. Limiting runs last, after
// filtering and ordering, so it keeps the lowest-position matches.
type Plan struct {
	Filter Filter
	Query  Query
	Limit  int
}

// ForSection builds the plan of a section. The returned error reports a
// stored filter that could not be parsed; the plan is still usable and
// applies no section filter in that case.
func ForSection(s *model.Section, q Query) (Plan, error) {
	p := Plan{Query: q}
	if s.ItemLimit != nil && *s.ItemLimit > 0 {
		p.Limit = *s.ItemLimit
	}
	f, err := FromSection(s)
	if err != nil {
		p.Filter = None
		return p, err
	}
	p.Filter = f
	return p, nil
}

// Apply filters, orders and limits items in memory. The input is left
// untouched.
func (p Plan) Apply(items []model.Item, today model.Date) []model.Item {
	out := make([]model.Item, 0, len(items))
	for i := range items {
		if p.Filter.Match(&items[i], today) && p.Query.match(&items[i]) {
			out = append(out, items[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	if p.Limit > 0 && len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out
}

// Scope applies the same selection as Apply to an items query.
func (p Plan) Scope(today model.Date) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = p.Filter.Scope(today)(db)
		db = p.Query.scope(db)
		db = db.Order("items.position ASC").Order("items.id ASC")
		if p.Limit > 0 {
			db = db.Limit(p.Limit)
		}
		return db
	}
}

func uniqueIDs(ids []uint) []uint {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

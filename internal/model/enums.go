package model

// Role is a user's role inside a project.
type Role string

const (
	RoleNone   Role = ""
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleMember Role = "member"
)

// Valid reports whether r is one of the stored membership roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleEditor, RoleMember:
		return true
	}
	return false
}

// Assignable reports whether r may be granted through member management.
// The owner role only comes from project creation or ownership transfer.
func (r Role) Assignable() bool {
	return r.Valid() && r != RoleOwner
}

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectArchived  ProjectStatus = "archived"
	ProjectOnHold    ProjectStatus = "on_hold"
	ProjectCompleted ProjectStatus = "completed"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectActive, ProjectArchived, ProjectOnHold, ProjectCompleted:
		return true
	}
	return false
}

// ItemStatus is the workflow state of an item.
type ItemStatus string

const (
	StatusTodo       ItemStatus = "todo"
	StatusInProgress ItemStatus = "in_progress"
	StatusDone       ItemStatus = "done"
	StatusBlocked    ItemStatus = "blocked"
	StatusArchived   ItemStatus = "archived"
)

func (s ItemStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone, StatusBlocked, StatusArchived:
		return true
	}
	return false
}

// Closed reports whether the item no longer counts as open work.
func (s ItemStatus) Closed() bool {
	return s == StatusDone || s == StatusArchived
}

// ItemPriority ranks items.
type ItemPriority string

const (
	PriorityLow    ItemPriority = "low"
	PriorityMedium ItemPriority = "medium"
	PriorityHigh   ItemPriority = "high"
	PriorityUrgent ItemPriority = "urgent"
)

func (p ItemPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// FilterType selects how a section picks its items.
type FilterType string

const (
	FilterNone       FilterType = "none"
	FilterStatus     FilterType = "status"
	FilterTag        FilterType = "tag"
	FilterDate       FilterType = "date"
	FilterPriority   FilterType = "priority"
	FilterAssignedTo FilterType = "assigned_to"
)

func (f FilterType) Valid() bool {
	switch f {
	case FilterNone, FilterStatus, FilterTag, FilterDate, FilterPriority, FilterAssignedTo:
		return true
	}
	return false
}

package model

import "time"

// Project is a board owned by one user and shared with members.
//
// OwnerID mirrors the membership row holding RoleOwner. Both are written in
// the same transaction and must never disagree between operations.
type Project struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	Name        string        `gorm:"not null;uniqueIndex:idx_project_owner_name" json:"name"`
	Description string        `json:"description"`
	Status      ProjectStatus `gorm:"not null;default:active" json:"status"`
	StartDate   Date          `json:"start_date"`
	EndDate     Date          `json:"end_date"`
	Color       string        `json:"color,omitempty"`
	OwnerID     uint          `gorm:"not null;index;uniqueIndex:idx_project_owner_name" json:"owner_id"`
	Owner       *User         `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"owner,omitempty"`
	Members     []Membership  `gorm:"constraint:OnDelete:CASCADE" json:"members,omitempty"`
	Sections    []Section     `gorm:"constraint:OnDelete:CASCADE" json:"sections,omitempty"`
	Tags        []Tag         `gorm:"constraint:OnDelete:CASCADE" json:"tags,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`

	SectionsCount int64 `gorm:"-" json:"sections_count"`
	ItemsCount    int64 `gorm:"-" json:"items_count"`
}

// Membership joins a user to a project with a role.
type Membership struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	ProjectID uint      `gorm:"not null;uniqueIndex:idx_member_project_user" json:"project_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_member_project_user;index" json:"user_id"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Role      Role      `gorm:"not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Membership) TableName() string { return "project_members" }

// Section is an ordered column of a project. FilterValue holds the raw
// filter argument: a JSON scalar for status, priority, assigned_to and tag
// filters, a JSON object for date filters.
type Section struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	ProjectID   uint        `gorm:"not null;index" json:"project_id"`
	Name        string      `gorm:"not null" json:"name"`
	Position    int         `gorm:"not null" json:"position"`
	FilterType  FilterType  `gorm:"not null;default:none" json:"filter_type"`
	FilterValue FilterValue `json:"filter_value"`
	ItemLimit   *int        `json:"item_limit"`
	Items       []Item      `gorm:"constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`

	// ItemsCount is the raw number of items in the section, before the
	// section filter and limit are applied.
	ItemsCount int64 `gorm:"-" json:"items_count"`
}

// Item is a task card inside a section.
type Item struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	SectionID   uint         `gorm:"not null;index" json:"section_id"`
	Title       string       `gorm:"not null" json:"title"`
	Description string       `json:"description"`
	DueDate     Date         `gorm:"index" json:"due_date"`
	Position    int          `gorm:"not null" json:"position"`
	Status      ItemStatus   `gorm:"not null;default:todo;index" json:"status"`
	Priority    ItemPriority `gorm:"not null;default:medium" json:"priority"`
	CompletedAt *time.Time   `json:"completed_at"`
	CreatorID   uint         `gorm:"not null;index" json:"creator_id"`
	Creator     *User        `gorm:"foreignKey:CreatorID;constraint:OnDelete:CASCADE" json:"creator,omitempty"`
	AssignedTo  *uint        `gorm:"index" json:"assigned_to"`
	Assignee    *User        `gorm:"foreignKey:AssignedTo;constraint:OnDelete:SET NULL" json:"assignee,omitempty"`
	Tags        []Tag        `gorm:"many2many:item_tags;constraint:OnDelete:CASCADE" json:"tags"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// HasTag reports whether the item carries the tag.
func (i *Item) HasTag(tagID uint) bool {
	for _, t := range i.Tags {
		if t.ID == tagID {
			return true
		}
	}
	return false
}

// Tag labels items of a single project.
type Tag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProjectID uint      `gorm:"not null;uniqueIndex:idx_tag_project_name" json:"project_id"`
	Name      string    `gorm:"not null;uniqueIndex:idx_tag_project_name" json:"name"`
	Color     string    `gorm:"not null" json:"color"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

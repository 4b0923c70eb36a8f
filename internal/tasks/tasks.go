// Package tasks defines the task record, its validation rules, and the
// Store contract implemented by the persistence backends.
package tasks

import (
	"strings"
	"time"
)

// Field limits enforced on create and update.
const (
	MaxTitleLen       = 200
	MaxDescriptionLen = 1000
)

// Category groups tasks by life area.
type Category string

const (
	CategoryWork     Category = "work"
	CategoryPersonal Category = "personal"
	CategoryShopping Category = "shopping"
	CategoryHealth   Category = "health"
	CategoryOther    Category = "other"
)

// Categories lists every valid category in display order.
var Categories = []Category{CategoryWork, CategoryPersonal, CategoryShopping, CategoryHealth, CategoryOther}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory normalizes s and returns the matching category.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	return c, c.Valid()
}

// NormalizeCategory maps unknown values to CategoryOther.
func NormalizeCategory(s string) Category {
	if c, ok := ParseCategory(s); ok {
		return c
	}
	return CategoryOther
}

// Priority expresses how soon a task needs attention.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities lists every valid priority from least to most pressing.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	for _, known := range Priorities {
		if p == known {
			return true
		}
	}
	return false
}

// Weight returns the recommendation score contribution of the priority.
func (p Priority) Weight() int {
	switch p {
	case PriorityUrgent:
		return 30
	case PriorityHigh:
		return 20
	case PriorityMedium:
		return 10
	case PriorityLow:
		return 5
	default:
		return 0
	}
}

// ParsePriority normalizes s and returns the matching priority.
func ParsePriority(s string) (Priority, bool) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	return p, p.Valid()
}

// NormalizePriority maps unknown values to PriorityMedium.
func NormalizePriority(s string) Priority {
	if p, ok := ParsePriority(s); ok {
		return p
	}
	return PriorityMedium
}

// Task is a single TODO item.
type Task struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	Category    Category   `json:"category" yaml:"category"`
	Priority    Priority   `json:"priority" yaml:"priority"`
	Completed   bool       `json:"completed" yaml:"completed"`
	Tags        []string   `json:"tags" yaml:"tags"`
	CreatedAt   time.Time  `json:"createdAt" yaml:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" yaml:"updated_at"`
	CompletedAt *time.Time `json:"completedAt" yaml:"completed_at,omitempty"`
}

// LastTouched returns the later of UpdatedAt and CreatedAt.
func (t Task) LastTouched() time.Time {
	if t.UpdatedAt.After(t.CreatedAt) {
		return t.UpdatedAt
	}
	return t.CreatedAt
}

// Fields is a partial task used for create and update. Nil pointers are left
// untouched on update and defaulted on create.
type Fields struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Category    *Category `json:"category,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	Completed   *bool     `json:"completed,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
}

// Validate checks field limits and enum values. When requireTitle is set a
// missing title is an error.
func (f Fields) Validate(requireTitle bool) error {
	var details []FieldError

	switch {
	case f.Title == nil:
		if requireTitle {
			details = append(details, FieldError{Field: "title", Message: "title must be 1-200 characters"})
		}
	default:
		n := len([]rune(strings.TrimSpace(*f.Title)))
		if n == 0 || n > MaxTitleLen {
			details = append(details, FieldError{Field: "title", Message: "title must be 1-200 characters"})
		}
	}

	if f.Description != nil && len([]rune(strings.TrimSpace(*f.Description))) > MaxDescriptionLen {
		details = append(details, FieldError{Field: "description", Message: "description must be at most 1000 characters"})
	}
	if f.Category != nil && !f.Category.Valid() {
		details = append(details, FieldError{Field: "category", Message: "invalid category"})
	}
	if f.Priority != nil && !f.Priority.Valid() {
		details = append(details, FieldError{Field: "priority", Message: "invalid priority"})
	}

	if len(details) > 0 {
		return &ValidationError{Details: details}
	}
	return nil
}

// New builds a task from validated fields, applying defaults.
func New(id string, f Fields, now time.Time) Task {
	t := Task{
		ID:        id,
		Category:  CategoryOther,
		Priority:  PriorityMedium,
		Tags:      []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.apply(f, now)
	return t
}

// Apply merges f into the task and refreshes UpdatedAt. ID and CreatedAt
// never change.
func (t *Task) Apply(f Fields, now time.Time) {
	t.apply(f, now)
	t.UpdatedAt = now
}

func (t *Task) apply(f Fields, now time.Time) {
	if f.Title != nil {
		t.Title = strings.TrimSpace(*f.Title)
	}
	if f.Description != nil {
		t.Description = strings.TrimSpace(*f.Description)
	}
	if f.Category != nil {
		t.Category = *f.Category
	}
	if f.Priority != nil {
		t.Priority = *f.Priority
	}
	if f.Tags != nil {
		t.Tags = append([]string{}, (*f.Tags)...)
	}
	if f.Completed != nil && *f.Completed != t.Completed {
		t.setCompleted(*f.Completed, now)
	}
}

// Toggle flips the completion state.
func (t *Task) Toggle(now time.Time) {
	t.setCompleted(!t.Completed, now)
	t.UpdatedAt = now
}

func (t *Task) setCompleted(done bool, now time.Time) {
	t.Completed = done
	if done {
		at := now
		t.CompletedAt = &at
	} else {
		t.CompletedAt = nil
	}
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Completed *bool
	Category  Category
	Priority  Priority
}

// Match reports whether t passes the filter.
func (f Filter) Match(t Task) bool {
	if f.Completed != nil && t.Completed != *f.Completed {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	return true
}

// Incomplete returns the tasks that are not completed, preserving order.
func Incomplete(list []Task) []Task {
	out := make([]Task, 0, len(list))
	for _, t := range list {
		if !t.Completed {
			out = append(out, t)
		}
	}
	return out
}

// StringPtr is a helper for building Fields literals.
func StringPtr(s string) *string { return &s }

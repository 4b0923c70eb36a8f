package tasks

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestPriorityWeight(t *testing.T) {
	tests := []struct {
		p    Priority
		want int
	}{
		{PriorityUrgent, 30},
		{PriorityHigh, 20},
		{PriorityMedium, 10},
		{PriorityLow, 5},
		{Priority("someday"), 0},
	}
	for _, tt := range tests {
		if got := tt.p.Weight(); got != tt.want {
			t.Errorf("Priority(%q).Weight() = %d, want %d", tt.p, got, tt.want)
		}
	}
}

func TestNormalizeCategoryAndPriority(t *testing.T) {
	if got := NormalizeCategory(" Work "); got != CategoryWork {
		t.Errorf("NormalizeCategory(\" Work \") = %q, want %q", got, CategoryWork)
	}
	if got := NormalizeCategory("errands"); got != CategoryOther {
		t.Errorf("NormalizeCategory(\"errands\") = %q, want %q", got, CategoryOther)
	}
	if got := NormalizePriority("URGENT"); got != PriorityUrgent {
		t.Errorf("NormalizePriority(\"URGENT\") = %q, want %q", got, PriorityUrgent)
	}
	if got := NormalizePriority(""); got != PriorityMedium {
		t.Errorf("NormalizePriority(\"\") = %q, want %q", got, PriorityMedium)
	}
}

func TestFieldsValidate(t *testing.T) {
	badCat := Category("errands")
	badPri := Priority("asap")
	long := strings.Repeat("x", MaxTitleLen+1)
	longDesc := strings.Repeat("y", MaxDescriptionLen+1)

	tests := []struct {
		name         string
		fields       Fields
		requireTitle bool
		wantFields   []string
	}{
		{"valid create", Fields{Title: StringPtr("Buy milk")}, true, nil},
		{"missing title on create", Fields{}, true, []string{"title"}},
		{"missing title on update", Fields{}, false, nil},
		{"blank title", Fields{Title: StringPtr("   ")}, false, []string{"title"}},
		{"title too long", Fields{Title: &long}, true, []string{"title"}},
		{"title at limit", Fields{Title: StringPtr(strings.Repeat("あ", MaxTitleLen))}, true, nil},
		{"description too long", Fields{Title: StringPtr("a"), Description: &longDesc}, true, []string{"description"}},
		{"bad enums", Fields{Title: StringPtr("a"), Category: &badCat, Priority: &badPri}, true, []string{"category", "priority"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fields.Validate(tt.requireTitle)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("Validate() error = %v, want ErrInvalidInput", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() error type = %T, want *ValidationError", err)
			}
			if len(ve.Details) != len(tt.wantFields) {
				t.Fatalf("details = %+v, want fields %v", ve.Details, tt.wantFields)
			}
			for i, f := range tt.wantFields {
				if ve.Details[i].Field != f {
					t.Errorf("details[%d].Field = %q, want %q", i, ve.Details[i].Field, f)
				}
			}
		})
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	task := New("id-1", Fields{Title: StringPtr("  Call mom  ")}, now)

	if task.Title != "Call mom" {
		t.Errorf("Title = %q, want trimmed", task.Title)
	}
	if task.Category != CategoryOther || task.Priority != PriorityMedium {
		t.Errorf("defaults = (%q, %q), want (other, medium)", task.Category, task.Priority)
	}
	if task.Tags == nil {
		t.Error("Tags = nil, want empty slice")
	}
	if !task.CreatedAt.Equal(now) || !task.UpdatedAt.Equal(now) {
		t.Errorf("timestamps = (%v, %v), want %v", task.CreatedAt, task.UpdatedAt, now)
	}
	if task.CompletedAt != nil {
		t.Errorf("CompletedAt = %v, want nil", task.CompletedAt)
	}
}

func TestApplyKeepsIdentity(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	later := created.Add(2 * time.Hour)
	task := New("id-1", Fields{Title: StringPtr("Draft report")}, created)

	high := PriorityHigh
	done := true
	task.Apply(Fields{Priority: &high, Completed: &done}, later)

	if task.ID != "id-1" || !task.CreatedAt.Equal(created) {
		t.Errorf("identity changed: id=%q createdAt=%v", task.ID, task.CreatedAt)
	}
	if task.Priority != PriorityHigh {
		t.Errorf("Priority = %q, want high", task.Priority)
	}
	if !task.UpdatedAt.Equal(later) {
		t.Errorf("UpdatedAt = %v, want %v", task.UpdatedAt, later)
	}
	if task.CompletedAt == nil || !task.CompletedAt.Equal(later) {
		t.Errorf("CompletedAt = %v, want %v", task.CompletedAt, later)
	}
}

func TestToggle(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	task := New("id-1", Fields{Title: StringPtr("Stretch")}, now)

	task.Toggle(now.Add(time.Minute))
	if !task.Completed || task.CompletedAt == nil {
		t.Fatalf("after first toggle: completed=%v completedAt=%v", task.Completed, task.CompletedAt)
	}

	task.Toggle(now.Add(2 * time.Minute))
	if task.Completed || task.CompletedAt != nil {
		t.Fatalf("after second toggle: completed=%v completedAt=%v", task.Completed, task.CompletedAt)
	}
	if !task.UpdatedAt.Equal(now.Add(2 * time.Minute)) {
		t.Errorf("UpdatedAt = %v, want %v", task.UpdatedAt, now.Add(2*time.Minute))
	}
}

func TestLastTouched(t *testing.T) {
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	task := Task{CreatedAt: created}
	if got := task.LastTouched(); !got.Equal(created) {
		t.Errorf("LastTouched() with zero UpdatedAt = %v, want %v", got, created)
	}
	task.UpdatedAt = created.Add(48 * time.Hour)
	if got := task.LastTouched(); !got.Equal(task.UpdatedAt) {
		t.Errorf("LastTouched() = %v, want %v", got, task.UpdatedAt)
	}
}

func TestFilterMatch(t *testing.T) {
	done := true
	open := false
	work := Task{Category: CategoryWork, Priority: PriorityHigh}
	finished := Task{Category: CategoryHealth, Priority: PriorityLow, Completed: true}

	tests := []struct {
		name   string
		filter Filter
		task   Task
		want   bool
	}{
		{"empty filter", Filter{}, work, true},
		{"completed only", Filter{Completed: &done}, work, false},
		{"completed only match", Filter{Completed: &done}, finished, true},
		{"open only", Filter{Completed: &open}, finished, false},
		{"category", Filter{Category: CategoryWork}, work, true},
		{"category mismatch", Filter{Category: CategoryWork}, finished, false},
		{"priority", Filter{Priority: PriorityHigh}, work, true},
	}
	for _, tt := range tests {
		if got := tt.filter.Match(tt.task); got != tt.want {
			t.Errorf("%s: Match() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestIncomplete(t *testing.T) {
	list := []Task{{ID: "a"}, {ID: "b", Completed: true}, {ID: "c"}}
	got := Incomplete(list)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("Incomplete() = %+v, want [a c]", got)
	}
}

package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/taskpilot/internal/oracle"
	"github.com/marcus/taskpilot/internal/recommend"
	"github.com/marcus/taskpilot/internal/stale"
	"github.com/marcus/taskpilot/internal/tasks"
	"github.com/marcus/taskpilot/internal/tasks/filestore"
)

var testNow = time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	snap    *Snapshot
	err     error
	loads   int
	toggled []string
}

func (f *fakeSource) Load(context.Context) (*Snapshot, error) {
	f.loads++
	return f.snap, f.err
}

func (f *fakeSource) Toggle(_ context.Context, id string) error {
	f.toggled = append(f.toggled, id)
	return nil
}

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		Tasks: []tasks.Task{
			{ID: "a", Title: "Write report", Priority: tasks.PriorityUrgent, Category: tasks.CategoryWork},
			{ID: "b", Title: "Buy milk", Priority: tasks.PriorityLow, Category: tasks.CategoryShopping},
			{ID: "c", Title: "Old chore", Completed: true},
		},
		Recommendations: &recommend.Set{
			Insights: "Finish the report first.",
			Recommendations: []recommend.Recommendation{
				{TaskID: "a", Title: "Write report", Score: 90, Reason: "due today"},
				{TaskID: "b", Title: "Buy milk", Score: 40, BlockedBy: []string{"a"}},
			},
		},
		StaleTasks: []stale.Task{{ID: "b", Title: "Buy milk", DaysSinceUpdate: 9}},
		Stale: &stale.Report{
			TaskMessages:     map[string]string{"b": "A quick trip will do it."},
			ActionSuggestion: "Grab milk on the way home.",
		},
		LoadedAt: testNow,
	}
}

// loaded runs the model's load command and feeds the result back.
func loaded(t *testing.T, m Model) Model {
	t.Helper()
	msg := m.load()()
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestNew(t *testing.T) {
	m := New(context.Background(), &fakeSource{})
	if m.activePanel != PanelNext {
		t.Errorf("expected activePanel PanelNext, got %d", m.activePanel)
	}
	if !m.loading {
		t.Error("expected board to start loading")
	}
	if m.styles == nil {
		t.Error("expected styles to be initialized")
	}
	if m.Init() == nil {
		t.Error("expected Init to return a command")
	}
}

func TestLoadPopulatesBoard(t *testing.T) {
	src := &fakeSource{snap: sampleSnapshot()}
	m := loaded(t, *New(context.Background(), src))

	if m.loading {
		t.Error("expected loading to finish")
	}
	if len(m.open) != 2 {
		t.Fatalf("expected 2 open tasks, got %d", len(m.open))
	}

	view := m.View()
	for _, want := range []string{"Next Up", "Write report", "due today", "blocked by Write report", "Finish the report first.", "Gone Quiet", "9d", "A quick trip will do it.", "Open Tasks (2)"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if strings.Contains(view, "Old chore") {
		t.Error("completed task should not be listed")
	}
}

func TestLoadErrors(t *testing.T) {
	src := &fakeSource{err: errors.New("disk gone")}
	m := loaded(t, *New(context.Background(), src))
	if !strings.Contains(m.View(), "load failed: disk gone") {
		t.Errorf("expected load error in view")
	}

	snap := sampleSnapshot()
	snap.RecommendErr = oracle.ErrUnavailable
	snap.Stale, snap.StaleTasks = nil, nil
	snap.StaleErr = oracle.ErrUnavailable
	m = loaded(t, *New(context.Background(), &fakeSource{snap: snap}))
	view := m.View()
	if !strings.Contains(view, "Recommendations unavailable") {
		t.Error("expected recommendation failure notice")
	}
	if !strings.Contains(view, "Nothing stale") {
		t.Error("expected stale panel to fall back quietly")
	}
	if !strings.Contains(view, "Write report") {
		t.Error("task list should still render")
	}
}

func TestEmptyBoard(t *testing.T) {
	m := loaded(t, *New(context.Background(), &fakeSource{snap: &Snapshot{LoadedAt: testNow}}))
	view := m.View()
	if !strings.Contains(view, "No tasks yet") || !strings.Contains(view, "All done") {
		t.Errorf("unexpected empty view:\n%s", view)
	}
}

func TestKeyNavigation(t *testing.T) {
	m := loaded(t, *New(context.Background(), &fakeSource{snap: sampleSnapshot()}))

	tests := []struct {
		key       string
		wantPanel Panel
	}{
		{"tab", PanelStale},
		{"tab", PanelTasks},
		{"tab", PanelNext},
		{"shift+tab", PanelTasks},
	}
	for _, tt := range tests {
		next, _ := m.Update(keyMsg(tt.key))
		m = next.(Model)
		if m.activePanel != tt.wantPanel {
			t.Errorf("after %q: activePanel = %d, want %d", tt.key, m.activePanel, tt.wantPanel)
		}
	}

	next, _ := m.Update(keyMsg("j"))
	m = next.(Model)
	if m.selected != 1 {
		t.Errorf("after j: selected = %d, want 1", m.selected)
	}
	next, _ = m.Update(keyMsg("j"))
	m = next.(Model)
	if m.selected != 1 {
		t.Errorf("selection should stop at the last task, got %d", m.selected)
	}
	next, _ = m.Update(keyMsg("g"))
	m = next.(Model)
	if m.selected != 0 {
		t.Errorf("after g: selected = %d, want 0", m.selected)
	}
	next, _ = m.Update(keyMsg("G"))
	m = next.(Model)
	if m.selected != 1 {
		t.Errorf("after G: selected = %d, want 1", m.selected)
	}
}

func TestToggleAndRefresh(t *testing.T) {
	src := &fakeSource{snap: sampleSnapshot()}
	m := loaded(t, *New(context.Background(), src))
	m.activePanel = PanelTasks

	_, cmd := m.Update(keyMsg("x"))
	if cmd == nil {
		t.Fatal("expected toggle command")
	}
	msg := cmd()
	if len(src.toggled) != 1 || src.toggled[0] != "a" {
		t.Fatalf("toggled = %v, want [a]", src.toggled)
	}

	next, cmd := m.Update(msg)
	m = next.(Model)
	if !m.loading || cmd == nil {
		t.Error("expected reload after toggle")
	}
	if !strings.Contains(m.status, "completed a") {
		t.Errorf("status = %q", m.status)
	}

	m.loading = false
	next, cmd = m.Update(keyMsg("r"))
	m = next.(Model)
	if !m.loading || cmd == nil {
		t.Error("expected r to start a refresh")
	}
	next, cmd = m.Update(keyMsg("r"))
	if cmd != nil {
		t.Error("refresh while loading should be ignored")
	}
	_ = next
}

func TestToggleIgnoredOutsideTaskPanel(t *testing.T) {
	src := &fakeSource{snap: sampleSnapshot()}
	m := loaded(t, *New(context.Background(), src))
	if _, cmd := m.Update(keyMsg("x")); cmd != nil {
		t.Error("x should do nothing on the Next Up panel")
	}
}

func TestQuit(t *testing.T) {
	m := *New(context.Background(), &fakeSource{})
	next, cmd := m.Update(keyMsg("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if next.(Model).View() != "" {
		t.Error("expected empty view after quit")
	}
}

func TestSpinnerOnlyTicksWhileLoading(t *testing.T) {
	m := *New(context.Background(), &fakeSource{})
	tick := m.spinner.Tick()
	if _, cmd := m.Update(tick); cmd == nil {
		t.Error("expected spinner to keep ticking while loading")
	}
	m.loading = false
	if _, cmd := m.Update(spinner.TickMsg{}); cmd != nil {
		t.Error("spinner should stop once loaded")
	}
}

func TestWindowResize(t *testing.T) {
	m := *New(context.Background(), &fakeSource{})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(Model)
	if m.width != 120 || m.height != 40 {
		t.Errorf("size = %dx%d, want 120x40", m.width, m.height)
	}
}

func TestStoreSource(t *testing.T) {
	ids := 0
	store, err := filestore.Open(t.TempDir(),
		filestore.WithClock(func() time.Time { return testNow.Add(-10 * 24 * time.Hour) }),
		filestore.WithIDFunc(func() string { ids++; return []string{"", "old", "new"}[ids] }),
	)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	ctx := context.Background()
	if _, err := store.Create(ctx, tasks.Fields{Title: tasks.StringPtr("Clean garage")}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Create(ctx, tasks.Fields{Title: tasks.StringPtr("Pay rent")}); err != nil {
		t.Fatal(err)
	}

	o := oracle.Func(func(_ context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "Stale tasks:") {
			return "", oracle.ErrUnavailable
		}
		return `{"insights":"ok","recommendations":[{"taskId":"new","score":70,"reason":"rent"}],"dependencies":[]}`, nil
	})
	src := &StoreSource{
		Store:       store,
		Recommender: recommend.New(o),
		Detector:    stale.NewDetector(o),
		Now:         func() time.Time { return testNow },
	}

	snap, err := src.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(snap.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(snap.Tasks))
	}
	if snap.RecommendErr != nil || len(snap.Recommendations.Recommendations) != 1 {
		t.Errorf("recommendations = %+v, err = %v", snap.Recommendations, snap.RecommendErr)
	}
	if !errors.Is(snap.StaleErr, oracle.ErrUnavailable) {
		t.Errorf("StaleErr = %v, want ErrUnavailable", snap.StaleErr)
	}
	if len(snap.StaleTasks) != 2 {
		t.Errorf("expected both tasks selected as stale, got %d", len(snap.StaleTasks))
	}

	if err := src.Toggle(ctx, "old"); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	got, _ := store.Get(ctx, "old")
	if !got.Completed {
		t.Error("expected task to be completed")
	}
	if err := src.Toggle(ctx, "missing"); !errors.Is(err, tasks.ErrNotFound) {
		t.Errorf("Toggle(missing) error = %v, want ErrNotFound", err)
	}
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

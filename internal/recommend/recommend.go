// Package recommend asks the oracle which tasks to work on next and which
// tasks depend on each other, then repairs the reply so that every entry
// refers to a real, actionable task in the snapshot.
package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/marcus/taskpilot/internal/logging"
	"github.com/marcus/taskpilot/internal/oracle"
	"github.com/marcus/taskpilot/internal/tasks"
)

// DefaultLimit is the maximum number of recommendations returned.
const DefaultLimit = 5

// Score bounds.
const (
	MinScore = 0
	MaxScore = 100
)

// Recommendation is one task suggested for action.
type Recommendation struct {
	TaskID    string   `json:"taskId"`
	Title     string   `json:"title"`
	Score     int      `json:"score"`
	Reason    string   `json:"reason"`
	BlockedBy []string `json:"blockedBy"`
}

// Dependency says TaskID should wait for every id in DependsOn.
type Dependency struct {
	TaskID    string   `json:"taskId"`
	DependsOn []string `json:"dependsOn"`
	Reasoning string   `json:"reasoning"`
}

// Set is the result of one Recommend call. It is never persisted.
type Set struct {
	Insights        string           `json:"insights"`
	Recommendations []Recommendation `json:"recommendations"`
	Dependencies    []Dependency     `json:"dependencies"`
}

// Recommender turns a task snapshot into a validated Set.
type Recommender struct {
	oracle oracle.Oracle
	log    *logging.Logger
	limit  int
}

// Option configures a Recommender.
type Option func(*Recommender)

// WithLogger sets the logger used for dropped-entry diagnostics.
func WithLogger(l *logging.Logger) Option {
	return func(r *Recommender) { r.log = l }
}

// WithLimit overrides DefaultLimit.
func WithLimit(n int) Option {
	return func(r *Recommender) {
		if n > 0 {
			r.limit = n
		}
	}
}

// New creates a Recommender backed by o.
func New(o oracle.Oracle, opts ...Option) *Recommender {
	r := &Recommender{
		oracle: o,
		limit:  DefaultLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logging.Component("recommend")
	}
	return r
}

// Recommend makes exactly one oracle call for a non-empty snapshot.
// Oracle transport failures wrap oracle.ErrUnavailable; unparseable replies
// wrap oracle.ErrContractViolation. Neither is retried.
func (r *Recommender) Recommend(ctx context.Context, list []tasks.Task) (*Set, error) {
	if len(list) == 0 {
		return nil, tasks.Invalid("todos", "at least one task is required")
	}

	prompt, err := BuildPrompt(list)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	reply, err := oracle.Call(ctx, r.oracle, prompt)
	if err != nil {
		return nil, fmt.Errorf("recommend: %w", err)
	}

	var parsed oracleReply
	if err := oracle.Decode(reply, replySchema, &parsed); err != nil {
		r.log.WarnCtx("unparseable recommendation reply", logging.Fields{"error": err.Error(), "reply_len": len(reply)})
		return nil, fmt.Errorf("recommend: %w", err)
	}

	set := r.repair(parsed, list)
	r.log.InfoCtx("recommendations ready", logging.Fields{
		"tasks":           len(list),
		"recommendations": len(set.Recommendations),
		"dependencies":    len(set.Dependencies),
		"duration_ms":     time.Since(start).Milliseconds(),
	})
	return set, nil
}

// oracleReply is the oracle's answer before repair. Entries stay raw so that one
// malformed entry cannot sink the whole reply.
type oracleReply struct {
	Recommendations []json.RawMessage `json:"recommendations"`
	Dependencies    []json.RawMessage `json:"dependencies"`
	Insights        *string           `json:"insights"`
}

type rawRecommendation struct {
	TaskID    string          `json:"taskId"`
	Title     string          `json:"title"`
	Score     json.RawMessage `json:"score"`
	Reason    string          `json:"reason"`
	BlockedBy []string        `json:"blockedBy"`
}

type rawDependency struct {
	TaskID    string   `json:"taskId"`
	DependsOn []string `json:"dependsOn"`
	Reasoning string   `json:"reasoning"`
}

var replySchema = oracle.MustCompileSchema("recommendations", `{
  "type": "object",
  "properties": {
    "recommendations": {"type": ["array", "null"]},
    "dependencies": {"type": ["array", "null"]},
    "insights": {"type": ["string", "null"]}
  }
}`)

// repair enforces reference integrity, score bounds, ordering and the limit.
func (r *Recommender) repair(in oracleReply, list []tasks.Task) *Set {
	byID := make(map[string]tasks.Task, len(list))
	for _, t := range list {
		byID[t.ID] = t
	}

	out := &Set{
		Recommendations: make([]Recommendation, 0, r.limit),
		Dependencies:    make([]Dependency, 0),
	}
	if in.Insights != nil {
		out.Insights = strings.TrimSpace(*in.Insights)
	}

	seen := make(map[string]bool)
	for i, raw := range in.Recommendations {
		var rec rawRecommendation
		if err := json.Unmarshal(raw, &rec); err != nil {
			r.drop("recommendation", i, "", "malformed entry")
			continue
		}
		task, ok := byID[rec.TaskID]
		switch {
		case !ok:
			r.drop("recommendation", i, rec.TaskID, "unknown task id")
			continue
		case task.Completed:
			r.drop("recommendation", i, rec.TaskID, "task already completed")
			continue
		case seen[rec.TaskID]:
			r.drop("recommendation", i, rec.TaskID, "duplicate task id")
			continue
		}
		score, ok := parseScore(rec.Score)
		if !ok {
			r.drop("recommendation", i, rec.TaskID, "non-numeric score")
			continue
		}
		seen[rec.TaskID] = true

		title := strings.TrimSpace(rec.Title)
		if title == "" {
			title = task.Title
		}
		out.Recommendations = append(out.Recommendations, Recommendation{
			TaskID:    rec.TaskID,
			Title:     title,
			Score:     score,
			Reason:    strings.TrimSpace(rec.Reason),
			BlockedBy: openRefs(rec.BlockedBy, rec.TaskID, byID),
		})
	}

	sort.SliceStable(out.Recommendations, func(i, j int) bool {
		return out.Recommendations[i].Score > out.Recommendations[j].Score
	})
	if len(out.Recommendations) > r.limit {
		for _, cut := range out.Recommendations[r.limit:] {
			r.drop("recommendation", -1, cut.TaskID, "below top-N cutoff")
		}
		out.Recommendations = out.Recommendations[:r.limit]
	}

	sources := make(map[string]bool)
	for i, raw := range in.Dependencies {
		var dep rawDependency
		if err := json.Unmarshal(raw, &dep); err != nil {
			r.drop("dependency", i, "", "malformed entry")
			continue
		}
		task, ok := byID[dep.TaskID]
		switch {
		case !ok:
			r.drop("dependency", i, dep.TaskID, "unknown task id")
			continue
		case task.Completed:
			r.drop("dependency", i, dep.TaskID, "completed task cannot depend on others")
			continue
		case sources[dep.TaskID]:
			r.drop("dependency", i, dep.TaskID, "duplicate source")
			continue
		}
		if ghost, ok := firstUnknown(dep.DependsOn, byID); ok {
			r.drop("dependency", i, dep.TaskID, "unknown dependsOn id "+ghost)
			continue
		}
		dependsOn := knownRefs(dep.DependsOn, dep.TaskID, byID)
		if len(dependsOn) == 0 {
			r.drop("dependency", i, dep.TaskID, "no valid dependsOn ids")
			continue
		}
		sources[dep.TaskID] = true
		out.Dependencies = append(out.Dependencies, Dependency{
			TaskID:    dep.TaskID,
			DependsOn: dependsOn,
			Reasoning: strings.TrimSpace(dep.Reasoning),
		})
	}

	return out
}

func (r *Recommender) drop(kind string, index int, id, reason string) {
	r.log.DebugCtx("dropped "+kind, logging.Fields{"index": index, "task_id": id, "reason": reason})
}

// knownRefs keeps ids present in byID, without self and duplicates, in order.
func knownRefs(ids []string, self string, byID map[string]tasks.Task) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == self || seen[id] {
			continue
		}
		if _, ok := byID[id]; !ok {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// openRefs is knownRefs restricted to incomplete tasks; a completed task
// blocks nothing.
func openRefs(ids []string, self string, byID map[string]tasks.Task) []string {
	out := make([]string, 0, len(ids))
	for _, id := range knownRefs(ids, self, byID) {
		if !byID[id].Completed {
			out = append(out, id)
		}
	}
	return out
}

// firstUnknown returns the first id missing from byID.
func firstUnknown(ids []string, byID map[string]tasks.Task) (string, bool) {
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return id, true
		}
	}
	return "", false
}

// parseScore accepts only JSON numbers and clips them into [MinScore, MaxScore].
// Numbers beyond float64 range clip to the nearest bound.
func parseScore(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, false
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	f = math.Max(MinScore, math.Min(MaxScore, f))
	return int(math.Round(f)), true
}

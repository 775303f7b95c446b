package status

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bnema/session-tokens/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderActiveSession(t *testing.T) {
	now := time.Date(2026, 2, 14, 12, 30, 0, 0, time.UTC)

	output, err := Render([]domain.Token{
		{
			ID:              "s1",
			Name:            "dragon_slaying",
			Intent:          "finish the draft",
			Boundaries:      domain.Boundaries{"no_contact": true, "inbox_pause": true, "music": false},
			DurationMinutes: 90,
			StartTime:       now.Add(-30 * time.Minute),
			State:           domain.StateActive,
		},
	}, RenderOptions{Now: now})

	require.NoError(t, err)
	assert.Contains(t, output, "sessions: 1")
	assert.Contains(t, output, "dragon_slaying (s1)")
	assert.Contains(t, output, "state: active")
	assert.Contains(t, output, "1h00m left")
	assert.Contains(t, output, "boundaries: inbox_pause, no_contact")
	assert.Contains(t, output, "intent: finish the draft")
	assert.NotContains(t, output, "music")
	assert.NotContains(t, output, "[paused]")
}

func TestRenderPausedChildAndCompletedSessions(t *testing.T) {
	now := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	end := now.Add(-time.Minute)

	output, err := Render([]domain.Token{
		{
			ID:              "child",
			ParentID:        "root",
			Name:            "side_quest",
			Boundaries:      domain.Boundaries{},
			DurationMinutes: 10,
			StartTime:       now.Add(-9*time.Minute - 30*time.Second),
			State:           domain.StatePaused,
		},
		{
			ID:              "root",
			Name:            "quest",
			ChildIDs:        []domain.TokenID{"child"},
			DurationMinutes: 45,
			StartTime:       now.Add(-time.Hour),
			EndTime:         &end,
			State:           domain.StateCompleted,
			EndReason:       domain.EndReasonTimedOut,
		},
	}, RenderOptions{Now: now})

	require.NoError(t, err)
	assert.Contains(t, output, "sessions: 2")
	assert.Contains(t, output, "[paused]")
	assert.Contains(t, output, "1 minute left")
	assert.Contains(t, output, "parent: root")
	assert.Contains(t, output, "boundaries: none")
	assert.Contains(t, output, "state: completed (timed out)")
	assert.Contains(t, output, "45 min budget")
	assert.Contains(t, output, "children: 1")
}

func TestRenderEmpty(t *testing.T) {
	output, err := Render(nil, RenderOptions{})

	require.NoError(t, err)
	assert.Contains(t, output, "sessions: 0")
	assert.Contains(t, output, "No sessions.")
}

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		remaining time.Duration
		want      string
	}{
		{remaining: 0, want: "due now"},
		{remaining: -time.Minute, want: "due now"},
		{remaining: 20 * time.Second, want: "1 minute left"},
		{remaining: 15 * time.Minute, want: "15 minutes left"},
		{remaining: 95 * time.Minute, want: "1h35m left"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, formatRemaining(tc.remaining))
	}
}

func TestRenderProgressBarClamps(t *testing.T) {
	s := newStyles()

	assert.Equal(t, "", renderProgressBar(50, 0, s))
	assert.Contains(t, renderProgressBar(150, 4, s), "====")
	assert.Contains(t, renderProgressBar(-10, 4, s), "----")
}

func TestLayoutForestNestsChildrenUnderParents(t *testing.T) {
	tokens := []domain.Token{
		{ID: "c2", ParentID: "root"},
		{ID: "root", ChildIDs: []domain.TokenID{"c1", "c2"}},
		{ID: "orphan", ParentID: "gone"},
		{ID: "c1", ParentID: "root", ChildIDs: []domain.TokenID{"g1"}},
		{ID: "g1", ParentID: "c1"},
		{ID: "unlisted", ParentID: "root"},
	}

	rows := layoutForest(tokens)

	got := make([]string, 0, len(rows))
	for _, r := range rows {
		got = append(got, fmt.Sprintf("%d:%s", r.depth, r.token.ID))
	}
	assert.Equal(t, []string{"0:root", "1:c1", "2:g1", "1:c2", "0:orphan", "0:unlisted"}, got)
}

func TestRenderIndentsChildrenAndTalliesStates(t *testing.T) {
	now := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)

	output, err := Render([]domain.Token{
		{ID: "root", Name: "day", ChildIDs: []domain.TokenID{"kid"}, DurationMinutes: 60, StartTime: now, State: domain.StateActive},
		{ID: "kid", Name: "focus", ParentID: "root", DurationMinutes: 30, StartTime: now, State: domain.StatePaused},
	}, RenderOptions{Now: now})

	require.NoError(t, err)
	assert.Contains(t, output, "active: 1  paused: 1  completed: 0")

	var rootLine, kidLine string
	for _, line := range strings.Split(output, "\n") {
		switch {
		case strings.Contains(line, "day (root)"):
			rootLine = line
		case strings.Contains(line, "focus (kid)"):
			kidLine = line
		}
	}
	require.NotEmpty(t, rootLine)
	require.NotEmpty(t, kidLine)
	assert.Equal(t, indentWidth, strings.Index(kidLine, "focus (kid)")-strings.Index(rootLine, "day (root)"))
}

package activity

import (
	"testing"
	"time"
)

func TestWindowContainsInclusiveBounds(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 10, 31, 23, 59, 59, 0, time.UTC)
	window := NewWindow(start, end)

	tests := []struct {
		name string
		ts   time.Time
		want bool
	}{
		{name: "exact start", ts: start, want: true},
		{name: "exact end", ts: end, want: true},
		{name: "one second before start", ts: start.Add(-time.Second), want: false},
		{name: "one second after end", ts: end.Add(time.Second), want: false},
		{name: "middle", ts: time.Date(2024, 10, 15, 12, 0, 0, 0, time.UTC), want: true},
		{name: "zero timestamp", ts: time.Time{}, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := window.Contains(tc.ts); got != tc.want {
				t.Fatalf("Contains(%v) = %v, want %v", tc.ts, got, tc.want)
			}
		})
	}
}

func TestWindowDaysCoversEveryDate(t *testing.T) {
	t.Parallel()

	window := NewWindow(
		time.Date(2024, 10, 1, 9, 30, 0, 0, time.UTC),
		time.Date(2024, 10, 31, 18, 0, 0, 0, time.UTC),
	)

	days := window.Days()
	if len(days) != 31 {
		t.Fatalf("days len = %d, want 31", len(days))
	}
	if days[0] != "2024-10-01" {
		t.Fatalf("first day = %q, want 2024-10-01", days[0])
	}
	if days[len(days)-1] != "2024-10-31" {
		t.Fatalf("last day = %q, want 2024-10-31", days[len(days)-1])
	}

	seen := make(map[string]struct{}, len(days))
	for _, day := range days {
		if _, dup := seen[day]; dup {
			t.Fatalf("duplicate day %q", day)
		}
		seen[day] = struct{}{}
	}
}

func TestWindowDaysCrossesMonthBoundary(t *testing.T) {
	t.Parallel()

	window := NewWindow(
		time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	)

	days := window.Days()
	want := []string{"2024-02-28", "2024-02-29", "2024-03-01"}
	if len(days) != len(want) {
		t.Fatalf("days = %v, want %v", days, want)
	}
	for i := range want {
		if days[i] != want[i] {
			t.Fatalf("days[%d] = %q, want %q", i, days[i], want[i])
		}
	}
}

func TestWindowDaysInvertedWindow(t *testing.T) {
	t.Parallel()

	window := NewWindow(
		time.Date(2024, 10, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC),
	)
	if days := window.Days(); days != nil {
		t.Fatalf("days for inverted window = %v, want nil", days)
	}
}

func TestRecordResolved(t *testing.T) {
	t.Parallel()

	open := Record{Kind: KindPullRequest, CreatedAt: time.Now()}
	if open.Resolved() {
		t.Fatalf("open record reported resolved")
	}
	if open.Merged() {
		t.Fatalf("open record reported merged")
	}

	merged := Record{
		Kind:       KindPullRequest,
		CreatedAt:  time.Now(),
		ResolvedAt: time.Now(),
	}
	if !merged.Merged() {
		t.Fatalf("merged record not reported merged")
	}

	closedIssue := Record{
		Kind:       KindIssue,
		ResolvedAt: time.Now(),
	}
	if closedIssue.Merged() {
		t.Fatalf("issue record reported merged")
	}
	if !closedIssue.Resolved() {
		t.Fatalf("closed issue not reported resolved")
	}
}

package submission

import (
	"testing"
	"time"

	"github.com/examstack/examstack/internal/exam"
)

func TestResolveRelease(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		policy    exam.ReleasePolicy
		scheduled int64
		want      bool
	}{
		{name: "instant", policy: exam.ReleaseInstant, want: true},
		{name: "delayed", policy: exam.ReleaseDelayed, want: false},
		{name: "scheduled future", policy: exam.ReleaseScheduled, scheduled: now.Add(time.Hour).Unix(), want: false},
		{name: "scheduled past", policy: exam.ReleaseScheduled, scheduled: now.Add(-time.Hour).Unix(), want: true},
		{name: "scheduled exactly now", policy: exam.ReleaseScheduled, scheduled: now.Unix(), want: true},
		{name: "scheduled without date", policy: exam.ReleaseScheduled, scheduled: 0, want: false},
		{name: "unknown policy stays hidden", policy: exam.ReleasePolicy("WHENEVER"), want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolveRelease(tc.policy, tc.scheduled, now); got != tc.want {
				t.Fatalf("ResolveRelease(%s, %d) = %v, want %v", tc.policy, tc.scheduled, got, tc.want)
			}
		})
	}
}

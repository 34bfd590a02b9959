package crossref

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/autoclass/internal/models"
)

func lines(actions ...string) []*models.FailureLine {
	out := make([]*models.FailureLine, len(actions))
	for i, a := range actions {
		out[i] = &models.FailureLine{ID: int64(i + 1), Line: i, Action: a}
	}
	return out
}

func tles(n int) []*models.TextLogError {
	out := make([]*models.TextLogError, n)
	for i := range out {
		out[i] = &models.TextLogError{ID: int64(100 + i), LineNumber: i}
	}
	return out
}

// pairedIDs maps error id to paired line id, 0 when unpaired
func pairedIDs(pairs []Pairing) map[int64]int64 {
	out := make(map[int64]int64, len(pairs))
	for _, p := range pairs {
		if p.Line == nil {
			out[p.Error.ID] = 0
			continue
		}
		out[p.Error.ID] = p.Line.ID
	}
	return out
}

func TestPair(t *testing.T) {
	tests := []struct {
		name  string
		lines []*models.FailureLine
		errs  int
		want  map[int64]int64
	}{
		{
			name:  "one to one",
			lines: lines(models.ActionTestResult, models.ActionCrash),
			errs:  2,
			want:  map[int64]int64{100: 1, 101: 2},
		},
		{
			name:  "leading groups skipped",
			lines: lines(models.ActionGroup, models.ActionGroup, models.ActionTestResult),
			errs:  1,
			want:  map[int64]int64{100: 3},
		},
		{
			name:  "truncated consumes the rest",
			lines: lines(models.ActionTestResult, models.ActionTruncated, models.ActionTestResult),
			errs:  3,
			want:  map[int64]int64{100: 1, 101: 0, 102: 0},
		},
		{
			name:  "surplus errors",
			lines: lines(models.ActionTestResult),
			errs:  3,
			want:  map[int64]int64{100: 1, 101: 0, 102: 0},
		},
		{
			name:  "surplus lines",
			lines: lines(models.ActionTestResult, models.ActionLog, models.ActionLog),
			errs:  1,
			want:  map[int64]int64{100: 1},
		},
		{
			name:  "no lines",
			lines: nil,
			errs:  2,
			want:  map[int64]int64{100: 0, 101: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pairedIDs(Pair(tt.lines, tles(tt.errs)))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Pair() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	in := lines(models.ActionTestResult, models.ActionTestResult, models.ActionTestResult, models.ActionLog)

	assert.Len(t, Truncate(in, 10), 4)
	assert.Len(t, Truncate(in, 0), 4)

	out := Truncate(in, 2)
	assert.Len(t, out, 3)
	assert.Equal(t, models.ActionTruncated, out[2].Action)
	assert.Equal(t, 2, out[2].Line)
	assert.Equal(t, models.ActionTestResult, in[2].Action, "input is not modified")
}

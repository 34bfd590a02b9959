package badger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/common"
	"github.com/ternarybob/autoclass/internal/models"
)

func setupTestIndex(t *testing.T) *IndexStorage {
	t.Helper()
	db, err := NewBadgerDB(arbor.NewLogger(), &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "badger")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewIndexStorage(db, arbor.NewLogger()).(*IndexStorage)
}

func TestContainsPhrase(t *testing.T) {
	tests := []struct {
		name    string
		message string
		phrase  string
		want    bool
	}{
		{"exact", "Timed out waiting", "timed out waiting", true},
		{"inner run", "Assertion: Timed out waiting for load", "out waiting", true},
		{"punctuation ignored", "expected 1, got 2", "expected 1 got 2", true},
		{"out of order", "waiting timed out", "timed out", false},
		{"gap", "timed badly out", "timed out", false},
		{"empty phrase", "anything", "", true},
		{"longer than message", "a b", "a b c", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, containsPhrase(tokenize(tt.message), tokenize(tt.phrase)))
		})
	}
}

func TestIndexStorage_SearchFilters(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()

	docs := []*models.TestFailureDoc{
		{ID: 1, JobID: 10, Test: "a.html", Status: "FAIL", Expected: "PASS", BestClassification: 5, Message: "Timed out waiting for load"},
		{ID: 2, JobID: 11, Test: "a.html", Subtest: "sub", Status: "FAIL", Expected: "PASS", BestClassification: 6, Message: "Timed out waiting"},
		{ID: 3, JobID: 12, Test: "a.html", Status: "TIMEOUT", Expected: "PASS", BestClassification: 7, Message: "Timed out waiting"},
		{ID: 4, JobID: 13, Test: "b.html", Status: "FAIL", Expected: "PASS", BestClassification: 8, Message: "Timed out waiting"},
	}
	for _, d := range docs {
		require.NoError(t, idx.Insert(ctx, d))
	}
	require.NoError(t, idx.Refresh(ctx))

	q := models.IndexQuery{Test: "a.html", Status: "FAIL", Expected: "PASS", Phrase: "timed out", RequireClassification: true}

	got, err := idx.Search(ctx, q)
	require.NoError(t, err)
	ids := make([]int64, 0, len(got))
	for _, d := range got {
		ids = append(ids, d.ID)
	}
	assert.ElementsMatch(t, []int64{1, 2}, ids, "empty subtest does not filter")

	q.Subtest = "sub"
	got, err = idx.Search(ctx, q)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID)

	q.Subtest = ""
	q.Phrase = "load timed"
	got, err = idx.Search(ctx, q)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestIndexStorage_InsertReplacesAndDelete(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()

	doc := &models.TestFailureDoc{ID: 1, Test: "a.html", Status: "FAIL", Expected: "PASS", BestClassification: 5, Message: "boom"}
	require.NoError(t, idx.Insert(ctx, doc))
	doc.BestClassification = 9
	require.NoError(t, idx.Insert(ctx, doc))

	q := models.IndexQuery{Test: "a.html", Status: "FAIL", Expected: "PASS", Phrase: "boom"}
	got, err := idx.Search(ctx, q)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(9), got[0].BestClassification)

	require.NoError(t, idx.Delete(ctx, []int64{1, 2}))
	got, err = idx.Search(ctx, q)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCollectGarbage_FreshStore(t *testing.T) {
	db, err := NewBadgerDB(arbor.NewLogger(), &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "badger")})
	require.NoError(t, err)
	defer db.Close()

	n, err := db.CollectGarbage()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

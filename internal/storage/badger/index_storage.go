package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/interfaces"
	"github.com/ternarybob/autoclass/internal/models"
	"github.com/timshannon/badgerhold/v4"
	"golang.org/x/text/cases"
)

// indexDoc is the stored form of a TestFailureDoc
type indexDoc struct {
	ID                 int64
	JobID              int64
	Test               string `badgerhold:"index"`
	Subtest            string
	Status             string
	Expected           string
	BestClassification int64
	Message            string
}

// IndexStorage implements interfaces.Index over badgerhold.
// Documents are filtered on exact attributes, then matched on the message as a token phrase.
type IndexStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewIndexStorage creates a new Index backed by the badger store
func NewIndexStorage(db *BadgerDB, logger arbor.ILogger) interfaces.Index {
	return &IndexStorage{db: db, logger: logger}
}

func (s *IndexStorage) Insert(ctx context.Context, doc *models.TestFailureDoc) error {
	rec := indexDoc{
		ID:                 doc.ID,
		JobID:              doc.JobID,
		Test:               doc.Test,
		Subtest:            doc.Subtest,
		Status:             doc.Status,
		Expected:           doc.Expected,
		BestClassification: doc.BestClassification,
		Message:            doc.Message,
	}
	if err := s.db.Store().Upsert(doc.ID, &rec); err != nil {
		return fmt.Errorf("%w: failed to index failure line %d: %v", models.ErrIndexDisconnected, doc.ID, err)
	}
	return nil
}

func (s *IndexStorage) Delete(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		err := s.db.Store().Delete(id, &indexDoc{})
		if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("%w: failed to delete failure line %d: %v", models.ErrIndexDisconnected, id, err)
		}
	}
	return nil
}

func (s *IndexStorage) Search(ctx context.Context, q models.IndexQuery) ([]*models.TestFailureDoc, error) {
	phrase := tokenize(q.Phrase)

	query := badgerhold.Where("Test").Eq(q.Test).Index("Test").
		And("Status").Eq(q.Status).
		And("Expected").Eq(q.Expected)
	if q.Subtest != "" {
		query = query.And("Subtest").Eq(q.Subtest)
	}
	if q.RequireClassification {
		query = query.And("BestClassification").Gt(int64(0))
	}
	query = query.And("Message").MatchFunc(func(ra *badgerhold.RecordAccess) (bool, error) {
		message, ok := ra.Field().(string)
		if !ok {
			return false, nil
		}
		return containsPhrase(tokenize(message), phrase), nil
	})
	query = query.SortBy("ID").Reverse()
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var recs []indexDoc
	if err := s.db.Store().Find(&recs, query); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", models.ErrIndexDisconnected, err)
	}

	docs := make([]*models.TestFailureDoc, 0, len(recs))
	for i := range recs {
		r := recs[i]
		docs = append(docs, &models.TestFailureDoc{
			ID:                 r.ID,
			JobID:              r.JobID,
			Test:               r.Test,
			Subtest:            r.Subtest,
			Status:             r.Status,
			Expected:           r.Expected,
			BestClassification: r.BestClassification,
			Message:            r.Message,
		})
	}
	return docs, nil
}

// Refresh is a no-op: badger commits are visible to readers once Upsert returns
func (s *IndexStorage) Refresh(ctx context.Context) error {
	return nil
}

// tokenize splits text into case-folded alphanumeric tokens
func tokenize(text string) []string {
	fold := cases.Fold()
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, f := range fields {
		fields[i] = fold.String(f)
	}
	return fields
}

// containsPhrase reports whether phrase occurs in tokens as a contiguous run.
// An empty phrase matches everything.
func containsPhrase(tokens, phrase []string) bool {
	if len(phrase) == 0 {
		return true
	}
outer:
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		for j, p := range phrase {
			if tokens[i+j] != p {
				continue outer
			}
		}
		return true
	}
	return false
}

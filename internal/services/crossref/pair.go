package crossref

import "github.com/ternarybob/autoclass/internal/models"

// Pairing is a TextLogError and its FailureLine counterpart. Line is nil when unpaired.
type Pairing struct {
	Error *models.TextLogError
	Line  *models.FailureLine
}

// Pair matches failure lines to errors by position. Leading group lines have no
// log counterpart and are skipped. A truncated line ends pairing, so it and every
// later line go unused and the remaining errors stay unpaired. Surplus on either
// side stays unpaired.
func Pair(lines []*models.FailureLine, errs []*models.TextLogError) []Pairing {
	start := 0
	for start < len(lines) && lines[start].Action == models.ActionGroup {
		start++
	}
	lines = lines[start:]

	pairs := make([]Pairing, len(errs))
	truncated := false
	for i, e := range errs {
		pairs[i].Error = e
		if truncated || i >= len(lines) {
			continue
		}
		if lines[i].Action == models.ActionTruncated {
			truncated = true
			continue
		}
		pairs[i].Line = lines[i]
	}
	return pairs
}

// Truncate keeps at most cutoff lines, replacing the rest with a single truncated line
func Truncate(lines []*models.FailureLine, cutoff int) []*models.FailureLine {
	if cutoff <= 0 || len(lines) <= cutoff {
		return lines
	}
	kept := make([]*models.FailureLine, 0, cutoff+1)
	kept = append(kept, lines[:cutoff]...)
	return append(kept, &models.FailureLine{
		JobID:  lines[cutoff].JobID,
		Line:   lines[cutoff].Line,
		Action: models.ActionTruncated,
	})
}

package matching

import "github.com/ternarybob/autoclass/internal/models"

// Detector selects unmatched errors that may be promoted to new classified failures
type Detector interface {
	Name() string

	// Detect returns indices into errs of promotable errors
	Detect(errs []*models.JobError) []int
}

// TestFailureDetector promotes test results that name a test, status and expectation
type TestFailureDetector struct{}

func (TestFailureDetector) Name() string {
	return models.DetectorTestFailure
}

func (TestFailureDetector) Detect(errs []*models.JobError) []int {
	var idx []int
	for i, e := range errs {
		fl := e.FailureLine
		if fl == nil || fl.Action != models.ActionTestResult {
			continue
		}
		if fl.Test == "" || fl.Status == "" || fl.Expected == "" {
			continue
		}
		idx = append(idx, i)
	}
	return idx
}

// ManualDetector attributes matches created by human verification. It never detects.
type ManualDetector struct{}

func (ManualDetector) Name() string {
	return models.DetectorManual
}

func (ManualDetector) Detect(errs []*models.JobError) []int {
	return nil
}

// NewDetectors returns the registered detectors in order
func NewDetectors() []Detector {
	return []Detector{TestFailureDetector{}, ManualDetector{}}
}

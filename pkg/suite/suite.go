// Package suite defines the test suite value objects shared by the grading
// engine and the test synthesizer, plus the weight allocation that keeps
// every suite's point values summing to exactly 100.
package suite

import (
	"fmt"

	"github.com/code-grade/worker/pkg/errors"
)

const TotalWeight = 100

type TestCase struct {
	ID             int    `json:"id"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"output"`
	Weight         int    `json:"value"`
	Difficulty     int    `json:"difficulty"`
	Explanation    string `json:"explanation"`
}

// TestSuite is an ordered, contiguously-indexed collection of test cases.
// Cases[i] carries ID i+1. Instances are treated as immutable values once
// built; callers hand them to the grading engine as-is.
type TestSuite struct {
	Count int        `json:"count"`
	Cases []TestCase `json:"tests"`
}

// Validate checks the suite invariants: Count matches the number of cases,
// ids form the contiguous range 1..Count, and weights sum to exactly 100
// whenever the suite is non-empty.
func (ts TestSuite) Validate() error {
	if ts.Count != len(ts.Cases) {
		return fmt.Errorf("%w: count %d does not match %d cases",
			errors.ErrInvalidTestSuite, ts.Count, len(ts.Cases))
	}
	if ts.Count == 0 {
		return nil
	}
	weightSum := 0
	for i, tc := range ts.Cases {
		if tc.ID != i+1 {
			return fmt.Errorf("%w: case at position %d has id %d",
				errors.ErrInvalidTestSuite, i, tc.ID)
		}
		weightSum += tc.Weight
	}
	if weightSum != TotalWeight {
		return fmt.Errorf("%w: weights sum to %d", errors.ErrInvalidTestSuite, weightSum)
	}
	return nil
}

// AllocateWeights distributes 100 points across n test cases as positive
// integers. The first 100 mod n positions receive one extra point so the
// sum is exact without any rounding. n = 0 yields an empty slice.
func AllocateWeights(n int) []int {
	if n <= 0 {
		return []int{}
	}
	base := TotalWeight / n
	remainder := TotalWeight % n
	weights := make([]int, n)
	for i := range weights {
		weights[i] = base
		if i < remainder {
			weights[i]++
		}
	}
	return weights
}

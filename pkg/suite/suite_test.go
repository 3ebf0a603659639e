package suite_test

import (
	"reflect"
	"testing"

	"github.com/code-grade/worker/pkg/suite"
)

func TestAllocateWeightsSumsToTotal(t *testing.T) {
	for n := 1; n <= 100; n++ {
		weights := suite.AllocateWeights(n)
		if len(weights) != n {
			t.Fatalf("AllocateWeights(%d) returned %d weights", n, len(weights))
		}
		sum := 0
		for _, w := range weights {
			if w <= 0 {
				t.Fatalf("AllocateWeights(%d) produced non-positive weight %d", n, w)
			}
			sum += w
		}
		if sum != 100 {
			t.Fatalf("AllocateWeights(%d) sums to %d, want 100", n, sum)
		}
	}
}

func TestAllocateWeightsDistribution(t *testing.T) {
	got := suite.AllocateWeights(7)
	want := []int{15, 15, 14, 14, 14, 14, 14}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("AllocateWeights(7) = %v, want %v", got, want)
	}
}

func TestAllocateWeightsZero(t *testing.T) {
	if got := suite.AllocateWeights(0); len(got) != 0 {
		t.Fatalf("AllocateWeights(0) = %v, want empty", got)
	}
	if got := suite.AllocateWeights(-3); len(got) != 0 {
		t.Fatalf("AllocateWeights(-3) = %v, want empty", got)
	}
}

func makeSuite(n int) suite.TestSuite {
	weights := suite.AllocateWeights(n)
	cases := make([]suite.TestCase, n)
	for i := range cases {
		cases[i] = suite.TestCase{ID: i + 1, Weight: weights[i]}
	}
	return suite.TestSuite{Count: n, Cases: cases}
}

func TestValidate(t *testing.T) {
	if err := makeSuite(5).Validate(); err != nil {
		t.Fatalf("valid suite rejected: %v", err)
	}
	if err := (suite.TestSuite{}).Validate(); err != nil {
		t.Fatalf("empty suite rejected: %v", err)
	}
}

func TestValidateRejectsBrokenSuites(t *testing.T) {
	countMismatch := makeSuite(3)
	countMismatch.Count = 4
	if err := countMismatch.Validate(); err == nil {
		t.Fatal("expected error for count mismatch")
	}

	badIDs := makeSuite(3)
	badIDs.Cases[1].ID = 7
	if err := badIDs.Validate(); err == nil {
		t.Fatal("expected error for non-contiguous ids")
	}

	badWeights := makeSuite(3)
	badWeights.Cases[0].Weight += 5
	if err := badWeights.Validate(); err == nil {
		t.Fatal("expected error for weights not summing to 100")
	}
}

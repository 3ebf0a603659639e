// Package synthesizer turns a task description and reference solution into
// a weighted test suite using an external text-generation model.
//
// The model is treated as entirely unreliable: errors, slow responses and
// malformed output are all absorbed by an ordered chain of fallbacks, and
// Generate always returns a suite with exactly the requested number of
// cases and weights summing to 100.
package synthesizer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/code-grade/worker/internal/genai"
	"github.com/code-grade/worker/internal/logger"
	"github.com/code-grade/worker/pkg/languages"
	"github.com/code-grade/worker/pkg/suite"
)

const promptTemplate = `You are a programming test generator. Create %d test cases for the following programming task.

Task Description:
%s

Solution Code (%s):
%s

Your test cases should:
1. Cover various input scenarios
2. Include edge cases
3. Test different code paths
4. Have varying difficulty (easy to hard)

It's IMPORTANT that you create EXACTLY %d test cases, no more and no less.

Return the test cases as a valid JSON array with the following structure for each test:
{
  "input": "test input",
  "output": "expected output",
  "explanation": "explanation of what this test is checking",
  "difficulty": difficulty level (1-5, where 1 is easiest and 5 is hardest)
}

The input and output should exactly match what the program would receive as stdin and produce as stdout.
Return ONLY the JSON array, with no additional text or formatting.
Make sure your JSON is properly formatted and valid.`

type Synthesizer interface {
	// Generate builds a suite of exactly requestedCount test cases
	// (clamped to [1, max]). It never returns an error: any failure in
	// generation or parsing degrades to synthetic placeholder cases.
	Generate(
		ctx context.Context,
		taskDescription, referenceCode string,
		lang languages.LanguageType,
		requestedCount int,
	) suite.TestSuite
}

type synthesizer struct {
	model        genai.TextGenerator
	maxTestCount int
	logger       *zap.SugaredLogger
}

func NewSynthesizer(model genai.TextGenerator, maxTestCount int) Synthesizer {
	return &synthesizer{
		model:        model,
		maxTestCount: maxTestCount,
		logger:       logger.NewNamedLogger("synthesizer"),
	}
}

func (s *synthesizer) Generate(
	ctx context.Context,
	taskDescription, referenceCode string,
	lang languages.LanguageType,
	requestedCount int,
) (ts suite.TestSuite) {
	count := clampCount(requestedCount, s.maxTestCount)

	// The chain must hold even if a strategy or the model client panics.
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("Recovered from panic during test generation: %v", r)
			ts = buildSuite(syntheticCandidates(count), count)
		}
	}()

	prompt := fmt.Sprintf(promptTemplate,
		count, taskDescription, lang, referenceCode, count)

	raw, err := s.model.GenerateText(ctx, prompt)
	if err != nil {
		s.logger.Errorf("Generation model call failed, falling back to synthetic tests: %s", err)
		return buildSuite(syntheticCandidates(count), count)
	}

	var candidates []candidate
	for _, strategy := range parseStrategies {
		if candidates = strategy(raw, count); len(candidates) > 0 {
			break
		}
	}

	if len(candidates) == 0 {
		s.logger.Warnf("No test cases recovered from model response, using synthetic tests")
		return buildSuite(syntheticCandidates(count), count)
	}

	if len(candidates) < count {
		s.logger.Infof("Model produced %d of %d requested tests, padding the rest",
			len(candidates), count)
		candidates = padCandidates(candidates, count)
	}

	return buildSuite(candidates, count)
}

func clampCount(requested, max int) int {
	if requested < 1 {
		return 1
	}
	if requested > max {
		return max
	}
	return requested
}

// buildSuite assigns contiguous ids and freshly allocated weights to the
// candidates. len(candidates) must equal count by the time this is called.
func buildSuite(candidates []candidate, count int) suite.TestSuite {
	weights := suite.AllocateWeights(count)
	cases := make([]suite.TestCase, count)
	for i, c := range candidates {
		cases[i] = suite.TestCase{
			ID:             i + 1,
			Input:          c.Input,
			ExpectedOutput: c.Output,
			Weight:         weights[i],
			Difficulty:     c.Difficulty,
			Explanation:    c.Explanation,
		}
	}
	return suite.TestSuite{Count: count, Cases: cases}
}

// syntheticCandidates produces placeholder tests for when nothing usable
// came back from the model. They are clearly labeled so a task author
// knows to replace them.
func syntheticCandidates(count int) []candidate {
	candidates := make([]candidate, count)
	for i := range candidates {
		candidates[i] = candidate{
			Input:       fmt.Sprintf("fallback_test_input_%d", i+1),
			Output:      fmt.Sprintf("fallback_test_output_%d", i+1),
			Explanation: "Fallback test case. The AI failed to generate tests. Please manually create tests.",
			Difficulty:  midDifficulty,
		}
	}
	return candidates
}

// padCandidates grows a short result up to count by cloning the existing
// candidates round-robin. A cloned input that would collide with one
// already in the suite gets a disambiguating suffix, so no two cases ever
// share a literal input.
func padCandidates(candidates []candidate, count int) []candidate {
	k := len(candidates)
	existing := make(map[string]bool, count)
	for _, c := range candidates {
		existing[c.Input] = true
	}

	for i := k; i < count; i++ {
		source := candidates[(i-k)%k]
		input := source.Input
		if existing[input] {
			input = fmt.Sprintf("%s\n# variant %d", input, i+1)
		}
		existing[input] = true

		candidates = append(candidates, candidate{
			Input:       input,
			Output:      source.Output,
			Explanation: fmt.Sprintf("Additional test derived from test %d", (i-k)%k+1),
			Difficulty:  source.Difficulty,
		})
	}
	return candidates
}

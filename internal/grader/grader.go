// Package grader sequences one grading run: compile once, execute every
// test case in ascending id order, aggregate a weighted score.
package grader

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/code-grade/worker/internal/logger"
	"github.com/code-grade/worker/internal/stages/compiler"
	"github.com/code-grade/worker/internal/stages/executor"
	"github.com/code-grade/worker/pkg/constants"
	customErr "github.com/code-grade/worker/pkg/errors"
	"github.com/code-grade/worker/pkg/languages"
	"github.com/code-grade/worker/pkg/suite"
)

type Submission struct {
	Code     string
	Language languages.LanguageType
}

type OutcomeStatus string

const (
	OutcomePassed OutcomeStatus = "success"
	OutcomeFailed OutcomeStatus = "failed"
)

// Outcome is one test case merged with its execution result.
type Outcome struct {
	suite.TestCase
	ActualOutput string        `json:"run_output"`
	Status       OutcomeStatus `json:"status"`
	Error        string        `json:"error,omitempty"`
}

type Report struct {
	BuildStatus  string    `json:"build_status"`
	BuildMessage string    `json:"build_message"`
	Outcomes     []Outcome `json:"tests"`
	Grade        float64   `json:"grade"`
	MaxGrade     float64   `json:"max_grade"`
}

type Engine interface {
	// Run grades the submission against the suite. A compile failure is
	// terminal and reported in the Report with grade 0; per-test failures
	// are recorded in their outcome and grading continues. The returned
	// error is reserved for an invalid suite or an unreachable sandbox
	// runtime.
	Run(ctx context.Context, sub Submission, ts suite.TestSuite, maxGrade float64) (*Report, error)
}

type engine struct {
	compiler         compiler.Compiler
	executor         executor.Executor
	executionTimeout time.Duration
	logger           *zap.SugaredLogger
}

func NewEngine(c compiler.Compiler, e executor.Executor, executionTimeout time.Duration) Engine {
	return &engine{
		compiler:         c,
		executor:         e,
		executionTimeout: executionTimeout,
		logger:           logger.NewNamedLogger("grader"),
	}
}

func (g *engine) Run(
	ctx context.Context, sub Submission, ts suite.TestSuite, maxGrade float64,
) (*Report, error) {
	if err := ts.Validate(); err != nil {
		return nil, err
	}

	report := &Report{
		BuildStatus: constants.BuildStatusFailed,
		MaxGrade:    maxGrade,
	}

	artifact, err := g.compiler.Compile(ctx, sub.Code, sub.Language)
	if err != nil {
		if errors.Is(err, customErr.ErrSandboxUnavailable) {
			return nil, err
		}
		g.logger.Errorf("Compilation failed: %s", err)
		report.BuildMessage = err.Error()
		report.Outcomes = pendingOutcomes(ts)
		return report, nil
	}
	defer artifact.Release()

	report.BuildStatus = constants.BuildStatusSuccess
	report.BuildMessage = constants.BuildMessageSuccess
	if sub.Language.Interpreted() {
		report.BuildMessage = constants.BuildMessageNoBuildNeeded
	}

	report.Outcomes = make([]Outcome, 0, ts.Count)
	totalGrade := 0.0
	for _, tc := range ts.Cases {
		outcome := g.runTestCase(ctx, artifact, tc)
		report.Outcomes = append(report.Outcomes, outcome)
		if outcome.Status == OutcomePassed {
			totalGrade += float64(tc.Weight) * maxGrade / float64(suite.TotalWeight)
		}
	}

	report.Grade = math.Round(totalGrade*100) / 100
	g.logger.Infof("Graded submission: %.2f out of %g", report.Grade, maxGrade)
	return report, nil
}

// runTestCase executes one test and decides pass/fail. A test passes only
// when execution succeeded and the trimmed outputs match; trimming strips
// leading and trailing whitespace but internal whitespace must match
// exactly.
func (g *engine) runTestCase(
	ctx context.Context, artifact *compiler.Artifact, tc suite.TestCase,
) Outcome {
	outcome := Outcome{TestCase: tc, Status: OutcomeFailed}

	result, err := g.executor.Execute(ctx, artifact, tc.Input, g.executionTimeout)
	if result != nil {
		outcome.ActualOutput = result.Stdout
	}
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	if strings.TrimSpace(result.Stdout) == strings.TrimSpace(tc.ExpectedOutput) {
		outcome.Status = OutcomePassed
	}
	return outcome
}

// pendingOutcomes marks every test failed without executing it, used when
// the build already failed.
func pendingOutcomes(ts suite.TestSuite) []Outcome {
	outcomes := make([]Outcome, 0, ts.Count)
	for _, tc := range ts.Cases {
		outcomes = append(outcomes, Outcome{TestCase: tc, Status: OutcomeFailed})
	}
	return outcomes
}

package messages

import (
	"encoding/json"

	"github.com/code-grade/worker/pkg/suite"
)

type QueueMessage struct {
	Type      string          `json:"type"`
	MessageID string          `json:"message_id"`
	Payload   json.RawMessage `json:"payload"`
}

type ResponseQueueMessage struct {
	Type      string          `json:"type"`
	MessageID string          `json:"message_id"`
	Ok        bool            `json:"ok"`
	Payload   json.RawMessage `json:"payload"`
}

type GradeRequestPayload struct {
	SubmissionCode      string          `json:"submission_code"`
	ProgrammingLanguage string          `json:"programming_language"`
	Tests               suite.TestSuite `json:"tests"`
	MaxGrade            float64         `json:"max_grade"`
}

type GenerateRequestPayload struct {
	TaskDescription     string `json:"task_description"`
	SolutionCode        string `json:"solution_code"`
	ProgrammingLanguage string `json:"programming_language"`
	TestCount           int    `json:"test_count"`
}

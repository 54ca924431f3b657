// Package benchmark runs question datasets through the pipeline and
// aggregates per-status outcomes.
package benchmark

import (
	"encoding/json"
	"fmt"
	"os"
)

// Question is one dataset entry. The field names follow the BIRD benchmark's
// JSON layout; GoldSQL is carried through for offline comparison and is never
// shown to the pipeline.
type Question struct {
	QuestionID int    `json:"question_id"`
	DatabaseID string `json:"db_id"`
	Question   string `json:"question"`
	Evidence   string `json:"evidence,omitempty"`
	GoldSQL    string `json:"SQL,omitempty"`
}

// Prompt returns the question text the pipeline receives. External knowledge
// ("evidence" in the dataset) is appended as a hint when present.
func (q Question) Prompt() string {
	if q.Evidence == "" {
		return q.Question
	}
	return q.Question + "\nHINT: " + q.Evidence
}

// LoadDataset reads a JSON array of questions from path.
func LoadDataset(path string) ([]Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	var questions []Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", path, err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("dataset %s contains no questions", path)
	}
	return questions, nil
}

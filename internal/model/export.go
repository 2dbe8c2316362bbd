package model

import "time"

// ResultsExport is the top-level JSON structure of the export command.
type ResultsExport struct {
	Course     string         `json:"course"`
	Date       string         `json:"date"`
	NumResults int            `json:"num_results"`
	Results    []IssuedResult `json:"results"`
}

// IssuedResult records a grading file handed to a student.
type IssuedResult struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"session_id"`
	StudentName string    `json:"student_name"`
	Key         float64   `json:"key"`
	Score       int       `json:"score"`
	Total       int       `json:"total"`
	Gradable    int       `json:"gradable"`
	Digest      string    `json:"digest"`
	Filename    string    `json:"filename"`
	Payload     string    `json:"payload,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
}

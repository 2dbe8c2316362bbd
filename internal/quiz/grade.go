package quiz

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/pavelanni/fuerzas/internal/codec"
	"github.com/pavelanni/fuerzas/internal/model"
	"github.com/pavelanni/fuerzas/internal/physics"
)

var tolerance = big.NewRat(5, 100)

// Grade grades every logged answer of s. at is the grading time.
func Grade(s *model.Session, at time.Time) model.GradeReport {
	report := model.GradeReport{
		StudentName: s.StudentName,
		Key:         s.Key,
		Total:       len(s.Questions),
		Timestamp:   at.Format(codec.TimestampLayout),
		Details:     make([]model.GradedAnswer, 0, len(s.Answers)),
	}

	for _, q := range s.Questions {
		if s.Expected[q.Index+1] != nil {
			report.Gradable++
		}
	}

	for _, a := range s.Answers {
		var text string
		if a.QuestionIndex >= 0 && a.QuestionIndex < len(s.Questions) {
			text = s.Questions[a.QuestionIndex].Text
		}
		var raw string
		if len(a.RawInputs) > 0 {
			raw = a.RawInputs[0]
		}
		ga := GradeAnswer(text, raw, s.Expected[a.QuestionIndex+1])
		// Only single-input questions exist; anything else cannot be correct.
		if len(a.RawInputs) != 1 {
			ga.Correct = false
		}
		if ga.Correct {
			report.Score++
		}
		report.Details = append(report.Details, ga)
	}
	return report
}

// GradeAnswer grades one raw answer against expected. An unparseable or
// non-finite answer, or a nil expected value, is incorrect. Otherwise the
// typed value is rounded to 2 decimals and is correct when its exact decimal
// distance to the expected value is at most the tolerance.
func GradeAnswer(question, raw string, expected *float64) model.GradedAnswer {
	ga := model.GradedAnswer{
		Question: question,
		Entered:  raw,
		Expected: expected,
	}

	trimmed := strings.TrimSpace(raw)
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return ga
	}
	rounded := physics.Round2(value)
	ga.Parsed = &rounded

	if expected == nil {
		return ga
	}

	entered, ok := new(big.Rat).SetString(strconv.FormatFloat(rounded, 'f', -1, 64))
	if !ok {
		return ga
	}
	want, ok := new(big.Rat).SetString(strconv.FormatFloat(*expected, 'f', -1, 64))
	if !ok {
		return ga
	}

	diff := new(big.Rat).Sub(entered, want)
	ga.Correct = diff.Abs(diff).Cmp(tolerance) <= 0
	return ga
}

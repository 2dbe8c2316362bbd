// Package physics derives the five personalized force problems and their
// answers from a student's key.
package physics

import (
	"math"
	"strconv"

	"github.com/pavelanni/fuerzas/internal/model"
)

const (
	// Gravity is the gravitational acceleration used by every problem, in m/s^2.
	Gravity = 9.81
	// Tolerance is the inclusive allowed deviation of an answer.
	Tolerance = 0.05
	// NumQuestions is the fixed length of every quiz.
	NumQuestions = 5
)

// ComputeExpectedAnswers returns the rounded answer of each problem for key.
// A key that is not a finite positive number yields five nil entries.
func ComputeExpectedAnswers(key float64) model.ExpectedAnswers {
	answers := make(model.ExpectedAnswers, NumQuestions)
	if !validKey(key) {
		for i := 1; i <= NumQuestions; i++ {
			answers[i] = nil
		}
		return answers
	}

	// 1: box of mass key pushed with 20 N against 5 N of friction.
	answers[1] = roundOrNil((20.0 - 5.0) / key)
	// 2: normal force on a 2 kg mass pulled by key N at 30 degrees.
	answers[2] = roundOrNil((2.0 * Gravity) - (key * math.Sin(radians(30))))
	// 3: sphere of mass key lifted by a 1000 N tension.
	answers[3] = roundOrNil((1000.0 - key*Gravity) / key)
	// 4: 10 kg mass, 30 N applied, friction key.
	answers[4] = roundOrNil((30.0 - key) / 10.0)
	// 5: 5 kg mass, force key at 25 degrees.
	answers[5] = roundOrNil((key * math.Cos(radians(25))) / 5.0)

	return answers
}

// Round2 rounds f to two decimals the way "%.2f" does: the exact binary
// value is rounded, with exact ties going to the even digit.
func Round2(f float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(f, 'f', 2, 64), 64)
	if err != nil {
		return math.NaN()
	}
	return r
}

func roundOrNil(f float64) *float64 {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	r := Round2(f)
	return &r
}

func validKey(key float64) bool {
	return !math.IsNaN(key) && !math.IsInf(key, 0) && key > 0
}

func radians(deg float64) float64 {
	pi := math.Pi
	return deg * (pi / 180.0)
}

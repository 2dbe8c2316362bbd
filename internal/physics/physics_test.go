package physics

import (
	"math"
	"strings"
	"testing"
)

func val(t *testing.T, p *float64) float64 {
	t.Helper()
	if p == nil {
		t.Fatal("expected a value, got nil")
	}
	return *p
}

func TestComputeExpectedAnswers(t *testing.T) {
	tests := []struct {
		key  float64
		want [NumQuestions]float64
	}{
		{10, [NumQuestions]float64{1.50, 14.62, 90.19, 2.00, 1.81}},
		{2, [NumQuestions]float64{7.50, 18.62, 490.19, 2.80, 0.36}},
		{100, [NumQuestions]float64{0.15, -30.38, 0.19, -7.00, 18.13}},
	}

	for _, tt := range tests {
		got := ComputeExpectedAnswers(tt.key)
		if len(got) != NumQuestions {
			t.Fatalf("key %v: expected %d entries, got %d", tt.key, NumQuestions, len(got))
		}
		for i, want := range tt.want {
			if v := val(t, got[i+1]); v != want {
				t.Errorf("key %v pregunta%d = %v, want %v", tt.key, i+1, v, want)
			}
		}
	}
}

func TestComputeExpectedAnswersInvalidKey(t *testing.T) {
	for _, key := range []float64{0, -5, math.Inf(1), math.Inf(-1), math.NaN()} {
		got := ComputeExpectedAnswers(key)
		if len(got) != NumQuestions {
			t.Fatalf("key %v: expected %d entries, got %d", key, NumQuestions, len(got))
		}
		for i := 1; i <= NumQuestions; i++ {
			v, ok := got[i]
			if !ok {
				t.Errorf("key %v: entry %d missing", key, i)
			}
			if v != nil {
				t.Errorf("key %v: entry %d = %v, want nil", key, i, *v)
			}
		}
	}
}

func TestComputeExpectedAnswersDeterministic(t *testing.T) {
	for _, key := range []float64{0.3, 1, 7.25, 42, 1e6} {
		a := ComputeExpectedAnswers(key)
		b := ComputeExpectedAnswers(key)
		for i := 1; i <= NumQuestions; i++ {
			if val(t, a[i]) != val(t, b[i]) {
				t.Errorf("key %v entry %d differs between calls", key, i)
			}
		}
	}
}

func TestComputeExpectedAnswersTinyKeyOverflows(t *testing.T) {
	// 15 / 5e-324 overflows to +Inf and must be dropped, not rounded.
	got := ComputeExpectedAnswers(5e-324)
	if got[1] != nil {
		t.Errorf("pregunta1 = %v, want nil for overflowing value", *got[1])
	}
	if got[4] == nil || *got[4] != 3.0 {
		t.Errorf("pregunta4 = %v, want 3.0", got[4])
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{1.5, 1.5},
		{1.234, 1.23},
		{1.236, 1.24},
		{-30.379999999999995, -30.38},
		{0.625, 0.62}, // exact tie, even digit kept
		{0.375, 0.38}, // exact tie, rounds to even
		{1.875, 1.88}, // exact tie, rounds to even
		{2.675, 2.67}, // binary value sits just below the tie
		{1.005, 1.0},  // binary value sits just below the tie
		{1e20, 1e20},
	}

	for _, tt := range tests {
		if got := Round2(tt.in); got != tt.want {
			t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatKey(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{10, "10.0"},
		{2.5, "2.5"},
		{100, "100.0"},
		{0.00001, "1e-05"},
	}
	for _, tt := range tests {
		if got := FormatKey(tt.in); got != tt.want {
			t.Errorf("FormatKey(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestQuestions(t *testing.T) {
	qs := Questions(10)
	if len(qs) != NumQuestions {
		t.Fatalf("expected %d questions, got %d", NumQuestions, len(qs))
	}
	want1 := "1) Si la mujer empuja la caja de $10.0$ kgs con fuerza de $20 N$"
	if !strings.HasPrefix(qs[0].Text, want1) {
		t.Errorf("question 1 = %q, want prefix %q", qs[0].Text, want1)
	}
	for i, q := range qs {
		if q.Index != i {
			t.Errorf("question %d has index %d", i, q.Index)
		}
		if !strings.Contains(q.Text, "$10.0$") {
			t.Errorf("question %d does not contain the key: %q", i, q.Text)
		}
		if q.Image != string(Images[i]) {
			t.Errorf("question %d image = %q, want %q", i, q.Image, Images[i])
		}
		if strings.Contains(q.Text, "%!") {
			t.Errorf("question %d has a formatting error: %q", i, q.Text)
		}
	}
	if !strings.Contains(qs[1].Text, `$30^\circ$`) {
		t.Errorf("question 2 lost its LaTeX: %q", qs[1].Text)
	}
}

func TestImageRefLocal(t *testing.T) {
	tests := []struct {
		ref  ImageRef
		want bool
	}{
		{"images2/1.jpg", true},
		{"/srv/img/1.jpg", true},
		{"https://example.org/1.jpg", false},
		{"HTTP://example.org/1.jpg", false},
	}
	for _, tt := range tests {
		if got := tt.ref.Local(); got != tt.want {
			t.Errorf("ImageRef(%q).Local() = %v, want %v", tt.ref, got, tt.want)
		}
	}
}

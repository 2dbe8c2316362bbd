package codec

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/pavelanni/fuerzas/internal/model"
)

func f(v float64) *float64 { return &v }

// joseReport mirrors testdata/jose_perez.dat, a file written by the
// previous version of the quiz.
func joseReport() model.GradeReport {
	q := func(n string) string { return "q" + n + " $10.0$ m/s^2 ángulo" }
	return model.GradeReport{
		StudentName: "José Pérez",
		Key:         10,
		Score:       3,
		Total:       5,
		Gradable:    5,
		Timestamp:   "2025-03-14 09:26:53",
		Details: []model.GradedAnswer{
			{Question: q("1"), Entered: "1.5", Parsed: f(1.5), Expected: f(1.5), Correct: true},
			{Question: q("2"), Entered: "14.6", Parsed: f(14.6), Expected: f(14.62), Correct: true},
			{Question: q("3"), Entered: "abc", Expected: f(90.19), Correct: false},
			{Question: q("4"), Entered: " 2 ", Parsed: f(2), Expected: f(2), Correct: true},
			{Question: q("5"), Entered: "1.9", Parsed: f(1.9), Expected: f(1.81), Correct: false},
		},
	}
}

const joseDigest = "886f68135b3dcfe1c3ebd584bd75a4cb2bba5fbcab5025b2abd889c6a324106a"

func readTestdata(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

func TestCanonicalMatchesExistingFiles(t *testing.T) {
	got, err := Canonical(joseReport())
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	want := readTestdata(t, "jose_perez.canonical.json")
	if string(got) != want {
		t.Errorf("canonical mismatch\ngot:  %s\nwant: %s", got, want)
	}
}

func TestEncodeReproducesExistingFile(t *testing.T) {
	exp, err := Encode(joseReport())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if exp.Digest != joseDigest {
		t.Errorf("expected digest %s, got %s", joseDigest, exp.Digest)
	}
	if want := readTestdata(t, "jose_perez.dat"); exp.Payload != want {
		t.Errorf("payload differs from the existing file")
	}
	if exp.Filename != "calificacion_José_Pérez_10.0.dat" {
		t.Errorf("unexpected filename %q", exp.Filename)
	}
}

func TestDecodeExistingFile(t *testing.T) {
	v, err := Decode(readTestdata(t, "jose_perez.dat"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !v.Valid {
		t.Fatalf("expected valid file, stored %s computed %s", v.StoredDigest, v.ComputedDigest)
	}
	if v.Report.StudentName != "José Pérez" || v.Report.Key != 10 || v.Report.Score != 3 {
		t.Errorf("unexpected report header: %+v", v.Report)
	}
	if len(v.Report.Details) != 5 {
		t.Fatalf("expected 5 details, got %d", len(v.Report.Details))
	}
	third := v.Report.Details[2]
	if third.Entered != "abc" || third.Parsed != nil || third.Correct {
		t.Errorf("unexpected third detail: %+v", third)
	}
}

func TestRoundTrip(t *testing.T) {
	r := model.GradeReport{
		StudentName: "Ana María",
		Key:         100,
		Score:       5,
		Total:       5,
		Gradable:    5,
		Timestamp:   "2026-10-18 10:00:00",
		Details: []model.GradedAnswer{
			{Question: "q1", Entered: "0.15", Parsed: f(0.15), Expected: f(0.15), Correct: true},
			{Question: "q2", Entered: "-30.38", Parsed: f(-30.38), Expected: f(-30.38), Correct: true},
		},
	}
	exp, err := Encode(r)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	v, err := Decode(exp.Payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !v.Valid {
		t.Fatal("expected round-tripped file to verify")
	}
	if v.StoredDigest != exp.Digest || v.ComputedDigest != exp.Digest {
		t.Errorf("digest mismatch: stored %s computed %s encoded %s", v.StoredDigest, v.ComputedDigest, exp.Digest)
	}
	if v.Report.StudentName != r.StudentName || v.Report.Score != 5 {
		t.Errorf("unexpected report: %+v", v.Report)
	}
}

func TestRoundTripAbsentExpected(t *testing.T) {
	r := model.GradeReport{
		StudentName: "x",
		Key:         -5,
		Total:       5,
		Timestamp:   "2026-10-18 10:00:00",
		Details:     []model.GradedAnswer{{Question: "q1", Entered: "1", Parsed: f(1)}},
	}
	exp, err := Encode(r)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(exp.Payload)
	if !strings.Contains(string(raw), `"respuesta_correcta_esperada": null`) {
		t.Errorf("expected null expected value in %s", raw)
	}
	v, err := Decode(exp.Payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !v.Valid || v.Report.Details[0].Expected != nil {
		t.Errorf("unexpected verification: %+v", v)
	}
}

// tamper decodes a payload, applies fn to the JSON object and re-encodes it
// without touching the stored digest.
func tamper(t *testing.T, payload string, fn func(map[string]any)) string {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	fn(obj)
	out, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return base64.StdEncoding.EncodeToString(out)
}

func TestTamperingIsDetected(t *testing.T) {
	payload := readTestdata(t, "jose_perez.dat")

	tests := []struct {
		name string
		fn   func(map[string]any)
	}{
		{"score raised", func(o map[string]any) { o[KeyScore] = 5 }},
		{"name changed", func(o map[string]any) { o[KeyStudentName] = "Otro" }},
		{"answer flipped", func(o map[string]any) {
			o[KeyDetails].([]any)[2].(map[string]any)[KeyCorrect] = true
		}},
		{"timestamp changed", func(o map[string]any) { o[KeyTimestamp] = "2025-03-15 09:26:53" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Decode(tamper(t, payload, tt.fn))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if v.Valid {
				t.Error("expected tampered file to fail verification")
			}
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	valid := readTestdata(t, "jose_perez.dat")

	tests := []struct {
		name    string
		payload string
	}{
		{"not base64", "***"},
		{"not json", base64.StdEncoding.EncodeToString([]byte("hola"))},
		{"json array", base64.StdEncoding.EncodeToString([]byte("[]"))},
		{"missing digest", tamper(t, valid, func(o map[string]any) { delete(o, KeyDigest) })},
		{"bad digest format", tamper(t, valid, func(o map[string]any) { o[KeyDigest] = "xyz" })},
		{"score as string", tamper(t, valid, func(o map[string]any) { o[KeyScore] = "5" })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.payload)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		name string
		key  float64
		want string
	}{
		{"Ana María López", 10, "calificacion_Ana_María_López_10.0.dat"},
		{"bob", 2.5, "calificacion_bob_2.5.dat"},
	}
	for _, tt := range tests {
		if got := Filename(tt.name, tt.key); got != tt.want {
			t.Errorf("Filename(%q, %v) = %q, want %q", tt.name, tt.key, got, tt.want)
		}
	}
}

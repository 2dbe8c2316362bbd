// Package codec turns a graded session into the integrity-stamped grading
// file students hand in, and verifies such files.
//
// The digest covers the record without the digest field, serialized by
// canonjson with sorted keys. The final file is the base64 of the record
// with the digest appended, serialized in insertion order.
package codec

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pavelanni/fuerzas/internal/canonjson"
	"github.com/pavelanni/fuerzas/internal/model"
	"github.com/pavelanni/fuerzas/internal/physics"
)

// Record field names. They are part of the file format.
const (
	KeyStudentName = "nombre_estudiante"
	KeyKey         = "clave_ingresada"
	KeyScore       = "calificacion_obtenida"
	KeyTotal       = "total_preguntas_examinadas"
	KeyGradable    = "total_preguntas_validas_para_calificar"
	KeyTimestamp   = "fecha_hora"
	KeyDetails     = "respuestas_detalles"
	KeyDigest      = "hash_sha256_integridad"

	KeyQuestion = "pregunta"
	KeyEntered  = "respuesta_ingresada"
	KeyParsed   = "respuestas_ingresadas_num"
	KeyExpected = "respuesta_correcta_esperada"
	KeyCorrect  = "es_correcta"
)

const (
	// MIMEType is the content type of a grading file download.
	MIMEType = "application/octet-stream"
	// TimestampLayout formats the grading time stored in the record.
	TimestampLayout = "2006-01-02 15:04:05"
)

// Export is an encoded grading file.
type Export struct {
	Payload  string
	Filename string
	Digest   string
}

// Record builds the pre-digest record of a report, in file order.
func Record(r model.GradeReport) canonjson.Object {
	details := make([]canonjson.Object, 0, len(r.Details))
	for _, d := range r.Details {
		parsed := []float64{}
		if d.Parsed != nil {
			parsed = append(parsed, *d.Parsed)
		}
		details = append(details, canonjson.Object{
			{Key: KeyQuestion, Value: d.Question},
			{Key: KeyEntered, Value: d.Entered},
			{Key: KeyParsed, Value: parsed},
			{Key: KeyExpected, Value: d.Expected},
			{Key: KeyCorrect, Value: d.Correct},
		})
	}

	return canonjson.Object{
		{Key: KeyStudentName, Value: r.StudentName},
		{Key: KeyKey, Value: r.Key},
		{Key: KeyScore, Value: r.Score},
		{Key: KeyTotal, Value: r.Total},
		{Key: KeyGradable, Value: r.Gradable},
		{Key: KeyTimestamp, Value: r.Timestamp},
		{Key: KeyDetails, Value: details},
	}
}

// Canonical returns the exact bytes the digest of r is computed over.
func Canonical(r model.GradeReport) ([]byte, error) {
	return canonjson.MarshalSorted(Record(r))
}

// Digest returns the hex SHA-256 of the sorted-key serialization of record.
func Digest(record any) (string, error) {
	canonical, err := canonjson.MarshalSorted(record)
	if err != nil {
		return "", fmt.Errorf("canonical record: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Encode stamps r with its digest and returns the base64 grading file.
func Encode(r model.GradeReport) (Export, error) {
	record := Record(r)
	digest, err := Digest(record)
	if err != nil {
		return Export{}, err
	}

	final := append(record, canonjson.Member{Key: KeyDigest, Value: digest})
	body, err := canonjson.Marshal(final)
	if err != nil {
		return Export{}, fmt.Errorf("final record: %w", err)
	}

	return Export{
		Payload:  base64.StdEncoding.EncodeToString(body),
		Filename: Filename(r.StudentName, r.Key),
		Digest:   digest,
	}, nil
}

// Filename names the grading file of a student.
func Filename(name string, key float64) string {
	return fmt.Sprintf("calificacion_%s_%s.dat", strings.ReplaceAll(name, " ", "_"), physics.FormatKey(key))
}

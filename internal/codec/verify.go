package codec

import (
	"bytes"
	"embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/pavelanni/fuerzas/internal/model"
)

//go:embed schema/result.schema.json
var schemaFS embed.FS

const schemaURL = "schema://result.schema.json"

// ErrMalformed is returned for payloads that are not a grading file at all.
var ErrMalformed = errors.New("malformed grading file")

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

// Verification is the outcome of decoding a grading file.
type Verification struct {
	Report         model.GradeReport
	StoredDigest   string
	ComputedDigest string
	// Valid is false when the record was modified after it was stamped.
	Valid bool
}

// Decode reads a base64 grading file, validates its shape and recomputes
// its digest. A digest mismatch is reported through Verification.Valid;
// only unreadable payloads return an error.
func Decode(payload string) (*Verification, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrMalformed, err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: json: %v", ErrMalformed, err)
	}

	schema, err := resultSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	obj := doc.(map[string]any)
	stored, _ := obj[KeyDigest].(string)

	record := make(map[string]any, len(obj))
	for k, v := range obj {
		if k != KeyDigest {
			record[k] = v
		}
	}
	computed, err := Digest(record)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	report, err := reportFromRecord(record)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return &Verification{
		Report:         report,
		StoredDigest:   stored,
		ComputedDigest: computed,
		Valid:          stored == computed,
	}, nil
}

func resultSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		data, err := schemaFS.ReadFile("schema/result.schema.json")
		if err != nil {
			compileErr = fmt.Errorf("read schema: %w", err)
			return
		}
		// The compiler expects a parsed JSON value, not raw bytes.
		def, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			compileErr = fmt.Errorf("parse schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, def); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile(schemaURL)
	})
	return compiled, compileErr
}

func reportFromRecord(rec map[string]any) (model.GradeReport, error) {
	var r model.GradeReport
	var err error

	r.StudentName, _ = rec[KeyStudentName].(string)
	r.Timestamp, _ = rec[KeyTimestamp].(string)
	if r.Key, err = number(rec[KeyKey]); err != nil {
		return r, fmt.Errorf("%s: %w", KeyKey, err)
	}
	if r.Score, err = integer(rec[KeyScore]); err != nil {
		return r, fmt.Errorf("%s: %w", KeyScore, err)
	}
	if r.Total, err = integer(rec[KeyTotal]); err != nil {
		return r, fmt.Errorf("%s: %w", KeyTotal, err)
	}
	if r.Gradable, err = integer(rec[KeyGradable]); err != nil {
		return r, fmt.Errorf("%s: %w", KeyGradable, err)
	}

	items, _ := rec[KeyDetails].([]any)
	for i, item := range items {
		d, _ := item.(map[string]any)
		ga := model.GradedAnswer{}
		ga.Question, _ = d[KeyQuestion].(string)
		ga.Entered, _ = d[KeyEntered].(string)
		ga.Correct, _ = d[KeyCorrect].(bool)
		if nums, ok := d[KeyParsed].([]any); ok && len(nums) > 0 {
			v, err := number(nums[0])
			if err != nil {
				return r, fmt.Errorf("detail %d %s: %w", i, KeyParsed, err)
			}
			ga.Parsed = &v
		}
		if d[KeyExpected] != nil {
			v, err := number(d[KeyExpected])
			if err != nil {
				return r, fmt.Errorf("detail %d %s: %w", i, KeyExpected, err)
			}
			ga.Expected = &v
		}
		r.Details = append(r.Details, ga)
	}
	return r, nil
}

func number(v any) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Float64()
	case float64:
		return n, nil
	}
	return 0, fmt.Errorf("not a number: %v", v)
}

func integer(v any) (int, error) {
	f, err := number(v)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

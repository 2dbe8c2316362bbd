// Package prompts renders the feedback prompts sent to the LLM during review.
package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/fuerzas/internal/model"
)

//go:embed templates/*.txt
var templateFS embed.FS

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

// maxAnswerRunes caps the student text placed in a prompt.
const maxAnswerRunes = 500

// Variant selects how much the feedback explains.
type Variant string

const (
	// Brief asks for a single sentence.
	Brief Variant = "brief"
	// Standard is the default.
	Standard Variant = "standard"
	// Detailed walks through the free-body diagram.
	Detailed Variant = "detailed"
)

// Variants lists every variant with a template.
var Variants = []Variant{Brief, Standard, Detailed}

var languageNames = map[string]string{
	"es": "Spanish",
	"en": "English",
}

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[Variant]*template.Template
)

// IsValidVariant checks if a variant name is valid.
func IsValidVariant(v string) bool {
	for _, known := range Variants {
		if string(known) == v {
			return true
		}
	}
	return false
}

// FeedbackData holds template data for feedback prompts.
type FeedbackData struct {
	QuestionText string
	Expected     string
	Entered      string
	Language     string
}

// Load parses the embedded templates once.
func Load() error {
	loadOnce.Do(func() {
		templates, loadErr = parse(templateFS)
	})
	return loadErr
}

func parse(fsys fs.FS) (map[Variant]*template.Template, error) {
	out := make(map[Variant]*template.Template, len(Variants))
	for _, v := range Variants {
		name := "templates/feedback_" + string(v) + ".txt"
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read prompt file %s: %w", name, err)
		}
		tmpl, err := template.New(string(v)).Option("missingkey=error").Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
		}
		out[v] = tmpl
	}
	return out, nil
}

// BuildFeedbackPrompt renders the prompt asking for feedback on an incorrect
// answer. lang is a UI language code; unknown codes fall back to Spanish.
func BuildFeedbackPrompt(variant Variant, ga model.GradedAnswer, lang string) (string, error) {
	if templates == nil {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := templates[variant]
	if !ok {
		return "", errors.New("invalid prompt variant: " + string(variant))
	}
	if ga.Expected == nil {
		return "", errors.New("answer has no expected value")
	}

	language, ok := languageNames[lang]
	if !ok {
		language = languageNames["es"]
	}

	data := FeedbackData{
		QuestionText: ga.Question,
		Expected:     strconv.FormatFloat(*ga.Expected, 'f', 2, 64),
		Entered:      sanitizeAnswer(ga.Entered),
		Language:     language,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sanitizeAnswer(answer string) string {
	answer = studentAnswerRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		answer = string(runes[:maxAnswerRunes]) + " [truncated]"
	}
	return answer
}

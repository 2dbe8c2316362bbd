package physics

import (
	"fmt"
	"strings"

	"github.com/pavelanni/fuerzas/internal/canonjson"
	"github.com/pavelanni/fuerzas/internal/model"
)

// questionTemplates hold the problem statements; %s receives the formatted key.
// The texts end up verbatim in the grading file, so they must not change.
var questionTemplates = [NumQuestions]string{
	`1) Si la mujer empuja la caja de $%s$ kgs con fuerza de $20 N$ y la fuerza de fricción es de $5 N$, calcule la aceleración de la caja. La respuesta estará en $m/s^2$ pero solo responde con la cantidad numérica. (2 decimales)`,
	`2) Si la masa es de $2 kg$, el ángulo es de $30^\circ$ y la fuerza $F$ es de $%s$ N, encuentre el valor de la fuerza normal. La respuesta estará en $N$ pero solo responde con la cantidad numérica. (2 decimales)`,
	`3) Si la masa del objeto esférico es de $%s$ kg y la tensión que lo levanta es de $1000 N$, encuentre la aceleración del objeto. La respuesta estará en $m/s^2$ pero solo responde con la cantidad numérica. (2 decimales)`,
	`4) Calcule la aceleración si la fricción es $%s$ $N$, tomando en cuenta las fuerzas de la figura y una masa de $10 kg$. La respuesta estará en $N$ pero solo responde con la cantidad numérica. (2 decimales)`,
	`5) Si la masa es de $5 kg$ y la fuerza es $%s$ $N$, calcule la aceleración. La respuesta estará en $m/s^2$ pero solo responde con la cantidad numérica. (2 decimales)`,
}

// ImageRef points at the figure of a question: either a path relative to
// the image directory or an absolute http(s) URL.
type ImageRef string

// Local reports whether the reference is not a public URL.
func (r ImageRef) Local() bool {
	s := strings.ToLower(string(r))
	return !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://")
}

// Images maps question index to its figure. It is the same for every session.
var Images = map[int]ImageRef{
	0: "images2/1.jpg",
	1: "images2/2.jpg",
	2: "images2/3.png",
	3: "images2/4.jpg",
	4: "images2/5.jpg",
}

// FormatKey renders a key the way it appears in question texts and file names.
func FormatKey(key float64) string {
	return canonjson.FormatFloat(key)
}

// Questions renders the five problem statements for key.
func Questions(key float64) []model.Question {
	k := FormatKey(key)
	questions := make([]model.Question, NumQuestions)
	for i, tmpl := range questionTemplates {
		questions[i] = model.Question{
			Index: i,
			Text:  fmt.Sprintf(tmpl, k),
			Image: string(Images[i]),
		}
	}
	return questions
}

package views

import (
	"context"

	"github.com/a-h/templ"

	appI18n "github.com/pavelanni/fuerzas/internal/i18n"
)

// RegistrationView is the state of the registration form.
type RegistrationView struct {
	Name  string
	Key   string
	Error string
}

// QuestionView is the question awaiting an answer.
type QuestionView struct {
	Name  string
	Key   string
	Index int
	Total int
	Text  string
	Image string
	// Warning is set when the image cannot be served; the question is still shown.
	Warning string
	Error   string
}

// CompleteView is the final page of a session.
type CompleteView struct {
	Name      string
	Filename  string
	Available bool
}

// RegistrationPage renders the name and key form.
func RegistrationPage(v RegistrationView) templ.Component {
	return component(func(ctx context.Context, h *html) {
		title := appI18n.T(ctx, "AppTitle")
		h.render(ctx, Page(title, component(func(ctx context.Context, h *html) {
			h.raw(`<h1>`)
			h.text(title)
			h.raw(`</h1><p>`)
			h.text(appI18n.T(ctx, "Welcome"))
			h.raw(`</p>`)
			alert(h, "error", v.Error)
			form(ctx, h, "/register", "")
			h.raw(`<p><label for="name">`)
			h.text(appI18n.T(ctx, "NameLabel"))
			h.raw(`</label><br><input id="name" name="name" type="text" autocomplete="name" value="`)
			h.text(v.Name)
			h.raw(`"></p><p><label for="key">`)
			h.text(appI18n.T(ctx, "KeyLabel"))
			h.raw(`</label><br><input id="key" name="key" type="text" inputmode="decimal" value="`)
			h.text(v.Key)
			h.raw(`"></p><button type="submit">`)
			h.text(appI18n.T(ctx, "StartQuiz"))
			h.raw(`</button></form>`)
		})))
	})
}

// QuestionPage renders one question with its answer form.
func QuestionPage(v QuestionView) templ.Component {
	return component(func(ctx context.Context, h *html) {
		n := v.Index + 1
		h.render(ctx, Page(appI18n.T(ctx, "AppTitle"), component(func(ctx context.Context, h *html) {
			h.raw(`<h1>`)
			h.text(appI18n.Td(ctx, "Greeting", map[string]any{"Name": v.Name}))
			h.raw(`</h1><h2>`)
			h.text(appI18n.Td(ctx, "KeyHeading", map[string]any{"Key": v.Key}))
			h.raw(`</h2>`)
			alert(h, "error", v.Error)
			h.raw(`<p><strong>`)
			h.text(appI18n.Td(ctx, "QuestionNofM", map[string]any{"N": n, "Total": v.Total}))
			h.raw(`</strong></p><p class="question">`)
			h.text(v.Text)
			h.raw(`</p>`)
			alert(h, "warning", v.Warning)
			if v.Image != "" {
				caption := appI18n.Td(ctx, "ImageCaption", map[string]any{"N": n})
				h.raw(`<figure><img src="`)
				h.text(v.Image)
				h.raw(`" alt="`)
				h.text(caption)
				h.raw(`"><figcaption>`)
				h.text(caption)
				h.raw(`</figcaption></figure><hr>`)
			}
			form(ctx, h, "/answer", "")
			h.raw(`<input type="hidden" name="question" value="` + itoa(v.Index) + `">`)
			h.raw(`<p><label for="answer">`)
			h.text(appI18n.T(ctx, "AnswerLabel"))
			h.raw(`</label><br><input id="answer" name="answer" type="text" inputmode="decimal" autocomplete="off" autofocus></p><hr>`)
			h.raw(`<button type="submit">`)
			h.text(appI18n.T(ctx, "NextQuestion"))
			h.raw(`</button></form>`)
		})))
	})
}

// CompletePage thanks the student and offers the grading file.
func CompletePage(v CompleteView) templ.Component {
	return component(func(ctx context.Context, h *html) {
		h.render(ctx, Page(appI18n.T(ctx, "AppTitle"), component(func(ctx context.Context, h *html) {
			alert(h, "success", appI18n.Td(ctx, "Thanks", map[string]any{"Name": v.Name}))
			h.raw(`<p>`)
			h.text(appI18n.T(ctx, "FinishedText"))
			h.raw(`</p>`)
			if v.Available {
				h.raw(`<p><a class="button" download="`)
				h.text(v.Filename)
				h.raw(`" href="`)
				h.text(path(ctx, "/download"))
				h.raw(`">`)
				h.text(appI18n.T(ctx, "Download"))
				h.raw(`</a></p>`)
			} else {
				alert(h, "warning", appI18n.T(ctx, "DownloadMissing"))
			}
			h.raw(`<p>`)
			h.text(appI18n.T(ctx, "CloseTab"))
			h.raw(`</p>`)
			form(ctx, h, "/restart", "")
			h.raw(`<button type="submit">`)
			h.text(appI18n.T(ctx, "Restart"))
			h.raw(`</button></form>`)
		})))
	})
}

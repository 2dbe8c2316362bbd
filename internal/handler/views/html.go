// Package views renders the HTML pages as templ components.
package views

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"

	appI18n "github.com/pavelanni/fuerzas/internal/i18n"
	"github.com/pavelanni/fuerzas/internal/model"
)

// html accumulates writes and keeps the first error.
type html struct {
	w   io.Writer
	err error
}

func (h *html) raw(s string) {
	if h.err != nil {
		return
	}
	_, h.err = io.WriteString(h.w, s)
}

// text writes s escaped for element content or a quoted attribute value.
func (h *html) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *html) render(ctx context.Context, c templ.Component) {
	if h.err != nil || c == nil {
		return
	}
	h.err = c.Render(ctx, h.w)
}

// component adapts a write function into a templ.Component.
func component(fn func(ctx context.Context, h *html)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		fn(ctx, h)
		return h.err
	})
}

// path prefixes p with the request's base path.
func path(ctx context.Context, p string) string {
	return model.BasePathFromContext(ctx) + p
}

func csrfField(ctx context.Context, h *html) {
	h.raw(`<input type="hidden" name="csrf_token" value="`)
	h.text(model.CSRFTokenFromContext(ctx))
	h.raw(`">`)
}

// form opens a POST form to action. enctype may be empty.
func form(ctx context.Context, h *html, action, enctype string) {
	h.raw(`<form method="post" action="`)
	h.text(path(ctx, action))
	h.raw(`"`)
	if enctype != "" {
		h.raw(` enctype="` + enctype + `"`)
	}
	h.raw(`>`)
	csrfField(ctx, h)
}

func alert(h *html, kind, msg string) {
	if msg == "" {
		return
	}
	h.raw(`<div class="alert alert-` + kind + `" role="alert">`)
	h.text(msg)
	h.raw(`</div>`)
}

// Layout wraps the children of ctx in the page chrome.
func Layout(title string) templ.Component {
	return component(func(ctx context.Context, h *html) {
		lang := appI18n.Lang(ctx)
		h.raw(`<!DOCTYPE html><html lang="` + lang + `"><head><meta charset="utf-8">`)
		h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.raw(`<title>`)
		h.text(title)
		h.raw(`</title>`)
		h.raw(`<link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/katex@0.16.11/dist/katex.min.css">`)
		h.raw(`<script defer src="https://cdn.jsdelivr.net/npm/katex@0.16.11/dist/katex.min.js"></script>`)
		h.raw(`<script defer src="https://cdn.jsdelivr.net/npm/katex@0.16.11/dist/contrib/auto-render.min.js" onload="renderMathInElement(document.body,{delimiters:[{left:'$',right:'$',display:false}]})"></script>`)
		h.raw(`<style>body{font-family:sans-serif;max-width:46rem;margin:2rem auto;padding:0 1rem}`)
		h.raw(`.alert{padding:.75rem;border-radius:.3rem;margin:1rem 0}.alert-error{background:#fde2e1}.alert-warning{background:#fff4d6}`)
		h.raw(`.alert-success{background:#e1f5e4}.alert-info{background:#e3eefc}table{border-collapse:collapse;width:100%}`)
		h.raw(`td,th{border-bottom:1px solid #ddd;padding:.4rem;text-align:left}img{max-width:100%}nav{margin-bottom:1rem}</style>`)
		h.raw(`</head><body><nav>`)
		for _, l := range appI18n.Supported {
			if l == lang {
				h.raw(`<strong>` + l + `</strong> `)
				continue
			}
			h.raw(`<a href="?lang=` + l + `">` + l + `</a> `)
		}
		userNav(ctx, h)
		h.raw(`</nav><main>`)
		h.render(ctx, templ.GetChildren(ctx))
		h.raw(`</main></body></html>`)
	})
}

// Page renders body inside Layout.
func Page(title string, body templ.Component) templ.Component {
	return component(func(ctx context.Context, h *html) {
		h.render(templ.WithChildren(ctx, body), Layout(title))
	})
}

func itoa(n int) string { return strconv.Itoa(n) }

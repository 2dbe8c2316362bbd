package i18n

import (
	"net/http"

	"golang.org/x/text/language"
)

// LangCookie remembers a language picked with the ?lang= query parameter.
const LangCookie = "lang"

var matcher = language.NewMatcher([]language.Tag{language.Spanish, language.English})

// Middleware picks the request language from ?lang=, the lang cookie or
// Accept-Language, in that order, and injects the matching localizer.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang := ""
		if q := r.URL.Query().Get("lang"); IsSupported(q) {
			lang = q
			http.SetCookie(w, &http.Cookie{
				Name:     LangCookie,
				Value:    q,
				Path:     "/",
				MaxAge:   365 * 24 * 3600,
				SameSite: http.SameSiteLaxMode,
			})
		} else if c, err := r.Cookie(LangCookie); err == nil && IsSupported(c.Value) {
			lang = c.Value
		} else if accept := r.Header.Get("Accept-Language"); accept != "" {
			tags, _, err := language.ParseAcceptLanguage(accept)
			if err == nil && len(tags) > 0 {
				_, idx, conf := matcher.Match(tags...)
				if conf != language.No {
					lang = Supported[idx]
				}
			}
		}

		ctx := r.Context()
		if lang != "" {
			ctx = WithLang(ctx, lang)
		}
		ctx = WithLocalizer(ctx, NewLocalizer(Lang(ctx)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

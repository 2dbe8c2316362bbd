package views

import (
	"context"
	"strconv"

	"github.com/a-h/templ"

	"github.com/pavelanni/fuerzas/internal/codec"
	appI18n "github.com/pavelanni/fuerzas/internal/i18n"
	"github.com/pavelanni/fuerzas/internal/model"
	"github.com/pavelanni/fuerzas/internal/physics"
)

const timeLayout = "2006-01-02 15:04"

// VerifyView is the outcome of an uploaded grading file.
type VerifyView struct {
	Filename     string
	Malformed    bool
	Verification *codec.Verification
	// Issued is the matching record of this server, nil if it never issued the file.
	Issued *model.IssuedResult
	Hints  map[int]string
}

func userNav(ctx context.Context, h *html) {
	u := model.UserFromContext(ctx)
	if u == nil {
		return
	}
	h.raw(` | <a href="` + templ.EscapeString(path(ctx, "/results")) + `">`)
	h.text(appI18n.T(ctx, "Results"))
	h.raw(`</a> <a href="` + templ.EscapeString(path(ctx, "/verify")) + `">`)
	h.text(appI18n.T(ctx, "Verify"))
	h.raw(`</a> `)
	if u.Role == model.UserRoleAdmin {
		h.raw(`<a href="` + templ.EscapeString(path(ctx, "/admin/users")) + `">`)
		h.text(appI18n.T(ctx, "Users"))
		h.raw(`</a> `)
	}
	form(ctx, h, "/logout", "")
	h.raw(`<span>`)
	h.text(u.DisplayName)
	h.raw(`</span> <button type="submit">`)
	h.text(appI18n.T(ctx, "Logout"))
	h.raw(`</button></form>`)
}

// LoginPage renders the instructor login form. next is the page to return
// to after a successful login.
func LoginPage(errMsg, next string) templ.Component {
	return component(func(ctx context.Context, h *html) {
		title := appI18n.T(ctx, "Login")
		h.render(ctx, Page(title, component(func(ctx context.Context, h *html) {
			h.raw(`<h1>`)
			h.text(title)
			h.raw(`</h1>`)
			alert(h, "error", errMsg)
			form(ctx, h, "/login", "")
			if next != "" {
				h.raw(`<input type="hidden" name="next" value="`)
				h.text(next)
				h.raw(`">`)
			}
			h.raw(`<p><label for="username">`)
			h.text(appI18n.T(ctx, "Username"))
			h.raw(`</label><br><input id="username" name="username" type="text" autocomplete="username"></p>`)
			h.raw(`<p><label for="password">`)
			h.text(appI18n.T(ctx, "Password"))
			h.raw(`</label><br><input id="password" name="password" type="password" autocomplete="current-password"></p>`)
			h.raw(`<button type="submit">`)
			h.text(title)
			h.raw(`</button></form>`)
		})))
	})
}

// ResultsPage lists issued results.
func ResultsPage(results []model.IssuedResult) templ.Component {
	return component(func(ctx context.Context, h *html) {
		title := appI18n.T(ctx, "Results")
		h.render(ctx, Page(title, component(func(ctx context.Context, h *html) {
			h.raw(`<h1>`)
			h.text(title)
			h.raw(`</h1><p>`)
			h.text(appI18n.Tp(ctx, "ResultsCount", len(results)))
			h.raw(`</p>`)
			if len(results) == 0 {
				return
			}
			h.raw(`<table><thead><tr>`)
			for _, col := range []string{"ColStudent", "ColKey", "ColScore", "ColIssued", "ColDigest"} {
				h.raw(`<th>`)
				h.text(appI18n.T(ctx, col))
				h.raw(`</th>`)
			}
			h.raw(`</tr></thead><tbody>`)
			for _, r := range results {
				h.raw(`<tr><td>`)
				h.text(r.StudentName)
				h.raw(`</td><td>`)
				h.text(physics.FormatKey(r.Key))
				h.raw(`</td><td>`)
				h.text(itoa(r.Score) + "/" + itoa(r.Total))
				h.raw(`</td><td>`)
				h.text(r.IssuedAt.Format(timeLayout))
				h.raw(`</td><td><code>`)
				h.text(shortDigest(r.Digest))
				h.raw(`</code></td></tr>`)
			}
			h.raw(`</tbody></table>`)
		})))
	})
}

// VerifyPage renders the upload form and, after an upload, the decoded record.
func VerifyPage(v *VerifyView) templ.Component {
	return component(func(ctx context.Context, h *html) {
		title := appI18n.T(ctx, "Verify")
		h.render(ctx, Page(title, component(func(ctx context.Context, h *html) {
			h.raw(`<h1>`)
			h.text(title)
			h.raw(`</h1>`)
			form(ctx, h, "/verify", "multipart/form-data")
			h.raw(`<p><label for="file">`)
			h.text(appI18n.T(ctx, "VerifyUpload"))
			h.raw(`</label><br><input id="file" name="file" type="file" accept=".dat"></p>`)
			h.raw(`<p><label><input type="checkbox" name="feedback" value="1"> `)
			h.text(appI18n.T(ctx, "ColFeedback"))
			h.raw(`</label></p><button type="submit">`)
			h.text(appI18n.T(ctx, "VerifyButton"))
			h.raw(`</button></form>`)

			if v == nil {
				return
			}
			if v.Filename != "" {
				h.raw(`<h2>`)
				h.text(v.Filename)
				h.raw(`</h2>`)
			}
			if v.Malformed || v.Verification == nil {
				alert(h, "error", appI18n.T(ctx, "VerifyMalformed"))
				return
			}
			verificationDetails(ctx, h, v)
		})))
	})
}

func verificationDetails(ctx context.Context, h *html, v *VerifyView) {
	ver := v.Verification
	if ver.Valid {
		alert(h, "success", appI18n.T(ctx, "VerifyValid"))
	} else {
		alert(h, "error", appI18n.T(ctx, "VerifyInvalid"))
	}
	if v.Issued != nil {
		alert(h, "info", appI18n.Td(ctx, "IssuedHere", map[string]any{"At": v.Issued.IssuedAt.Format(timeLayout)}))
	} else {
		alert(h, "info", appI18n.T(ctx, "NotIssuedHere"))
	}

	r := ver.Report
	h.raw(`<p><strong>`)
	h.text(appI18n.T(ctx, "ColStudent"))
	h.raw(`:</strong> `)
	h.text(r.StudentName)
	h.raw(` &middot; <strong>`)
	h.text(appI18n.T(ctx, "ColKey"))
	h.raw(`:</strong> `)
	h.text(physics.FormatKey(r.Key))
	h.raw(` &middot; `)
	h.text(r.Timestamp)
	h.raw(`</p><p>`)
	h.text(appI18n.Td(ctx, "Score", map[string]any{"Score": r.Score, "Total": r.Total, "Gradable": r.Gradable}))
	h.raw(`</p><p><code>`)
	h.text(ver.StoredDigest)
	h.raw(`</code></p>`)

	cols := []string{"ColQuestion", "ColEntered", "ColExpected", "ColCorrect"}
	if len(v.Hints) > 0 {
		cols = append(cols, "ColFeedback")
	}
	h.raw(`<table><thead><tr><th>#</th>`)
	for _, col := range cols {
		h.raw(`<th>`)
		h.text(appI18n.T(ctx, col))
		h.raw(`</th>`)
	}
	h.raw(`</tr></thead><tbody>`)
	for i, d := range r.Details {
		h.raw(`<tr><td>` + itoa(i+1) + `</td><td class="question">`)
		h.text(d.Question)
		h.raw(`</td><td><code>`)
		h.text(d.Entered)
		h.raw(`</code></td><td>`)
		if d.Expected != nil {
			h.text(strconv.FormatFloat(*d.Expected, 'f', 2, 64))
		} else {
			h.raw(`&mdash;`)
		}
		h.raw(`</td><td>`)
		if d.Correct {
			h.text(appI18n.T(ctx, "Yes"))
		} else {
			h.text(appI18n.T(ctx, "No"))
		}
		h.raw(`</td>`)
		if len(v.Hints) > 0 {
			h.raw(`<td>`)
			h.text(v.Hints[i])
			h.raw(`</td>`)
		}
		h.raw(`</tr>`)
	}
	h.raw(`</tbody></table>`)
}

// AdminUsersPage lists instructor accounts with a creation form.
func AdminUsersPage(users []model.User, errMsg string) templ.Component {
	return component(func(ctx context.Context, h *html) {
		title := appI18n.T(ctx, "Users")
		h.render(ctx, Page(title, component(func(ctx context.Context, h *html) {
			h.raw(`<h1>`)
			h.text(title)
			h.raw(`</h1>`)
			alert(h, "error", errMsg)
			h.raw(`<table><thead><tr><th>`)
			h.text(appI18n.T(ctx, "Username"))
			h.raw(`</th><th>`)
			h.text(appI18n.T(ctx, "DisplayName"))
			h.raw(`</th><th>`)
			h.text(appI18n.T(ctx, "Role"))
			h.raw(`</th><th>`)
			h.text(appI18n.T(ctx, "Active"))
			h.raw(`</th><th></th></tr></thead><tbody>`)
			for _, u := range users {
				h.raw(`<tr><td>`)
				h.text(u.Username)
				h.raw(`</td><td>`)
				h.text(u.DisplayName)
				h.raw(`</td><td>`)
				h.text(string(u.Role))
				h.raw(`</td><td>`)
				label, next := "Enable", "1"
				if u.Active {
					h.text(appI18n.T(ctx, "Yes"))
					label, next = "Disable", "0"
				} else {
					h.text(appI18n.T(ctx, "No"))
				}
				h.raw(`</td><td>`)
				form(ctx, h, "/admin/users/"+strconv.FormatInt(u.ID, 10)+"/active", "")
				h.raw(`<input type="hidden" name="active" value="` + next + `"><button type="submit">`)
				h.text(appI18n.T(ctx, label))
				h.raw(`</button></form></td></tr>`)
			}
			h.raw(`</tbody></table><h2>`)
			h.text(appI18n.T(ctx, "CreateUser"))
			h.raw(`</h2>`)
			form(ctx, h, "/admin/users", "")
			for _, f := range []struct{ name, label, typ string }{
				{"username", "Username", "text"},
				{"display_name", "DisplayName", "text"},
				{"password", "Password", "password"},
			} {
				h.raw(`<p><label>`)
				h.text(appI18n.T(ctx, f.label))
				h.raw(`<br><input name="` + f.name + `" type="` + f.typ + `"></label></p>`)
			}
			h.raw(`<p><label>`)
			h.text(appI18n.T(ctx, "Role"))
			h.raw(`<br><select name="role"><option value="instructor">instructor</option><option value="admin">admin</option></select></label></p>`)
			h.raw(`<button type="submit">`)
			h.text(appI18n.T(ctx, "CreateUser"))
			h.raw(`</button></form>`)
		})))
	})
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

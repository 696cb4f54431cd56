package handler

import (
	"html/template"
	"net/http"

	"go.uber.org/zap"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>Shortly | {{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<form method="post" action="{{.Action}}">
  <label>Username <input name="username" autocomplete="username" required></label>
  <label>Password <input name="password" type="password" required></label>
  <button type="submit">{{.Title}}</button>
</form>
{{range .Providers}}<p><a href="/auth/{{.}}/login">Continue with {{.}}</a></p>
{{end}}<p><a href="{{.OtherHref}}">{{.OtherLabel}}</a></p>
</body>
</html>
`))

type pageData struct {
	Title      string
	Action     string
	Providers  []string
	OtherHref  string
	OtherLabel string
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, pageData{
		Title:      "Log in",
		Action:     "/login",
		Providers:  h.Providers(),
		OtherHref:  "/signup",
		OtherLabel: "Create an account",
	})
}

func (h *AuthHandler) SignupPage(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, pageData{
		Title:      "Sign up",
		Action:     "/signup",
		OtherHref:  "/login",
		OtherLabel: "Already have an account?",
	})
}

func (h *AuthHandler) renderPage(w http.ResponseWriter, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		h.logger.Error("render page failed", zap.Error(err))
	}
}

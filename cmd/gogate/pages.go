package main

import (
	"bytes"
	"html/template"
	"net/http"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/middleware"
	"github.com/rs/zerolog/hlog"
)

const pageTemplate = `<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body>
<p>Signed in as {{.Identity.Identity}} ({{role .Identity}})</p>
<nav>
<a href="/">Home</a>
{{if isGranted .Identity "admin.view"}}<a href="/admin">Admin</a>{{end}}
<a href="{{.Logout}}">Sign out</a>
</nav>
<h1>{{.Title}}</h1>
</body>
</html>
`

type pageData struct {
	Title    string
	Logout   string
	Identity goGate.SessionIdentity
}

func pageHandler(tmpl *template.Template, title, logoutPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		err := tmpl.Execute(&buf, pageData{
			Title:    title,
			Logout:   logoutPath,
			Identity: middleware.IdentityFromContext(r.Context()),
		})
		if err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("render page")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = buf.WriteTo(w)
	}
}

package middleware

import (
	"html/template"

	goGate "github.com/MrEthical07/goGate"
)

// ViewFuncs exposes authorization to templates:
//
//	{{if isGranted .Identity "admin.view"}}<a href="/admin">Admin</a>{{end}}
//	{{role .Identity}}
//
// role returns "guest" for anonymous callers.
func ViewFuncs(engine *goGate.Engine) template.FuncMap {
	return template.FuncMap{
		"isGranted": func(identity goGate.SessionIdentity, resource string) bool {
			return engine.IsGranted(identity, resource)
		},
		"role": func(identity goGate.SessionIdentity) string {
			if identity.IsAnonymous() {
				return "guest"
			}
			return identity.Role
		},
	}
}

// LoginPage is the data the login template renders.
type LoginPage struct {
	Action   string
	Token    string
	Flash    string
	Identity goGate.SessionIdentity

	IdentityField   string
	SecretField     string
	TokenField      string
	RememberMeField string
}

const defaultLoginTemplate = `<!DOCTYPE html>
<html>
<head><title>Sign in</title></head>
<body>
{{if .Flash}}<p class="flash">{{.Flash}}</p>{{end}}
{{if not .Identity.IsAnonymous}}<p>Signed in as {{.Identity.Identity}} ({{role .Identity}})</p>{{end}}
<form method="post" action="{{.Action}}">
<input type="hidden" name="{{.TokenField}}" value="{{.Token}}">
<label>Email <input type="text" name="{{.IdentityField}}" autocomplete="username"></label>
<label>Password <input type="password" name="{{.SecretField}}" autocomplete="current-password"></label>
<label><input type="checkbox" name="{{.RememberMeField}}" value="1"> Remember me</label>
<button type="submit">Sign in</button>
</form>
</body>
</html>
`

// DefaultLoginTemplate parses the built-in login page with ViewFuncs.
func DefaultLoginTemplate(engine *goGate.Engine) (*template.Template, error) {
	return template.New("login").Funcs(ViewFuncs(engine)).Parse(defaultLoginTemplate)
}

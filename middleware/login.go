package middleware

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"
	"strconv"

	goGate "github.com/MrEthical07/goGate"
	"github.com/go-playground/validator/v10"
)

// loginForm bounds the submitted fields before they reach the store.
// Limits count bytes, matching the credential column and session encoding.
type loginForm struct {
	Identity string `validate:"required,maxbytes=255"`
	Secret   string `validate:"required,maxbytes=1024"`
}

var formValidator = newFormValidator()

func newFormValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("maxbytes", maxBytes); err != nil {
		panic(err)
	}
	return v
}

func maxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}

// LoginHandler serves the login resource with Post/Redirect/Get: GET
// renders the form, POST never renders and always answers 303 See Other.
type LoginHandler struct {
	engine  *goGate.Engine
	cookies *CookieCodec
	view    *template.Template
	cfg     goGate.LoginConfig
}

// NewLoginHandler returns a handler rendering view, or the built-in page
// when view is nil. A custom view receives a [LoginPage].
func NewLoginHandler(engine *goGate.Engine, cookies *CookieCodec, view *template.Template) (*LoginHandler, error) {
	if engine == nil || cookies == nil {
		return nil, goGate.ErrEngineNotReady
	}
	if view == nil {
		var err error
		view, err = DefaultLoginTemplate(engine)
		if err != nil {
			return nil, err
		}
	}
	return &LoginHandler{
		engine:  engine,
		cookies: cookies,
		view:    view,
		cfg:     engine.Config().Login,
	}, nil
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		h.render(w, r)
	case http.MethodPost:
		h.submit(w, r)
	default:
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

// render issues a fresh forgery token and consumes the pending flash.
// Authenticated callers get the form too.
func (h *LoginHandler) render(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)
	sid := h.cookies.Read(r)

	live, err := h.engine.EnsureSession(ctx, sid)
	if err != nil {
		serverError(w, r, err)
		return
	}
	if live != sid {
		if err := h.cookies.Write(w, live, 0); err != nil {
			serverError(w, r, err)
			return
		}
	}

	identity, err := h.engine.Current(ctx, live)
	if err != nil {
		serverError(w, r, err)
		return
	}
	token, err := h.engine.IssueForgeryToken(ctx, live)
	if err != nil {
		serverError(w, r, err)
		return
	}
	flash, err := h.engine.PopFlash(ctx, live)
	if err != nil {
		serverError(w, r, err)
		return
	}

	var buf bytes.Buffer
	err = h.view.Execute(&buf, LoginPage{
		Action:          h.cfg.Path,
		Token:           token,
		Flash:           flash,
		Identity:        identity,
		IdentityField:   h.cfg.IdentityField,
		SecretField:     h.cfg.SecretField,
		TokenField:      h.cfg.TokenField,
		RememberMeField: h.cfg.RememberMeField,
	})
	if err != nil {
		serverError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *LoginHandler) submit(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)
	sid := h.cookies.Read(r)

	if err := r.ParseForm(); err != nil {
		h.back(w, r, sid, goGate.FlashInvalidRequest)
		return
	}

	ok, err := h.engine.ValidateForgeryToken(ctx, sid, r.PostForm.Get(h.cfg.TokenField))
	if err != nil {
		serverError(w, r, err)
		return
	}
	if !ok {
		h.back(w, r, sid, goGate.FlashInvalidRequest)
		return
	}

	form := loginForm{
		Identity: r.PostForm.Get(h.cfg.IdentityField),
		Secret:   r.PostForm.Get(h.cfg.SecretField),
	}
	if err := formValidator.Struct(form); err != nil {
		_ = h.engine.RejectLoginForm(ctx, form.Identity)
		h.back(w, r, sid, goGate.FlashInvalidCredentials)
		return
	}

	res, err := h.engine.Login(ctx, goGate.LoginRequest{
		SessionID:  sid,
		Identity:   form.Identity,
		Secret:     form.Secret,
		RememberMe: checked(r.PostForm.Get(h.cfg.RememberMeField)),
	})
	switch {
	case err == nil:
	case errors.Is(err, goGate.ErrLoginRateLimited):
		h.back(w, r, sid, goGate.FlashRateLimited)
		return
	case errors.Is(err, goGate.ErrInvalidCredentials):
		h.back(w, r, sid, goGate.FlashInvalidCredentials)
		return
	default:
		serverError(w, r, err)
		return
	}

	maxAge := res.TTL
	if !res.Identity.RememberMe {
		maxAge = 0
	}
	if err := h.cookies.Write(w, res.SessionID, maxAge); err != nil {
		serverError(w, r, err)
		return
	}
	http.Redirect(w, r, res.Redirect, http.StatusSeeOther)
}

// back flashes message and redirects to the form. A missing or expired
// session is replaced first so the flash survives to the next render.
func (h *LoginHandler) back(w http.ResponseWriter, r *http.Request, sid, message string) {
	ctx := requestContext(r)
	live, err := h.engine.EnsureSession(ctx, sid)
	if err != nil {
		serverError(w, r, err)
		return
	}
	if live != sid {
		if err := h.cookies.Write(w, live, 0); err != nil {
			serverError(w, r, err)
			return
		}
	}
	if err := h.engine.SetFlash(ctx, live, message); err != nil {
		serverError(w, r, err)
		return
	}
	http.Redirect(w, r, h.cfg.Path, http.StatusSeeOther)
}

func checked(v string) bool {
	switch v {
	case "", "0", "false", "off":
		return false
	}
	return true
}

// LogoutHandler destroys the session, expires the cookie and redirects to
// the login path.
func LogoutHandler(engine *goGate.Engine, cookies *CookieCodec) http.Handler {
	loginPath := engine.Config().Login.Path
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestContext(r)
		if err := engine.Destroy(ctx, cookies.Read(r)); err != nil {
			serverError(w, r, err)
			return
		}
		cookies.Clear(w)
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
	})
}

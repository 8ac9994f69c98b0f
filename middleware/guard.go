package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"

	goGate "github.com/MrEthical07/goGate"
	"github.com/rs/zerolog"
)

type identityContextKey struct{}

type sessionIDContextKey struct{}

// IdentityFromContext returns the identity the guard resolved for the
// request. Outside a guarded handler it returns the anonymous identity.
func IdentityFromContext(ctx context.Context) goGate.SessionIdentity {
	id, ok := ctx.Value(identityContextKey{}).(goGate.SessionIdentity)
	if !ok {
		return goGate.Anonymous
	}
	return id
}

// SessionIDFromContext returns the session key the guard read from the
// cookie, if any.
func SessionIDFromContext(ctx context.Context) string {
	sid, _ := ctx.Value(sessionIDContextKey{}).(string)
	return sid
}

// Guard admits a request only when the session identity is granted
// resource. Denials are answered with 303 See Other to the decision's
// target; an anonymous GET also remembers the requested path so login can
// return to it.
func Guard(engine *goGate.Engine, cookies *CookieCodec, resource string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil || cookies == nil {
				serverError(w, r, goGate.ErrEngineNotReady)
				return
			}

			ctx := requestContext(r)
			sid := cookies.Read(r)

			identity, err := engine.Current(ctx, sid)
			if err != nil {
				serverError(w, r, err)
				return
			}

			decision, err := engine.AuthorizeErr(ctx, identity, resource)
			if err != nil {
				if errors.Is(err, goGate.ErrUnauthenticated) && r.Method == http.MethodGet {
					if err := rememberTarget(ctx, engine, cookies, w, sid, r.URL.RequestURI()); err != nil {
						serverError(w, r, err)
						return
					}
				}
				http.Redirect(w, r, decision.Redirect, http.StatusSeeOther)
				return
			}

			ctx = context.WithValue(ctx, identityContextKey{}, identity)
			ctx = context.WithValue(ctx, sessionIDContextKey{}, sid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// rememberTarget makes sure the caller holds a session, resetting the
// cookie if a new one was created, and records target in it.
func rememberTarget(ctx context.Context, engine *goGate.Engine, cookies *CookieCodec, w http.ResponseWriter, sid, target string) error {
	live, err := engine.EnsureSession(ctx, sid)
	if err != nil {
		return err
	}
	if live != sid {
		if err := cookies.Write(w, live, 0); err != nil {
			return err
		}
	}
	return engine.RememberNext(ctx, live, target)
}

// requestContext attaches the client IP for throttling and audit. It
// trusts r.RemoteAddr; put a real-IP middleware in front when behind a
// proxy.
func requestContext(r *http.Request) context.Context {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return goGate.WithClientIP(r.Context(), ip)
}

func serverError(w http.ResponseWriter, r *http.Request, err error) {
	zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

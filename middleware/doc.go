// Package middleware adapts goGate.Engine to net/http.
//
// # Handlers
//
//   - [Guard] admits requests whose session identity is granted a resource
//     and redirects the rest with 303 See Other.
//   - [LoginHandler] runs the Post/Redirect/Get login form.
//   - [LogoutHandler] destroys the session and clears the cookie.
//
// The session key travels in a cookie signed by [CookieCodec]. Handlers
// translate HTTP into Engine calls and make no authentication or
// authorization decisions themselves. Backend failures are logged through
// the request's zerolog logger and answered with a bare 500.
package middleware

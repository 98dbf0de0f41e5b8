package middleware

import "github.com/labstack/echo/v4"

// CurrentEmail returns the authenticated caller's email, or "" when the
// request carried no valid token.
func CurrentEmail(c echo.Context) string {
	if s, ok := c.Get(ContextEmail).(string); ok {
		return s
	}
	return ""
}

// CurrentRole returns the authenticated caller's role, or "".
func CurrentRole(c echo.Context) string {
	if s, ok := c.Get(ContextRole).(string); ok {
		return s
	}
	return ""
}

// callerKey names the caller for rate-limit keys: the email when signed
// in, otherwise the client address.
func callerKey(c echo.Context) string {
	if e := CurrentEmail(c); e != "" {
		return e
	}
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

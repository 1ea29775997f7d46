package middleware

import "github.com/labstack/echo/v4"

// Keys under which the middleware chain stores caller metadata on echo.Context.
const (
	ContextKeyUserID    = "user_id"
	ContextKeyUserEmail = "user_email"
	ContextKeyUserRole  = "user_role"
	ContextKeyRequestID = "request_id"
)

// UserID returns the authenticated subject, or "" before JWT has run.
func UserID(c echo.Context) string {
	return stringValue(c, ContextKeyUserID)
}

// UserRole returns the authenticated role, or "".
func UserRole(c echo.Context) string {
	return stringValue(c, ContextKeyUserRole)
}

func stringValue(c echo.Context, key string) string {
	v, _ := c.Get(key).(string)
	return v
}

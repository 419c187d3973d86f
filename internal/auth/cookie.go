package auth

import (
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
)

// IDCookieName carries the numeric member id after a social login.
const IDCookieName = "id"

// CookieFactory builds session cookies with the configured security attributes.
type CookieFactory struct {
	Secure bool
}

// New returns a cookie on path "/" whose value is query-escaped.
func (f CookieFactory) New(name, value string, maxAge time.Duration, httpOnly bool) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     name,
		Value:    url.QueryEscape(value),
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HTTPOnly: httpOnly,
		Secure:   f.Secure,
	}
}

// Expired returns a cookie that removes name from the client.
func (f CookieFactory) Expired(name string, httpOnly bool) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     name,
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HTTPOnly: httpOnly,
		Secure:   f.Secure,
	}
}

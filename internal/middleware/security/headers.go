package security

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

type HeadersConfig struct {
	// ConnectOrigins are added to connect-src so browser clients can open the websocket.
	ConnectOrigins []string
	IsDevelopment  bool
}

// HeadersMiddleware sets response headers for a JSON and websocket API that serves no HTML.
func HeadersMiddleware(cfg HeadersConfig) fiber.Handler {
	csp := "default-src 'none'; " +
		"connect-src 'self'" + connectSrc(cfg.ConnectOrigins) + "; " +
		"frame-ancestors 'none'; " +
		"base-uri 'none'; " +
		"form-action 'none'"

	return func(c *fiber.Ctx) error {
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("Referrer-Policy", "no-referrer")
		c.Set("Cache-Control", "no-store")
		c.Set("Content-Security-Policy", csp)

		if !cfg.IsDevelopment {
			c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		return c.Next()
	}
}

func connectSrc(origins []string) string {
	var b strings.Builder
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" || o == "*" {
			continue
		}
		b.WriteString(" ")
		b.WriteString(o)
	}
	return b.String()
}

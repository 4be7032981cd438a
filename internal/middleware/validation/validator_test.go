package validation

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(Middleware(Config{MaxQuestionChars: 20}))
	app.Post("/agent", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/agent", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	return app
}

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		want        int
	}{
		{"too long", "POST", "application/json", `{"question": "Kdo vydává územní plán?"}`, fiber.StatusBadRequest},
		{"short question", "POST", "application/json", `{"question": "Co je daň?"}`, fiber.StatusOK},
		{"charset suffix", "POST", "application/json; charset=utf-8", `{"query": "stavební zákon"}`, fiber.StatusOK},
		{"wrong type", "POST", "text/plain", `{"question": "x"}`, fiber.StatusUnsupportedMediaType},
		{"bad json", "POST", "application/json", `{"question": `, fiber.StatusBadRequest},
		{"non string", "POST", "application/json", `{"question": 5}`, fiber.StatusBadRequest},
		{"script", "POST", "application/json", `{"query": "<script>x"}`, fiber.StatusBadRequest},
		{"get passes", "GET", "", "", fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/agent", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			resp, err := newApp().Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "daň", Sanitize("  d\x00aň \n"))
}

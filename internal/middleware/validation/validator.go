package validation

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var xssPattern = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)

// textFields are the request fields that carry a user question.
var textFields = []string{"question", "query"}

type Config struct {
	MaxQuestionChars    int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// Middleware rejects unsupported content types and checks the question text of JSON
// bodies before handlers see them. Handlers still validate their own request structs.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxQuestionChars == 0 {
		cfg.MaxQuestionChars = 2000
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{fiber.MIMEApplicationJSON}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		contentType := c.Get(fiber.HeaderContentType)
		if contentType != "" && !allowedType(contentType, cfg.AllowedContentTypes) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		var body map[string]any
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid JSON format",
			})
		}

		for _, field := range textFields {
			raw, present := body[field]
			if !present {
				continue
			}
			text, ok := raw.(string)
			if !ok {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": field + " must be a string",
				})
			}
			if utf8.RuneCountInString(text) > cfg.MaxQuestionChars {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": field + " exceeds maximum length",
				})
			}
			if xssPattern.MatchString(text) {
				cfg.Logger.Warn("Potential XSS attempt",
					zap.String("ip", c.IP()),
					zap.String("path", c.Path()),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid " + field + " content",
				})
			}
		}

		return c.Next()
	}
}

func allowedType(contentType string, allowed []string) bool {
	for _, t := range allowed {
		if strings.HasPrefix(strings.ToLower(contentType), t) {
			return true
		}
	}
	return false
}

// Sanitize trims whitespace and removes NUL bytes.
func Sanitize(input string) string {
	return strings.TrimSpace(strings.ReplaceAll(input, "\x00", ""))
}

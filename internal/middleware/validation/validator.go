package validation

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var (
	sqlInjectionPattern = regexp.MustCompile(`(?i)(union\s+select|insert\s+into|drop\s+table|delete\s+from|exec\s*\(|<script|javascript:)`)
	controlCharPattern  = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f]`)
)

type Config struct {
	MaxQueryLength  int
	MaxUploadSize   int
	AllowedFileExts []string
	Logger          *zap.Logger
}

// Middleware validates request bodies on the query and upload routes before
// they reach the handlers.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxQueryLength == 0 {
		cfg.MaxQueryLength = 5000
	}
	if cfg.MaxUploadSize == 0 {
		cfg.MaxUploadSize = 20 * 1024 * 1024
	}
	if len(cfg.AllowedFileExts) == 0 {
		cfg.AllowedFileExts = []string{".txt", ".md", ".html", ".htm", ".pdf"}
	}

	return func(c *fiber.Ctx) error {
		path := c.Path()

		if c.Method() == fiber.MethodPost && strings.HasSuffix(path, "/query") {
			var req map[string]interface{}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			query, ok := req["query"].(string)
			if !ok || strings.TrimSpace(query) == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Query is required and must be a string",
				})
			}

			if len(query) > cfg.MaxQueryLength {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Query exceeds maximum length",
				})
			}

			if sqlInjectionPattern.MatchString(query) || controlCharPattern.MatchString(query) {
				cfg.Logger.Warn("Rejected suspicious query",
					zap.String("ip", c.IP()),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid query content",
				})
			}
		}

		if c.Method() == fiber.MethodPost && strings.Contains(path, "/documents") {
			if length := c.Request().Header.ContentLength(); length > cfg.MaxUploadSize {
				return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
					"error": "Upload exceeds maximum size",
				})
			}

			if fileHeader, err := c.FormFile("file"); err == nil {
				if !hasAllowedExt(fileHeader.Filename, cfg.AllowedFileExts) {
					return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
						"error": "Unsupported file type",
					})
				}
			}
		}

		return c.Next()
	}
}

func hasAllowedExt(filename string, exts []string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ripple/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		expectedLimit  int
		expectedOffset int
	}{
		{"Defaults", "", 20, 0},
		{"Explicit", "?limit=50&offset=10", 50, 10},
		{"Clamped To Max", "?limit=5000", 100, 0},
		{"Zero Limit Falls Back", "?limit=0", 20, 0},
		{"Negative Offset Reset", "?offset=-5", 20, 0},
		{"Garbage Ignored", "?limit=abc&offset=xyz", 20, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			var got Pagination
			app.Get("/", func(c *fiber.Ctx) error {
				got = parsePagination(c, 20)
				return c.SendStatus(http.StatusOK)
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/"+tt.query, nil))
			assert.NoError(t, err)
			_ = resp.Body.Close()

			assert.Equal(t, tt.expectedLimit, got.Limit)
			assert.Equal(t, tt.expectedOffset, got.Offset)
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{"Missing", "", ""},
		{"Valid", "Bearer abc.def.ghi", "abc.def.ghi"},
		{"Wrong Scheme", "Basic abc", ""},
		{"Prefix Only", "Bearer ", ""},
		{"Lowercase Scheme", "bearer abc", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			var got string
			app.Get("/", func(c *fiber.Ctx) error {
				got = bearerToken(c)
				return c.SendStatus(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			assert.NoError(t, err)
			_ = resp.Body.Close()

			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRespondServiceError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{"Not Found", models.NewNotFoundError("User", "abc"), http.StatusNotFound},
		{"Validation", models.NewValidationError("bad input"), http.StatusBadRequest},
		{"Unauthorized", models.NewUnauthorizedError("nope"), http.StatusUnauthorized},
		{"Internal", models.NewInternalError(errors.New("boom")), http.StatusInternalServerError},
		{"Plain Error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				return respondServiceError(c, tt.err)
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			assert.NoError(t, err)
			_ = resp.Body.Close()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

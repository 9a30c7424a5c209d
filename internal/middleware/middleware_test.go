package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authfront/authfront/internal/auth"
	"github.com/authfront/authfront/internal/logging"
)

type stubVerifier map[string]string

func (s stubVerifier) VerifyToken(_ context.Context, token string) (string, error) {
	if user, ok := s[token]; ok {
		return user, nil
	}
	return "", auth.ErrInvalidToken
}

func newBearerApp() *fiber.App {
	app := fiber.New()
	app.Get("/me", BearerAuth(stubVerifier{"good": "alice"}), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(auth.LocalsUsername).(string))
	})
	return app
}

func TestBearerAuth(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
		wantChall  bool
	}{
		{name: "missing header", header: "", wantStatus: fiber.StatusUnauthorized, wantChall: true},
		{name: "wrong scheme", header: "Basic abc", wantStatus: fiber.StatusUnauthorized, wantChall: true},
		{name: "empty token", header: "Bearer ", wantStatus: fiber.StatusUnauthorized, wantChall: true},
		{name: "invalid token", header: "Bearer nope", wantStatus: fiber.StatusForbidden},
		{name: "valid token", header: "Bearer good", wantStatus: fiber.StatusOK, wantBody: "alice"},
		{name: "scheme is case insensitive", header: "bearer good", wantStatus: fiber.StatusOK, wantBody: "alice"},
	}

	app := newBearerApp()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantChall, resp.Header.Get(fiber.HeaderWWWAuthenticate) == "Bearer")
			if tt.wantBody != "" {
				body, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				assert.Equal(t, tt.wantBody, string(body))
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(GetRequestID(c)) })

	t.Run("generates an id", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		id := resp.Header.Get(HeaderRequestID)
		assert.Len(t, id, 36)
		assert.Equal(t, id, string(body))
	})

	t.Run("propagates caller id", func(t *testing.T) {
		req := httptest.NewRequest(fiber.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "req-42")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, "req-42", resp.Header.Get(HeaderRequestID))
	})

	t.Run("replaces oversized id", func(t *testing.T) {
		req := httptest.NewRequest(fiber.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, strings.Repeat("x", 200))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Len(t, resp.Header.Get(HeaderRequestID), 36)
	})
}

func TestAuditLogsRouteNotRawPath(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, "debug", "authfront")

	app := fiber.New()
	app.Use(RequestID(), Audit(logger))
	app.Get("/verify_token/:token", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusForbidden, "Invalid token")
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/verify_token/secret-token-value", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	assert.NotContains(t, buf.String(), "secret-token-value")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "request completed", entry["msg"])
	assert.Equal(t, slog.LevelWarn.String(), entry["level"])
	assert.Equal(t, "/verify_token/:token", entry["route"])
	assert.EqualValues(t, fiber.StatusForbidden, entry["status"])
	assert.NotEmpty(t, entry["request_id"])
}

func TestAuditErrorLevelForServerErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, "debug", "authfront")

	app := fiber.New()
	app.Use(Audit(logger))
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("store down") })

	_, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/boom", nil))
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, slog.LevelError.String(), entry["level"])
	assert.Equal(t, "store down", entry["error"])
}

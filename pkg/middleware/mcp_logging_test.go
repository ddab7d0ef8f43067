package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func rpcHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func callMCP(t *testing.T, logger *zap.Logger, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	rec := httptest.NewRecorder()
	MCPRequestLogger(logger)(h).ServeHTTP(rec, req)
	return rec
}

func TestMCPRequestLogger(t *testing.T) {
	t.Run("logs successful tool call", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)

		rec := callMCP(t, zap.New(core),
			rpcHandler(http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"[]"}]}}`),
			`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"list_published_briefs","arguments":{"category":"design"}}}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"result"`, "body still reaches the client")
		require.Equal(t, 2, logs.Len())

		request := logs.All()[0]
		assert.Equal(t, "MCP request", request.Message)
		assert.Equal(t, "tools/call", request.ContextMap()["method"])
		assert.Equal(t, "list_published_briefs", request.ContextMap()["tool"])

		response := logs.All()[1]
		assert.Equal(t, "MCP call succeeded", response.Message)
		assert.Equal(t, zapcore.DebugLevel, response.Level)
	})

	t.Run("logs JSON-RPC error at warn", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)

		callMCP(t, zap.New(core),
			rpcHandler(http.StatusOK, `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"tool not found"}}`),
			`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"delete_brief"}}`)

		require.Equal(t, 2, logs.Len())
		response := logs.All()[1]
		assert.Equal(t, "MCP call failed", response.Message)
		assert.Equal(t, zapcore.WarnLevel, response.Level)
		assert.Equal(t, int64(-32602), response.ContextMap()["error_code"])
		assert.Equal(t, "tool not found", response.ContextMap()["error_message"])
	})

	t.Run("logs tool error result", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)

		callMCP(t, zap.New(core),
			rpcHandler(http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":{"isError":true,"content":[{"type":"text","text":"brief not found"}]}}`),
			`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"get_published_brief","arguments":{"brief_id":"x"}}}`)

		require.Equal(t, 2, logs.Len())
		assert.Equal(t, "MCP tool returned an error result", logs.All()[1].Message)
	})

	t.Run("sanitizes arguments", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)

		callMCP(t, zap.New(core),
			rpcHandler(http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":{}}`),
			`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"t","arguments":{"api_key":"abc","brief_id":"visible"}}}`)

		args := logs.All()[0].ContextMap()["arguments"].(map[string]any)
		assert.Equal(t, "[REDACTED]", args["api_key"])
		assert.Equal(t, "visible", args["brief_id"])
	})

	t.Run("passes through with nil logger", func(t *testing.T) {
		called := false
		rec := callMCP(t, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}), `{}`)

		assert.True(t, called)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("tolerates non JSON bodies", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)

		rec := callMCP(t, zap.New(core), rpcHandler(http.StatusBadRequest, `not json`), `{invalid`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, 2, logs.Len(), "parse failure and the request line")
	})
}

func TestSanitizeArguments(t *testing.T) {
	t.Run("redacts sensitive keys case insensitively", func(t *testing.T) {
		result := sanitizeArguments(map[string]any{
			"PASSWORD":      "secret",
			"Api_Key":       "abc123",
			"AccessToken":   "xyz789",
			"client_secret": "hidden",
			"category":      "design",
		})

		assert.Equal(t, "[REDACTED]", result["PASSWORD"])
		assert.Equal(t, "[REDACTED]", result["Api_Key"])
		assert.Equal(t, "[REDACTED]", result["AccessToken"])
		assert.Equal(t, "[REDACTED]", result["client_secret"])
		assert.Equal(t, "design", result["category"])
	})

	t.Run("truncates long strings", func(t *testing.T) {
		result := sanitizeArguments(map[string]any{"description": strings.Repeat("x", 250)})

		truncated := result["description"].(string)
		assert.Len(t, truncated, maxLoggedArgument+3)
		assert.True(t, strings.HasSuffix(truncated, "..."))
	})

	t.Run("keeps non-string values", func(t *testing.T) {
		result := sanitizeArguments(map[string]any{"limit": 10, "anonymized": true})

		assert.Equal(t, 10, result["limit"])
		assert.Equal(t, true, result["anonymized"])
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, sanitizeArguments(nil))
	})
}

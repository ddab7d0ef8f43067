package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-briefs/pkg/logging"
)

// maxLoggedArgument bounds a single string argument in the logs.
const maxLoggedArgument = 200

var sensitiveArgumentKeys = []string{"password", "secret", "token", "key", "credential"}

// MCPRequestLogger logs JSON-RPC traffic on the /mcp endpoint: the method, the
// tool name with its sanitized arguments, and whether the call errored.
// A nil logger disables logging.
func MCPRequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				logger.Error("Failed to read MCP request body", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			var req rpcRequest
			if err := json.Unmarshal(body, &req); err != nil {
				// GET streams and notifications carry no JSON-RPC call.
				logger.Debug("MCP request is not a JSON-RPC call", zap.Error(err))
			}
			tool := req.Params.Name

			logger.Debug("MCP request",
				zap.String("method", req.Method),
				zap.String("tool", tool),
				zap.Any("arguments", sanitizeArguments(req.Params.Arguments)))

			recorder := &rpcRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(recorder, r)
			duration := time.Since(start)

			var resp rpcResponse
			if err := json.Unmarshal(recorder.body.Bytes(), &resp); err != nil {
				return
			}

			switch {
			case resp.Error != nil:
				logger.Warn("MCP call failed",
					zap.String("tool", tool),
					zap.Int("error_code", resp.Error.Code),
					zap.String("error_message", logging.SanitizeString(resp.Error.Message)),
					zap.Duration("duration", duration))
			case resp.Result.IsError:
				logger.Info("MCP tool returned an error result",
					zap.String("tool", tool),
					zap.Duration("duration", duration))
			default:
				logger.Debug("MCP call succeeded",
					zap.String("tool", tool),
					zap.Duration("duration", duration))
			}
		})
	}
}

type rpcRequest struct {
	Method string `json:"method"`
	Params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"params"`
}

type rpcResponse struct {
	Result struct {
		IsError bool `json:"isError"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// rpcRecorder tees the response body so it can be inspected after the call.
type rpcRecorder struct {
	http.ResponseWriter
	body bytes.Buffer
}

func (r *rpcRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *rpcRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// sanitizeArguments redacts secret-looking keys and truncates long strings.
func sanitizeArguments(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}

	out := make(map[string]any, len(args))
	for k, v := range args {
		if isSensitiveKey(k) {
			out[k] = logging.RedactedText
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = logging.TruncateString(s, maxLoggedArgument)
			continue
		}
		out[k] = v
	}
	return out
}

func isSensitiveKey(k string) bool {
	lower := strings.ToLower(k)
	for _, kw := range sensitiveArgumentKeys {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

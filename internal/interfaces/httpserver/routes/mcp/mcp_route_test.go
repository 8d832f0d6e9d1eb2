package mcp_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"adscope/internal/interfaces/httpserver/routes/mcp"
)

func guardRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	allowed := map[string]bool{
		"initialize": true,
		"tools/list": true,
		"tools/call": true,
	}
	router.POST("/mcp", mcp.MCPMethodGuard(allowed), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	return router
}

func TestMCPMethodGuard(t *testing.T) {
	router := guardRouter()

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"allowed method", `{"jsonrpc":"2.0","method":"tools/list","id":1}`, 200},
		{"allowed call", `{"jsonrpc":"2.0","method":"tools/call","id":2}`, 200},
		{"unsupported method", `{"jsonrpc":"2.0","method":"resources/write","id":3}`, 400},
		{"missing method", `{"jsonrpc":"2.0","id":4}`, 400},
		{"empty body", ``, 400},
		{"invalid json", `{nope`, 400},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status=%d, want %d (body=%s)", rec.Code, tc.wantStatus, rec.Body.String())
			}
		})
	}
}

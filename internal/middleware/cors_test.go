package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"fbrgate/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func corsRequest(t *testing.T, origins []string, method, origin string) *httptest.ResponseRecorder {
	t.Helper()
	r := gin.New()
	r.Use(middleware.CORS(origins))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, "/ping", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestCORS_ConfiguredOriginAllowed(t *testing.T) {
	w := corsRequest(t, []string{"https://portal.fbrgate.pk"}, http.MethodGet, "https://portal.fbrgate.pk")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://portal.fbrgate.pk", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_UnknownOriginGetsNoGrant(t *testing.T) {
	w := corsRequest(t, []string{"https://portal.fbrgate.pk"}, http.MethodGet, "https://evil.example")
	assert.Equal(t, http.StatusOK, w.Code, "the request itself still runs; the browser enforces the missing grant")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_EmptyListDisablesCrossOrigin(t *testing.T) {
	w := corsRequest(t, nil, http.MethodGet, "https://portal.fbrgate.pk")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_WildcardEchoesOrigin(t *testing.T) {
	w := corsRequest(t, []string{"*"}, http.MethodGet, "https://anything.example")
	assert.Equal(t, "https://anything.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	w := corsRequest(t, []string{"https://portal.fbrgate.pk"}, http.MethodOptions, "https://portal.fbrgate.pk")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}

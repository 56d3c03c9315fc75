package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusTeapot)
})

func serve(h http.Handler, method string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, "/", nil))
	return w
}

func TestCORS(t *testing.T) {
	req := require.New(t)
	h := CORS("https://family.example")(ok)

	pre := serve(h, http.MethodOptions)
	req.Equal(http.StatusNoContent, pre.Code)
	req.Equal("https://family.example", pre.Header().Get("Access-Control-Allow-Origin"))

	req.Equal(http.StatusTeapot, serve(h, http.MethodGet).Code)
}

func TestRateLimit(t *testing.T) {
	req := require.New(t)

	h := RateLimit(0.001, 2)(ok)
	req.Equal(http.StatusTeapot, serve(h, http.MethodGet).Code)
	req.Equal(http.StatusTeapot, serve(h, http.MethodGet).Code)
	req.Equal(http.StatusTooManyRequests, serve(h, http.MethodGet).Code)

	off := RateLimit(0, 0)(ok)
	for i := 0; i < 10; i++ {
		req.Equal(http.StatusTeapot, serve(off, http.MethodGet).Code)
	}
}

func TestLogging_RecordsStatus(t *testing.T) {
	req := require.New(t)
	req.Equal(http.StatusTeapot, serve(Logging(ok), http.MethodGet).Code)
}

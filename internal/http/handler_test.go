package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"patentes-service/internal/config"
	"patentes-service/internal/repository"
	"patentes-service/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestRouter wires a handler around a service with no repositories. Only
// routes that fail before any store access can be exercised; anything that
// reaches a repository panics, which is the desired test behavior.
func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	cfg := &config.Config{}
	cfg.Pagination.MaxPageSize = 100
	cfg.HTTP.AllowedOrigins = []string{"*"}

	svc := service.NewQueryService(nil, nil, cfg, zerolog.Nop())
	h := NewHandler(svc, cfg, zerolog.Nop())

	r := NewRouter(cfg)
	h.Register(r, AuthRequired("test-secret"))
	return r
}

func doGet(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestSearchPlateRequiresPlateParam(t *testing.T) {
	w := doGet(newTestRouter(t), "/api/search_plate")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "plate")
}

func TestImagesByDatetimeRequiresBothBounds(t *testing.T) {
	r := newTestRouter(t)

	w := doGet(r, "/api/images_by_datetime?start_datetime=2024-01-01")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doGet(r, "/api/images_by_datetime?end_datetime=2024-01-01")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImagesByDatetimeMalformedBoundsYieldEmptyResult(t *testing.T) {
	// Unparseable dates are a leniency case, not an error: no store access,
	// empty list back.
	w := doGet(newTestRouter(t), "/api/images_by_datetime?start_datetime=bad&end_datetime=worse")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestEventImagesRejectsMalformedKey(t *testing.T) {
	w := doGet(newTestRouter(t), "/api/event_images/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "event_id")
}

func TestImagesKeysetRejectsMalformedCursor(t *testing.T) {
	w := doGet(newTestRouter(t), "/api/images?cursor_ts=yesterday&cursor_id=also-bad")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r := newTestRouter(t)

	w := doGet(r, "/api/image/11111111-1111-1111-1111-111111111111/raw")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/images/feed", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleErrorMapping(t *testing.T) {
	h := &Handler{log: zerolog.Nop()}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"malformed input", fmt.Errorf("%w: invalid event_id", service.ErrMalformedInput), http.StatusBadRequest},
		{"not found", repository.ErrNotFound, http.StatusNotFound},
		{"pool exhausted", fmt.Errorf("%w: timeout", repository.ErrPoolExhausted), http.StatusServiceUnavailable},
		{"store failure", fmt.Errorf("%w: syntax error", repository.ErrStoreFailed), http.StatusServiceUnavailable},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			h.handleError(c, tt.err)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestPoolExhaustionIsIndistinguishableFromStoreFailure(t *testing.T) {
	// Clients see the same unavailable signal for both; only logs differ.
	h := &Handler{log: zerolog.Nop()}

	wPool := httptest.NewRecorder()
	c1, _ := gin.CreateTestContext(wPool)
	h.handleError(c1, repository.ErrPoolExhausted)

	wStore := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(wStore)
	h.handleError(c2, repository.ErrStoreFailed)

	assert.Equal(t, wPool.Code, wStore.Code)
	assert.Equal(t, wPool.Body.String(), wStore.Body.String())
}

func TestSplitCSV(t *testing.T) {
	assert.Nil(t, splitCSV(""))
	assert.Nil(t, splitCSV("   "))
	assert.Equal(t, []string{"a"}, splitCSV("a"))
	assert.Equal(t, []string{"a", "b"}, splitCSV("a,b"))
	assert.Equal(t, []string{"a", "b"}, splitCSV(" a , b ,"))
}

func TestQueryInt(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?page=3&bad=x", nil)

	assert.Equal(t, 3, queryInt(c, "page", 1))
	assert.Equal(t, 1, queryInt(c, "bad", 1))
	assert.Equal(t, 1, queryInt(c, "missing", 1))
}

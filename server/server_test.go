// SPDX-License-Identifier: ice License 1.0

package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/ice-blockchain/rwrouter/testing"
)

type (
	echoRequest struct {
		Name string `uri:"name" required:"true"`
		Size int    `form:"size"`
	}
	echoResponse struct {
		Name string `json:"name"`
		Size int    `json:"size"`
	}
	testState struct {
		healthErr error
		closed    bool
	}
)

func (*testState) Init(context.Context, context.CancelFunc) {}

func (s *testState) Close(context.Context) error {
	s.closed = true

	return nil
}

func (*testState) RegisterRoutes(r *Router) {
	r.GET("/echo/:name", RootHandler(func(_ context.Context, req *Request[echoRequest, echoResponse]) (*Response[echoResponse], *Response[ErrorResponse]) { //nolint:lll // .
		if req.Data.Name == "missing" {
			return nil, NotFound(errors.New("nobody by that name"), "NOT_FOUND", map[string]any{"name": req.Data.Name})
		}
		if req.Data.Name == "broken" {
			return nil, Unexpected(errors.New("it broke"))
		}

		return OK(&echoResponse{Name: req.Data.Name, Size: req.Data.Size}), nil
	}))
}

func (s *testState) CheckHealth(context.Context) error {
	return s.healthErr
}

func newTestServer(state *testState) *srv {
	cfg.DefaultEndpointTimeout = time.Second
	s := &srv{State: state}
	s.setupRouter()

	return s
}

func serve(s *srv, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequestWithContext(context.Background(), http.MethodGet, target, http.NoBody))

	return rec
}

func TestHealthCheckRoute(t *testing.T) { //nolint:paralleltest // It mutates the global config.
	state := new(testState)
	s := newTestServer(state)
	rec := serve(s, "/health-check")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	state.healthErr = errors.New("write target is unhealthy")
	rec = serve(s, "/health-check")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := MustUnmarshal[ErrorResponse](t, rec.Body.String())
	assert.Equal(t, "UNHEALTHY", resp.Code)
	assert.Contains(t, resp.Error, "write target is unhealthy")
}

func TestRootHandler(t *testing.T) { //nolint:paralleltest // It mutates the global config.
	s := newTestServer(new(testState))

	rec := serve(s, "/echo/bob?size=3")
	require.Equal(t, http.StatusOK, rec.Code)
	AssertJSON(t, rec.Body.String(), &echoResponse{Name: "bob", Size: 3})

	rec = serve(s, "/echo/missing")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"nobody by that name","code":"NOT_FOUND","data":{"name":"missing"}}`, rec.Body.String())

	rec = serve(s, "/echo/broken")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	requestID := rec.Header().Get(requestIDHeader)
	require.NotEmpty(t, requestID)
	assert.JSONEq(t, `{"error":"oops, something went wrong (request `+requestID+`)"}`, rec.Body.String())

	rec = serve(s, "/echo/bob?size=big")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "STRUCTURE_VALIDATION_FAILED")
}

func TestRootHandlerKeepsTheCallersRequestID(t *testing.T) { //nolint:paralleltest // It mutates the global config.
	s := newTestServer(new(testState))
	req := httptest.NewRequestWithContext(context.Background(), http.MethodGet, "/echo/bob", http.NoBody)
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))

	first, second := serve(s, "/echo/bob"), serve(s, "/echo/bob")
	assert.NotEqual(t, first.Header().Get(requestIDHeader), second.Header().Get(requestIDHeader))
}

func TestRequestShapesAreParsedOnce(t *testing.T) {
	t.Parallel()

	first, second := shapeOf(new(echoRequest)), shapeOf(new(echoRequest))
	assert.Same(t, first, second)
	assert.Equal(t, []string{"Name"}, first.requiredFields)
	assert.Equal(t, []requestBinding{uri, query}, first.bindings)
	assert.Empty(t, shapeOf(new(healthCheck)).bindings)
}

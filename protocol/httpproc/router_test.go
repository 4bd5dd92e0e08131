// File: protocol/httpproc/router_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package httpproc

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/momentics/hioload-async/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func TestRouter_Route(t *testing.T) {
	r := testRouter()

	ep, err := r.Route([]byte("GET"), []byte("/hello"))
	require.NoError(t, err)
	require.NotNil(t, ep)

	_, err = r.Route([]byte("HEAD"), []byte("/hello"))
	assert.NoError(t, err, "HEAD falls back to GET")

	_, err = r.Route([]byte("GET"), []byte("/nope"))
	assert.Equal(t, api.ErrCodeNotFound, api.CodeOf(err))

	_, err = r.Route([]byte("PUT"), []byte("/echo"))
	assert.Equal(t, api.ErrCodeMethodNotAllowed, api.CodeOf(err))
}

func TestDefaultErrorHandler_Statuses(t *testing.T) {
	h := &DefaultErrorHandler{}
	for _, tc := range []struct {
		err    error
		status int
	}{
		{api.ErrMalformedRequest, fasthttp.StatusBadRequest},
		{api.ErrRequestTooLarge, fasthttp.StatusRequestEntityTooLarge},
		{api.NewError(api.ErrCodeNotImplemented, "nope"), fasthttp.StatusNotImplemented},
		{errors.New("opaque"), fasthttp.StatusInternalServerError},
	} {
		var resp fasthttp.Response
		h.HandleError(&resp, tc.err)
		assert.Equal(t, tc.status, resp.StatusCode(), tc.err.Error())
		assert.Equal(t, "text/plain; charset=utf-8", string(resp.Header.ContentType()))
	}
}

func TestDefaultErrorHandler_ThrottlesLogs(t *testing.T) {
	var buf bytes.Buffer
	h := &DefaultErrorHandler{
		Logger: stumpy.L.New(
			stumpy.L.WithStumpy(stumpy.WithWriter(&buf)),
			stumpy.L.WithLevel(logiface.LevelDebug),
		).Logger(),
		Limiter: catrate.NewLimiter(map[time.Duration]int{time.Minute: 1}),
	}
	for i := 0; i < 3; i++ {
		var resp fasthttp.Response
		h.HandleError(&resp, errors.New("db unavailable"))
	}
	var resp fasthttp.Response
	h.HandleError(&resp, api.ErrMalformedRequest)

	assert.Equal(t, 1, strings.Count(buf.String(), "request failed"))
	assert.Contains(t, buf.String(), "db unavailable")
}

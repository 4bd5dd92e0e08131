// File: protocol/httpproc/factory_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package httpproc

import (
	"bytes"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/momentics/hioload-async/api"
	"github.com/momentics/hioload-async/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func TestFactory_NilErrorHandlerRestoresConfigured(t *testing.T) {
	var logs bytes.Buffer
	configured := &DefaultErrorHandler{
		Logger: stumpy.L.New(
			stumpy.L.WithStumpy(stumpy.WithWriter(&logs)),
			stumpy.L.WithLevel(logiface.LevelDebug),
		).Logger(),
	}
	f := NewFactory(Components{Router: testRouter(), ErrorHandler: configured}, 0)

	f.SetErrorHandler(ErrorHandlerFunc(func(resp *fasthttp.Response, _ error) {
		resp.SetStatusCode(fasthttp.StatusTeapot)
	}))
	f.SetErrorHandler(nil)

	s := fake.NewStream("GET /fail HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")
	c := newTestCoroutine(t, f, s)
	assert.Equal(t, api.ActionFinish, drive(t, c))

	resps := parseResponses(t, s.Written())
	require.Len(t, resps, 1)
	assert.Equal(t, fasthttp.StatusInternalServerError, resps[0].StatusCode())
	assert.Contains(t, logs.String(), "backend down", "restored handler keeps its logger")
}

func TestFactory_DefaultsWithoutErrorHandler(t *testing.T) {
	f := NewFactory(Components{}, 0)
	f.SetErrorHandler(nil)

	s := fake.NewStream("GET /anything HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")
	c := newTestCoroutine(t, f, s)
	assert.Equal(t, api.ActionFinish, drive(t, c))

	resps := parseResponses(t, s.Written())
	require.Len(t, resps, 1)
	assert.Equal(t, fasthttp.StatusNotFound, resps[0].StatusCode())
}

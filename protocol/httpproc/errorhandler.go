// File: protocol/httpproc/errorhandler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package httpproc

import (
	"errors"
	"strconv"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"github.com/momentics/hioload-async/api"
	"github.com/valyala/fasthttp"
)

// ErrorHandler renders err into resp. resp has been reset beforehand.
type ErrorHandler interface {
	HandleError(resp *fasthttp.Response, err error)
}

// ErrorHandlerFunc adapts a function to ErrorHandler.
type ErrorHandlerFunc func(resp *fasthttp.Response, err error)

func (f ErrorHandlerFunc) HandleError(resp *fasthttp.Response, err error) { f(resp, err) }

// RequestInterceptor runs before routing. Returning true means the
// interceptor filled resp itself and routing is skipped.
type RequestInterceptor func(req *fasthttp.Request, resp *fasthttp.Response) bool

// DefaultErrorHandler writes plain-text responses with the status derived
// from api.CodeOf. Server-side failures are logged, rate limited per message.
type DefaultErrorHandler struct {
	Logger  *logiface.Logger[logiface.Event]
	Limiter *catrate.Limiter
}

// HandleError implements ErrorHandler.
func (h *DefaultErrorHandler) HandleError(resp *fasthttp.Response, err error) {
	status := api.CodeOf(err).Status()
	resp.SetStatusCode(status)
	resp.Header.SetContentType("text/plain; charset=utf-8")

	body := strconv.Itoa(status) + " " + fasthttp.StatusMessage(status)
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		body += ": " + apiErr.Message
		if allow, ok := apiErr.Context["allow"].(string); ok {
			resp.Header.Set(fasthttp.HeaderAllow, allow)
		}
	}
	resp.SetBodyString(body + "\n")

	if status < fasthttp.StatusInternalServerError || h == nil {
		return
	}
	if _, ok := h.Limiter.Allow(err.Error()); !ok {
		return
	}
	h.Logger.Err().
		Int("status", status).
		Err(err).
		Log("request failed")
}

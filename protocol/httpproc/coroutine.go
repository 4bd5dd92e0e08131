// File: protocol/httpproc/coroutine.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package httpproc

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/momentics/hioload-async/api"
	"github.com/momentics/hioload-async/transport"
	"github.com/valyala/fasthttp"
)

var headTerminator = []byte("\r\n\r\n")

// minHeadReaderSize is the smallest header reader a coroutine allocates.
const minHeadReaderSize = 4096

type phase uint8

const (
	phaseReadHead phase = iota
	phaseReadBody
	phaseProcess
	phaseFlush
	phaseDone
)

func (p phase) String() string {
	switch p {
	case phaseReadHead:
		return "read_head"
	case phaseReadBody:
		return "read_body"
	case phaseProcess:
		return "process"
	case phaseFlush:
		return "flush"
	default:
		return "done"
	}
}

// Coroutine serves HTTP/1.1 requests on one connection.
type Coroutine struct {
	comp    *Components
	conn    *transport.ConnState
	onDone  func(*Coroutine)
	phase   phase
	req     fasthttp.Request
	resp    fasthttp.Response
	headRd  bytes.Reader
	headBuf *bufio.Reader
	body    []byte
	bodyLen int

	keepAlive bool
	// ioErr holds the outcome of an I/O attempt made by Ready, consumed by
	// the next Step.
	ioErr    error
	ioTried  bool
	err      error
	requests int
}

var (
	_ api.Coroutine = (*Coroutine)(nil)
	_ api.Readiness = (*Coroutine)(nil)
)

func newCoroutine() *Coroutine {
	c := &Coroutine{}
	c.headBuf = bufio.NewReaderSize(&c.headRd, minHeadReaderSize)
	return c
}

func (c *Coroutine) bind(comp *Components, conn *transport.ConnState, onDone func(*Coroutine)) {
	c.comp = comp
	c.conn = conn
	c.onDone = onDone
	c.phase = phaseReadHead
	// fasthttp rejects heads larger than the reader, so it must hold any
	// head the input buffer can.
	if n := conn.In.Cap(); n > c.headBuf.Size() {
		c.headBuf = bufio.NewReaderSize(&c.headRd, n)
	}
}

// Requests returns the number of responses queued on this connection.
func (c *Coroutine) Requests() int { return c.requests }

// Step implements api.Coroutine.
func (c *Coroutine) Step() api.Action {
	switch c.phase {
	case phaseReadHead:
		return c.readHead()
	case phaseReadBody:
		return c.readBody()
	case phaseProcess:
		c.process()
		return api.ActionProceed
	case phaseFlush:
		return c.flush()
	}
	return api.ActionFinish
}

// Ready implements api.Readiness. It attempts the pending I/O once and
// reports whether the next Step will make progress.
func (c *Coroutine) Ready() bool {
	if c.ioTried {
		return true
	}
	var err error
	switch c.phase {
	case phaseReadHead, phaseReadBody:
		var n int
		n, err = c.conn.In.Fill()
		if n > 0 {
			err = nil
		}
	case phaseFlush:
		err = c.conn.Out.Flush()
	default:
		return true
	}
	if errors.Is(err, api.ErrWouldBlock) {
		return false
	}
	c.ioErr, c.ioTried = err, true
	return true
}

// Err implements api.Coroutine.
func (c *Coroutine) Err() error { return c.err }

// Release implements api.Coroutine.
func (c *Coroutine) Release() {
	retain := minHeadReaderSize
	if c.conn != nil {
		if c.conn.In != nil {
			retain = max(retain, c.conn.In.Cap())
		}
		c.conn.Release()
	}
	c.req.Reset()
	c.resp.Reset()
	c.headRd.Reset(nil)
	c.headBuf.Reset(&c.headRd)
	if cap(c.body) > retain {
		c.body = nil
	} else {
		c.body = c.body[:0]
	}
	c.bodyLen = 0
	c.keepAlive = false
	c.ioErr, c.ioTried = nil, false
	c.err = nil
	c.requests = 0
	c.phase = phaseDone
	c.comp, c.conn = nil, nil
	if onDone := c.onDone; onDone != nil {
		c.onDone = nil
		onDone(c)
	}
}

// fill reads more input, reusing the result of a prior Ready call.
func (c *Coroutine) fill() (int, error) {
	if c.ioTried {
		err := c.ioErr
		c.ioErr, c.ioTried = nil, false
		return 0, err
	}
	return c.conn.In.Fill()
}

func (c *Coroutine) readHead() api.Action {
	buf := c.conn.In.Buffered()
	if end := bytes.Index(buf, headTerminator); end >= 0 {
		return c.parseHead(buf[:end+len(headTerminator)])
	}
	_, err := c.fill()
	switch {
	case err == nil:
		return api.ActionProceed
	case errors.Is(err, api.ErrWouldBlock):
		return api.ActionWait
	case errors.Is(err, transport.ErrBufferFull):
		return c.reject(api.NewError(api.ErrCodeTooLarge, "request head too large").
			WithContext("limit", c.conn.In.Cap()))
	case errors.Is(err, io.EOF) && len(buf) == 0:
		// peer closed between requests
		return api.ActionFinish
	}
	return c.fail(fmt.Errorf("read request head: %w", err))
}

func (c *Coroutine) parseHead(head []byte) api.Action {
	c.req.Reset()
	c.headRd.Reset(head)
	c.headBuf.Reset(&c.headRd)
	err := c.req.Header.Read(c.headBuf)
	c.conn.In.Discard(len(head))
	if err != nil {
		return c.reject(fmt.Errorf("%w: %v", api.ErrMalformedRequest, err))
	}

	c.keepAlive = !c.req.Header.ConnectionClose()
	switch n := c.req.Header.ContentLength(); {
	case n == -1:
		return c.reject(api.NewError(api.ErrCodeNotImplemented, "chunked request bodies are not supported"))
	case n < 0:
		c.bodyLen = 0
	case c.comp.MaxRequestSize > 0 && n > c.comp.MaxRequestSize:
		return c.reject(api.WrapError(api.ErrCodeTooLarge, api.ErrRequestTooLarge).
			WithContext("content_length", n))
	default:
		c.bodyLen = n
	}
	c.body = c.body[:0]
	c.phase = phaseReadBody
	return api.ActionProceed
}

func (c *Coroutine) readBody() api.Action {
	if want := c.bodyLen - len(c.body); want > 0 {
		buf := c.conn.In.Buffered()
		if len(buf) > want {
			buf = buf[:want]
		}
		c.body = append(c.body, buf...)
		c.conn.In.Discard(len(buf))
	}
	if len(c.body) == c.bodyLen {
		c.req.SetBody(c.body)
		c.phase = phaseProcess
		return api.ActionProceed
	}
	_, err := c.fill()
	switch {
	case err == nil:
		return api.ActionProceed
	case errors.Is(err, api.ErrWouldBlock):
		return api.ActionWait
	}
	return c.fail(fmt.Errorf("read request body: %w", err))
}

func (c *Coroutine) process() {
	c.resp.Reset()
	handled := false
	for _, intercept := range c.comp.Interceptors {
		if intercept(&c.req, &c.resp) {
			handled = true
			break
		}
	}
	if !handled {
		ep, err := c.comp.Router.Route(c.req.Header.Method(), c.req.URI().Path())
		if err == nil {
			err = ep(&c.req, &c.resp)
		}
		if err != nil {
			c.resp.Reset()
			c.comp.ErrorHandler.HandleError(&c.resp, err)
		}
	}
	c.respond()
}

// reject renders err through the error handler and closes after the flush.
func (c *Coroutine) reject(err error) api.Action {
	c.keepAlive = false
	c.resp.Reset()
	c.comp.ErrorHandler.HandleError(&c.resp, err)
	c.respond()
	return api.ActionProceed
}

func (c *Coroutine) respond() {
	if !c.keepAlive {
		c.resp.SetConnectionClose()
	}
	c.resp.SkipBody = c.req.Header.IsHead()
	// BufferedOutput only stages bytes, so WriteTo cannot fail here.
	_, _ = c.resp.WriteTo(c.conn.Out)
	c.requests++
	c.phase = phaseFlush
}

func (c *Coroutine) flush() api.Action {
	var err error
	if c.ioTried {
		err = c.ioErr
		c.ioErr, c.ioTried = nil, false
		if err == nil && c.conn.Out.Pending() > 0 {
			err = c.conn.Out.Flush()
		}
	} else {
		err = c.conn.Out.Flush()
	}
	switch {
	case errors.Is(err, api.ErrWouldBlock):
		return api.ActionWait
	case err != nil:
		return c.fail(fmt.Errorf("write response: %w", err))
	case !c.keepAlive:
		c.phase = phaseDone
		return api.ActionFinish
	}
	c.req.Reset()
	c.phase = phaseReadHead
	return api.ActionProceed
}

func (c *Coroutine) fail(err error) api.Action {
	c.err = err
	c.phase = phaseDone
	return api.ActionError
}

// Package httpproc
// Author: momentics <momentics@gmail.com>
//
// HTTP/1.1 request processing as a cooperative coroutine.
//
// A Coroutine owns one connection and walks it through
// read head, read body, intercept, route, respond and flush. Every step is
// non-blocking; when the socket is not ready the coroutine reports
// api.ActionWait and is retried by its Processor. Keep-alive connections
// loop back to reading the next request head.
//
// Request and response models come from fasthttp; only the parsing and
// serialisation primitives are used, not its server.
package httpproc

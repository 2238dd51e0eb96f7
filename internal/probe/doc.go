// Package probe issues the HTTP requests of a scan and reports what came back.
//
// A Client owns one shared connection pool for the whole scan. Every probe
// targets origin + "/" + path, never follows redirects and sends a fixed
// User-Agent plus any configured headers and cookie. Sizes are raw wire
// sizes: transparent decompression is disabled and Accept-Encoding is sent
// as configured.
//
// For GET probes the first excerpt bytes of the body are captured for
// signature and block-marker checks. When the response carries a
// Content-Length the rest of the body is never read; otherwise it is counted
// up to a configured limit.
package probe

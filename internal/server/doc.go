// Package server implements the linkshare HTTP surface.
//
// This package provides:
//   - The link pages: list, add form, and the JSON-free delete endpoint
//   - The /update_server webhook that verifies an HMAC-SHA256 signature and
//     hands a deploy trigger to a background dispatcher
//   - Health and Prometheus metrics endpoints
//   - Structured request logging
//
// Every handler runs against a Server value built once at startup. Database
// access is scoped to the request: handlers acquire a store session and
// release it before returning.
package server

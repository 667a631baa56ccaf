// Package webhook verifies signed deployment notifications.
//
// A notification is accepted only when its X-Hub-Signature-256 header holds
// "sha256=" followed by the hex HMAC-SHA256 of the raw request body, keyed
// with the shared secret. Digests are compared in constant time.
//
// Each rejection carries the HTTP status the caller should answer with:
//   - 500 when no secret is configured
//   - 403 for a missing, malformed or mismatched signature
//   - 501 for any algorithm other than sha256
package webhook

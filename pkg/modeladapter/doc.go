// Package modeladapter provides the shared HTTP plumbing for inference
// transports.
//
// It contains:
//   - embeddable [ModelAdapter] base struct with HTTP helpers, auth, and custom headers
//   - [Retrier] for reactive HTTP 429 retry with exponential backoff and jitter
//   - [TokenEstimator] for pre-call token estimates when a provider reports no usage
//   - [github.com/germanamz/swchat/pkg/modeladapter/usage]: token counts, per-request tracker, and pricing
//
// This package contains no provider-specific code; concrete transports live in
// separate packages that embed ModelAdapter.
package modeladapter

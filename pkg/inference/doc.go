// Package inference defines the contract between the tool-resolution loop
// and a hosted model endpoint.
//
// A [Gateway] offers two calls over the same request shape:
//   - [Gateway.Invoke] returns the complete [Result] of one single-shot call
//   - [Gateway.InvokeStream] returns a [Stream] of text fragments
//
// Every call receives a fresh [Payload] built with [NewPayload]. Transport
// failures surface as [*Error]. [Instrument] wraps any Gateway with tracing
// spans and usage accounting.
package inference

// Package providers holds the concrete inference gateways.
//
//   - [github.com/germanamz/swchat/pkg/providers/bedrock]: Anthropic models on Amazon Bedrock over the runtime REST API
//   - [github.com/germanamz/swchat/pkg/providers/anthropic]: the Anthropic Messages API through the official SDK
//
// Both implement [github.com/germanamz/swchat/pkg/inference.Gateway].
package providers

// Package chats provides the transcript data model shared by the inference
// gateway, the tool-resolution loop and the response emitters.
//
// It is organized into sub-packages:
//   - [github.com/germanamz/swchat/pkg/chats/role]: conversation roles (user, assistant)
//   - [github.com/germanamz/swchat/pkg/chats/content]: content blocks (text, tool use, tool result)
//   - [github.com/germanamz/swchat/pkg/chats/message]: messages composed of a role and content blocks
//   - [github.com/germanamz/swchat/pkg/chats/chat]: append-only transcript container
//
// No provider or API code is included; chats is a foundation layer that
// adapters build on.
package chats

// Package tools groups the tools the chat model may call and the ways they
// are exposed.
//
// Sub-packages:
//   - [github.com/germanamz/swchat/pkg/tools/toolbox]: Tool declarations and the ToolBox that dispatches model tool calls
//   - [github.com/germanamz/swchat/pkg/tools/swapi]: the getPeople and getStarships tools backed by the Star Wars API
//   - [github.com/germanamz/swchat/pkg/tools/mcpserver]: serves a ToolBox over MCP (stdio or streamable HTTP)
package tools

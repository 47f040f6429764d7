// Package engine is the composition root of the chat service. It assembles
// the inference gateway, the SWAPI tools and the tool-resolution loop from a
// Config and exposes the two answer modes: Chat returns a buffered Reply and
// Stream emits Events as the answer is produced. Frontends (HTTP server,
// WebSocket, MCP) talk to Engine and never wire lower-level packages
// themselves.
package engine

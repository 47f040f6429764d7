package main

import (
	"flag"
	"fmt"
	"os"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Handle subcommands before flag parsing.
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "mcp":
			mcpCmd := flag.NewFlagSet("mcp", flag.ExitOnError)
			mcpCmd.Usage = func() {
				fmt.Fprintf(os.Stderr, "Usage: swchat mcp [flags]\n\nServe the SWAPI tools over MCP on stdin/stdout.\n\nFlags:\n")
				mcpCmd.PrintDefaults()
			}
			cfgPath := mcpCmd.String("config", "", "path to configuration file")
			envFile := mcpCmd.String("env", ".env", "path to .env file (ignored if missing)")
			_ = mcpCmd.Parse(os.Args[2:])

			exitOnErr(runMCP(*cfgPath, *envFile))

			return
		case "ask":
			askCmd := flag.NewFlagSet("ask", flag.ExitOnError)
			askCmd.Usage = func() {
				fmt.Fprintf(os.Stderr, "Usage: swchat ask [flags] <question>\n\nAsk a running swchat server a question and print the streamed answer.\n\nFlags:\n")
				askCmd.PrintDefaults()
			}
			addr := askCmd.String("addr", "http://localhost:8000", "base URL of the swchat server")
			useWS := askCmd.Bool("ws", false, "use the /ws endpoint instead of /stream")
			raw := askCmd.Bool("raw", false, "print the answer without markdown rendering")
			_ = askCmd.Parse(os.Args[2:])

			exitOnErr(runAsk(askOptions{
				Addr:     *addr,
				Question: joinArgs(askCmd.Args()),
				WS:       *useWS,
				Raw:      *raw,
				Out:      os.Stdout,
			}))

			return
		case "serve":
			os.Args = append(os.Args[:1], os.Args[2:]...)
		}
	}

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: swchat [flags]\n       swchat <command> [flags]\n\nFlags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nCommands:\n  serve   Run the HTTP server (default)\n  mcp     Serve the SWAPI tools over MCP stdio\n  ask     Ask a running server a question\n")
	}

	configPath := flag.String("config", "", "path to configuration file (defaults plus environment when empty)")
	envFile := flag.String("env", ".env", "path to .env file (ignored if missing)")
	addr := flag.String("addr", "", "listen address (overrides config)")
	flag.Parse()

	exitOnErr(runServe(*configPath, *envFile, *addr))
}

func exitOnErr(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

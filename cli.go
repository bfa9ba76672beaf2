package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Version is the current server version. Set at build time via -ldflags.
var Version = "0.1.0-dev"

// runCLI handles subcommand execution before the main UDP/config path
// runs. Returns true if a subcommand was handled. Grounded on the
// teacher's own RunCLI dispatch-by-first-arg shape, with the
// SQLite-backed subcommands removed — there is nothing left to query
// without a store — and a stats subcommand added that hits the operator
// HTTP surface instead.
func runCLI(args []string) bool {
	if len(args) == 0 {
		return false
	}

	switch args[0] {
	case "version":
		fmt.Printf("chatd %s\n", Version)
		return true
	case "stats":
		return cliStats(args[1:])
	default:
		return false
	}
}

func cliStats(args []string) bool {
	addr := ":8090"
	if len(args) > 0 {
		addr = args[0]
	}

	client := http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get("http://" + trimColonPrefix(addr) + "/api/stats")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reaching operator HTTP surface at %s: %v\n", addr, err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading response: %v\n", err)
		os.Exit(1)
	}

	var stats StatsResponse
	if err := json.Unmarshal(body, &stats); err != nil {
		fmt.Fprintf(os.Stderr, "error decoding response: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Clients:    %d\n", stats.Clients)
	fmt.Printf("Rooms:      %d\n", stats.Rooms)
	fmt.Printf("Heap depth: %d\n", stats.HeapDepth)
	return true
}

// trimColonPrefix turns ":8090" into "localhost:8090" for use as an HTTP
// client target; a bare host:port address is passed through unchanged.
func trimColonPrefix(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}

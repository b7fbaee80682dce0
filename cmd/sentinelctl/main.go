// Command sentinelctl is a thin CLI companion to sentineld, talking to
// its HTTP Command Surface the way the teacher's dbctl talked directly
// to the SQLite database (spec §6's RPCs, over the wire this time).
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	addr := flag.String("addr", envOr("SENTINELCTL_ADDR", "http://127.0.0.1:8787"), "sentineld HTTP address")
	action := flag.String("action", "", "Action: list-runs, kill-run, get-output")
	runID := flag.String("run", "", "run id, required by kill-run/get-output")
	jsonOutput := flag.Bool("json", false, "print raw JSON response")
	flag.Parse()

	if *action == "" {
		fmt.Fprintln(os.Stderr, "Usage: sentinelctl -action <list-runs|kill-run|get-output> [-run <id>] [-addr <url>] [-json]")
		os.Exit(1)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	base := strings.TrimRight(*addr, "/")

	var resp *http.Response
	var err error

	switch *action {
	case "list-runs":
		resp, err = client.Get(base + "/api/runs")
	case "kill-run":
		if *runID == "" {
			fmt.Fprintln(os.Stderr, "sentinelctl: kill-run requires -run")
			os.Exit(1)
		}
		resp, err = client.Post(base+"/api/runs/"+*runID+"/kill", "application/json", nil)
	case "get-output":
		if *runID == "" {
			fmt.Fprintln(os.Stderr, "sentinelctl: get-output requires -run")
			os.Exit(1)
		}
		resp, err = client.Get(base + "/api/runs/" + *runID + "/output")
	default:
		fmt.Fprintf(os.Stderr, "sentinelctl: unknown action %q\n", *action)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "sentinelctl: request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sentinelctl: read response: %v\n", err)
		os.Exit(1)
	}

	if *jsonOutput {
		os.Stdout.Write(body)
		fmt.Println()
	} else {
		printPretty(body)
	}

	if resp.StatusCode >= 400 {
		os.Exit(1)
	}
}

func printPretty(body []byte) {
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		os.Stdout.Write(body)
		return
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		os.Stdout.Write(body)
		return
	}
	fmt.Println(string(pretty))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

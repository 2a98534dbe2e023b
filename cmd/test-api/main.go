// Package main is a smoke-test utility that checks a running server answers
// its probes and the organization listing. The base URL defaults to
// http://localhost:8080 and can be overridden with PORTAL_SERVER_BASE_URL.
package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

var paths = []string{
	"/health",
	"/ready",
	"/version",
	"/api/1/organizations/?page_size=1",
}

func main() {
	base := strings.TrimRight(os.Getenv("PORTAL_SERVER_BASE_URL"), "/")
	if base == "" {
		base = "http://localhost:8080"
	}

	client := &http.Client{Timeout: 10 * time.Second}
	failed := false
	for _, p := range paths {
		status, body, err := get(client, base+p)
		if err != nil {
			fmt.Printf("%-40s ERROR %v\n", p, err)
			failed = true
			continue
		}
		fmt.Printf("%-40s %d\n%s\n\n", p, status, body)
		if status != http.StatusOK {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func get(client *http.Client, url string) (int, string, error) {
	resp, err := client.Get(url) // #nosec G107 -- operator-supplied base URL
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("reading body: %w", err)
	}
	return resp.StatusCode, string(body), nil
}

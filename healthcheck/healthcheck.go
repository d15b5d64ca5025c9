package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"
)

const (
	defaultServerPort = "9000"
	defaultTCPPort    = "9001"
	requestTimeout    = 5 * time.Second
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if err := run(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
		os.Exit(1)
	}

	os.Exit(0)
}

// run probes both listeners: the HTTP /health endpoint and the TCP line
// protocol port.
func run(ctx context.Context) error {
	if err := checkHTTP(ctx, envOr("SERVER_PORT", defaultServerPort)); err != nil {
		return err
	}
	return checkTCP(ctx, envOr("TCP_PORT", defaultTCPPort))
}

func checkHTTP(ctx context.Context, port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "warning: failed to close response body: %v\n", closeErr)
		}
	}()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("failed to discard response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	return nil
}

func checkTCP(ctx context.Context, port string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort("localhost", port))
	if err != nil {
		return fmt.Errorf("tcp dial on port %s failed: %w", port, err)
	}
	return conn.Close()
}

func envOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"media-cache/internal/securestore"
)

const (
	// Default timeout for server requests
	defaultTimeout = 30 * time.Second
	// Default server base URL
	defaultServerURL = "http://localhost:8080"
	// Default key file path for keygen
	defaultKeyFile = "cache.key"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	// Create a context that cancels on interrupt signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	serverURL := os.Getenv("SERVER_URL")
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	serverURL = strings.TrimRight(serverURL, "/")

	ok := true
	switch command {
	case "keygen":
		ok = generateKey(os.Args[2:])
	case "stats":
		ok = showStats(ctx, serverURL)
	case "evict":
		ok = evictCache(ctx, serverURL)
	case "clear":
		ok = clearCache(ctx, serverURL)
	case "downloads":
		ok = showDownloads(ctx, serverURL)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage()
		os.Exit(1)
	}
	if !ok {
		os.Exit(1)
	}
}

// sanitizeCommand returns a safe representation of a command string for
// display, replacing any character outside [a-zA-Z0-9_-] with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage() {
	fmt.Println("Media Cache Control")
	fmt.Println("")
	fmt.Println("Usage: cachectl <command>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  keygen [file]  - Generate an encryption key file (default: cache.key)")
	fmt.Println("  stats          - Show cache statistics")
	fmt.Println("  evict          - Run a disk eviction pass")
	fmt.Println("  clear          - Clear both cache tiers")
	fmt.Println("  downloads      - Show download status")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Printf("  SERVER_URL - Base URL of the cache server (default: %s)\n", defaultServerURL)
}

// generateKey writes a 32-byte encryption key file. With a passphrase the
// key is derived with scrypt; an empty passphrase produces a random key.
func generateKey(args []string) bool {
	keyFile := defaultKeyFile
	if len(args) > 0 {
		keyFile = args[0]
	}

	if _, err := os.Stat(keyFile); err == nil {
		fmt.Fprintf(os.Stderr, "Error: %s already exists, refusing to overwrite\n", keyFile)
		return false
	}

	fmt.Print("Passphrase (empty for random key): ")
	passphrase, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading passphrase: %v\n", err)
		return false
	}

	var key []byte
	if len(passphrase) == 0 {
		key = make([]byte, securestore.KeySize)
		if _, err := rand.Read(key); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating key: %v\n", err)
			return false
		}
	} else {
		fmt.Print("Confirm passphrase: ")
		confirm, err := term.ReadPassword(syscall.Stdin)
		fmt.Println()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading passphrase: %v\n", err)
			return false
		}
		if !bytes.Equal(passphrase, confirm) {
			fmt.Fprintln(os.Stderr, "Error: Passphrases do not match")
			return false
		}

		salt, err := securestore.NewSalt()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating salt: %v\n", err)
			return false
		}
		key, err = securestore.DeriveKey(passphrase, salt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error deriving key: %v\n", err)
			return false
		}
	}

	if err := os.WriteFile(keyFile, key, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing key file: %v\n", err)
		return false
	}

	fmt.Printf("Key written to %s\n", keyFile)
	fmt.Println("Point ENCRYPTION_KEY_FILE at it and restart the server.")
	return true
}

func showStats(ctx context.Context, serverURL string) bool {
	body, ok := doRequest(ctx, http.MethodGet, serverURL+"/api/stats")
	if !ok {
		return false
	}

	var stats struct {
		MemoryItems     int     `json:"memoryItems"`
		MemoryBytes     int64   `json:"memoryBytes"`
		MemoryBudget    int64   `json:"memoryBudget"`
		DiskBytes       int64   `json:"diskBytes"`
		DiskBudget      int64   `json:"diskBudget"`
		DiskThumbnails  int     `json:"diskThumbnails"`
		TotalCached     int     `json:"totalCached"`
		DownloadedBytes int64   `json:"downloadedBytes"`
		MemoryUsage     float64 `json:"memoryUsage"`
	}
	if err := json.Unmarshal(body, &stats); err != nil {
		fmt.Fprintf(os.Stderr, "Error: unexpected response: %v\n", err)
		return false
	}

	fmt.Printf("Memory tier:  %d items, %s / %s\n", stats.MemoryItems, formatBytes(stats.MemoryBytes), formatBytes(stats.MemoryBudget))
	fmt.Printf("Disk tier:    %d thumbnails, %s / %s\n", stats.DiskThumbnails, formatBytes(stats.DiskBytes), formatBytes(stats.DiskBudget))
	fmt.Printf("Total cached: %d\n", stats.TotalCached)
	if stats.DownloadedBytes > 0 {
		fmt.Printf("Downloads:    %s\n", formatBytes(stats.DownloadedBytes))
	}
	if stats.MemoryUsage > 0 {
		fmt.Printf("Process:      %.0f%% of memory limit\n", stats.MemoryUsage*100)
	}
	return true
}

func evictCache(ctx context.Context, serverURL string) bool {
	body, ok := doRequest(ctx, http.MethodPost, serverURL+"/api/cache/evict")
	if !ok {
		return false
	}

	var result struct {
		EvictedFiles int `json:"evictedFiles"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		fmt.Fprintf(os.Stderr, "Error: unexpected response: %v\n", err)
		return false
	}

	fmt.Printf("Evicted %d files.\n", result.EvictedFiles)
	return true
}

func clearCache(ctx context.Context, serverURL string) bool {
	if _, ok := doRequest(ctx, http.MethodDelete, serverURL+"/api/cache"); !ok {
		return false
	}
	fmt.Println("Cache cleared.")
	return true
}

func showDownloads(ctx context.Context, serverURL string) bool {
	body, ok := doRequest(ctx, http.MethodGet, serverURL+"/api/downloads")
	if !ok {
		return false
	}

	var status struct {
		State    string `json:"state"`
		Progress struct {
			Completed int `json:"completed"`
			Total     int `json:"total"`
		} `json:"progress"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		fmt.Fprintf(os.Stderr, "Error: unexpected response: %v\n", err)
		return false
	}

	fmt.Printf("State: %s\n", status.State)
	if status.Progress.Total > 0 {
		fmt.Printf("Progress: %d/%d\n", status.Progress.Completed, status.Progress.Total)
	}
	if status.Reason != "" {
		fmt.Printf("Reason: %s\n", status.Reason)
	}
	return true
}

func doRequest(ctx context.Context, method, url string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, false
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to reach server: %v\n", err)
		fmt.Fprintln(os.Stderr, "Make sure SERVER_URL is set correctly.")
		return nil, false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading response: %v\n", err)
		return nil, false
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fmt.Fprintf(os.Stderr, "Error: server returned %s\n", resp.Status)
		return nil, false
	}
	return body, true
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1fGiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fKiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}

package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/saverx/saverx/internal/config"
	"github.com/saverx/saverx/internal/utils"
)

// errNotRunning is returned by client commands when no instance serves.
var errNotRunning = errors.New("SaverX is not running (start it with 'saverx' or 'saverx --headless')")

var apiClient = &http.Client{Timeout: 10 * time.Second}

func portFile() string {
	return filepath.Join(config.GetStateDir(), "port")
}

// readActivePort returns the port of the running instance, or 0.
func readActivePort() int {
	data, err := os.ReadFile(portFile())
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return port
}

// saveActivePort records the port for CLI discovery.
func saveActivePort(port int) {
	if err := os.WriteFile(portFile(), []byte(strconv.Itoa(port)), 0o644); err != nil {
		utils.Debug("Failed to write port file: %v", err)
		return
	}
	utils.Debug("HTTP server listening on port %d", port)
}

func removeActivePort() {
	_ = os.Remove(portFile())
}

// findAvailablePort tries ports starting from start until one is free.
func findAvailablePort(start int) (int, net.Listener) {
	for port := start; port < start+100; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			return port, ln
		}
	}
	return 0, nil
}

// listen binds the requested port, or the first free one from 8080 when
// port is 0.
func listen(port int) (int, net.Listener, error) {
	if port > 0 {
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			return 0, nil, fmt.Errorf("could not bind to port %d: %w", port, err)
		}
		return port, ln, nil
	}
	port, ln := findAvailablePort(8080)
	if ln == nil {
		return 0, nil, errors.New("could not find available port")
	}
	return port, ln, nil
}

// resolvePort picks the flag value, then the port file.
func resolvePort(flagPort int) (int, error) {
	if flagPort > 0 {
		return flagPort, nil
	}
	if port := readActivePort(); port > 0 {
		return port, nil
	}
	return 0, errNotRunning
}

// readURLsFromFile reads URLs one per line, skipping blanks, comments and
// duplicates.
func readURLsFromFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var urls []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key := strings.TrimRight(line, "/")
		if seen[key] {
			continue
		}
		seen[key] = true
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(urls) == 0 {
		return nil, errors.New("no URLs found in file")
	}
	return urls, nil
}

func serverURL(port int, path string) string {
	return fmt.Sprintf("http://127.0.0.1:%d%s", port, path)
}

// decodeResponse reads a JSON body into v, or turns an error body into an
// error.
func decodeResponse(resp *http.Response, v any) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server error: %s - %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("server error: %s - %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}
	return nil
}

func getJSON(port int, path string, v any) error {
	resp, err := apiClient.Get(serverURL(port, path))
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	return decodeResponse(resp, v)
}

func postJSON(port int, path string, body, v any) error {
	var payload io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		payload = bytes.NewReader(data)
	}
	resp, err := apiClient.Post(serverURL(port, path), "application/json", payload)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	return decodeResponse(resp, v)
}

// sendToServer queues url on the running instance and returns the job id.
func sendToServer(url string, port int) (int64, error) {
	var out DownloadResponse
	if err := postJSON(port, "/download", DownloadRequest{URL: url}, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

func parseIDArg(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(arg), "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", arg)
	}
	return id, nil
}

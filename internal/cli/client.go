package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/neonvoidvibes/align/internal/config"
)

const httpTimeout = 5 * time.Second

// apiClient talks to a running align server.
type apiClient struct {
	http      *http.Client
	serverURL string
}

// newAPIClient respects ALIGN_URL, falling back to the configured listen address.
func newAPIClient(cfg config.Config) *apiClient {
	url := os.Getenv("ALIGN_URL")
	if url == "" {
		url = "http://" + cfg.ListenAddr()
	}
	return &apiClient{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: url,
	}
}

// postJSON sends v as a JSON body and decodes the response into out.
func (c *apiClient) postJSON(path string, v, out any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	resp, err := c.http.Post(c.serverURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("POST %s: status %d: %s", path, resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// healthy reports whether a server is reachable and running analysis.
func (c *apiClient) healthy() bool {
	resp, err := c.http.Get(c.serverURL + "/api/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var body struct {
		Analysis bool `json:"analysis"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false
	}
	return body.Analysis
}

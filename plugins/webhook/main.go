// Package main provides a webhook plugin that posts each completed gesture
// to a configured HTTP endpoint.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action    string          `json:"action"`
	Gesture   string          `json:"gesture"`
	Player    int             `json:"player"`
	Timestamp time.Time       `json:"timestamp"`
	Config    json.RawMessage `json:"config"`
	Params    json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config is the per-action configuration stored with the binding.
type Config struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
}

// payload is the body posted to the endpoint.
type payload struct {
	Gesture   string          `json:"gesture"`
	Player    int             `json:"player"`
	Timestamp time.Time       `json:"timestamp"`
	Params    json.RawMessage `json:"params,omitempty"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(Response{Error: fmt.Sprintf("failed to decode request: %v", err)})
		return
	}

	if req.Action != "post" {
		writeResponse(Response{Error: fmt.Sprintf("unknown action: %s", req.Action)})
		return
	}

	status, err := post(req)
	if err != nil {
		writeResponse(Response{Error: fmt.Sprintf("action %s failed: %v", req.Action, err)})
		return
	}

	data, _ := json.Marshal(map[string]int{"status": status})
	writeResponse(Response{Success: true, Data: data})
}

// post sends the gesture to the configured URL and returns the HTTP status.
func post(req Request) (int, error) {
	var cfg Config
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return 0, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if cfg.URL == "" {
		return 0, fmt.Errorf("url is required")
	}

	body, err := json.Marshal(payload{
		Gesture:   req.Gesture,
		Player:    req.Player,
		Timestamp: req.Timestamp,
		Params:    req.Params,
	})
	if err != nil {
		return 0, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("endpoint returned %s", resp.Status)
	}
	return resp.StatusCode, nil
}

func writeResponse(resp Response) {
	json.NewEncoder(os.Stdout).Encode(resp)
}

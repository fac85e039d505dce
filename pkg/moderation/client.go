// Package moderation is a thin client for the external text-moderation
// service. It is consulted for generated usernames only; callers treat any
// error as "not flagged".
package moderation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type checkRequest struct {
	Text string `json:"text"`
}

type checkResponse struct {
	Flagged bool `json:"flagged"`
}

// CheckText reports whether the service flagged the text. A client built
// with an empty base URL is a no-op that never flags.
func (c *Client) CheckText(text string) (bool, error) {
	if c.baseURL == "" {
		return false, nil
	}

	payload, err := json.Marshal(checkRequest{Text: text})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("moderation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("moderation service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("failed to read moderation response: %w", err)
	}

	var result checkResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return false, fmt.Errorf("failed to parse moderation response: %w", err)
	}

	return result.Flagged, nil
}

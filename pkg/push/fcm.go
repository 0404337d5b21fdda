// Package push delivers notifications through the FCM HTTP v1 API.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	fcmScope    = "https://www.googleapis.com/auth/firebase.messaging"
	fcmEndpoint = "https://fcm.googleapis.com"
)

// Notification is a single push payload
type Notification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Result summarizes a multicast delivery. StaleTokens lists device
// tokens FCM reported as unregistered; callers should prune them.
type Result struct {
	SuccessCount int      `json:"successCount"`
	FailureCount int      `json:"failureCount"`
	StaleTokens  []string `json:"-"`
}

// Sender abstracts delivery for handlers and tests
type Sender interface {
	SendToTokens(ctx context.Context, tokens []string, notification Notification) (*Result, error)
}

// FCMClient sends messages through the FCM HTTP v1 API using a service
// account credential.
type FCMClient struct {
	httpClient *http.Client
	endpoint   string
	projectID  string
}

// NewFCMClient reads the service account key and builds an
// OAuth2-authenticated HTTP client for the messaging scope.
func NewFCMClient(ctx context.Context, credentialsFile string) (*FCMClient, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read FCM credentials: %w", err)
	}

	creds, err := google.CredentialsFromJSON(ctx, data, fcmScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse FCM credentials: %w", err)
	}
	if creds.ProjectID == "" {
		return nil, fmt.Errorf("FCM credentials are missing a project ID")
	}

	httpClient := oauth2.NewClient(ctx, creds.TokenSource)
	httpClient.Timeout = 10 * time.Second

	return &FCMClient{
		httpClient: httpClient,
		endpoint:   fcmEndpoint,
		projectID:  creds.ProjectID,
	}, nil
}

// fcmMessage is the v1 API request body
type fcmMessage struct {
	Message struct {
		Token        string            `json:"token"`
		Notification map[string]string `json:"notification"`
		Data         map[string]string `json:"data,omitempty"`
	} `json:"message"`
}

// fcmErrorResponse is the relevant slice of a v1 API error body
type fcmErrorResponse struct {
	Error struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Details []struct {
			Type      string `json:"@type"`
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

// SendToTokens delivers the notification to every device token,
// reporting per-token failures instead of aborting the batch.
func (c *FCMClient) SendToTokens(ctx context.Context, tokens []string, notification Notification) (*Result, error) {
	result := &Result{}

	for _, token := range tokens {
		stale, err := c.send(ctx, token, notification)
		if err != nil {
			result.FailureCount++
			if stale {
				result.StaleTokens = append(result.StaleTokens, token)
			}
			continue
		}
		result.SuccessCount++
	}

	return result, nil
}

// send posts one message; the bool reports an unregistered token.
func (c *FCMClient) send(ctx context.Context, token string, notification Notification) (bool, error) {
	msg := fcmMessage{}
	msg.Message.Token = token
	msg.Message.Notification = map[string]string{
		"title": notification.Title,
		"body":  notification.Body,
	}
	msg.Message.Data = notification.Data

	payload, err := json.Marshal(msg)
	if err != nil {
		return false, fmt.Errorf("failed to encode FCM message: %w", err)
	}

	url := fmt.Sprintf("%s/v1/projects/%s/messages:send", c.endpoint, c.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("failed to build FCM request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("FCM request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return false, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	return isUnregistered(resp.StatusCode, body), fmt.Errorf("FCM rejected message: status %d", resp.StatusCode)
}

// isUnregistered detects tokens FCM no longer recognizes
func isUnregistered(status int, body []byte) bool {
	if status == http.StatusNotFound {
		return true
	}

	var errResp fcmErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		return false
	}
	if errResp.Error.Status == "NOT_FOUND" {
		return true
	}
	for _, detail := range errResp.Error.Details {
		if detail.ErrorCode == "UNREGISTERED" {
			return true
		}
	}
	return false
}

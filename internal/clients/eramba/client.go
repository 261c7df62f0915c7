// package eramba submits compliance evidence to an Eramba GRC instance over
// its token-authenticated JSON API. Self-hosted instances commonly run with
// self-signed certificates, so certificate verification is a config toggle.
package eramba

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/grcops/pr-compliance/internal/apperrors"
	"github.com/grcops/pr-compliance/internal/domain"
)

const requestTimeout = 30 * time.Second

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *slog.Logger
}

func NewClient(baseURL, token string, verifySSL bool, log *slog.Logger) *Client {
	transport := http.DefaultTransport
	if !verifySSL {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Timeout:   requestTimeout,
			Transport: transport,
		},
		log: log,
	}
}

// evidencePayload is the wire form of one evidence submission.
type evidencePayload struct {
	ControlID   int    `json:"control_id"`
	Date        string `json:"date"`
	Result      string `json:"result"`
	Description string `json:"description"`
}

// Submit posts the evidence record to the platform's evidences endpoint and
// returns the response status and body. A rejection does not invalidate the
// locally stored evidence; the caller decides whether to retry later.
func (c *Client) Submit(ctx context.Context, evidence domain.Evidence) (int, string, error) {
	const op = "internal.clients.eramba.Submit"

	payload := evidencePayload{
		ControlID:   evidence.ControlID,
		Date:        evidence.CreatedAt.UTC().Format(time.RFC3339),
		Result:      evidence.Status,
		Description: evidence.Description,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, "", fmt.Errorf("%s: failed to marshal payload: %w", op, err)
	}

	c.log.Info("submitting evidence",
		slog.Int("control_id", evidence.ControlID),
		slog.String("result", evidence.Status),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/evidences", bytes.NewReader(body))
	if err != nil {
		return 0, "", fmt.Errorf("%s: failed to build request: %w", op, err)
	}

	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("%s: %w: %v", op, apperrors.ErrSubmission, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("%s: failed to read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, string(respBody), &apperrors.SubmissionError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	c.log.Info("evidence submitted", slog.Int("status", resp.StatusCode))

	return resp.StatusCode, string(respBody), nil
}

// TestConnection verifies the base URL and token against the current-user
// endpoint before any evidence is sent.
func (c *Client) TestConnection(ctx context.Context) error {
	const op = "internal.clients.eramba.TestConnection"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/users/me", nil)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", op, err)
	}

	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, apperrors.ErrSubmission, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &apperrors.SubmissionError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.token)
}

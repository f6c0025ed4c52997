// Package sdk is a small HTTP client for the CommentIntel API.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	BaseURL    string
	ClientType string
	HTTP       *http.Client
}

func New(baseURL, clientType string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), ClientType: clientType, HTTP: http.DefaultClient}
}

// APIError is returned for non-2xx responses
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("commentintel: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("commentintel: %d %s", e.StatusCode, e.Message)
}

// Comment is one customer comment
type Comment struct {
	ID     string `json:"id,omitempty"`
	User   string `json:"user"`
	Text   string `json:"comment"`
	Date   string `json:"date,omitempty"`
	Seller string `json:"seller,omitempty"`
}

// CategoryResult is the classification of a comment for one category
type CategoryResult struct {
	Relevant   bool     `json:"relevant"`
	Sentiment  string   `json:"sentiment"`
	Keywords   []string `json:"keywords_found"`
	Confidence float64  `json:"confidence"`
}

// ClassifyResult is returned by Classify
type ClassifyResult struct {
	Text     string                    `json:"text"`
	Relevant []string                  `json:"relevant_categories"`
	Results  map[string]CategoryResult `json:"results"`
}

// CriticalIssue is a prioritised category
type CriticalIssue struct {
	Category              string  `json:"category"`
	PriorityScore         float64 `json:"priority_score"`
	TotalNegativeComments int     `json:"total_negative_comments"`
	AverageNegativity     float64 `json:"average_negativity"`
	RecentComplaints      int     `json:"recent_complaints"`
}

// ActionItem is one entry of the action plan
type ActionItem struct {
	Category         string   `json:"category"`
	PriorityScore    float64  `json:"priority_score"`
	Tier             string   `json:"tier"`
	Urgency          string   `json:"urgency"`
	Department       string   `json:"responsible_department"`
	SuggestedActions []string `json:"suggested_actions"`
}

// Analysis is the prioritisation output
type Analysis struct {
	CriticalIssues []CriticalIssue `json:"critical_issues"`
	ActionPlan     []ActionItem    `json:"action_plan"`
	Summary        json.RawMessage `json:"summary"`
}

// AnalyzeOptions tunes Analyze
type AnalyzeOptions struct {
	Source  string
	Persist bool
}

// AnalyzeResult is returned by Analyze. RunID is set for persisted runs.
type AnalyzeResult struct {
	RunID     string          `json:"run_id"`
	Source    string          `json:"source"`
	Persisted bool            `json:"persisted"`
	Aggregate json.RawMessage `json:"aggregate"`
	Analysis  Analysis        `json:"analysis"`
}

// Run is a persisted analysis run
type Run struct {
	ID               string          `json:"id"`
	Source           string          `json:"source"`
	TotalComments    int             `json:"total_comments"`
	RelevantComments int             `json:"relevant_comments"`
	TopCategory      string          `json:"top_category"`
	TopScore         float64         `json:"top_score"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       time.Time       `json:"finished_at"`
	Analysis         json.RawMessage `json:"analysis"`
}

func (c *Client) headers(req *http.Request) {
	if c.ClientType != "" {
		req.Header.Set("X-Client-Type", c.ClientType)
	}
}

// Classify classifies a single comment text
func (c *Client) Classify(ctx context.Context, text string) (*ClassifyResult, error) {
	var out ClassifyResult
	if err := c.do(ctx, "POST", "/v1/classify", map[string]string{"text": text}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Analyze classifies and prioritises a batch of comments
func (c *Client) Analyze(ctx context.Context, comments []Comment, opts AnalyzeOptions) (*AnalyzeResult, error) {
	body := struct {
		Source   string    `json:"source,omitempty"`
		Comments []Comment `json:"comments"`
		Persist  bool      `json:"persist,omitempty"`
	}{opts.Source, comments, opts.Persist}

	var out AnalyzeResult
	if err := c.do(ctx, "POST", "/v1/analyze", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Run fetches a persisted run. An id of "latest" returns the most recent run.
func (c *Client) Run(ctx context.Context, id string) (*Run, error) {
	var out Run
	if err := c.do(ctx, "GET", "/v1/runs/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Report returns the text report of a run. kind is "priority" or "category".
func (c *Client) Report(ctx context.Context, runID, kind string) (string, error) {
	path := "/v1/runs/" + url.PathEscape(runID) + "/report"
	if kind != "" {
		path += "?type=" + url.QueryEscape(kind)
	}

	resp, err := c.send(ctx, "GET", path, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	resp, err := c.send(ctx, method, path, in)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return json.NewDecoder(resp.Body).Decode(out)
}

// send performs the request and converts error statuses to *APIError
func (c *Client) send(ctx context.Context, method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.headers(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var e struct {
			Message   string `json:"message"`
			RequestID string `json:"request_id"`
		}
		if json.NewDecoder(resp.Body).Decode(&e) == nil {
			apiErr.Message = e.Message
			apiErr.RequestID = e.RequestID
		}
		return nil, apiErr
	}
	return resp, nil
}

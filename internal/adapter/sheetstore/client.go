// Package sheetstore implements the store ports on a hosted tabular
// record store accessed over HTTP. Every cell is text; worksheets are
// addressed by name and rows by zero-based index below the header.
//
// The API offers no conditional writes, so read-modify-write sequences
// are only serialized by the in-process gate.
package sheetstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/motorpool/motorpool/internal/ports"
	"github.com/motorpool/motorpool/internal/service/logger"
)

// Client is a thin HTTP client for one spreadsheet document.
type Client struct {
	baseURL    string
	documentID string
	token      string
	logger     logger.Logger
	httpClient *http.Client
}

// NewClient creates a client for the given document.
func NewClient(baseURL, documentID, token string, timeout time.Duration, log logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		documentID: documentID,
		token:      token,
		logger:     log,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type rowsResponse struct {
	Rows [][]string `json:"rows"`
}

type valuesRequest struct {
	Values []string `json:"values"`
}

type worksheetRequest struct {
	Title  string   `json:"title"`
	Header []string `json:"header"`
}

// Rows returns every data row of the worksheet, header excluded.
func (c *Client) Rows(ctx context.Context, worksheet string) ([][]string, error) {
	var out rowsResponse
	if err := c.do(ctx, http.MethodGet, c.rowsURL(worksheet), nil, &out); err != nil {
		return nil, err
	}
	return out.Rows, nil
}

// Append adds one row at the bottom of the worksheet.
func (c *Client) Append(ctx context.Context, worksheet string, values []string) error {
	return c.do(ctx, http.MethodPost, c.rowsURL(worksheet), valuesRequest{Values: values}, nil)
}

// UpdateRow overwrites the data row at index.
func (c *Client) UpdateRow(ctx context.Context, worksheet string, index int, values []string) error {
	url := fmt.Sprintf("%s/%d", c.rowsURL(worksheet), index)
	return c.do(ctx, http.MethodPut, url, valuesRequest{Values: values}, nil)
}

// DeleteRow removes the data row at index. Rows below shift up.
func (c *Client) DeleteRow(ctx context.Context, worksheet string, index int) error {
	url := fmt.Sprintf("%s/%d", c.rowsURL(worksheet), index)
	return c.do(ctx, http.MethodDelete, url, nil, nil)
}

// EnsureWorksheet creates the worksheet with the header row if it does
// not exist yet. Existing worksheets are left untouched.
func (c *Client) EnsureWorksheet(ctx context.Context, worksheet string, header []string) error {
	url := fmt.Sprintf("%s/v1/documents/%s/worksheets", c.baseURL, c.documentID)
	return c.do(ctx, http.MethodPost, url, worksheetRequest{Title: worksheet, Header: header}, nil)
}

func (c *Client) rowsURL(worksheet string) string {
	return fmt.Sprintf("%s/v1/documents/%s/worksheets/%s/rows", c.baseURL, c.documentID, worksheet)
}

func (c *Client) do(ctx context.Context, method, url string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("record store request failed: %w: %v", ports.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.Warn(ctx, "Record store throttled the request", map[string]interface{}{
			"method": method,
			"url":    url,
		})
		return fmt.Errorf("record store throttled: %w", ports.ErrRateLimited)
	case resp.StatusCode >= 500:
		return fmt.Errorf("record store returned %d: %w", resp.StatusCode, ports.ErrStoreUnavailable)
	case resp.StatusCode >= 400:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("record store returned %d: %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

package deviceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// StorageUsage reports SD card capacity.
func (c *Client) StorageUsage(ctx context.Context) (*StorageUsage, error) {
	var usage StorageUsage
	if err := c.getJSON(ctx, PathSDUsage, &usage); err != nil {
		return nil, err
	}
	return &usage, nil
}

// ListFiles lists one directory on the SD card.
func (c *Client) ListFiles(ctx context.Context, path string) (*Listing, error) {
	if path == "" {
		path = "/"
	}
	var listing Listing
	if err := c.getJSON(ctx, PathSDList+"?path="+url.QueryEscape(path), &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

// DeleteFile removes a file from the SD card. Protected paths yield an
// ErrTypeForbidden error.
func (c *Client) DeleteFile(ctx context.Context, path string) error {
	payload, err := json.Marshal(DeleteRequest{Path: path})
	if err != nil {
		return NewParseError("failed to encode delete request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+PathSDDelete, bytes.NewReader(payload))
	if err != nil {
		return NewNetworkError("failed to create POST request", err, c.BaseURL)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden:
		return &HTTPError{Type: ErrTypeForbidden, Message: path + ": " + readErrorMessage(resp), StatusCode: resp.StatusCode}
	default:
		return NewStatusError(resp.StatusCode, fmt.Sprintf("delete of %s failed with status %d: %s", path, resp.StatusCode, readErrorMessage(resp)))
	}

	var status StatusResponse
	if err := decodeJSON(resp, &status); err != nil {
		return err
	}
	if !status.Success {
		return NewStatusError(resp.StatusCode, nonEmpty(status.Error, "device could not delete "+path))
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, v interface{}) error {
	resp, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return NewStatusError(resp.StatusCode, fmt.Sprintf("GET %s failed with status %d: %s", path, resp.StatusCode, readErrorMessage(resp)))
	}
	return decodeJSON(resp, v)
}

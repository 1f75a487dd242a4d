// Package remote exchanges locale files with the translation service.
//
// The service exports a project as a zip bundle (one <locale>.json per
// locale) reachable through a short-lived bundle URL, and accepts uploads
// of single locale files as base64 payloads with full-replace semantics.
// The client never retries a failed call and applies no rate limiting of
// its own; both policies belong to the caller.
package remote

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/tidwall/gjson"

	"github.com/loksync/loksync/localefile"
)

// TokenEnv names the environment variable holding the API token. Every
// command requires it; loksync refuses to start without it.
const TokenEnv = "LOKALISE_API_TOKEN"

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.lokalise.com/api2"

// Exchange is the file-exchange contract against the translation service.
type Exchange interface {
	// Download exports the project's complete bundle, one locale map per
	// locale known remotely.
	Download(ctx context.Context, projectID string) (localefile.Bundle, error)
	// Upload replaces the remote content of one locale file.
	Upload(ctx context.Context, projectID, locale string, content []byte) error
}

// APIError is a non-2xx response from the translation service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("translation service returned status %d", e.Status)
	}
	return fmt.Sprintf("translation service returned status %d: %s", e.Status, e.Message)
}

// Client implements Exchange over the service's REST API.
type Client struct {
	// BaseURL is the service endpoint. Tests point it at a local server.
	BaseURL string
	// Token authenticates every request.
	Token string

	httpClient *http.Client
}

// NewClient returns a Client for the production endpoint. The underlying
// HTTP client carries no timeout of its own; a hung call blocks until the
// context is done.
func NewClient(token string) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = http.ProxyFromEnvironment

	return &Client{
		BaseURL:    DefaultBaseURL,
		Token:      token,
		httpClient: &http.Client{Transport: transport},
	}
}

// Download requests a bundle export, then fetches and unpacks the archive
// behind the returned bundle URL.
func (c *Client) Download(ctx context.Context, projectID string) (localefile.Bundle, error) {
	body, err := c.post(ctx, "/projects/"+projectID+"/files/download", downloadOptions())
	if err != nil {
		return nil, err
	}

	bundleURL := gjson.GetBytes(body, "bundle_url").String()
	if bundleURL == "" {
		return nil, fmt.Errorf("download response has no bundle_url")
	}

	archive, err := c.fetch(ctx, bundleURL)
	if err != nil {
		return nil, fmt.Errorf("fetching bundle: %w", err)
	}

	bundle, err := unpackBundle(archive)
	if err != nil {
		return nil, fmt.Errorf("unpacking bundle: %w", err)
	}
	return bundle, nil
}

// Upload replaces one remote locale file with content.
func (c *Client) Upload(ctx context.Context, projectID, locale string, content []byte) error {
	opts := map[string]any{
		"data":             base64.StdEncoding.EncodeToString(content),
		"filename":         locale + ".json",
		"lang_iso":         locale,
		"replace_modified": true,
	}
	body, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("encoding upload: %w", err)
	}

	_, err = c.post(ctx, "/projects/"+projectID+"/files/upload", body)
	return err
}

// downloadOptions returns the fixed export policy: ICU placeholders and
// plurals, 2-space indentation, empty values skipped, one flat
// <locale>.json per locale. None of this is configurable.
func downloadOptions() []byte {
	opts := map[string]any{
		"format":             "json",
		"placeholder_format": "icu",
		"plural_format":      "icu",
		"indentation":        "2sp",
		"export_empty_as":    "skip",
		"original_filenames": false,
		"bundle_structure":   "%LANG_ISO%.json",
	}
	body, _ := json.Marshal(opts)
	return body
}

func (c *Client) post(ctx context.Context, apiPath string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+apiPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Token", c.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", apiPath, err)
	}
	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// A short read must not pass partial bytes off as the service's
		// message; the status alone is the reliable part.
		if readErr != nil {
			respBody = nil
		}
		return nil, apiError(resp.StatusCode, respBody)
	}
	if readErr != nil {
		return nil, fmt.Errorf("reading response from %s: %w", apiPath, readErr)
	}
	return respBody, nil
}

func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			body = nil
		}
		return nil, apiError(resp.StatusCode, body)
	}
	return io.ReadAll(resp.Body)
}

// unpackBundle turns the zip archive into a Bundle. The basename of each
// archived file minus its extension is the locale code; directory entries
// are skipped.
func unpackBundle(archive []byte) (localefile.Bundle, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	zr.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})

	bundle := make(localefile.Bundle)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := path.Base(f.Name)
		locale := strings.TrimSuffix(name, path.Ext(name))
		if locale == "" {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s in archive: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s in archive: %w", f.Name, err)
		}

		m, err := localefile.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parsing %s in archive: %w", f.Name, err)
		}
		bundle[locale] = m
	}
	return bundle, nil
}

func apiError(status int, body []byte) *APIError {
	msg := gjson.GetBytes(body, "error.message").String()
	if msg == "" {
		msg = truncate(strings.TrimSpace(string(body)), 200)
	}
	return &APIError{Status: status, Message: msg}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

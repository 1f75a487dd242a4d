package remote

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestDownload_FetchesAndUnpacksBundle(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"en.json":         "{\n  \"home.title\": \"Welcome\"\n}\n",
		"locales/":        "",
		"locales/fr.json": "{\n  \"home.title\": \"Bienvenue\"\n}\n",
	})

	var (
		gotToken   string
		gotOptions map[string]any
	)

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/projects/42/files/download":
			if r.Method != http.MethodPost {
				t.Errorf("download method = %s, want POST", r.Method)
			}
			gotToken = r.Header.Get("X-Api-Token")
			body, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(body, &gotOptions); err != nil {
				t.Errorf("download options not JSON: %v", err)
			}
			w.Header().Set("Content-Type", "application/json")
			resp, _ := json.Marshal(map[string]string{
				"project_id": "42",
				"bundle_url": srv.URL + "/bundle.zip",
			})
			w.Write(resp)
		case "/bundle.zip":
			w.Write(archive)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient("secret-token")
	c.BaseURL = srv.URL

	bundle, err := c.Download(context.Background(), "42")
	if err != nil {
		t.Fatalf("Download error: %v", err)
	}

	if gotToken != "secret-token" {
		t.Fatalf("X-Api-Token = %q, want %q", gotToken, "secret-token")
	}
	for key, want := range map[string]string{
		"format":             "json",
		"placeholder_format": "icu",
		"plural_format":      "icu",
		"indentation":        "2sp",
		"export_empty_as":    "skip",
		"bundle_structure":   "%LANG_ISO%.json",
	} {
		if got, _ := gotOptions[key].(string); got != want {
			t.Fatalf("export option %s = %q, want %q", key, got, want)
		}
	}

	if len(bundle) != 2 {
		t.Fatalf("bundle has %d locales, want 2: %v", len(bundle), bundle.Locales())
	}
	if v, _ := bundle["en"].Get("home.title"); v != "Welcome" {
		t.Fatalf("en home.title = %q", v)
	}
	// Nested path: only the basename decides the locale code, the
	// directory entry itself is skipped.
	if v, _ := bundle["fr"].Get("home.title"); v != "Bienvenue" {
		t.Fatalf("fr home.title = %q", v)
	}
}

func TestDownload_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"code": 403, "message": "Invalid X-Api-Token"}}`))
	}))
	defer srv.Close()

	c := NewClient("bad-token")
	c.BaseURL = srv.URL

	_, err := c.Download(context.Background(), "42")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Download error = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusForbidden {
		t.Fatalf("Status = %d, want 403", apiErr.Status)
	}
	if !strings.Contains(apiErr.Message, "Invalid X-Api-Token") {
		t.Fatalf("Message = %q, want the service's error message", apiErr.Message)
	}
}

func TestDownload_TruncatedErrorBodyKeepsStatusOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Declare more bytes than arrive so the client's body read fails
		// partway through.
		w.Header().Set("Content-Length", "4096")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error": {"code": 502, "message": "gateway`))
	}))
	defer srv.Close()

	c := NewClient("token")
	c.BaseURL = srv.URL

	_, err := c.Download(context.Background(), "42")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Download error = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusBadGateway {
		t.Fatalf("Status = %d, want 502", apiErr.Status)
	}
	if apiErr.Message != "" {
		t.Fatalf("Message = %q, want empty after a truncated body", apiErr.Message)
	}
}

func TestDownload_TruncatedResponseBodyFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "4096")
		w.Write([]byte(`{"bundle_url": "http://`))
	}))
	defer srv.Close()

	c := NewClient("token")
	c.BaseURL = srv.URL

	_, err := c.Download(context.Background(), "42")
	if err == nil || !strings.Contains(err.Error(), "reading response") {
		t.Fatalf("Download error = %v, want a read failure", err)
	}
}

func TestDownload_MissingBundleURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"project_id": "42"}`))
	}))
	defer srv.Close()

	c := NewClient("token")
	c.BaseURL = srv.URL

	_, err := c.Download(context.Background(), "42")
	if err == nil || !strings.Contains(err.Error(), "bundle_url") {
		t.Fatalf("Download error = %v, want a bundle_url complaint", err)
	}
}

func TestDownload_CorruptArchive(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bundle.zip" {
			w.Write([]byte("this is not a zip archive"))
			return
		}
		resp, _ := json.Marshal(map[string]string{"bundle_url": srv.URL + "/bundle.zip"})
		w.Write(resp)
	}))
	defer srv.Close()

	c := NewClient("token")
	c.BaseURL = srv.URL

	_, err := c.Download(context.Background(), "42")
	if err == nil || !strings.Contains(err.Error(), "unpacking bundle") {
		t.Fatalf("Download error = %v, want an unpacking failure", err)
	}
}

func TestDownload_MalformedLocaleInArchive(t *testing.T) {
	archive := buildZip(t, map[string]string{"en.json": `{"a": `})

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bundle.zip" {
			w.Write(archive)
			return
		}
		resp, _ := json.Marshal(map[string]string{"bundle_url": srv.URL + "/bundle.zip"})
		w.Write(resp)
	}))
	defer srv.Close()

	c := NewClient("token")
	c.BaseURL = srv.URL

	_, err := c.Download(context.Background(), "42")
	if err == nil || !strings.Contains(err.Error(), "en.json") {
		t.Fatalf("Download error = %v, want a parse failure naming the file", err)
	}
}

func TestUpload_SendsBase64FullReplace(t *testing.T) {
	content := []byte("{\n  \"home.title\": \"Willkommen\"\n}\n")

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/projects/42/files/upload" {
			t.Errorf("upload path = %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("upload body not JSON: %v", err)
		}
		w.Write([]byte(`{"project_id": "42", "process": {"process_id": "1"}}`))
	}))
	defer srv.Close()

	c := NewClient("token")
	c.BaseURL = srv.URL

	if err := c.Upload(context.Background(), "42", "de", content); err != nil {
		t.Fatalf("Upload error: %v", err)
	}

	data, _ := got["data"].(string)
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		t.Fatalf("data is not base64: %v", err)
	}
	if !bytes.Equal(decoded, content) {
		t.Fatalf("decoded data = %q, want %q", decoded, content)
	}
	if filename, _ := got["filename"].(string); filename != "de.json" {
		t.Fatalf("filename = %q, want de.json", filename)
	}
	if lang, _ := got["lang_iso"].(string); lang != "de" {
		t.Fatalf("lang_iso = %q, want de", lang)
	}
	if replace, _ := got["replace_modified"].(bool); !replace {
		t.Fatal("replace_modified not set")
	}
}

func TestUpload_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("upload worker crashed"))
	}))
	defer srv.Close()

	c := NewClient("token")
	c.BaseURL = srv.URL

	err := c.Upload(context.Background(), "42", "de", []byte("{}\n"))
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Upload error = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusInternalServerError {
		t.Fatalf("Status = %d, want 500", apiErr.Status)
	}
	// No structured error payload: the raw body becomes the message.
	if !strings.Contains(apiErr.Message, "upload worker crashed") {
		t.Fatalf("Message = %q", apiErr.Message)
	}
}

func TestAPIError_Messages(t *testing.T) {
	withMsg := &APIError{Status: 404, Message: "project not found"}
	if got := withMsg.Error(); !strings.Contains(got, "404") || !strings.Contains(got, "project not found") {
		t.Fatalf("Error() = %q", got)
	}

	bare := &APIError{Status: 502}
	if got := bare.Error(); !strings.Contains(got, "502") {
		t.Fatalf("Error() = %q", got)
	}
}

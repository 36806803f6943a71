// Package testutil provides testing utilities for the catalog client and pipeline.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// APIPrefix is the path prefix the mock serves the catalog under.
const APIPrefix = "/api/v2"

// MockResponse defines the behavior for a mock catalog endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockCatalog is a configurable mock catalog server for testing.
type MockCatalog struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	PathCounts        map[string]int
	LastRequestHeader http.Header
}

// NewMockCatalog creates a new mock catalog server.
func NewMockCatalog() *MockCatalog {
	mock := &MockCatalog{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		PathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.PathCounts[r.URL.Path]++
		mock.LastRequestHeader = r.Header.Clone()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the base URL a client should be configured with.
func (m *MockCatalog) URL() string {
	return m.server.URL + APIPrefix
}

// Close shuts down the mock server.
func (m *MockCatalog) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockCatalog) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.PathCounts = make(map[string]int)
	m.LastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific path (including APIPrefix).
func (m *MockCatalog) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockCatalog) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-r.Context().Done():
				return
			}
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetListResponse configures the list endpoint.
func (m *MockCatalog) SetListResponse(resp MockResponse) {
	m.SetResponse(ListPath(), resp)
}

// SetItemResponse configures the detail endpoint for id.
func (m *MockCatalog) SetItemResponse(id int, resp MockResponse) {
	m.SetResponse(ItemPath(id), resp)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockCatalog) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetPathCount returns the number of requests made to path.
func (m *MockCatalog) GetPathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PathCounts[path]
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockCatalog) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader.Clone()
}

// defaultHandler answers unknown paths the way the upstream does.
func (m *MockCatalog) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte("Not Found"))
}

// ListPath returns the list endpoint path.
func ListPath() string {
	return APIPrefix + "/pokemon/"
}

// ItemPath returns the detail endpoint path for id.
func ItemPath(id int) string {
	return fmt.Sprintf("%s/pokemon/%d/", APIPrefix, id)
}

// Entry is one creature served by the mock.
type Entry struct {
	ID       int
	Name     string
	ImageURL *string
	Types    []string
}

// StrPtr returns a pointer to s.
func StrPtr(s string) *string {
	return &s
}

// NewListResponse creates a standard 200 OK list body for entries.
func NewListResponse(baseURL string, entries ...Entry) MockResponse {
	type result struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	results := make([]result, 0, len(entries))
	for _, e := range entries {
		results = append(results, result{
			Name: e.Name,
			URL:  fmt.Sprintf("%s/pokemon/%d/", baseURL, e.ID),
		})
	}

	body, _ := json.Marshal(map[string]any{
		"count":    len(entries),
		"next":     nil,
		"previous": nil,
		"results":  results,
	})
	return NewHealthyResponse(string(body))
}

// NewItemResponse creates a standard 200 OK detail body for e.
func NewItemResponse(e Entry) MockResponse {
	type namedRef struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	type slot struct {
		Slot int      `json:"slot"`
		Type namedRef `json:"type"`
	}
	types := make([]slot, 0, len(e.Types))
	for i, name := range e.Types {
		types = append(types, slot{Slot: i + 1, Type: namedRef{Name: name, URL: "https://example.invalid/type/" + name + "/"}})
	}

	body, _ := json.Marshal(map[string]any{
		"id":      e.ID,
		"name":    e.Name,
		"sprites": map[string]any{"front_default": e.ImageURL},
		"types":   types,
	})
	return NewHealthyResponse(string(body))
}

// NewHealthyResponse creates a standard 200 OK JSON response.
func NewHealthyResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewMalformedResponse creates a 200 OK response whose body is not JSON.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `<html>not json</html>`,
		Headers: map[string]string{
			"Content-Type": "text/html",
		},
	}
}

// Serve registers entries as a full catalog: the list endpoint returns all of
// them and each detail endpoint returns its entry.
func (m *MockCatalog) Serve(entries ...Entry) {
	m.SetListResponse(NewListResponse(m.URL(), entries...))
	for _, e := range entries {
		m.SetItemResponse(e.ID, NewItemResponse(e))
	}
}

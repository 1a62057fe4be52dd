package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_GetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/runs", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode(map[string]int{"count": 3})
	}))
	defer srv.Close()

	var out struct{ Count int }
	c := NewClient(srv.URL+"/", time.Second)
	require.NoError(t, c.GetJSON(context.Background(), "/runs", url.Values{"limit": {"3"}}, &out))
	assert.Equal(t, 3, out.Count)
	assert.Equal(t, srv.URL, c.BaseURL())
}

func TestClient_PostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["model"]})
	}))
	defer srv.Close()

	var out map[string]string
	require.NoError(t, NewClient(srv.URL, time.Second).PostJSON(context.Background(), "/predict/one", map[string]string{"model": "svc"}, &out))
	assert.Equal(t, "svc", out["echo"])
}

func TestClient_PostFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		raw, _ := io.ReadAll(file)
		assert.Equal(t, "students.csv", header.Filename)
		assert.Equal(t, "a,b\n1,2\n", string(raw))
		assert.Equal(t, "0.7", r.FormValue("threshold"))
		_, hasModel := r.MultipartForm.Value["model"]
		assert.False(t, hasModel, "empty fields are not sent")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL, time.Second).PostFile(context.Background(), "/predict", "students.csv",
		strings.NewReader("a,b\n1,2\n"), map[string]string{"model": "", "threshold": "0.7"}, nil)
	require.NoError(t, err)
}

func TestClient_APIError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		code    string
		message string
	}{
		{"structured", http.StatusBadRequest, `{"error":"Invalid model choice","code":"UNKNOWN_MODEL"}`, "UNKNOWN_MODEL", "Invalid model choice"},
		{"plain text", http.StatusBadGateway, "upstream down\n", "", "upstream down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := NewClient(srv.URL, time.Second).GetJSON(context.Background(), "/models", nil, nil)
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.code, apiErr.Code)
			assert.Equal(t, tt.message, apiErr.Message)
		})
	}
}

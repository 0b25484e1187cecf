package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Veraticus/invoice-chaser/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClient_Complete(t *testing.T) {
	var body struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Dear billing team"}}]}`))
	}))
	defer srv.Close()

	client, err := newOpenAIClient(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1/"})
	require.NoError(t, err)

	text, err := client.Complete(context.Background(), Request{
		System: "sys",
		Prompt: "draft",
		Images: []Image{{MediaType: "image/png", Data: []byte{1, 2, 3}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Dear billing team", text)

	assert.Equal(t, defaultOpenAIModel, body.Model)
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "system", body.Messages[0].Role)
	assert.Equal(t, "user", body.Messages[1].Role)

	var parts []map[string]any
	require.NoError(t, json.Unmarshal(body.Messages[1].Content, &parts))
	require.Len(t, parts, 2)
	assert.Equal(t, "draft", parts[0]["text"])
	imageURL := parts[1]["image_url"].(map[string]any)["url"]
	assert.Equal(t, "data:image/png;base64,AQID", imageURL)
}

func TestOpenAIClient_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{}`, retryable: true},
		{name: "server error", status: http.StatusBadGateway, body: `{}`, retryable: true},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{}`, retryable: false},
		{name: "empty choices", status: http.StatusOK, body: `{"choices":[]}`, retryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client, err := newOpenAIClient(Config{APIKey: "test-key", BaseURL: srv.URL})
			require.NoError(t, err)

			_, err = client.Complete(context.Background(), Request{Prompt: "hi"})
			require.Error(t, err)
			assert.Equal(t, tt.retryable, common.IsRetryable(err))
		})
	}
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "anthropic", config: Config{Provider: "anthropic", APIKey: "k"}},
		{name: "default provider", config: Config{APIKey: "k"}},
		{name: "openai", config: Config{Provider: "OpenAI", APIKey: "k"}},
		{name: "unknown", config: Config{Provider: "gemini", APIKey: "k"}, wantErr: true},
		{name: "missing key", config: Config{Provider: "openai"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.config)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, common.IsConfigError(err))
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, client)
		})
	}
}

package tavily_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"animatevdo-backend/internal/logger"
	"animatevdo-backend/internal/providers"
	"animatevdo-backend/internal/providers/tavily"
)

func TestClient_Research(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Write([]byte(`{
			"answer": " Honeybees communicate food locations through the waggle dance. ",
			"results": [
				{"title": "Waggle dance", "url": "https://en.wikipedia.org/wiki/Waggle_dance", "content": "The waggle dance encodes direction relative to the sun and distance to the food source. Further detail follows."},
				{"title": "Bee facts", "url": "https://example.com/bees", "content": ""}
			]
		}`))
	}))
	defer srv.Close()

	client := tavily.NewClient(srv.URL, "test-key", logger.NewNop())
	content, err := client.Research(context.Background(), "the honeybee waggle dance")
	require.NoError(t, err)

	assert.Equal(t, "test-key", received["api_key"])
	assert.Equal(t, true, received["include_answer"])
	assert.Contains(t, received["query"], "the honeybee waggle dance")

	assert.Equal(t, "Honeybees communicate food locations through the waggle dance.", content.Summary)
	require.Len(t, content.KeyPoints, 1)
	assert.Equal(t, "The waggle dance encodes direction relative to the sun and distance to the food source.", content.KeyPoints[0])
	assert.Equal(t, []string{"https://en.wikipedia.org/wiki/Waggle_dance"}, content.Sources)
}

func TestClient_Research_EmptyAnswerGetsFallbackSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"answer": "", "results": []}`))
	}))
	defer srv.Close()

	client := tavily.NewClient(srv.URL, "test-key", logger.NewNop())
	content, err := client.Research(context.Background(), "obscure topic")
	require.NoError(t, err)
	assert.Contains(t, content.Summary, "obscure topic")
	assert.Empty(t, content.KeyPoints)
}

func TestClient_Research_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"detail":"rate limit exceeded"}`))
	}))
	defer srv.Close()

	client := tavily.NewClient(srv.URL, "test-key", logger.NewNop())
	_, err := client.Research(context.Background(), "anything")
	require.Error(t, err)

	var apiErr *providers.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}

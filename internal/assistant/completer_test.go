package assistant

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const cannedMessageResponse = `{
  "id": "msg_test",
  "type": "message",
  "role": "assistant",
  "model": "claude-3-5-haiku-latest",
  "content": [{"type": "text", "text": "{\"type_client\":\"PROSPECT\"}"}],
  "stop_reason": "end_turn",
  "stop_sequence": null,
  "usage": {"input_tokens": 12, "output_tokens": 8}
}`

func TestNewAnthropicCompleterRequiresKey(t *testing.T) {
	_, err := NewAnthropicCompleter(AnthropicConfig{APIKey: " "})
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestAnthropicCompleterSendsCallShape(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		body, _ := io.ReadAll(request.Body)
		_ = json.Unmarshal(body, &captured)
		require.Equal(t, "test-key", request.Header.Get("X-Api-Key"))
		writer.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(writer, cannedMessageResponse)
	}))
	t.Cleanup(server.Close)

	completer, err := NewAnthropicCompleter(AnthropicConfig{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	text, completeErr := completer.Complete(context.Background(), CompletionRequest{
		System:      "system",
		Prompt:      "prompt",
		MaxTokens:   500,
		Temperature: 0.3,
	})
	require.NoError(t, completeErr)
	require.Equal(t, `{"type_client":"PROSPECT"}`, text)
	require.Equal(t, DefaultModel, captured["model"])
	require.EqualValues(t, 500, captured["max_tokens"])
	require.InDelta(t, 0.3, captured["temperature"], 0.0001)
	require.NotEmpty(t, captured["system"])
}

func TestAnthropicCompleterReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(writer, `{"type":"error","error":{"type":"api_error","message":"boom"}}`)
	}))
	t.Cleanup(server.Close)

	completer, err := NewAnthropicCompleter(AnthropicConfig{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, completeErr := completer.Complete(context.Background(), CompletionRequest{Prompt: "prompt", MaxTokens: 10})
	require.Error(t, completeErr)
	require.Contains(t, completeErr.Error(), errorMessageCompletionCall)
}

package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/layout-scout/internal/llmclient"
	"github.com/xkilldash9x/layout-scout/internal/mocks"
	"github.com/xkilldash9x/layout-scout/internal/store"
)

const sampleMapping = `{"element_selector_mapping":{
  "tweet_button":{"selector":"[data-testid='tweetButton']","type":"button","action":"compose tweet"},
  "home_link":{"selector":"a[href='/home']","type":"link","action":"navigate home"}
}}`

func setupInference(t *testing.T) (*InferenceClient, *mocks.MockLLMClient, string, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	llm := new(mocks.MockLLMClient)
	path := filepath.Join(t.TempDir(), "layout.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"url":"https://x.com/someone"}`+"\n"), 0o644))
	return NewInferenceClient(llm, store.New(logger), logger), llm, path, logs
}

func TestParseInferenceResponse(t *testing.T) {
	t.Run("mapping", func(t *testing.T) {
		r := ParseInferenceResponse(sampleMapping)
		require.False(t, r.IsRaw)
		assert.Len(t, r.Mapping, 2)
		assert.Equal(t, SelectorEntry{Selector: "a[href='/home']", Type: "link", Action: "navigate home"}, r.Mapping["home_link"])
	})

	t.Run("empty mapping", func(t *testing.T) {
		r := ParseInferenceResponse(`{"element_selector_mapping":{}}`)
		require.False(t, r.IsRaw)
		assert.Empty(t, r.Mapping)
	})

	for name, text := range map[string]string{
		"malformed":        `{"element_selector_mapping": {`,
		"prose":            "Here are the selectors you asked for.",
		"missing key":      `{"selectors":{}}`,
		"array":            `[1,2,3]`,
		"null mapping":     `{"element_selector_mapping":null}`,
		"fenced":           "```json\n{\"element_selector_mapping\":{}}\n```",
		"wrong entry type": `{"element_selector_mapping":{"a":"b"}}`,
		"null selector":    `{"element_selector_mapping":{"a":{"selector":null,"type":"button","action":"x"}}}`,
		"missing selector": `{"element_selector_mapping":{"a":{"type":"button","action":"x"}}}`,
		"blank selector":   `{"element_selector_mapping":{"a":{"selector":"  ","type":"button","action":"x"}}}`,
	} {
		t.Run(name, func(t *testing.T) {
			r := ParseInferenceResponse(text)
			assert.True(t, r.IsRaw)
			assert.Equal(t, text, r.RawResponse)
		})
	}
}

func TestInferenceResult_MarshalJSON(t *testing.T) {
	t.Run("mapping keys are sorted", func(t *testing.T) {
		data, err := store.Encode(ParseInferenceResponse(sampleMapping))
		require.NoError(t, err)
		s := string(data)
		assert.True(t, strings.HasPrefix(s, "{\n  \"element_selector_mapping\": {"))
		assert.Less(t, strings.Index(s, `"home_link"`), strings.Index(s, `"tweet_button"`))
	})

	t.Run("raw response", func(t *testing.T) {
		data, err := json.Marshal(InferenceResult{RawResponse: "not json", IsRaw: true})
		require.NoError(t, err)
		assert.JSONEq(t, `{"raw_response":"not json"}`, string(data))
	})

	t.Run("nil mapping renders empty object", func(t *testing.T) {
		data, err := json.Marshal(InferenceResult{})
		require.NoError(t, err)
		assert.JSONEq(t, `{"element_selector_mapping":{}}`, string(data))
	})
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt([]byte("{\"a\":1}\n"))
	assert.True(t, strings.HasPrefix(prompt, "```json\n{\"a\":1}\n```\n\n"))
	assert.True(t, strings.HasSuffix(prompt, mappingRequest))
}

func TestAnalyze(t *testing.T) {
	c, llm, path, _ := setupInference(t)
	llm.On("Generate", mock.Anything, mock.MatchedBy(func(req llmclient.GenerationRequest) bool {
		return req.SystemPrompt == systemInstruction &&
			strings.Contains(req.UserPrompt, `{"url":"https://x.com/someone"}`) &&
			req.Options.ForceJSONFormat
	})).Return(sampleMapping, nil).Once()

	result, err := c.Analyze(context.Background(), path)
	require.NoError(t, err)
	llm.AssertExpectations(t)
	assert.False(t, result.IsRaw)
	assert.Contains(t, result.Mapping, "tweet_button")
}

func TestAnalyze_MalformedResponseKeptRaw(t *testing.T) {
	c, llm, path, logs := setupInference(t)
	llm.On("Generate", mock.Anything, mock.Anything).Return("I cannot help with that", nil).Once()

	result, err := c.Analyze(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, result.IsRaw)
	assert.Equal(t, "I cannot help with that", result.RawResponse)
	assert.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len())
}

func TestAnalyze_MissingLayoutFile(t *testing.T) {
	c, llm, _, _ := setupInference(t)

	_, err := c.Analyze(context.Background(), filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, store.ErrNotFound)
	llm.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestAnalyze_RequestFailure(t *testing.T) {
	c, llm, path, _ := setupInference(t)
	apiErr := errors.New("quota exceeded")
	llm.On("Generate", mock.Anything, mock.Anything).Return("", apiErr).Once()

	_, err := c.Analyze(context.Background(), path)
	assert.ErrorIs(t, err, apiErr)
}

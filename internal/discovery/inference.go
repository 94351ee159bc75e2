package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/layout-scout/internal/llmclient"
	"github.com/xkilldash9x/layout-scout/internal/store"
)

const systemInstruction = `Examine the contents of "layout.json", which contains a list of HTML elements and their attributes. ` +
	`Identify key interactive components on the webpage that are used for essential functions such as composing tweets, ` +
	`checking notifications, navigating the profile, viewing messages, etc. For each component, determine the CSS selector, ` +
	`its type (e.g., button, link, div), and the primary action it is associated with (e.g., "compose tweet", "check notifications"). ` +
	`Return the result as a JSON object structured as follows: ` +
	`{"element_selector_mapping": { "element_name": {"selector": "CSS_SELECTOR", "type": "element_type", "action": "function_description"} } }. ` +
	`Ensure that the keys in the mapping are alphabetically ordered.`

const mappingRequest = `Return structured JSON with a mapping of element names to their CSS selectors, type, and associated functionality. ` +
	`The JSON should have a top-level key 'element_selector_mapping'. For each element, include 'selector', 'type', and 'action' ` +
	`describing its function (e.g., composing tweets, checking notifications, navigating to profile, viewing messages). ` +
	`Ensure the keys are sorted alphabetically.`

// InferenceClient asks a language model to map a persisted layout snapshot
// to component selectors.
type InferenceClient struct {
	llm    llmclient.Client
	files  *store.FileStore
	logger *zap.Logger
}

func NewInferenceClient(llm llmclient.Client, files *store.FileStore, logger *zap.Logger) *InferenceClient {
	return &InferenceClient{llm: llm, files: files, logger: logger.Named("inference")}
}

// Analyze sends the layout file at layoutPath to the model. An unreadable
// file or a failed request is an error; a reply that is not a selector
// mapping is returned verbatim as a raw response.
func (c *InferenceClient) Analyze(ctx context.Context, layoutPath string) (*InferenceResult, error) {
	layout, err := c.files.ReadFile(layoutPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read layout for inference: %w", err)
	}

	c.logger.Info("Requesting selector mapping.", zap.String("layout", layoutPath), zap.Int("bytes", len(layout)))
	text, err := c.llm.Generate(ctx, llmclient.GenerationRequest{
		SystemPrompt: systemInstruction,
		UserPrompt:   BuildPrompt(layout),
		Options:      llmclient.GenerationOptions{ForceJSONFormat: true},
	})
	if err != nil {
		return nil, fmt.Errorf("selector inference failed: %w", err)
	}

	result := ParseInferenceResponse(text)
	if result.IsRaw {
		c.logger.Warn("Response was not a selector mapping, keeping raw text.", zap.Int("length", len(text)))
	} else {
		c.logger.Info("Selector mapping received.", zap.Int("components", len(result.Mapping)))
	}
	return result, nil
}

// BuildPrompt embeds the layout document in a fenced JSON block followed by
// the mapping request.
func BuildPrompt(layout []byte) string {
	var b bytes.Buffer
	b.WriteString("```json\n")
	b.Write(bytes.TrimRight(layout, "\n"))
	b.WriteString("\n```\n\n")
	b.WriteString(mappingRequest)
	return b.String()
}

// ParseInferenceResponse accepts text only when it is a JSON object with an
// element_selector_mapping object whose entries all name a selector. Anything
// else becomes a raw response holding text unchanged. Keys outside the
// {selector, type, action} contract are not carried over.
func ParseInferenceResponse(text string) *InferenceResult {
	raw := &InferenceResult{RawResponse: text, IsRaw: true}
	var doc struct {
		Mapping *SelectorMapping `json:"element_selector_mapping"`
	}
	if err := json.Unmarshal([]byte(text), &doc); err != nil || doc.Mapping == nil {
		return raw
	}
	for _, entry := range *doc.Mapping {
		if strings.TrimSpace(entry.Selector) == "" {
			return raw
		}
	}
	return &InferenceResult{Mapping: *doc.Mapping}
}

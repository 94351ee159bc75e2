// Package discovery drives a rendered page into a settled state, records its
// structure and a full-page image, and asks an inference service for a
// selector mapping of the page's interactive components.
package discovery

import (
	"encoding/json"
	"time"
)

// LayoutSnapshot is the structural record of one discovery run. Elements are
// in document order.
type LayoutSnapshot struct {
	Timestamp            time.Time            `json:"timestamp"`
	URL                  string               `json:"url"`
	Elements             []ElementDescriptor  `json:"elements"`
	IdentifiedComponents IdentifiedComponents `json:"identified_components"`
	ScreenshotPath       string               `json:"screenshot_path"`
}

// ElementDescriptor is one meaningful DOM element. Text never exceeds
// MaxTextLength runes and Classes never holds generated utility classes.
type ElementDescriptor struct {
	Tag       string   `json:"tag"`
	Classes   []string `json:"classes"`
	Role      *string  `json:"role"`
	AriaLabel *string  `json:"ariaLabel"`
	Text      string   `json:"text"`
	HasImage  bool     `json:"hasImage"`
	Href      *string  `json:"href"`
}

// IdentifiedComponents reserves named slots for well-known page components.
// Discovery always leaves every slot null; population is deferred to
// consumers of the selector mapping.
type IdentifiedComponents struct {
	Tweet      TweetComponents      `json:"tweet"`
	Profile    ProfileComponents    `json:"profile"`
	Navigation NavigationComponents `json:"navigation"`
}

type TweetComponents struct {
	Container *string `json:"container"`
	Text      *string `json:"text"`
	Timestamp *string `json:"timestamp"`
	Metrics   *string `json:"metrics"`
	Media     *string `json:"media"`
}

type ProfileComponents struct {
	Name           *string `json:"name"`
	Bio            *string `json:"bio"`
	FollowingCount *string `json:"following_count"`
	FollowersCount *string `json:"followers_count"`
}

type NavigationComponents struct {
	Home     *string `json:"home"`
	Explore  *string `json:"explore"`
	Messages *string `json:"messages"`
}

// SelectorEntry describes how to reach one UI component.
type SelectorEntry struct {
	Selector string `json:"selector"`
	Type     string `json:"type"`
	Action   string `json:"action"`
}

// SelectorMapping maps component names to selectors. encoding/json writes
// map keys in ascending order, which keeps persisted mappings sorted.
type SelectorMapping map[string]SelectorEntry

// InferenceResult is either a parsed selector mapping or, when the service
// answered with something else, its raw text.
type InferenceResult struct {
	Mapping     SelectorMapping
	RawResponse string
	IsRaw       bool
}

type mappingDocument struct {
	Mapping SelectorMapping `json:"element_selector_mapping"`
}

type rawDocument struct {
	RawResponse string `json:"raw_response"`
}

// MarshalJSON renders {"element_selector_mapping": {...}} or
// {"raw_response": "..."}.
func (r InferenceResult) MarshalJSON() ([]byte, error) {
	if r.IsRaw {
		return json.Marshal(rawDocument{RawResponse: r.RawResponse})
	}
	mapping := r.Mapping
	if mapping == nil {
		mapping = SelectorMapping{}
	}
	return json.Marshal(mappingDocument{Mapping: mapping})
}

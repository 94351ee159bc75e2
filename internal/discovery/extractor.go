package discovery

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/layout-scout/internal/browser"
	"github.com/xkilldash9x/layout-scout/internal/clock"
)

// MaxTextLength caps the visible text kept per element, in runes.
const MaxTextLength = 100

// generatedClassPrefix marks atomic utility classes emitted by the site's
// style compiler. They change between deployments and carry no meaning.
const generatedClassPrefix = "r-"

// Extractor turns the rendered DOM into a LayoutSnapshot.
type Extractor struct {
	clock  clock.Clock
	logger *zap.Logger
}

func NewExtractor(clk clock.Clock, logger *zap.Logger) *Extractor {
	return &Extractor{clock: clk, logger: logger.Named("extractor")}
}

// Extract queries the page for meaningful elements and returns a snapshot
// without a screenshot path.
func (x *Extractor) Extract(ctx context.Context, page browser.Page) (*LayoutSnapshot, error) {
	records, err := page.QueryElements(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query page elements: %w", err)
	}
	url, err := page.URL(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read page URL: %w", err)
	}

	elements := make([]ElementDescriptor, 0, len(records))
	for _, r := range records {
		elements = append(elements, Normalize(r))
	}
	x.logger.Info("Extracted page structure.", zap.String("url", url), zap.Int("elements", len(elements)))

	return &LayoutSnapshot{
		Timestamp: x.clock.Now(),
		URL:       url,
		Elements:  elements,
	}, nil
}

// Normalize applies the descriptor rules to a raw element record: the tag is
// lower-cased, generated classes are dropped, text is trimmed and capped at
// MaxTextLength runes, and href is kept only for anchors.
func Normalize(r browser.ElementRecord) ElementDescriptor {
	tag := strings.ToLower(r.Tag)

	classes := make([]string, 0, len(r.Classes))
	for _, c := range r.Classes {
		if c == "" || strings.HasPrefix(c, generatedClassPrefix) {
			continue
		}
		classes = append(classes, c)
	}

	d := ElementDescriptor{
		Tag:       tag,
		Classes:   classes,
		Role:      r.Role,
		AriaLabel: r.AriaLabel,
		Text:      truncateRunes(strings.TrimSpace(r.Text), MaxTextLength),
		HasImage:  r.HasImage,
	}
	if tag == "a" {
		d.Href = r.Href
	}
	return d
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

package llm

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/ternarybob/docgpt/internal/services/prompt"
)

const (
	offlineNoContext     = "The requested information is not available in this document."
	offlinePassages      = 2
	offlinePassageLength = 300
)

// OfflineProvider answers with the leading grounding passages and never
// calls a model. It keeps the pipeline usable without any API key.
type OfflineProvider struct{}

func NewOfflineProvider() *OfflineProvider {
	return &OfflineProvider{}
}

func (p *OfflineProvider) Complete(ctx context.Context, request *ContentRequest) (string, error) {
	if err := validateMessages(request.Messages); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var system string
	for _, msg := range request.Messages {
		if msg.Role == "system" {
			system = msg.Content
			break
		}
	}

	idx := strings.Index(system, prompt.ContextHeader)
	if idx < 0 {
		return offlineNoContext, nil
	}
	grounding := system[idx+len(prompt.ContextHeader):]
	passages := strings.Split(grounding, "\n\n")

	var b strings.Builder
	b.WriteString("Based on the document:\n")
	written := 0
	for _, passage := range passages {
		passage = strings.TrimSpace(passage)
		if passage == "" {
			continue
		}
		written++
		runes := []rune(passage)
		if len(runes) > offlinePassageLength {
			passage = string(runes[:offlinePassageLength]) + "..."
		}
		fmt.Fprintf(&b, "\n%d. %s", written, passage)
		if written == offlinePassages {
			break
		}
	}
	if written == 0 {
		return offlineNoContext, nil
	}
	return b.String(), nil
}

// Stream yields the Complete answer word by word
func (p *OfflineProvider) Stream(ctx context.Context, request *ContentRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		answer, err := p.Complete(ctx, request)
		if err != nil {
			yield("", err)
			return
		}
		for _, fragment := range strings.SplitAfter(answer, " ") {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if !yield(fragment, nil) {
				return
			}
		}
	}
}

func (p *OfflineProvider) GetProviderType() ProviderType {
	return ProviderOffline
}

func (p *OfflineProvider) Model() string {
	return "extractive"
}

func (p *OfflineProvider) Close() error {
	return nil
}

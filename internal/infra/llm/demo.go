package llm

import (
	"context"
	"time"

	"github.com/chaostheorist/chaos/internal/domain"
)

// DemoReplyPrefix starts every reply of the demo provider.
const DemoReplyPrefix = "I am running in a demo environment without a configured API key. In a production deployment, I would process: "

// DemoProvider answers without any AI backend. It is used when no API key
// is configured.
type DemoProvider struct {
	Delay time.Duration
}

// Name identifies the provider in metrics.
func (DemoProvider) Name() string { return "demo" }

// Complete echoes the new turn after Delay.
func (d DemoProvider) Complete(ctx context.Context, _ []domain.ChatMessage, text, _ string) (string, error) {
	if d.Delay > 0 {
		t := time.NewTimer(d.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
	}
	return DemoReplyPrefix + text, nil
}

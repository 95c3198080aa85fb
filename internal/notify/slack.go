package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SlackWebhook posts Messages to a Slack incoming webhook as block kit
// sections.
type SlackWebhook struct {
	url  string
	http *http.Client
}

func NewSlackWebhook(url string, httpClient *http.Client) *SlackWebhook {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &SlackWebhook{url: url, http: httpClient}
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

// Post renders the message as a bold title section, one section per detail,
// and a trailing divider so consecutive alerts stay readable in-channel.
func (s *SlackWebhook) Post(ctx context.Context, msg Message) error {
	title := msg.Title
	if msg.Emoji != "" {
		title = fmt.Sprintf(":%s: %s", msg.Emoji, title)
	}
	blocks := []slackBlock{
		{Type: "section", Text: &slackText{Type: "mrkdwn", Text: "*" + title + "*"}},
	}
	for _, d := range msg.Details {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: fmt.Sprintf("*%s:* %s", d.Label, d.Value)},
		})
	}
	blocks = append(blocks, slackBlock{Type: "divider"})

	payload, err := json.Marshal(map[string]any{"blocks": blocks})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook status %d", resp.StatusCode)
	}
	return nil
}

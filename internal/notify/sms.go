package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// smsConcurrency bounds parallel Twilio requests so a long subscriber list
// does not trip their rate limits.
const smsConcurrency = 4

// TwilioSMS broadcasts texts through the Twilio Messages API.
type TwilioSMS struct {
	accountSID string
	authToken  string
	from       string
	apiURL     string
	http       *http.Client
}

func NewTwilioSMS(accountSID, authToken, from, apiURL string, httpClient *http.Client) *TwilioSMS {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &TwilioSMS{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		apiURL:     strings.TrimSuffix(apiURL, "/"),
		http:       httpClient,
	}
}

// Broadcast sends the body to every number. Sends run concurrently and
// every number is attempted even when earlier sends fail; a plain Group is
// used deliberately, since a derived canceling context would let one bad
// number abort the rest of the fan-out. The first failure is returned.
func (t *TwilioSMS) Broadcast(ctx context.Context, body string, numbers []string) error {
	if len(numbers) == 0 {
		return nil
	}

	var g errgroup.Group
	g.SetLimit(smsConcurrency)
	for _, number := range numbers {
		g.Go(func() error {
			return t.send(ctx, number, body)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("sms broadcast: %w", err)
	}
	return nil
}

func (t *TwilioSMS) send(ctx context.Context, to, body string) error {
	form := url.Values{
		"To":   {to},
		"From": {t.from},
		"Body": {body},
	}
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.apiURL, t.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.accountSID, t.authToken)

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("send sms to %s: %w", to, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("send sms to %s: status %d", to, resp.StatusCode)
	}
	return nil
}

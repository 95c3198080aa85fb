// Package wiki talks to the Wikipedia action API and the Wikidata entity API.
// It is pure I/O: callers own retries and interpretation of the facts.
package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"mortality/pkg/platform/sentinel"
)

// Default public endpoints. Tests point the client at httptest servers.
const (
	DefaultWikipediaAPIURL = "https://en.wikipedia.org/w/api.php"
	DefaultWikidataAPIURL  = "https://www.wikidata.org/w/api.php"
)

// Wikidata property identifiers for the facts this pipeline tracks.
const (
	PropertyBirthDate = "P569"
	PropertyDeathDate = "P570"
)

// Client issues JSON requests against the two Wikimedia APIs.
type Client struct {
	http         *http.Client
	wikipediaURL string
	wikidataURL  string
	log          *slog.Logger
}

// NewClient builds a Client. Empty URLs fall back to the public endpoints;
// a nil httpClient gets a 5-second timeout, matching the upstream APIs'
// own latency envelope.
func NewClient(wikipediaURL, wikidataURL string, httpClient *http.Client, log *slog.Logger) *Client {
	if wikipediaURL == "" {
		wikipediaURL = DefaultWikipediaAPIURL
	}
	if wikidataURL == "" {
		wikidataURL = DefaultWikidataAPIURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		http:         httpClient,
		wikipediaURL: wikipediaURL,
		wikidataURL:  wikidataURL,
		log:          log,
	}
}

type redirectPair struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type queryResponse struct {
	Query struct {
		Redirects  []redirectPair `json:"redirects"`
		Normalized []redirectPair `json:"normalized"`
		Pages      map[string]struct {
			Title string `json:"title"`
		} `json:"pages"`
	} `json:"query"`
}

type entitiesResponse struct {
	Entities map[string]wikidataEntity `json:"entities"`
}

type wikidataEntity struct {
	ID     string                     `json:"id"`
	Claims map[string][]wikidataClaim `json:"claims"`
}

type wikidataClaim struct {
	MainSnak struct {
		DataValue struct {
			Value struct {
				Time string `json:"time"`
			} `json:"value"`
		} `json:"datavalue"`
	} `json:"mainsnak"`
}

// queryTitle asks the Wikipedia action API about a title with redirect
// reporting enabled.
func (c *Client) queryTitle(ctx context.Context, title string) (queryResponse, error) {
	params := url.Values{
		"action":    {"query"},
		"titles":    {title},
		"redirects": {"1"},
		"format":    {"json"},
	}
	var out queryResponse
	if err := c.get(ctx, c.wikipediaURL, params, &out); err != nil {
		return queryResponse{}, err
	}
	return out, nil
}

// EntityByTitle maps a canonical page title to its Wikidata entity ID.
// A title with no linked entity returns sentinel.ErrNotFound.
func (c *Client) EntityByTitle(ctx context.Context, title string) (string, error) {
	params := url.Values{
		"action":    {"wbgetentities"},
		"format":    {"json"},
		"sites":     {"enwiki"},
		"titles":    {title},
		"languages": {"en"},
		"redirects": {"yes"},
	}
	var out entitiesResponse
	if err := c.get(ctx, c.wikidataURL, params, &out); err != nil {
		return "", err
	}
	// A missing page comes back as a pseudo-entity keyed "-1" with no ID.
	for key, ent := range out.Entities {
		if key == "-1" || ent.ID == "" {
			continue
		}
		return ent.ID, nil
	}
	return "", fmt.Errorf("no entity for title %q: %w", title, sentinel.ErrNotFound)
}

// ClaimTime fetches an entity's claims and returns the first claim's raw
// time token for the given property. Absence of the property (or of the
// entity itself) is sentinel.ErrNotFound, a normal "no such fact" outcome,
// distinct from transport failures.
func (c *Client) ClaimTime(ctx context.Context, property, entityID string) (string, error) {
	params := url.Values{
		"action":    {"wbgetentities"},
		"ids":       {entityID},
		"format":    {"json"},
		"languages": {"en"},
	}
	var out entitiesResponse
	if err := c.get(ctx, c.wikidataURL, params, &out); err != nil {
		return "", err
	}
	ent, ok := out.Entities[entityID]
	if !ok || ent.ID == "" {
		return "", fmt.Errorf("entity %s: %w", entityID, sentinel.ErrNotFound)
	}
	claims := ent.Claims[property]
	if len(claims) == 0 {
		return "", fmt.Errorf("entity %s has no %s claim: %w", entityID, property, sentinel.ErrNotFound)
	}
	token := claims[0].MainSnak.DataValue.Value.Time
	if token == "" {
		return "", fmt.Errorf("entity %s claim %s carries no time value: %w", entityID, property, sentinel.ErrNotFound)
	}
	return token, nil
}

func (c *Client) get(ctx context.Context, base string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build wikimedia request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("wikimedia api: %v: %w", err, sentinel.ErrUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("wikimedia api status %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	default:
		return fmt.Errorf("wikimedia api status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode wikimedia response: %w", err)
	}
	return nil
}

package biography

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"mortality/internal/dates"
	"mortality/internal/platform/config"
)

// InfoboxSource reads birth and death facts from the rendered infobox of the
// subject's Wikipedia page, served by the Wikimedia Enterprise
// structured-contents API. It is the fallback for subjects whose structured
// claims are missing or wrong; the rendered page is what readers actually
// see corrected first.
type InfoboxSource struct {
	http     *http.Client
	authURL  string
	apiURL   string
	username string
	password string
	log      *slog.Logger

	mu    sync.Mutex
	token string
}

func NewInfoboxSource(cfg config.InfoboxConfig, httpClient *http.Client, log *slog.Logger) *InfoboxSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	return &InfoboxSource{
		http:     httpClient,
		authURL:  cfg.AuthURL,
		apiURL:   cfg.APIURL,
		username: cfg.Username,
		password: cfg.Password,
		log:      log,
	}
}

func (s *InfoboxSource) Name() string { return "enterprise-infobox" }

// infoboxNode is one element of the rendered infobox tree. Field rows carry
// a name such as "Born" and a flattened text value; sections nest further
// rows under has_parts.
type infoboxNode struct {
	Type  string        `json:"type"`
	Name  string        `json:"name"`
	Value string        `json:"value"`
	Parts []infoboxNode `json:"has_parts"`
}

type structuredPage struct {
	Name    string        `json:"name"`
	Infobox []infoboxNode `json:"infobox"`
}

// Facts fetches the subject's page and extracts dates from its Born and
// Died infobox rows. A page without an infobox is CategoryNotFound; the
// caller turns that into a bad-page notification rather than a retry.
func (s *InfoboxSource) Facts(ctx context.Context, subject Subject) (Facts, error) {
	if subject.PageTitle == "" {
		return Facts{}, NewFetchError(CategoryNotFound, s.Name(), "subject has no page title", nil)
	}

	nodes, err := s.fetchInfobox(ctx, subject.PageTitle)
	if err != nil {
		return Facts{}, err
	}

	var facts Facts
	if text, ok := findField(nodes, "Born"); ok {
		if d, ok := dates.ExtractPhrase(text); ok {
			facts.Birth = &d
		}
	}
	if text, ok := findField(nodes, "Died"); ok {
		if d, ok := dates.ExtractPhrase(text); ok {
			facts.Death = &d
		}
	}
	return facts, nil
}

// findField walks the infobox tree pre-order for a row labeled with the
// given field name. Rendered labels sometimes carry a trailing colon, and a
// few templates fold the label into the value text itself.
func findField(nodes []infoboxNode, label string) (string, bool) {
	for _, n := range nodes {
		name := strings.TrimSuffix(strings.TrimSpace(n.Name), ":")
		if strings.EqualFold(name, label) && n.Value != "" {
			return n.Value, true
		}
		if n.Name == "" && strings.HasPrefix(n.Value, label) {
			return n.Value, true
		}
		if text, ok := findField(n.Parts, label); ok {
			return text, true
		}
	}
	return "", false
}

func (s *InfoboxSource) fetchInfobox(ctx context.Context, pageTitle string) ([]infoboxNode, error) {
	token, err := s.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	body, _ := json.Marshal(map[string]any{
		"filters": []map[string]string{
			{"field": "is_part_of.identifier", "value": "enwiki"},
		},
		"limit": 1,
	})
	endpoint := s.apiURL + "/" + url.PathEscape(pageTitle)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, NewFetchError(CategoryInternal, s.Name(), "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, NewFetchError(CategoryOutage, s.Name(), "structured-contents request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// Token expired mid-run; drop it so the next subject re-authenticates.
		s.mu.Lock()
		s.token = ""
		s.mu.Unlock()
		return nil, NewFetchError(CategoryAuthentication, s.Name(), fmt.Sprintf("structured-contents status %d", resp.StatusCode), nil)
	case resp.StatusCode == http.StatusNotFound:
		return nil, NewFetchError(CategoryNotFound, s.Name(), "page not found", nil)
	case resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests:
		return nil, NewFetchError(CategoryOutage, s.Name(), fmt.Sprintf("structured-contents status %d", resp.StatusCode), nil)
	default:
		return nil, NewFetchError(CategoryInternal, s.Name(), fmt.Sprintf("structured-contents status %d", resp.StatusCode), nil)
	}

	var pages []structuredPage
	if err := json.NewDecoder(resp.Body).Decode(&pages); err != nil {
		return nil, NewFetchError(CategoryBadData, s.Name(), "decode structured-contents response", err)
	}
	if len(pages) == 0 || len(pages[0].Infobox) == 0 {
		return nil, NewFetchError(CategoryNotFound, s.Name(), "page has no infobox", nil)
	}
	return pages[0].Infobox, nil
}

// ensureToken logs in once and reuses the bearer token for the rest of the
// run.
func (s *InfoboxSource) ensureToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" {
		return s.token, nil
	}

	body, _ := json.Marshal(map[string]string{
		"username": s.username,
		"password": s.password,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.authURL, bytes.NewReader(body))
	if err != nil {
		return "", NewFetchError(CategoryInternal, s.Name(), "build login request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", NewFetchError(CategoryOutage, s.Name(), "login request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", NewFetchError(CategoryAuthentication, s.Name(), "login rejected", nil)
	default:
		return "", NewFetchError(CategoryOutage, s.Name(), fmt.Sprintf("login status %d", resp.StatusCode), nil)
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", NewFetchError(CategoryBadData, s.Name(), "decode login response", err)
	}
	if out.AccessToken == "" {
		return "", NewFetchError(CategoryAuthentication, s.Name(), "login returned no token", nil)
	}
	s.token = out.AccessToken
	return s.token, nil
}

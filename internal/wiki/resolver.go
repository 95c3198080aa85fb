package wiki

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"mortality/pkg/platform/sentinel"
)

// ErrRedirectLoop reports a redirect chain that exceeded the defensive hop
// bound. The API resolves ordinary chains itself; hitting the bound means a
// pathological cycle between pages.
var ErrRedirectLoop = errors.New("redirect loop")

// maxRedirectHops bounds how many times the resolver will chase "this title
// redirects to that title" before giving up.
const maxRedirectHops = 10

// Resolver maps human-readable page titles to Wikidata entity IDs.
type Resolver struct {
	client *Client
}

// NewResolver builds a Resolver on top of a Client.
func NewResolver(client *Client) *Resolver {
	return &Resolver{client: client}
}

// Resolve normalizes a page title, follows its redirect chain to the
// canonical title, and returns the linked Wikidata entity ID. A title with
// no linkable entity returns sentinel.ErrNotFound; callers treat that as
// "bad source page", not as a batch failure. Read-only: no side effects.
func (r *Resolver) Resolve(ctx context.Context, pageTitle string) (string, error) {
	title, err := normalizeTitle(pageTitle)
	if err != nil {
		return "", err
	}

	final, err := r.followRedirects(ctx, title)
	if err != nil {
		return "", err
	}
	return r.client.EntityByTitle(ctx, final)
}

func (r *Resolver) followRedirects(ctx context.Context, title string) (string, error) {
	current := title
	for hop := 0; ; hop++ {
		if hop >= maxRedirectHops {
			return "", fmt.Errorf("resolving %q after %d hops: %w", title, hop, ErrRedirectLoop)
		}
		res, err := r.client.queryTitle(ctx, current)
		if err != nil {
			return "", err
		}
		if len(res.Query.Redirects) > 0 {
			// The API reports the whole chain it already followed; pick up
			// from the last target and ask again in case it goes further.
			current = res.Query.Redirects[len(res.Query.Redirects)-1].To
			continue
		}
		if len(res.Query.Normalized) > 0 {
			return res.Query.Normalized[0].To, nil
		}
		for _, page := range res.Query.Pages {
			if page.Title != "" {
				return page.Title, nil
			}
		}
		// No normalization and no pages: keep the title we asked about.
		return current, nil
	}
}

func normalizeTitle(pageTitle string) (string, error) {
	title := strings.TrimSpace(pageTitle)
	if title == "" {
		return "", fmt.Errorf("empty page title: %w", sentinel.ErrInvalidState)
	}
	if unescaped, err := url.PathUnescape(title); err == nil {
		title = unescaped
	}
	return title, nil
}

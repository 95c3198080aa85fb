package biography

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mortality/internal/platform/config"
)

// infoboxFixture mirrors the structured-contents shape for a dead musician:
// the Born and Died rows sit inside a nested section, and the spouse row
// carries a marriage date that must not be mistaken for either.
const infoboxFixture = `[
  {
    "name": "Prince (musician)",
    "infobox": [
      {
        "type": "infobox",
        "name": "Infobox person",
        "has_parts": [
          {
            "type": "section",
            "has_parts": [
              {"type": "field", "name": "Born", "value": "Prince Rogers Nelson June 7, 1958 Minneapolis, Minnesota, U.S."},
              {"type": "field", "name": "Died:", "value": "April 21, 2016 Chanhassen, Minnesota, U.S."},
              {"type": "field", "name": "Spouse(s)", "value": "Mayte Garcia (m. February 14, 1996; div. 2000)"}
            ]
          }
        ]
      }
    ]
  }
]`

type infoboxServer struct {
	*httptest.Server
	logins int
}

func newInfoboxServer(t *testing.T, pages map[string]string) *infoboxServer {
	t.Helper()
	s := &infoboxServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		if r.URL.Path == "/login" {
			var creds map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
			if creds["username"] != "svc-mortality" || creds["password"] != "hunter2" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			s.logins++
			json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
			return
		}

		require.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		var body struct {
			Filters []map[string]string `json:"filters"`
			Limit   int                 `json:"limit"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, 1, body.Limit)
		require.Equal(t, "enwiki", body.Filters[0]["value"])

		title := strings.TrimPrefix(r.URL.Path, "/v2/structured-contents/")
		page, ok := pages[title]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(page))
	}))
	t.Cleanup(s.Close)
	return s
}

func newTestInfoboxSource(srv *infoboxServer, password string) *InfoboxSource {
	return NewInfoboxSource(config.InfoboxConfig{
		AuthURL:  srv.URL + "/login",
		APIURL:   srv.URL + "/v2/structured-contents",
		Username: "svc-mortality",
		Password: password,
	}, nil, nil)
}

func TestInfoboxSource_ExtractsBornAndDied(t *testing.T) {
	srv := newInfoboxServer(t, map[string]string{"Prince (musician)": infoboxFixture})
	src := newTestInfoboxSource(srv, "hunter2")

	facts, err := src.Facts(context.Background(), Subject{PageTitle: "Prince (musician)"})
	require.NoError(t, err)
	require.NotNil(t, facts.Birth)
	assert.Equal(t, "1958-06-07", facts.Birth.String())
	require.NotNil(t, facts.Death)
	assert.Equal(t, "2016-04-21", facts.Death.String(), "colon-suffixed label still matches")
}

func TestInfoboxSource_LabelFoldedIntoValue(t *testing.T) {
	page := `[{"name": "X", "infobox": [
		{"type": "field", "name": "Born", "value": "1 December 1986"},
		{"type": "field", "value": "Died 14 August 2021 (aged 34)"}
	]}]`
	srv := newInfoboxServer(t, map[string]string{"X": page})
	src := newTestInfoboxSource(srv, "hunter2")

	facts, err := src.Facts(context.Background(), Subject{PageTitle: "X"})
	require.NoError(t, err)
	require.NotNil(t, facts.Death)
	assert.Equal(t, "2021-08-14", facts.Death.String())
}

func TestInfoboxSource_NoInfobox(t *testing.T) {
	srv := newInfoboxServer(t, map[string]string{"Bare Page": `[{"name": "Bare Page", "infobox": []}]`})
	src := newTestInfoboxSource(srv, "hunter2")

	_, err := src.Facts(context.Background(), Subject{PageTitle: "Bare Page"})
	assert.True(t, IsNotFound(err))
	assert.False(t, IsRetryable(err))
}

func TestInfoboxSource_MissingPage(t *testing.T) {
	srv := newInfoboxServer(t, nil)
	src := newTestInfoboxSource(srv, "hunter2")

	_, err := src.Facts(context.Background(), Subject{PageTitle: "Nobody"})
	assert.True(t, IsNotFound(err))
}

func TestInfoboxSource_LoginHappensOnce(t *testing.T) {
	srv := newInfoboxServer(t, map[string]string{"Prince (musician)": infoboxFixture})
	src := newTestInfoboxSource(srv, "hunter2")

	_, err := src.Facts(context.Background(), Subject{PageTitle: "Prince (musician)"})
	require.NoError(t, err)
	_, err = src.Facts(context.Background(), Subject{PageTitle: "Prince (musician)"})
	require.NoError(t, err)
	assert.Equal(t, 1, srv.logins)
}

func TestInfoboxSource_BadCredentials(t *testing.T) {
	srv := newInfoboxServer(t, nil)
	src := newTestInfoboxSource(srv, "wrong")

	_, err := src.Facts(context.Background(), Subject{PageTitle: "Anyone"})
	require.Error(t, err)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, CategoryAuthentication, fe.Category)
	assert.False(t, fe.Retryable)
}

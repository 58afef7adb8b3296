package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marquee/internal/services"
	"marquee/internal/textutil"
)

type fakeSpotify struct {
	server      *httptest.Server
	tokenCalls  atomic.Int32
	searchCalls atomic.Int32
	searchBody  string
	searchCode  func(call int32) int
}

func newFakeSpotify(t *testing.T, searchBody string) *fakeSpotify {
	t.Helper()
	f := &fakeSpotify{searchBody: searchBody}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		n := f.tokenCalls.Add(1)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "id", user)
		assert.Equal(t, "secret", pass)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"Bearer","expires_in":3600}`, n)
	})
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		n := f.searchCalls.Add(1)
		assert.Equal(t, "artist", r.URL.Query().Get("type"))
		if f.searchCode != nil {
			if code := f.searchCode(n); code != http.StatusOK {
				w.WriteHeader(code)
				return
			}
		}
		_, _ = w.Write([]byte(f.searchBody))
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeSpotify) client(opts ...Option) *Client {
	return NewClient(Config{
		ClientID:     "id",
		ClientSecret: "secret",
		BaseURL:      f.server.URL + "/v1",
		TokenURL:     f.server.URL + "/token",
		Market:       "US",
	}, opts...)
}

func artists(items ...string) string {
	return fmt.Sprintf(`{"artists":{"items":[%s]}}`, joinComma(items))
}

func artist(id, name string, popularity int) string {
	return fmt.Sprintf(`{"id":%q,"name":%q,"popularity":%d,"genres":["folk"],"external_urls":{"spotify":"https://open.spotify.com/artist/%s"},"images":[{"url":"https://i/s.jpg","width":64},{"url":"https://i/l.jpg","width":640}]}`,
		id, name, popularity, id)
}

func joinComma(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += ","
		}
		out += item
	}
	return out
}

func TestSearchArtistAcceptanceThresholds(t *testing.T) {
	tests := []struct {
		name      string
		performer string
		body      string
		wantID    string
		wantMatch textutil.NameMatch
	}{
		{
			name:      "exact name above floor",
			performer: "Bob Dylan",
			body:      artists(artist("a1", "Bob Dylan", 21)),
			wantID:    "a1",
			wantMatch: textutil.NameExact,
		},
		{
			name:      "exact name below floor",
			performer: "Bob Dylan",
			body:      artists(artist("a1", "Bob Dylan", 19)),
		},
		{
			name:      "partial name needs higher popularity",
			performer: "The Dylan Tribute Band",
			body:      artists(artist("a1", "Bob Dylan", 45)),
		},
		{
			name:      "partial name above partial floor",
			performer: "Dylan",
			body:      artists(artist("a1", "Bob Dylan", 80)),
			wantID:    "a1",
			wantMatch: textutil.NamePartial,
		},
		{
			name:      "mismatch never accepted",
			performer: "Willie Nelson",
			body:      artists(artist("a1", "Bob Dylan", 99)),
		},
		{
			name:      "shared filler word is not an overlap",
			performer: "The Nutcracker",
			body:      artists(artist("a1", "The Weeknd", 95)),
		},
		{
			name:      "first acceptable result wins",
			performer: "Bob Dylan",
			body:      artists(artist("a0", "Bob Dylan", 5), artist("a2", "Bob Dylan", 60)),
			wantID:    "a2",
			wantMatch: textutil.NameExact,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeSpotify(t, tt.body)
			got, err := f.client().SearchArtist(context.Background(), tt.performer)
			require.NoError(t, err)
			if tt.wantID == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantID, got.ID)
			assert.Equal(t, tt.wantMatch, got.MatchType)
			assert.Equal(t, "https://i/l.jpg", got.ImageURL)
			assert.Equal(t, []string{"folk"}, got.Genres)
		})
	}
}

func TestTokenCacheReusesAndRefreshesOnExpiry(t *testing.T) {
	f := newFakeSpotify(t, artists())
	client := f.client()
	ctx := context.Background()

	_, err := client.SearchArtist(ctx, "Bob Dylan")
	require.NoError(t, err)
	_, err = client.SearchArtist(ctx, "Bob Dylan")
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.tokenCalls.Load(), "token should be cached between searches")

	client.tokens.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = client.SearchArtist(ctx, "Bob Dylan")
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.tokenCalls.Load(), "expired token should be refreshed")
}

func TestSearchArtistReauthorizesOnce(t *testing.T) {
	f := newFakeSpotify(t, artists(artist("a1", "Bob Dylan", 50)))
	f.searchCode = func(call int32) int {
		if call == 1 {
			return http.StatusUnauthorized
		}
		return http.StatusOK
	}
	got, err := f.client().SearchArtist(context.Background(), "Bob Dylan")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.EqualValues(t, 2, f.tokenCalls.Load())
}

func TestSearchArtistRateLimitedThenFails(t *testing.T) {
	f := newFakeSpotify(t, artists())
	f.searchCode = func(int32) int { return http.StatusTooManyRequests }
	var slept []time.Duration
	_, err := f.client(WithSleeper(func(d time.Duration) { slept = append(slept, d) })).
		SearchArtist(context.Background(), "Bob Dylan")
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrExternalService))
	assert.Len(t, slept, 1)
	assert.EqualValues(t, 2, f.searchCalls.Load())
}

func TestSearchArtistMalformedAndUnconfigured(t *testing.T) {
	f := newFakeSpotify(t, `{"artists":`)
	_, err := f.client().SearchArtist(context.Background(), "Bob Dylan")
	assert.True(t, errors.Is(err, services.ErrMalformedResponse))

	_, err = NewClient(Config{}).SearchArtist(context.Background(), "Bob Dylan")
	assert.True(t, errors.Is(err, services.ErrConfiguration))

	_, err = f.client().SearchArtist(context.Background(), "  ")
	assert.True(t, errors.Is(err, services.ErrValidation))
}

package spotify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// tokenRefreshSkew renews a token this long before it actually expires.
const tokenRefreshSkew = time.Minute

// tokenCache holds the client-credentials access token and refreshes it lazily
// when it is missing, close to expiry, or invalidated after a 401.
type tokenCache struct {
	mu     sync.Mutex
	cfg    clientcredentials.Config
	client *http.Client
	now    func() time.Time

	token   *oauth2.Token
	fetches int
}

func newTokenCache(clientID, clientSecret, tokenURL string, client *http.Client) *tokenCache {
	return &tokenCache{
		cfg: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		client: client,
		now:    time.Now,
	}
}

// AccessToken returns a valid bearer token, fetching a new one when needed.
func (c *tokenCache) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid() {
		return c.token.AccessToken, nil
	}
	if c.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.client)
	}
	token, err := c.cfg.Token(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	c.fetches++
	return token.AccessToken, nil
}

// Invalidate drops the cached token so the next call fetches a fresh one.
func (c *tokenCache) Invalidate() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}

func (c *tokenCache) valid() bool {
	if c.token == nil || c.token.AccessToken == "" {
		return false
	}
	if c.token.Expiry.IsZero() {
		return true
	}
	return c.now().Add(tokenRefreshSkew).Before(c.token.Expiry)
}

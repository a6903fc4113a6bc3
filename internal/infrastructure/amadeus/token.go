package amadeus

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"demand_service/internal/infrastructure/upstream"
)

// tokenSkew renews the token this long before the server-side expiry.
const tokenSkew = 30 * time.Second

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// TokenCache holds the OAuth2 client-credentials token shared by all requests.
type TokenCache struct {
	baseURL      string
	clientID     string
	clientSecret string
	client       *upstream.Client
	now          func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func NewTokenCache(baseURL, clientID, clientSecret string, client *upstream.Client) *TokenCache {
	return &TokenCache{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       client,
		now:          time.Now,
	}
}

// Token returns a valid access token, refreshing it when expired.
// Concurrent callers share a single refresh.
func (t *TokenCache) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && t.now().Before(t.expiry) {
		return t.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", t.clientID)
	form.Set("client_secret", t.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/security/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp tokenResponse
	if err := t.client.DoJSON(req, &resp); err != nil {
		return "", fmt.Errorf("amadeus token: %w", err)
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("amadeus token: empty access_token")
	}

	t.token = resp.AccessToken
	t.expiry = t.now().Add(time.Duration(resp.ExpiresIn)*time.Second - tokenSkew)
	return t.token, nil
}

// Invalidate drops the cached token so the next call fetches a new one.
func (t *TokenCache) Invalidate() {
	t.mu.Lock()
	t.token = ""
	t.mu.Unlock()
}

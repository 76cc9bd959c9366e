package platform

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultGraphBaseURL = "https://graph.facebook.com"

// GraphClient is the shared Meta Graph API client used by the Instagram,
// Messenger and WhatsApp adapters.
type GraphClient struct {
	baseURL    string
	appSecret  string
	httpClient *http.Client
}

func NewGraphClient(appSecret, apiVersion string) *GraphClient {
	return &GraphClient{
		baseURL:    fmt.Sprintf("%s/%s", defaultGraphBaseURL, apiVersion),
		appSecret:  appSecret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithBaseURL overrides the Graph endpoint. Used in tests.
func (g *GraphClient) WithBaseURL(baseURL string) *GraphClient {
	g.baseURL = strings.TrimRight(baseURL, "/")
	return g
}

// VerifySignature checks an X-Hub-Signature-256 header (sha256=<hex>) against
// the raw body using the app secret, in constant time.
func (g *GraphClient) VerifySignature(body []byte, signatureHeader string) bool {
	if !strings.HasPrefix(signatureHeader, "sha256=") {
		return false
	}
	received := strings.TrimPrefix(signatureHeader, "sha256=")

	mac := hmac.New(sha256.New, []byte(g.appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(received))
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

type pagedResponse struct {
	Data   []json.RawMessage `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

func (g *GraphClient) Get(ctx context.Context, endpoint, token string, params url.Values, out interface{}) error {
	reqURL := fmt.Sprintf("%s/%s", g.baseURL, strings.TrimLeft(endpoint, "/"))
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	return g.do(req, token, out)
}

func (g *GraphClient) Post(ctx context.Context, endpoint, token string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	reqURL := fmt.Sprintf("%s/%s", g.baseURL, strings.TrimLeft(endpoint, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return g.do(req, token, out)
}

// GetPaged fetches a data-array endpoint, following paging.next until limit
// entries are collected or pages run out. Paging links are followed verbatim;
// a malformed next link ends pagination rather than failing the call.
func (g *GraphClient) GetPaged(ctx context.Context, endpoint, token string, params url.Values, limit int) ([]json.RawMessage, error) {
	var collected []json.RawMessage

	reqURL := fmt.Sprintf("%s/%s", g.baseURL, strings.TrimLeft(endpoint, "/"))
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	for reqURL != "" && len(collected) < limit {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return collected, err
		}

		var page pagedResponse
		if err := g.do(req, token, &page); err != nil {
			return collected, err
		}

		collected = append(collected, page.Data...)
		if len(page.Data) == 0 {
			break
		}
		reqURL = page.Paging.Next
	}

	if len(collected) > limit {
		collected = collected[:limit]
	}
	return collected, nil
}

func (g *GraphClient) do(req *http.Request, token string, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("graph api request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var ge graphError
		if err := json.Unmarshal(data, &ge); err == nil && ge.Error.Message != "" {
			return fmt.Errorf("graph api error (%d, code %d): %s", resp.StatusCode, ge.Error.Code, ge.Error.Message)
		}
		return fmt.Errorf("graph api error: status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// ExchangeLongLivedToken swaps an access token for a fresh long-lived token.
// Used by the credential refresh sweep.
func (g *GraphClient) ExchangeLongLivedToken(ctx context.Context, appID, accessToken string) (string, time.Time, error) {
	params := url.Values{}
	params.Set("grant_type", "fb_exchange_token")
	params.Set("client_id", appID)
	params.Set("client_secret", g.appSecret)
	params.Set("fb_exchange_token", accessToken)

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := g.Get(ctx, "oauth/access_token", accessToken, params, &result); err != nil {
		return "", time.Time{}, err
	}
	if result.AccessToken == "" {
		return "", time.Time{}, fmt.Errorf("graph api returned no access token")
	}

	expiresIn := result.ExpiresIn
	if expiresIn == 0 {
		expiresIn = 5184000 // 60 days
	}
	return result.AccessToken, time.Now().Add(time.Duration(expiresIn) * time.Second), nil
}

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/danielkropka/social-flow-sub001/internal/models"

	"golang.org/x/oauth2"
)

const maxResponseBody = 1 << 20

// DefaultRead issues a plain GET with client.
func DefaultRead(ctx context.Context, client *http.Client, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return client.Do(req)
}

// base holds what every exchanger shares.
type base struct {
	provider models.Provider
	client   *http.Client
	read     ReadFunc
	now      func() time.Time
}

func newBase(provider models.Provider, opts Options) base {
	b := base{
		provider: provider,
		client:   opts.HTTPClient,
		read:     opts.Read,
		now:      opts.Now,
	}
	if b.client == nil {
		b.client = http.DefaultClient
	}
	if b.read == nil {
		b.read = DefaultRead
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b
}

func (b *base) Provider() models.Provider {
	return b.provider
}

// oauthContext makes x/oauth2 use the injected client.
func (b *base) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, b.client)
}

func (b *base) providerError(op string, err error) *ProviderError {
	return &ProviderError{Provider: b.provider, Op: op, Err: err}
}

// getJSON is a single-shot GET used by handshake steps.
func (b *base) getJSON(ctx context.Context, op, rawURL string, out any) error {
	return b.getJSONWith(ctx, b.client, op, rawURL, out)
}

func (b *base) getJSONWith(
	ctx context.Context,
	client *http.Client,
	op, rawURL string,
	out any,
) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return b.providerError(op, err)
	}
	return b.doJSON(client, op, req, out)
}

// readJSON is a GET through the pluggable reader, used for metric reads.
func (b *base) readJSON(ctx context.Context, client *http.Client, op, rawURL string, out any) error {
	resp, err := b.read(ctx, client, rawURL)
	if err != nil {
		return b.providerError(op, err)
	}
	return b.decode(op, resp, out)
}

// postForm sends an urlencoded POST and decodes the JSON reply.
func (b *base) postForm(ctx context.Context, op, rawURL string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		rawURL,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return b.providerError(op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.doJSON(b.client, op, req, out)
}

func (b *base) doJSON(client *http.Client, op string, req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return b.providerError(op, err)
	}
	return b.decode(op, resp, out)
}

func (b *base) decode(op string, resp *http.Response, out any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &ProviderError{
			Provider:   b.provider,
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to read response: %w", err),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ProviderError{
			Provider:   b.provider,
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(body), maxErrorBody),
			Code:       errorCode(body),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &ProviderError{
			Provider:   b.provider,
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(body), maxErrorBody),
			Code:       "invalid_response",
			Err:        err,
		}
	}
	return nil
}

// exchangeCode trades an authorization code for a token.
func (b *base) exchangeCode(
	ctx context.Context,
	cfg *oauth2.Config,
	op, code string,
	opts ...oauth2.AuthCodeOption,
) (*oauth2.Token, error) {
	token, err := cfg.Exchange(b.oauthContext(ctx), code, opts...)
	if err != nil {
		return nil, b.wrapOAuth2Error(op, err)
	}
	return token, nil
}

func (b *base) wrapOAuth2Error(op string, err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		pe := &ProviderError{
			Provider: b.provider,
			Op:       op,
			Body:     truncate(string(rerr.Body), maxErrorBody),
			Code:     rerr.ErrorCode,
		}
		if rerr.Response != nil {
			pe.StatusCode = rerr.Response.StatusCode
		}
		if pe.Code == "" && pe.StatusCode < http.StatusInternalServerError {
			pe.Code = errorCode(rerr.Body)
		}
		return pe
	}
	return b.providerError(op, err)
}

// expiry converts a relative lifetime in seconds to an absolute deadline.
func (b *base) expiry(expiresIn int64) *time.Time {
	if expiresIn <= 0 {
		return nil
	}
	t := b.now().Add(time.Duration(expiresIn) * time.Second).UTC()
	return &t
}

func tokenExpiry(token *oauth2.Token) *time.Time {
	if token.Expiry.IsZero() {
		return nil
	}
	t := token.Expiry.UTC()
	return &t
}

// errorCode pulls a provider error code out of a JSON error body. It knows
// the OAuth2 ({"error":"x"}), Graph ({"error":{"type":"x","code":190}}) and
// TikTok ({"error":{"code":"x"}}) shapes.
func errorCode(body []byte) string {
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Error) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(payload.Error, &s); err == nil {
		return s
	}

	var obj struct {
		Code json.RawMessage `json:"code"`
		Type string          `json:"type"`
	}
	if err := json.Unmarshal(payload.Error, &obj); err != nil {
		return ""
	}
	if len(obj.Code) > 0 {
		if err := json.Unmarshal(obj.Code, &s); err == nil {
			return s
		}
		var n int64
		if err := json.Unmarshal(obj.Code, &n); err == nil {
			return strconv.FormatInt(n, 10)
		}
	}
	return obj.Type
}

// callbackError maps provider-reported callback errors.
func (b *base) callbackError(params CallbackParams) error {
	if params.Error == "" {
		return nil
	}
	if params.Error == "access_denied" || params.ErrorReason == "user_denied" {
		return ErrConsentDenied
	}
	return &ProviderError{
		Provider: b.provider,
		Op:       "authorize",
		Code:     params.Error,
		Body:     truncate(params.ErrorDescription, maxErrorBody),
	}
}

// checkOAuth2Callback runs the checks common to all OAuth2 callbacks.
func (b *base) checkOAuth2Callback(h Handshake, params CallbackParams) error {
	if err := b.callbackError(params); err != nil {
		return err
	}
	if params.State == "" || params.State != h.Token {
		return ErrHandshakeMismatch
	}
	if params.Code == "" {
		return ErrMissingCode
	}
	return nil
}

func int64Ptr(v int64) *int64 {
	return &v
}

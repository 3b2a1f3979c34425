// Package upload proxies upload token requests to the object storage token
// issuer so clients never see the issuer's endpoint.
package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/roomdrop/internal/apperr"
	"github.com/eldtechnologies/roomdrop/internal/metrics"
	"github.com/eldtechnologies/roomdrop/internal/resilience"
)

// DefaultIssuerURL is the token issuer used when none is configured.
const DefaultIssuerURL = "https://putonghua.shuipantech.com/api/tool/qiniu/uploadToken"

// issuerSuccessCode marks a successful issuer reply.
const issuerSuccessCode = "0000"

// maxIssuerResponse bounds how much of the issuer reply is read.
const maxIssuerResponse = 64 * 1024

// ErrIssuerUnavailable is wrapped by Issue while the issuer circuit is open.
var ErrIssuerUnavailable = apperr.Upstream("upload token service unavailable", nil)

// Token authorizes one client-side upload under Key.
type Token struct {
	Token string `json:"token"`
	Key   string `json:"key"`
}

type issuerResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Token string `json:"token"`
		Key   string `json:"key"`
	} `json:"data"`
}

// TokenIssuer fetches upload tokens from the upstream issuer.
type TokenIssuer struct {
	url     string
	client  *http.Client
	breaker *resilience.CircuitBreaker
	logger  zerolog.Logger
}

// NewTokenIssuer creates a TokenIssuer calling issuerURL with the given timeout.
func NewTokenIssuer(issuerURL string, timeout time.Duration, logger zerolog.Logger) *TokenIssuer {
	if issuerURL == "" {
		issuerURL = DefaultIssuerURL
	}
	return &TokenIssuer{
		url:     issuerURL,
		client:  &http.Client{Timeout: timeout},
		breaker: resilience.NewCircuitBreaker(resilience.DefaultConfig("upload-token"), logger),
		logger:  logger.With().Str("component", "upload").Logger(),
	}
}

// WithBreaker replaces the circuit breaker guarding the issuer.
func (t *TokenIssuer) WithBreaker(cb *resilience.CircuitBreaker) *TokenIssuer {
	t.breaker = cb
	return t
}

// Issue requests a fresh upload token.
func (t *TokenIssuer) Issue(ctx context.Context) (*Token, error) {
	var tok *Token
	err := t.breaker.ExecuteContext(ctx, func(ctx context.Context) error {
		var err error
		tok, err = t.fetch(ctx)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		metrics.UploadTokens.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: %w", ErrIssuerUnavailable, err)
	}
	if ctxErr := ctx.Err(); err != nil && ctxErr != nil {
		metrics.UploadTokens.WithLabelValues("cancelled").Inc()
		return nil, apperr.Upstream("upload token request cancelled", ctxErr)
	}
	if err != nil {
		metrics.UploadTokens.WithLabelValues("failed").Inc()
		t.logger.Warn().Err(err).Msg("upload token request failed")
		return nil, err
	}

	metrics.UploadTokens.WithLabelValues("issued").Inc()
	return tok, nil
}

func (t *TokenIssuer) fetch(ctx context.Context) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, apperr.Upstream("upload token request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.Upstream(fmt.Sprintf("upload token request failed (%d)", resp.StatusCode), nil)
	}

	var body issuerResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxIssuerResponse)).Decode(&body); err != nil {
		return nil, apperr.Upstream("malformed upload token response", err)
	}

	if !body.Success || body.Code != issuerSuccessCode {
		reason := body.Message
		if reason == "" {
			reason = "unknown error"
		}
		return nil, apperr.Upstream("upload token rejected: "+reason, nil)
	}
	if body.Data.Token == "" || body.Data.Key == "" {
		return nil, apperr.Upstream("malformed upload token response", nil)
	}

	return &Token{Token: body.Data.Token, Key: body.Data.Key}, nil
}

var extensionRegex = regexp.MustCompile(`^[a-z0-9]{1,16}$`)

// RewriteExtension replaces the extension of key with the extension of
// fileName so the storage CDN serves the right content type. The key is
// returned unchanged when either side has no usable extension.
func RewriteExtension(key, fileName string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(path.Base(fileName)), "."))
	if !extensionRegex.MatchString(ext) {
		return key
	}

	current := path.Ext(key)
	if current == "" || current == "." {
		return key
	}
	return strings.TrimSuffix(key, current) + "." + ext
}

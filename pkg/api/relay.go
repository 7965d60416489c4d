package api

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/grump-ai/gateway/pkg/middleware"
	"github.com/grump-ai/gateway/pkg/observability"
)

// NewUpstreamRelay builds a reverse proxy to the AI provider that attaches
// the credential acquired by GovernMiddleware as the outbound bearer token.
// The provider's request/response semantics are untouched; this is transport
// glue only. The handler must be mounted behind the governance chain; a
// request arriving without a credential in context is a wiring bug and is
// rejected.
func NewUpstreamRelay(baseURL string, logger *observability.Logger) (http.Handler, error) {
	target, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, _ *http.Request, err error) {
		logger.WithError(err).Warn("Upstream relay error")
		writeError(w, http.StatusBadGateway, "upstream request failed")
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cred, ok := middleware.CredentialFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusInternalServerError, "governance middleware not configured")
			return
		}

		// Replace the caller's gateway token with the upstream credential.
		r.Header.Set("Authorization", "Bearer "+string(cred))
		proxy.ServeHTTP(w, r)
	}), nil
}

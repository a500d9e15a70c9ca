package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"requests-signature/internal/common/errors"
	"requests-signature/internal/common/logging"
	"requests-signature/internal/signature"
)

type resultHolderKey struct{}

// resultHolder lets outer middleware see the result attached further down the chain.
type resultHolder struct {
	result signature.ValidationResult
	set    bool
}

func withResultHolder(ctx context.Context, holder *resultHolder) context.Context {
	return context.WithValue(ctx, resultHolderKey{}, holder)
}

func withClientID(ctx context.Context, result signature.ValidationResult) context.Context {
	if result.OK() {
		return context.WithValue(ctx, logging.ClientIDKey, result.ClientID)
	}
	return ctx
}

// SignatureOptions configures Signature.
type SignatureOptions struct {
	// Skip exempts matching requests from validation, e.g. health checks and scrapes.
	Skip func(r *http.Request) bool
}

// Signature validates every request and attaches the result to the request
// context. It never rejects a request; use RequireSignature for that.
func Signature(validator *signature.Validator, opts SignatureOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.Skip != nil && opts.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			result := validator.Validate(r.Context(), r)

			if holder, ok := r.Context().Value(resultHolderKey{}).(*resultHolder); ok {
				holder.result = result
				holder.set = true
			}

			ctx := signature.WithResult(r.Context(), result)
			ctx = withClientID(ctx, result)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireOptions configures RequireSignature.
type RequireOptions struct {
	// AllowedClientIDs restricts access to these clients. Empty allows every registered client.
	AllowedClientIDs []string

	// AllowDisabled lets requests through while validation is disabled.
	AllowDisabled bool

	// Skip exempts matching requests from the check.
	Skip func(r *http.Request) bool
}

// SkipRoutes matches the named mux routes.
func SkipRoutes(names ...string) func(r *http.Request) bool {
	skip := make(map[string]bool, len(names))
	for _, name := range names {
		skip[name] = true
	}

	return func(r *http.Request) bool {
		route := mux.CurrentRoute(r)
		return route != nil && skip[route.GetName()]
	}
}

type rejection struct {
	Error           string `json:"error"`
	Status          string `json:"status"`
	ServerTimestamp int64  `json:"server_timestamp"`
}

// RequireSignature authenticates requests through strategy. Requests without a
// valid signature get 401, clients outside AllowedClientIDs get 403 and
// validation failures get 500. A result attached by Signature is reused.
func RequireSignature(strategy *signature.AuthStrategy, opts RequireOptions) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(opts.AllowedClientIDs))
	for _, id := range opts.AllowedClientIDs {
		allowed[id] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.Skip != nil && opts.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			principal, result, err := strategy.Authenticate(r)
			if err != nil {
				logger := logging.WithContext(r.Context())
				if errors.IsType(err, errors.ErrTypeInternal) {
					logger.Error("Request signature could not be validated", err, logging.Field{Key: "path", Value: r.URL.Path})
					writeRejection(w, http.StatusInternalServerError, "signature validation unavailable", result)
					return
				}
				logger.Warn("Request rejected", logging.Field{Key: "error", Value: err.Error()}, logging.Field{Key: "path", Value: r.URL.Path})
				writeRejection(w, http.StatusUnauthorized, "invalid request signature", result)
				return
			}

			switch {
			case principal == "" && result.Status == signature.StatusDisabled && opts.AllowDisabled:
				next.ServeHTTP(w, r)
			case principal == "":
				writeRejection(w, http.StatusUnauthorized, "invalid request signature", result)
			case len(allowed) > 0 && !allowed[principal]:
				writeRejection(w, http.StatusForbidden, "client is not allowed", result)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func writeRejection(w http.ResponseWriter, code int, message string, result signature.ValidationResult) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(rejection{
		Error:           message,
		Status:          result.Status.String(),
		ServerTimestamp: result.ServerTimestamp,
	})
}

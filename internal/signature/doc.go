// Package signature implements HMAC request signing with replay protection.
//
// A client signs a request by concatenating a configured, ordered list of
// request components (method, scheme, host, path, query, body, timestamp,
// nonce, selected headers) and computing an HMAC over the result with a key
// shared with the server. The signature travels in a single header rendered
// from a template, by default
//
//	X-RequestSignature: {ClientId}:{Nonce}:{Timestamp}:{SignatureBody}
//
// The server recomputes the signature for the registered client and accepts
// the request only when the timestamp is within the clock skew and the nonce
// has not been seen before.
//
// # Configuration
//
//	clock_skew_seconds: 300
//	clients:
//	  - client_id: billing
//	    key_source: env:BILLING_SIGNATURE_KEY
//	    components: [Nonce, Timestamp, Method, Scheme, Host, LocalPath, QueryString, Body]
//
// # Usage
//
//	registry, err := signature.NewRegistry(*options)
//	if err != nil {
//	    return err
//	}
//	validator := signature.NewValidator(registry,
//	    signature.WithNonceRepository(store),
//	    signature.WithLogger(logger),
//	)
//	result := validator.Validate(r.Context(), r)
//	if !result.OK() {
//	    http.Error(w, "invalid signature", http.StatusUnauthorized)
//	    return
//	}
//
// Validation never returns an error: every outcome is a Status. A Disabled
// status means validation was skipped and must not be treated as verified.
package signature

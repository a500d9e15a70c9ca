package signature

import (
	"bytes"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"requests-signature/internal/common/errors"
)

// SigningContext holds the per-request facts that feed canonicalization.
// URL may be relative, in which case Scheme, Host and Port contribute nothing.
type SigningContext struct {
	Method    string
	URL       *url.URL
	Header    http.Header
	Nonce     string
	Timestamp int64
	ClientID  string
	// Body is only materialized when a Body component is requested
	Body []byte
}

// SourceBuilder turns a SigningContext into the exact bytes that get signed.
type SourceBuilder interface {
	Build(components []Component, sc *SigningContext) ([]byte, error)
}

// DefaultSourceBuilder concatenates component values in list order without delimiters.
type DefaultSourceBuilder struct{}

// Build implements SourceBuilder.
func (DefaultSourceBuilder) Build(components []Component, sc *SigningContext) ([]byte, error) {
	return BuildSource(components, sc)
}

// BuildSource produces the canonical byte sequence for sc. An empty component
// list yields an empty (non-nil) slice. Unknown components are an error.
func BuildSource(components []Component, sc *SigningContext) ([]byte, error) {
	if sc == nil {
		return nil, errors.InternalError("signing context is required", nil)
	}

	var buf bytes.Buffer
	for _, component := range components {
		switch component.Kind {
		case ComponentMethod:
			buf.WriteString(strings.ToUpper(sc.Method))
		case ComponentScheme:
			if isAbsolute(sc.URL) {
				buf.WriteString(sc.URL.Scheme)
			}
		case ComponentHost:
			if isAbsolute(sc.URL) {
				buf.WriteString(sc.URL.Hostname())
			}
		case ComponentPort:
			if isAbsolute(sc.URL) {
				buf.WriteString(portOf(sc.URL))
			}
		case ComponentLocalPath:
			buf.WriteString(localPath(sc.URL))
		case ComponentQueryString:
			if sc.URL != nil && sc.URL.RawQuery != "" {
				buf.WriteByte('?')
				buf.WriteString(sc.URL.RawQuery)
			}
		case ComponentBody:
			buf.Write(sc.Body)
		case ComponentTimestamp:
			buf.WriteString(strconv.FormatInt(sc.Timestamp, 10))
		case ComponentNonce:
			buf.WriteString(sc.Nonce)
		case ComponentHeader:
			if component.Header == "" {
				return nil, errors.ValidationError("header component without a header name")
			}
			if values, ok := sc.Header[component.Header]; ok {
				buf.WriteString(strings.Join(values, ","))
			}
		default:
			return nil, errors.ValidationError("unknown signature component kind %d", int(component.Kind))
		}
	}

	return append([]byte{}, buf.Bytes()...), nil
}

func isAbsolute(u *url.URL) bool {
	return u != nil && u.Scheme != "" && u.Host != ""
}

// portOf returns the explicit port or the scheme default.
func portOf(u *url.URL) string {
	if port := u.Port(); port != "" {
		return port
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		return "80"
	case "https", "wss":
		return "443"
	default:
		return ""
	}
}

// localPath returns the decoded path. Absolute URLs always have at least "/",
// which is what an HTTP client puts on the wire for an empty path.
func localPath(u *url.URL) string {
	if u == nil {
		return ""
	}
	if u.Path == "" && isAbsolute(u) {
		return "/"
	}
	return u.Path
}

// RequestURL reconstructs the absolute URL an inbound request was sent to.
// Forwarded headers are only honoured when trustForwarded is set.
func RequestURL(r *http.Request, trustForwarded bool) *url.URL {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host

	if trustForwarded {
		if proto := firstHeaderValue(r.Header.Get("X-Forwarded-Proto")); proto != "" {
			scheme = strings.ToLower(proto)
		}
		if fwdHost := firstHeaderValue(r.Header.Get("X-Forwarded-Host")); fwdHost != "" {
			host = fwdHost
		}
	}

	if host == "" && r.URL != nil {
		host = r.URL.Host
	}

	u := &url.URL{Scheme: scheme, Host: host}
	if r.URL != nil {
		u.Path = r.URL.Path
		u.RawPath = r.URL.RawPath
		u.RawQuery = r.URL.RawQuery
	}
	return u
}

func firstHeaderValue(v string) string {
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}

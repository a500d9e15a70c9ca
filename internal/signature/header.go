package signature

import (
	"regexp"
	"strconv"
	"strings"

	"requests-signature/internal/common/errors"
)

const (
	// DefaultHeaderName is the header carrying the signature.
	DefaultHeaderName = "X-RequestSignature"
	// DefaultHeaderTemplate is the header layout.
	DefaultHeaderTemplate = "{ClientId}:{Nonce}:{Timestamp}:{SignatureBody}"

	tokenClientID  = "{ClientId}"
	tokenNonce     = "{Nonce}"
	tokenTimestamp = "{Timestamp}"
	tokenSignature = "{SignatureBody}"

	// maxFieldLength bounds client ids and nonces in parsed headers.
	maxFieldLength = 64
	// maxTimestampDigits keeps parsed timestamps well inside int64.
	maxTimestampDigits = 12
)

var templateTokens = []string{tokenClientID, tokenNonce, tokenTimestamp, tokenSignature}

// HeaderValue is the parsed content of a signature header.
type HeaderValue struct {
	ClientID  string
	Nonce     string
	Timestamp int64
	Signature string
}

// HeaderCodec formats and parses signature headers for one template.
type HeaderCodec struct {
	template string
	pattern  *regexp.Regexp
	groups   map[string]int
}

// DefaultHeaderCodec uses DefaultHeaderTemplate.
var DefaultHeaderCodec = MustHeaderCodec(DefaultHeaderTemplate)

// NewHeaderCodec compiles template into a codec. Every token must appear exactly once.
// The parse grammar derived from the default template is
// ^([^:]{1,64}):([^:]{1,64}):([0-9]{1,12}):(.+)$
func NewHeaderCodec(template string) (*HeaderCodec, error) {
	if strings.TrimSpace(template) == "" {
		return nil, errors.ConfigError("signature header template is empty")
	}

	for _, token := range templateTokens {
		if n := strings.Count(template, token); n != 1 {
			return nil, errors.ConfigError("signature header template must contain %s exactly once (found %d)", token, n)
		}
	}

	// Literal parts are quoted, every token becomes a bounded capture group.
	pattern := regexp.QuoteMeta(template)
	replacements := map[string]string{
		tokenClientID:  `([^:]{1,` + strconv.Itoa(maxFieldLength) + `})`,
		tokenNonce:     `([^:]{1,` + strconv.Itoa(maxFieldLength) + `})`,
		tokenTimestamp: `([0-9]{1,` + strconv.Itoa(maxTimestampDigits) + `})`,
		tokenSignature: `(.+)`,
	}

	for token, group := range replacements {
		pattern = strings.Replace(pattern, regexp.QuoteMeta(token), group, 1)
	}

	re, err := regexp.Compile("^" + pattern + "$")
	if err != nil {
		return nil, errors.WrapConfigError("invalid signature header template", err)
	}

	// Capture group numbers follow the token order in the template.
	groups := make(map[string]int, len(templateTokens))
	for _, token := range templateTokens {
		rank := 1
		for _, other := range templateTokens {
			if strings.Index(template, other) < strings.Index(template, token) {
				rank++
			}
		}
		groups[token] = rank
	}

	return &HeaderCodec{template: template, pattern: re, groups: groups}, nil
}

// MustHeaderCodec is like NewHeaderCodec but panics on error.
func MustHeaderCodec(template string) *HeaderCodec {
	codec, err := NewHeaderCodec(template)
	if err != nil {
		panic(err)
	}
	return codec
}

// Template returns the template the codec was built from.
func (c *HeaderCodec) Template() string {
	return c.template
}

// Format renders v into the template.
func (c *HeaderCodec) Format(v HeaderValue) string {
	return strings.NewReplacer(
		tokenClientID, v.ClientID,
		tokenNonce, v.Nonce,
		tokenTimestamp, strconv.FormatInt(v.Timestamp, 10),
		tokenSignature, v.Signature,
	).Replace(c.template)
}

// Parse extracts the header fields. Any mismatch with the grammar, including a
// timestamp that does not fit an int64, is an error.
func (c *HeaderCodec) Parse(raw string) (HeaderValue, error) {
	matches := c.pattern.FindStringSubmatch(raw)
	if matches == nil {
		return HeaderValue{}, errors.ValidationError("signature header does not match the expected format")
	}

	timestamp, err := strconv.ParseInt(matches[c.groups[tokenTimestamp]], 10, 64)
	if err != nil {
		return HeaderValue{}, errors.ValidationError("invalid signature timestamp: %v", err)
	}

	return HeaderValue{
		ClientID:  matches[c.groups[tokenClientID]],
		Nonce:     matches[c.groups[tokenNonce]],
		Timestamp: timestamp,
		Signature: matches[c.groups[tokenSignature]],
	}, nil
}

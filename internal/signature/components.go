package signature

import (
	"net/textproto"
	"strings"

	"gopkg.in/yaml.v3"

	"requests-signature/internal/common/errors"
)

// ComponentKind identifies which request fact a Component contributes to the
// canonical source.
type ComponentKind int

const (
	componentUnknown ComponentKind = iota
	ComponentMethod
	ComponentScheme
	ComponentHost
	ComponentPort
	ComponentLocalPath
	ComponentQueryString
	ComponentBody
	ComponentTimestamp
	ComponentNonce
	ComponentHeader
)

// headerPrefix is the configuration prefix for header components ("HeaderX-Custom"
// or "Header:X-Custom").
const headerPrefix = "Header"

var componentNames = map[ComponentKind]string{
	ComponentMethod:      "Method",
	ComponentScheme:      "Scheme",
	ComponentHost:        "Host",
	ComponentPort:        "Port",
	ComponentLocalPath:   "LocalPath",
	ComponentQueryString: "QueryString",
	ComponentBody:        "Body",
	ComponentTimestamp:   "Timestamp",
	ComponentNonce:       "Nonce",
}

// Component is one entry of an ordered canonicalization list. Header components
// carry the header name they read.
type Component struct {
	Kind   ComponentKind
	Header string
}

// Well-known components.
var (
	Method      = Component{Kind: ComponentMethod}
	Scheme      = Component{Kind: ComponentScheme}
	Host        = Component{Kind: ComponentHost}
	Port        = Component{Kind: ComponentPort}
	LocalPath   = Component{Kind: ComponentLocalPath}
	QueryString = Component{Kind: ComponentQueryString}
	Body        = Component{Kind: ComponentBody}
	Timestamp   = Component{Kind: ComponentTimestamp}
	Nonce       = Component{Kind: ComponentNonce}
)

// DefaultComponents is the component list used by signers that do not configure one.
var DefaultComponents = []Component{Nonce, Timestamp, Method, Scheme, Host, LocalPath, QueryString, Body}

// Header returns a component reading the named request header. The name is
// stored in canonical MIME form so that it matches the keys of http.Header
// on both the signing and the verifying side.
func Header(name string) Component {
	return Component{Kind: ComponentHeader, Header: textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(name))}
}

// ParseComponent converts a configuration name into a Component.
func ParseComponent(name string) (Component, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "Path" {
		return LocalPath, nil
	}

	for kind, known := range componentNames {
		if trimmed == known {
			return Component{Kind: kind}, nil
		}
	}

	if strings.HasPrefix(trimmed, headerPrefix) {
		headerName := strings.TrimPrefix(strings.TrimPrefix(trimmed, headerPrefix), ":")
		if strings.TrimSpace(headerName) == "" {
			return Component{}, errors.ValidationError("header component %q has no header name", name)
		}
		return Header(headerName), nil
	}

	return Component{}, errors.ValidationError("unknown signature component %q", name)
}

// ParseComponents converts a list of configuration names, failing on the first unknown one.
func ParseComponents(names []string) ([]Component, error) {
	components := make([]Component, 0, len(names))
	for _, name := range names {
		c, err := ParseComponent(name)
		if err != nil {
			return nil, err
		}
		components = append(components, c)
	}
	return components, nil
}

// String returns the configuration name of the component.
func (c Component) String() string {
	if c.Kind == ComponentHeader {
		return headerPrefix + ":" + c.Header
	}
	if name, ok := componentNames[c.Kind]; ok {
		return name
	}
	return "Unknown"
}

// Valid reports whether the component is one the canonicalizer understands.
func (c Component) Valid() bool {
	if c.Kind == ComponentHeader {
		return c.Header != ""
	}
	_, ok := componentNames[c.Kind]
	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (c Component) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, errors.ValidationError("cannot marshal invalid signature component")
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Component) UnmarshalText(text []byte) error {
	parsed, err := ParseComponent(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Component) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return err
	}
	return c.UnmarshalText([]byte(name))
}

// MarshalYAML implements yaml.Marshaler.
func (c Component) MarshalYAML() (interface{}, error) {
	text, err := c.MarshalText()
	if err != nil {
		return nil, err
	}
	return string(text), nil
}

func containsComponent(components []Component, kind ComponentKind) bool {
	for _, c := range components {
		if c.Kind == kind {
			return true
		}
	}
	return false
}

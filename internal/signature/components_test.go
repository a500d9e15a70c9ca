package signature

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseComponent(t *testing.T) {
	tests := []struct {
		name    string
		want    Component
		wantErr bool
	}{
		{name: "Method", want: Method},
		{name: " Body ", want: Body},
		{name: "Path", want: LocalPath},
		{name: "LocalPath", want: LocalPath},
		{name: "Header:x-api-version", want: Header("X-Api-Version")},
		{name: "HeaderX-Api-Version", want: Header("X-Api-Version")},
		{name: "Header:", wantErr: true},
		{name: "method", wantErr: true},
		{name: "Fragment", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseComponent(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComponent_String(t *testing.T) {
	assert.Equal(t, "QueryString", QueryString.String())
	assert.Equal(t, "Header:X-Tenant", Header("x-tenant").String())
	assert.Equal(t, "Unknown", Component{}.String())
	assert.False(t, Component{}.Valid())
	assert.False(t, Component{Kind: ComponentHeader}.Valid())
}

func TestComponents_JSON(t *testing.T) {
	data, err := json.Marshal([]Component{Nonce, Header("X-Tenant")})
	require.NoError(t, err)
	assert.JSONEq(t, `["Nonce","Header:X-Tenant"]`, string(data))

	var decoded []Component
	require.NoError(t, json.Unmarshal([]byte(`["Timestamp","HeaderX-Tenant"]`), &decoded))
	assert.Equal(t, []Component{Timestamp, Header("X-Tenant")}, decoded)

	assert.Error(t, json.Unmarshal([]byte(`["Bogus"]`), &decoded))
}

func TestComponents_YAML(t *testing.T) {
	var decoded []Component
	require.NoError(t, yaml.Unmarshal([]byte("- Nonce\n- Path\n- Header:X-Tenant\n"), &decoded))
	assert.Equal(t, []Component{Nonce, LocalPath, Header("X-Tenant")}, decoded)

	out, err := yaml.Marshal(decoded)
	require.NoError(t, err)
	assert.Equal(t, "- Nonce\n- LocalPath\n- Header:X-Tenant\n", string(out))
}

func TestParseComponents(t *testing.T) {
	components, err := ParseComponents([]string{"Nonce", "Timestamp"})
	require.NoError(t, err)
	assert.Equal(t, []Component{Nonce, Timestamp}, components)

	_, err = ParseComponents([]string{"Nonce", "Nope"})
	assert.Error(t, err)
}

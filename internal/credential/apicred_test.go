package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relayhq/relay/internal/source"
)

func apiSource(authType source.AuthType, headerNames ...string) *source.Source {
	return &source.Source{
		Slug: "svc", WorkspaceID: "ws1", Type: source.TypeAPI, Provider: "custom",
		API: &source.APIConfig{
			BaseURL:     "https://api.example.com",
			AuthType:    authType,
			HeaderNames: headerNames,
		},
	}
}

func TestDecodeAPICredential(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		src  *source.Source
		want APICredential
	}{
		{
			name: "plain token",
			raw:  "tok-123",
			src:  apiSource(source.AuthBearer),
			want: TokenCredential("tok-123"),
		},
		{
			name: "basic pair",
			raw:  `{"username": "dev@example.com", "password": "s3cret"}`,
			src:  apiSource(source.AuthBasic),
			want: BasicCredential{Username: "dev@example.com", Password: "s3cret"},
		},
		{
			name: "multi-header object",
			raw:  `{"X-Api-Key": "k1", "X-Api-Secret": "k2"}`,
			src:  apiSource(source.AuthHeader, "X-Api-Key", "X-Api-Secret"),
			want: HeaderCredential{"X-Api-Key": "k1", "X-Api-Secret": "k2"},
		},
		{
			name: "header object missing a declared header falls back to token",
			raw:  `{"X-Api-Key": "k1"}`,
			src:  apiSource(source.AuthHeader, "X-Api-Key", "X-Api-Secret"),
			want: TokenCredential(`{"X-Api-Key": "k1"}`),
		},
		{
			name: "basic declared but value is a plain string",
			raw:  "legacy-token",
			src:  apiSource(source.AuthBasic),
			want: TokenCredential("legacy-token"),
		},
		{
			name: "basic declared but object has empty username",
			raw:  `{"username": "", "password": "p"}`,
			src:  apiSource(source.AuthBasic),
			want: TokenCredential(`{"username": "", "password": "p"}`),
		},
		{
			name: "json-looking token without declared headers stays a token",
			raw:  `{"not": "a credential shape"}`,
			src:  apiSource(source.AuthBearer),
			want: TokenCredential(`{"not": "a credential shape"}`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeAPICredential(tt.raw, tt.src))
		})
	}
}

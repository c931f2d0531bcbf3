package credential

import (
	"encoding/json"

	"github.com/relayhq/relay/internal/source"
)

// APICredential is what an API call actually sends: a plain token, a
// username/password pair, or a set of named headers. The set is closed.
type APICredential interface {
	isAPICredential()
}

// TokenCredential is a plain opaque token.
type TokenCredential string

func (TokenCredential) isAPICredential() {}

// BasicCredential is a username/password pair for HTTP basic auth.
type BasicCredential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (BasicCredential) isAPICredential() {}

// HeaderCredential maps header names to their values for APIs that
// authenticate with one or more custom headers.
type HeaderCredential map[string]string

func (HeaderCredential) isAPICredential() {}

// decodeAPICredential interprets a stored raw value for a source.
//
// Credentials for the same source may have been saved under different shapes
// across UI flows, so decoding tries the most specific shape first and falls
// through silently on any parse failure:
//  1. when the source declares multi-header names, a JSON object containing
//     every named header,
//  2. when the source declares basic auth, a JSON {username, password} pair,
//  3. the raw string as-is.
func decodeAPICredential(raw string, src *source.Source) APICredential {
	if src.API != nil && len(src.API.HeaderNames) > 0 {
		var headers map[string]string
		if err := json.Unmarshal([]byte(raw), &headers); err == nil {
			all := true
			for _, name := range src.API.HeaderNames {
				if _, ok := headers[name]; !ok {
					all = false
					break
				}
			}
			if all {
				return HeaderCredential(headers)
			}
		}
	}

	if src.DeclaredAuthType() == source.AuthBasic {
		var basic BasicCredential
		if err := json.Unmarshal([]byte(raw), &basic); err == nil && basic.Username != "" {
			return basic
		}
	}

	return TokenCredential(raw)
}

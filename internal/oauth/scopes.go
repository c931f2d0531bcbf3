package oauth

import (
	"fmt"
	"strings"
)

// ScopeResolutionError indicates that no OAuth scope selection could be made
// for a source: no explicit scopes, no known service name, and no inference
// from the configured base URL. It fails closed with the field the user
// should set.
type ScopeResolutionError struct {
	Provider Provider
	Service  string // the unknown service name, when that was the problem
}

func (e *ScopeResolutionError) Error() string {
	if e.Service != "" {
		return fmt.Sprintf("unknown %s service %q: set scopes explicitly or use one of the predefined services", e.Provider, e.Service)
	}
	return fmt.Sprintf("cannot determine OAuth scopes for %s source: set the scopes or service field in the source configuration", e.Provider)
}

// Scopes appended for providers whose flows carry an OIDC identity, so a
// usable identity hint comes back with the token.
var (
	googleBaseScopes    = []string{"openid", "email"}
	microsoftBaseScopes = []string{"openid", "email", "offline_access"}
)

// googleServices maps predefined service names to Google API scopes.
var googleServices = map[string][]string{
	"gmail":    {"https://www.googleapis.com/auth/gmail.modify"},
	"calendar": {"https://www.googleapis.com/auth/calendar"},
	"drive":    {"https://www.googleapis.com/auth/drive"},
	"sheets":   {"https://www.googleapis.com/auth/spreadsheets"},
	"docs":     {"https://www.googleapis.com/auth/documents"},
	"contacts": {"https://www.googleapis.com/auth/contacts.readonly"},
}

// microsoftServices maps predefined service names to Microsoft Graph scopes.
var microsoftServices = map[string][]string{
	"mail":     {"https://graph.microsoft.com/Mail.ReadWrite", "https://graph.microsoft.com/Mail.Send"},
	"calendar": {"https://graph.microsoft.com/Calendars.ReadWrite"},
	"files":    {"https://graph.microsoft.com/Files.ReadWrite"},
	"contacts": {"https://graph.microsoft.com/Contacts.Read"},
	"teams":    {"https://graph.microsoft.com/Chat.ReadWrite"},
}

// slackDefaultScopes is the scope set requested when a Slack source declares
// nothing. Slack has no per-service catalog; the Web API uses one token.
var slackDefaultScopes = []string{"channels:history", "channels:read", "chat:write", "users:read"}

// ResolveScopes selects the OAuth scopes for an authorization flow.
// Precedence: explicit custom scopes, then a named predefined service, then
// inference from the configured base URL. When none apply the resolution
// fails closed with a ScopeResolutionError naming the missing field.
func ResolveScopes(p Provider, explicit []string, service, baseURL string) ([]string, error) {
	if len(explicit) > 0 {
		return withBaseScopes(p, explicit), nil
	}

	switch p {
	case ProviderGoogle:
		return resolveFromCatalog(p, googleServices, service, baseURL, inferGoogleService)
	case ProviderMicrosoft:
		return resolveFromCatalog(p, microsoftServices, service, baseURL, inferMicrosoftService)
	case ProviderSlack:
		// One catalog-free provider: the default set is its predefined
		// service.
		return slackDefaultScopes, nil
	case ProviderMCP:
		// Remote MCP servers advertise their own scopes via metadata
		// discovery; an empty request lets the server pick its defaults.
		return nil, nil
	default:
		return nil, &ScopeResolutionError{Provider: p}
	}
}

func resolveFromCatalog(p Provider, catalog map[string][]string, service, baseURL string, infer func(string) string) ([]string, error) {
	if service != "" {
		scopes, ok := catalog[strings.ToLower(service)]
		if !ok {
			return nil, &ScopeResolutionError{Provider: p, Service: service}
		}
		return withBaseScopes(p, scopes), nil
	}

	if baseURL != "" {
		if inferred := infer(baseURL); inferred != "" {
			return withBaseScopes(p, catalog[inferred]), nil
		}
	}

	return nil, &ScopeResolutionError{Provider: p}
}

func withBaseScopes(p Provider, scopes []string) []string {
	var base []string
	switch p {
	case ProviderGoogle:
		base = googleBaseScopes
	case ProviderMicrosoft:
		base = microsoftBaseScopes
	default:
		return scopes
	}

	out := make([]string, 0, len(base)+len(scopes))
	seen := make(map[string]bool, len(base)+len(scopes))
	for _, s := range append(append([]string{}, base...), scopes...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func inferGoogleService(baseURL string) string {
	u := strings.ToLower(baseURL)
	switch {
	case strings.Contains(u, "gmail"):
		return "gmail"
	case strings.Contains(u, "calendar"):
		return "calendar"
	case strings.Contains(u, "drive"):
		return "drive"
	case strings.Contains(u, "sheets") || strings.Contains(u, "spreadsheets"):
		return "sheets"
	case strings.Contains(u, "docs"):
		return "docs"
	case strings.Contains(u, "people") || strings.Contains(u, "contacts"):
		return "contacts"
	default:
		return ""
	}
}

func inferMicrosoftService(baseURL string) string {
	u := strings.ToLower(baseURL)
	switch {
	case strings.Contains(u, "mail") || strings.Contains(u, "outlook"):
		return "mail"
	case strings.Contains(u, "calendar"):
		return "calendar"
	case strings.Contains(u, "drive") || strings.Contains(u, "files"):
		return "files"
	case strings.Contains(u, "contacts") || strings.Contains(u, "people"):
		return "contacts"
	case strings.Contains(u, "chats") || strings.Contains(u, "teams"):
		return "teams"
	default:
		return ""
	}
}

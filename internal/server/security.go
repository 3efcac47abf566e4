package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/conneroisu/codepad/internal/config"
)

// SecurityConfig holds the headers applied to editor responses.
type SecurityConfig struct {
	CSP                 *CSPConfig
	XFrameOptions       string
	XContentTypeNoSniff bool
	ReferrerPolicy      string
	PermissionsPolicy   *PermissionsPolicyConfig
}

// CSPConfig holds Content Security Policy configuration
type CSPConfig struct {
	Sandbox        []string
	DefaultSrc     []string
	ScriptSrc      []string
	StyleSrc       []string
	ImgSrc         []string
	ConnectSrc     []string
	FontSrc        []string
	ObjectSrc      []string
	MediaSrc       []string
	FrameSrc       []string
	FrameAncestors []string
	BaseURI        []string
	FormAction     []string
}

// PermissionsPolicyConfig holds Permissions Policy configuration
type PermissionsPolicyConfig struct {
	Geolocation []string
	Camera      []string
	Microphone  []string
	Payment     []string
	USB         []string
}

// EditorSecurityConfig returns the headers for the editor page and the API.
// The editor frames its own preview documents and nothing else frames it.
func EditorSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		CSP: &CSPConfig{
			DefaultSrc:     []string{"'self'"},
			ScriptSrc:      []string{"'self'", "'unsafe-inline'"},
			StyleSrc:       []string{"'self'", "'unsafe-inline'", "https://fonts.googleapis.com"},
			FontSrc:        []string{"'self'", "https://fonts.gstatic.com"},
			ImgSrc:         []string{"'self'", "data:"},
			ConnectSrc:     []string{"'self'", "ws:", "wss:"},
			MediaSrc:       []string{"'self'", "data:", "blob:"},
			ObjectSrc:      []string{"'none'"},
			FrameSrc:       []string{"'self'"},
			FrameAncestors: []string{"'none'"},
			BaseURI:        []string{"'self'"},
			FormAction:     []string{"'self'"},
		},
		XFrameOptions:       "DENY",
		XContentTypeNoSniff: true,
		ReferrerPolicy:      "strict-origin-when-cross-origin",
		PermissionsPolicy:   &PermissionsPolicyConfig{},
	}
}

// PreviewSecurityConfig returns the headers for a bootstrap document: it is
// sandboxed even when opened outside the editor's iframe and may load
// scripts and styles from the library hosts.
func PreviewSecurityConfig(libraries []string) *SecurityConfig {
	hosts := libraryOrigins(libraries)
	return &SecurityConfig{
		CSP: &CSPConfig{
			Sandbox:        []string{"allow-scripts", "allow-modals"},
			DefaultSrc:     append([]string{"'self'", "data:", "blob:"}, hosts...),
			ScriptSrc:      append([]string{"'self'", "'unsafe-inline'", "'unsafe-eval'"}, hosts...),
			StyleSrc:       append([]string{"'self'", "'unsafe-inline'"}, hosts...),
			ImgSrc:         []string{"*", "data:", "blob:"},
			ConnectSrc:     []string{"*", "ws:", "wss:"},
			FrameAncestors: []string{"'self'"},
		},
		XFrameOptions:       "SAMEORIGIN",
		XContentTypeNoSniff: true,
		ReferrerPolicy:      "no-referrer",
	}
}

// SecurityMiddleware applies secConfig to every response.
func SecurityMiddleware(secConfig *SecurityConfig) func(http.Handler) http.Handler {
	if secConfig == nil {
		secConfig = EditorSecurityConfig()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			applySecurityHeaders(w, secConfig)
			next.ServeHTTP(w, r)
		})
	}
}

// applySecurityHeaders applies all configured security headers
func applySecurityHeaders(w http.ResponseWriter, config *SecurityConfig) {
	if config.CSP != nil {
		w.Header().Set("Content-Security-Policy", buildCSPHeader(config.CSP))
	}
	if config.XFrameOptions != "" {
		w.Header().Set("X-Frame-Options", config.XFrameOptions)
	}
	if config.XContentTypeNoSniff {
		w.Header().Set("X-Content-Type-Options", "nosniff")
	}
	if config.ReferrerPolicy != "" {
		w.Header().Set("Referrer-Policy", config.ReferrerPolicy)
	}
	if config.PermissionsPolicy != nil {
		if header := buildPermissionsPolicyHeader(config.PermissionsPolicy); header != "" {
			w.Header().Set("Permissions-Policy", header)
		}
	}
}

// buildCSPHeader constructs the Content-Security-Policy header value
func buildCSPHeader(csp *CSPConfig) string {
	var directives []string

	addDirective := func(name string, values []string) {
		if len(values) > 0 {
			directives = append(directives, fmt.Sprintf("%s %s", name, strings.Join(values, " ")))
		}
	}

	if csp.Sandbox != nil {
		directives = append(directives, strings.TrimSpace("sandbox "+strings.Join(csp.Sandbox, " ")))
	}
	addDirective("default-src", csp.DefaultSrc)
	addDirective("script-src", csp.ScriptSrc)
	addDirective("style-src", csp.StyleSrc)
	addDirective("img-src", csp.ImgSrc)
	addDirective("connect-src", csp.ConnectSrc)
	addDirective("font-src", csp.FontSrc)
	addDirective("object-src", csp.ObjectSrc)
	addDirective("media-src", csp.MediaSrc)
	addDirective("frame-src", csp.FrameSrc)
	addDirective("frame-ancestors", csp.FrameAncestors)
	addDirective("base-uri", csp.BaseURI)
	addDirective("form-action", csp.FormAction)

	return strings.Join(directives, "; ")
}

// buildPermissionsPolicyHeader constructs the Permissions-Policy header value
func buildPermissionsPolicyHeader(pp *PermissionsPolicyConfig) string {
	var policies []string

	addPolicy := func(name string, values []string) {
		if len(values) == 0 {
			policies = append(policies, fmt.Sprintf("%s=()", name))
		} else {
			policies = append(policies, fmt.Sprintf("%s=(%s)", name, strings.Join(values, " ")))
		}
	}

	addPolicy("geolocation", pp.Geolocation)
	addPolicy("camera", pp.Camera)
	addPolicy("microphone", pp.Microphone)
	addPolicy("payment", pp.Payment)
	addPolicy("usb", pp.USB)

	return strings.Join(policies, ", ")
}

// libraryOrigins reduces library URLs to their scheme://host origins,
// deduplicated in order.
func libraryOrigins(libraries []string) []string {
	seen := make(map[string]bool)
	var origins []string
	for _, lib := range libraries {
		u, err := url.Parse(lib)
		if err != nil || u.Host == "" {
			continue
		}
		origin := u.Scheme + "://" + u.Host
		if !seen[origin] {
			seen[origin] = true
			origins = append(origins, origin)
		}
	}
	return origins
}

// corsOrigins returns the allowed origins for the cors middleware. Outside
// production an empty list allows local development hosts.
func corsOrigins(cfg config.ServerConfig) []string {
	if len(cfg.AllowedOrigins) > 0 {
		return cfg.AllowedOrigins
	}
	if cfg.Environment == "production" {
		return []string{}
	}
	return []string{"http://localhost:*", "http://127.0.0.1:*"}
}

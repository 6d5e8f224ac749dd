// Package redact scrubs credentials out of strings before they reach logs,
// error messages or API responses.
package redact

import (
	"regexp"
	"strings"
)

var (
	rePassword = regexp.MustCompile(`(?i)((?:password|pwd)\s*=\s*)([^\s;&]+)`)
	reToken    = regexp.MustCompile(`(?i)(token=|bearer\s+)([A-Za-z0-9._-]+)`)
	reURLPass  = regexp.MustCompile(`(://)([^:/@\s]+):([^@\s]+)(@)`)
	reOraPass  = regexp.MustCompile(`(^|\s)([A-Za-z0-9_$#]+)/([^@\s]+)(@)`)
	reAPIKey   = regexp.MustCompile(`(?i)(apikey=|api_key=)([^\s;&]+)`)
)

// Mask replaces sensitive values in s with "***". For URL-style DSNs the
// user name and password are both masked.
func Mask(s string) string {
	out := s
	out = rePassword.ReplaceAllString(out, "$1***")
	out = reToken.ReplaceAllString(out, "$1***")
	out = reURLPass.ReplaceAllString(out, "$1*:*$4")
	out = reOraPass.ReplaceAllString(out, "$1$2/***$4")
	out = reAPIKey.ReplaceAllString(out, "$1***")
	return out
}

// Secret hides a secret, replacing it with a fixed marker. Empty stays empty so
// callers can still tell "no password" apart from "password set".
func Secret(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

// Scrub removes every literal occurrence of secret from s, then applies Mask.
// Driver errors sometimes echo the password outside any recognizable key=value form.
func Scrub(s, secret string) string {
	if secret != "" && len(secret) >= 3 {
		s = strings.ReplaceAll(s, secret, "***")
	}
	return Mask(s)
}

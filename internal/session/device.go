package session

import (
	"net"
	"net/http"
	"regexp"
	"strings"
)

var (
	chromeRe  = regexp.MustCompile(`(?i)Chrome/(\d+)`)
	firefoxRe = regexp.MustCompile(`(?i)Firefox/(\d+)`)
	safariRe  = regexp.MustCompile(`(?i)Version/(\d+)`)
	edgeRe    = regexp.MustCompile(`(?i)Edg/(\d+)`)
	androidRe = regexp.MustCompile(`(?i)Android (\d+(?:\.\d+)*)`)
)

// ClientIP extracts the originating address: first X-Forwarded-For hop,
// then the transport peer, then X-Real-IP.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if client := strings.TrimSpace(strings.Split(forwarded, ",")[0]); client != "" {
			return client
		}
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}
	return r.Header.Get("X-Real-IP")
}

// DeviceInfo condenses the User-Agent into a short human-readable
// descriptor like "Chrome 120, macOS" for the session-management UI.
// Unrecognized agents fall back to a truncated raw string.
func DeviceInfo(r *http.Request) string {
	ua := strings.TrimSpace(r.Header.Get("User-Agent"))
	if ua == "" {
		return ""
	}

	var parts []string

	var browser string
	switch {
	case strings.Contains(ua, "Edg"):
		if m := edgeRe.FindStringSubmatch(ua); m != nil {
			browser = "Edge " + m[1]
		}
	case strings.Contains(ua, "Chrome"):
		if m := chromeRe.FindStringSubmatch(ua); m != nil {
			browser = "Chrome " + m[1]
		}
	case strings.Contains(ua, "Firefox"):
		if m := firefoxRe.FindStringSubmatch(ua); m != nil {
			browser = "Firefox " + m[1]
		}
	case strings.Contains(ua, "Safari"):
		browser = "Safari"
		if m := safariRe.FindStringSubmatch(ua); m != nil {
			browser = "Safari " + m[1]
		}
	}
	if browser != "" {
		parts = append(parts, browser)
	}

	var osName string
	switch {
	case strings.Contains(ua, "Android"):
		osName = "Android"
		if m := androidRe.FindStringSubmatch(ua); m != nil {
			osName = "Android " + m[1]
		}
	case strings.Contains(ua, "iPhone"):
		osName = "iPhone"
	case strings.Contains(ua, "iPad"):
		osName = "iPad"
	case strings.Contains(ua, "Windows"):
		osName = "Windows"
	case strings.Contains(ua, "Mac OS"), strings.Contains(ua, "Macintosh"):
		osName = "macOS"
	case strings.Contains(ua, "Linux"):
		osName = "Linux"
	}
	if osName != "" {
		parts = append(parts, osName)
	}

	if strings.Contains(ua, "Mobile") {
		parts = append(parts, "Mobile")
	}

	if len(parts) == 0 {
		if len(ua) > 80 {
			return ua[:80] + "..."
		}
		return ua
	}
	return strings.Join(parts, ", ")
}

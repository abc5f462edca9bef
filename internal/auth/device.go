package auth

import (
	"net"
	"net/http"
	"strings"
)

// DeviceInfo is captured at login and bound to the session row.
type DeviceInfo struct {
	UserAgent string
	IP        string
	Browser   string
	OS        string
}

// DeviceFromRequest extracts client address and a coarse browser/OS reading
// from the user agent. Display-grade only, never used for decisions.
func DeviceFromRequest(r *http.Request) DeviceInfo {
	ua := r.UserAgent()
	return DeviceInfo{
		UserAgent: ua,
		IP:        ClientIP(r),
		Browser:   browserFromUA(ua),
		OS:        osFromUA(ua),
	}
}

// ClientIP prefers the first X-Forwarded-For hop, then RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func browserFromUA(ua string) string {
	switch {
	case strings.Contains(ua, "Edg/"):
		return "Edge"
	case strings.Contains(ua, "OPR/"):
		return "Opera"
	case strings.Contains(ua, "Chrome/"):
		return "Chrome"
	case strings.Contains(ua, "Firefox/"):
		return "Firefox"
	case strings.Contains(ua, "Safari/"):
		return "Safari"
	case ua == "":
		return ""
	default:
		return "Other"
	}
}

func osFromUA(ua string) string {
	switch {
	case strings.Contains(ua, "Windows"):
		return "Windows"
	case strings.Contains(ua, "Android"):
		return "Android"
	case strings.Contains(ua, "iPhone"), strings.Contains(ua, "iPad"):
		return "iOS"
	case strings.Contains(ua, "Mac OS X"):
		return "macOS"
	case strings.Contains(ua, "Linux"):
		return "Linux"
	case ua == "":
		return ""
	default:
		return "Other"
	}
}

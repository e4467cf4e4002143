package probe

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"

	"github.com/ethpandaops/rosprobe/internal/device"
)

// RequestValidationError reports a probe request that cannot be served as
// given. It never reaches the session pool.
type RequestValidationError struct {
	Field  string
	Reason string
}

func (e *RequestValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ParseTarget parses host or host:port. Bare IPv6 literals are accepted
// without brackets; a port then requires the bracketed form.
func ParseTarget(raw string, defaultPort int) (device.Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return device.Target{}, &RequestValidationError{Field: "target", Reason: "missing"}
	}

	host, port := raw, defaultPort

	if strings.HasPrefix(raw, "[") || strings.Count(raw, ":") == 1 {
		h, p, err := net.SplitHostPort(raw)
		if err != nil {
			return device.Target{}, &RequestValidationError{Field: "target", Reason: err.Error()}
		}

		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return device.Target{}, &RequestValidationError{
				Field:  "target",
				Reason: fmt.Sprintf("port %q out of range", p),
			}
		}

		host, port = h, n
	} else if strings.Contains(raw, ":") {
		if _, err := netip.ParseAddr(raw); err != nil {
			return device.Target{}, &RequestValidationError{Field: "target", Reason: err.Error()}
		}
	}

	if host == "" || strings.ContainsAny(host, " /?#@") {
		return device.Target{}, &RequestValidationError{
			Field:  "target",
			Reason: fmt.Sprintf("bad host %q", host),
		}
	}

	return device.Target{Host: host, Port: port}, nil
}

// credentials returns the Basic credentials carried by r, falling back to
// the configured login when the header is absent.
func credentials(r *http.Request, cfg device.Config) (device.Credentials, error) {
	if r.Header.Get("Authorization") == "" {
		if creds, ok := cfg.DefaultCredentials(); ok {
			return creds, nil
		}

		return device.Credentials{}, &RequestValidationError{
			Field:  "authorization",
			Reason: "basic authorization required",
		}
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		return device.Credentials{}, &RequestValidationError{
			Field:  "authorization",
			Reason: "only well-formed basic authorization is supported",
		}
	}

	return device.Credentials{Username: user, Password: pass}, nil
}

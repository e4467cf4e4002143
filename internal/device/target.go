package device

import (
	"net"
	"strconv"
)

// DefaultPort is the RouterOS API plaintext port.
const DefaultPort = 8728

// Target identifies one polled device. It is the session pool key.
type Target struct {
	Host string
	Port int
}

// Address returns the dialable host:port form.
func (t Target) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

func (t Target) String() string {
	return t.Address()
}

// Credentials are the API login used to authenticate a session.
type Credentials struct {
	Username string
	Password string
}

// Record is one reply sentence from the device: attribute name to raw value.
type Record map[string]string

// Lookup returns the value for key and whether the device sent it.
func (r Record) Lookup(key string) (string, bool) {
	v, ok := r[key]

	return v, ok
}

// Get returns the value for key or def when absent.
func (r Record) Get(key, def string) string {
	if v, ok := r[key]; ok {
		return v
	}

	return def
}

package courier

import (
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultTimeout is used when connect or request timeout is not specified.
const DefaultTimeout = 2 * time.Second

// Endpoint is the address of broker: host and port, or path of unix socket.
type Endpoint struct {
	Scheme string
	Host   string
	Port   int
	Path   string
}

// ParseEndpoint parses URL, host:port pair, bare port number or filesystem path.
func ParseEndpoint(s string) (Endpoint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Endpoint{}, errors.New("endpoint is empty")
	}

	if port, err := strconv.Atoi(s); err == nil {
		return PortEndpoint(port)
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return Endpoint{}, errors.WithStack(err)
		}
		if u.Scheme == "unix" {
			return Endpoint{Scheme: u.Scheme, Path: u.Path}, nil
		}

		e := Endpoint{
			Scheme: u.Scheme,
			Host:   u.Hostname(),
			Path:   u.Path,
		}
		if p := u.Port(); p != "" {
			if e.Port, err = parsePort(p); err != nil {
				return Endpoint{}, err
			}
		}
		return e, nil
	}

	if host, p, err := net.SplitHostPort(s); err == nil {
		port, err := parsePort(p)
		if err != nil {
			return Endpoint{}, err
		}
		return Endpoint{Host: host, Port: port}, nil
	}

	return Endpoint{Path: s}, nil
}

// PortEndpoint returns endpoint listening on or connecting to the port of local host.
func PortEndpoint(port int) (Endpoint, error) {
	if port < 0 || port > 65535 {
		return Endpoint{}, errors.Errorf("invalid port %d", port)
	}
	return Endpoint{Port: port}, nil
}

func parsePort(p string) (int, error) {
	port, err := strconv.Atoi(p)
	if err != nil || port < 0 || port > 65535 {
		return 0, errors.Errorf("invalid port %q", p)
	}
	return port, nil
}

// IsZero returns true if endpoint is not set.
func (e Endpoint) IsZero() bool {
	return e == Endpoint{}
}

// IsUnix returns true if endpoint points to unix socket.
func (e Endpoint) IsUnix() bool {
	return e.Scheme == "unix" || (e.Scheme == "" && e.Host == "" && e.Port == 0 && e.Path != "")
}

// Address returns the address passed to dialer or listener.
func (e Endpoint) Address() string {
	if e.IsUnix() {
		return e.Path
	}
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Network returns network of the endpoint.
func (e Endpoint) Network() string {
	if e.IsUnix() {
		return "unix"
	}
	return "tcp"
}

// WebSocketURL returns URL used to dial WebSocket endpoint.
func (e Endpoint) WebSocketURL() string {
	scheme := e.Scheme
	if scheme != "wss" {
		scheme = "ws"
	}
	host := e.Host
	if e.IsUnix() || host == "" {
		host = "localhost"
	}
	path := e.Path
	if e.IsUnix() || path == "" {
		path = "/"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(e.Port)),
		Path:   path,
	}
	return u.String()
}

func (e Endpoint) String() string {
	switch {
	case e.IsZero():
		return ""
	case e.IsUnix():
		return "unix://" + e.Path
	case e.Scheme != "":
		return e.Scheme + "://" + e.Address() + e.Path
	default:
		return e.Address()
	}
}

// UnmarshalYAML parses endpoint from YAML scalar.
func (e *Endpoint) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return errors.WithStack(err)
	}
	endpoint, err := ParseEndpoint(s)
	if err != nil {
		return err
	}
	*e = endpoint
	return nil
}

// effectiveTimeout converts configured timeout into the effective one. Zero means DefaultTimeout,
// negative means no timeout.
func effectiveTimeout(timeout time.Duration) time.Duration {
	if timeout == 0 {
		return DefaultTimeout
	}
	return timeout
}

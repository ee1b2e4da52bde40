package remote

import (
	"fmt"
	"net"
	"strconv"
)

// AuthType selects how a connection authenticates.
type AuthType string

const (
	AuthPassword AuthType = "password"
	AuthKey      AuthType = "key"
)

// Profile holds everything needed to reach and authenticate against a
// remote host. It is supplied by profile storage and treated as immutable
// once a session is created from it.
type Profile struct {
	Host       string   `json:"host"`
	Port       int      `json:"port,omitempty"`
	Username   string   `json:"username"`
	AuthType   AuthType `json:"auth_type"`
	Password   string   `json:"password,omitempty"`
	PrivateKey []byte   `json:"private_key,omitempty"`
	Passphrase string   `json:"passphrase,omitempty"`
}

// Addr returns the host:port dial address, falling back to defaultPort
// when the profile does not name one.
func (p Profile) Addr(defaultPort int) string {
	port := p.Port
	if port <= 0 {
		port = defaultPort
	}
	return net.JoinHostPort(p.Host, strconv.Itoa(port))
}

// Validate checks that the profile is complete enough to attempt a
// connection.
func (p Profile) Validate() error {
	if p.Host == "" {
		return fmt.Errorf("profile missing host")
	}
	if p.Username == "" {
		return fmt.Errorf("profile missing username")
	}
	switch p.AuthType {
	case AuthPassword, AuthKey:
	default:
		return fmt.Errorf("unsupported auth type %q", p.AuthType)
	}
	if p.AuthType == AuthKey && len(p.PrivateKey) == 0 {
		return fmt.Errorf("key auth requires a private key")
	}
	return nil
}

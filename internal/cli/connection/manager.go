package connection

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/yndnr/tokvault-go/internal/core/domain"
	"github.com/yndnr/tokvault-go/internal/infra/tlsroots"
)

// ErrNotConnected is returned by Client before Connect succeeds.
var ErrNotConnected = errors.New("not connected to a server")

// Manager manages the connection to a tokvault server.
type Manager struct {
	current *Connection
	client  *HTTPClient
}

// Connection represents a connection to a tokvault server.
type Connection struct {
	Name     string
	Server   string
	APIKeyID string
	APIKey   string
	// Keypair is a keypair file path or base58 private key.
	Keypair string
	// Caller is an unsigned base58 identity, used when Keypair is empty.
	Caller string
	// CACert is a PEM file of extra roots trusted for https servers.
	CACert string
}

// NewManager creates a new connection manager.
func NewManager() *Manager {
	return &Manager{}
}

// Connect validates conn and makes it current.
func (m *Manager) Connect(conn *Connection, opts ...Option) error {
	if conn == nil || conn.Server == "" {
		return errors.New("server address required")
	}
	server := conn.Server
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	u, err := url.Parse(server)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid server address %q", conn.Server)
	}
	if (conn.APIKeyID == "") != (conn.APIKey == "") {
		return errors.New("api key id and secret must be given together")
	}

	if conn.CACert != "" {
		tlsCfg, err := tlsroots.ClientConfig(conn.CACert)
		if err != nil {
			return err
		}
		opts = append(opts, WithTLSConfig(tlsCfg))
	}

	switch {
	case conn.Keypair != "":
		key, err := LoadKeypair(conn.Keypair)
		if err != nil {
			return err
		}
		opts = append(opts, WithKeypair(key))
	case conn.Caller != "":
		pk, err := domain.ParseIdentity("caller", conn.Caller)
		if err != nil {
			return err
		}
		opts = append(opts, WithCaller(pk))
	}

	m.client = NewHTTPClient(conn.Server, conn.APIKeyID, conn.APIKey, opts...)
	m.current = conn
	return nil
}

// Client returns the client for the current connection.
func (m *Manager) Client() (*HTTPClient, error) {
	if m.client == nil {
		return nil, ErrNotConnected
	}
	return m.client, nil
}

// Caller returns the identity of the current connection, if any.
func (m *Manager) Caller() (solana.PublicKey, bool) {
	if m.client == nil {
		return solana.PublicKey{}, false
	}
	pk := m.client.Caller()
	return pk, !pk.IsZero()
}

// Disconnect closes the current connection.
func (m *Manager) Disconnect() {
	m.current = nil
	m.client = nil
}

// Current returns the current connection.
func (m *Manager) Current() *Connection {
	return m.current
}

// IsConnected returns true if connected to a server.
func (m *Manager) IsConnected() bool {
	return m.current != nil
}

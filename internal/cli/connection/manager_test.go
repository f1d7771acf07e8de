package connection

import (
	"context"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
)

func TestNewManager(t *testing.T) {
	m := NewManager()
	if m.Current() != nil || m.IsConnected() {
		t.Error("new manager should have no current connection")
	}
	if _, err := m.Client(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Client() error = %v, want ErrNotConnected", err)
	}
}

func TestManager_Connect(t *testing.T) {
	m := NewManager()
	conn := &Connection{Name: "local", Server: "localhost:7080", APIKeyID: "tvak_id", APIKey: "tvak_secret"}
	if err := m.Connect(conn); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if m.Current() != conn || !m.IsConnected() {
		t.Error("Current() should return the connected connection")
	}
	client, err := m.Client()
	if err != nil {
		t.Fatal(err)
	}
	if client.BaseURL() != "http://localhost:7080" {
		t.Errorf("BaseURL() = %q", client.BaseURL())
	}
	if _, ok := m.Caller(); ok {
		t.Error("connection without identity should have no caller")
	}

	m.Disconnect()
	if m.IsConnected() {
		t.Error("IsConnected() should be false after Disconnect")
	}
}

func TestManager_ConnectInvalid(t *testing.T) {
	tests := []struct {
		name string
		conn *Connection
	}{
		{"nil", nil},
		{"no server", &Connection{}},
		{"half key", &Connection{Server: "localhost:1", APIKeyID: "id"}},
		{"bad caller", &Connection{Server: "localhost:1", Caller: "not-base58!"}},
		{"bad keypair", &Connection{Server: "localhost:1", Keypair: "/nonexistent/key.json"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager()
			if err := m.Connect(tt.conn); err == nil {
				t.Error("Connect() should fail")
			}
			if m.IsConnected() {
				t.Error("failed Connect() should not set a connection")
			}
		})
	}
}

func TestManager_Identity(t *testing.T) {
	wallet := solana.NewWallet()
	path := filepath.Join(t.TempDir(), "id.json")
	if err := SaveKeypair(path, wallet.PrivateKey); err != nil {
		t.Fatalf("SaveKeypair() error = %v", err)
	}

	m := NewManager()
	if err := m.Connect(&Connection{Server: "localhost:1", Keypair: path}); err != nil {
		t.Fatal(err)
	}
	pk, ok := m.Caller()
	if !ok || !pk.Equals(wallet.PublicKey()) {
		t.Errorf("Caller() = %s, %v", pk, ok)
	}

	other := solana.NewWallet().PublicKey()
	if err := m.Connect(&Connection{Server: "localhost:1", Caller: other.String()}); err != nil {
		t.Fatal(err)
	}
	if pk, _ := m.Caller(); !pk.Equals(other) {
		t.Errorf("Caller() = %s, want %s", pk, other)
	}
}

func TestManager_ConnectCACert(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"status":"healthy"}}`))
	}))
	defer srv.Close()

	caFile := filepath.Join(t.TempDir(), "ca.pem")
	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	if err := os.WriteFile(caFile, data, 0o600); err != nil {
		t.Fatal(err)
	}

	m := NewManager()
	if err := m.Connect(&Connection{Server: srv.URL, CACert: caFile}); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	client, _ := m.Client()
	resp, err := client.Get(context.Background(), "/health")
	if err != nil {
		t.Fatalf("Get() over TLS error = %v", err)
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := ParseResponse(resp, &out); err != nil || out.Status != "healthy" {
		t.Errorf("ParseResponse() = %+v, %v", out, err)
	}

	// Without the CA the self-signed server is rejected.
	plain := NewManager()
	if err := plain.Connect(&Connection{Server: srv.URL}); err != nil {
		t.Fatal(err)
	}
	client, _ = plain.Client()
	if _, err := client.Get(context.Background(), "/health"); err == nil {
		t.Error("Get() should fail without the server CA")
	}

	if err := NewManager().Connect(&Connection{Server: srv.URL, CACert: filepath.Join(t.TempDir(), "none.pem")}); err == nil {
		t.Error("Connect() should fail for a missing CA file")
	}
}

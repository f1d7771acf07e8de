package connection

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
)

// LoadKeypair reads a keypair from a solana-keygen JSON file, or parses
// src as a base58 private key when no such file exists.
func LoadKeypair(src string) (solana.PrivateKey, error) {
	if src == "" {
		return nil, errors.New("empty keypair source")
	}
	if _, err := os.Stat(src); err == nil {
		key, err := solana.PrivateKeyFromSolanaKeygenFile(src)
		if err != nil {
			return nil, fmt.Errorf("read keypair file %s: %w", src, err)
		}
		return key, nil
	}
	key, err := solana.PrivateKeyFromBase58(src)
	if err != nil {
		return nil, fmt.Errorf("keypair is neither a readable file nor a base58 key")
	}
	if len(key) != 64 {
		return nil, fmt.Errorf("keypair has %d bytes, want 64", len(key))
	}
	return key, nil
}

// SaveKeypair writes key in solana-keygen format with owner-only
// permissions. An existing file is never overwritten.
func SaveKeypair(path string, key solana.PrivateKey) error {
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

package crypto

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

var (
	ErrEmptyKeystorePath       = errors.New("crypto: empty keystore path")
	ErrKeystoreAddressMismatch = errors.New("crypto: keystore address does not match key")
)

// Scrypt cost used for new keystore files. Tests lower it.
var (
	keystoreScryptN = keystore.StandardScryptN
	keystoreScryptP = keystore.StandardScryptP
)

// FulfillerKey is a decrypted randomness fulfiller key together with the
// address the coordinator checks fulfilments against.
type FulfillerKey struct {
	Key     *PrivateKey
	Address Address
}

// Array returns the raw 20-byte fulfiller address.
func (f *FulfillerKey) Array() [20]byte {
	return f.Address.Array()
}

// SaveToKeystore encrypts key into an Ethereum v3 keystore file at path. The
// file is written next to its destination and renamed into place, so an
// interrupted write never leaves a truncated keystore behind.
func SaveToKeystore(path string, key *PrivateKey, passphrase string) error {
	if key == nil {
		return errors.New("crypto: nil private key")
	}
	if strings.TrimSpace(path) == "" {
		return ErrEmptyKeystorePath
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return err
	}
	encrypted, err := keystore.EncryptKey(&keystore.Key{
		Id:         id,
		Address:    common.Address(key.PubKey().Address().Array()),
		PrivateKey: key.PrivateKey,
	}, passphrase, keystoreScryptN, keystoreScryptP)
	if err != nil {
		return fmt.Errorf("crypto: encrypt keystore: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".keystore-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(encrypted); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadFromKeystore decrypts an Ethereum v3 keystore file. The address
// recorded in the file, when present, must match the decrypted key.
func LoadFromKeystore(path, passphrase string) (*PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrEmptyKeystorePath
	}
	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decrypted, err := keystore.DecryptKey(keyJSON, passphrase)
	if err != nil {
		return nil, fmt.Errorf("crypto: decrypt %s: %w", path, err)
	}
	var header struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(keyJSON, &header); err != nil {
		return nil, err
	}
	if header.Address != "" && common.HexToAddress(header.Address) != decrypted.Address {
		return nil, ErrKeystoreAddressMismatch
	}
	return &PrivateKey{PrivateKey: decrypted.PrivateKey}, nil
}

// LoadFulfillerKey decrypts the fulfiller keystore at path.
func LoadFulfillerKey(path, passphrase string) (*FulfillerKey, error) {
	key, err := LoadFromKeystore(path, passphrase)
	if err != nil {
		return nil, err
	}
	return &FulfillerKey{Key: key, Address: key.PubKey().Address()}, nil
}

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"lockdrop/cmd/internal/passphrase"
	"lockdrop/config"
	"lockdrop/crypto"
	"lockdrop/gateway/middleware"
	"lockdrop/native/randomness"
)

const (
	keygenCommand  = "keygen"
	addressCommand = "address"
	tokenCommand   = "token"
	signCommand    = "sign-fulfill"

	defaultPassEnv  = "LOCKDROP_KEY_PASS"
	defaultConfig   = "./claimsd.toml"
	defaultKeystore = "fulfiller.keystore"
	keystoreLabel   = "fulfiller keystore"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case keygenCommand:
		err = runKeygen(os.Args[2:])
	case addressCommand:
		err = runAddress(os.Args[2:])
	case tokenCommand:
		err = runToken(os.Args[2:])
	case signCommand:
		err = runSignFulfill(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runKeygen(args []string) error {
	fs := flag.NewFlagSet(keygenCommand, flag.ExitOnError)
	keystorePath := fs.String("keystore", defaultKeystore, "Output path for the generated keystore file")
	passEnv := fs.String("pass-env", defaultPassEnv, "Environment variable containing the keystore passphrase")
	force := fs.Bool("force", false, "Overwrite an existing keystore file")
	_ = fs.Parse(args)

	if !*force {
		if _, err := os.Stat(*keystorePath); err == nil {
			return fmt.Errorf("keystore file %s already exists (use --force to overwrite)", *keystorePath)
		} else if !os.IsNotExist(err) {
			return err
		}
	}
	pass, err := passphrase.NewSource(*passEnv, passphrase.WithConfirmation(), passphrase.WithLabel(keystoreLabel)).Get()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(*keystorePath, key, pass); err != nil {
		return fmt.Errorf("failed to write keystore: %w", err)
	}
	printAddress(key.PubKey().Address())
	fmt.Printf("Keystore: %s\n", *keystorePath)
	return nil
}

func runAddress(args []string) error {
	fs := flag.NewFlagSet(addressCommand, flag.ExitOnError)
	keystorePath := fs.String("keystore", defaultKeystore, "Path to the keystore file")
	passEnv := fs.String("pass-env", defaultPassEnv, "Environment variable containing the keystore passphrase")
	_ = fs.Parse(args)

	fulfiller, err := loadFulfiller(*keystorePath, *passEnv)
	if err != nil {
		return err
	}
	printAddress(fulfiller.Address)
	return nil
}

func runToken(args []string) error {
	fs := flag.NewFlagSet(tokenCommand, flag.ExitOnError)
	configPath := fs.String("config", defaultConfig, "Path to the claimsd config file")
	subject := fs.String("subject", "", "Account address the token authenticates")
	scopes := fs.String("scopes", middleware.ScopeUser, "Comma separated scopes (user, admin)")
	ttl := fs.Duration("ttl", time.Hour, "Token lifetime")
	_ = fs.Parse(args)

	token, err := issueToken(*configPath, *subject, *scopes, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// issueToken signs a bearer token with the daemon's configured auth secret.
func issueToken(configPath, subject, scopes string, ttl time.Duration) (string, error) {
	var cfg config.Config
	if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
		return "", fmt.Errorf("failed to read config: %w", err)
	}
	addr, err := crypto.ParseAddress(subject)
	if err != nil {
		return "", fmt.Errorf("subject: %w", err)
	}
	var list []string
	for _, scope := range strings.Split(scopes, ",") {
		if scope = strings.TrimSpace(scope); scope != "" {
			list = append(list, scope)
		}
	}
	if len(list) == 0 {
		return "", errors.New("at least one scope required")
	}
	return middleware.IssueToken(cfg.Auth.HMACSecret, cfg.Auth.Issuer, cfg.Auth.Audience, common.Address(addr).Hex(), list, ttl)
}

func runSignFulfill(args []string) error {
	fs := flag.NewFlagSet(signCommand, flag.ExitOnError)
	keystorePath := fs.String("keystore", defaultKeystore, "Path to the fulfiller keystore file")
	passEnv := fs.String("pass-env", defaultPassEnv, "Environment variable containing the keystore passphrase")
	requestID := fs.String("id", "", "0x-prefixed request id")
	value := fs.String("value", "", "0x-prefixed 32-byte random value")
	_ = fs.Parse(args)

	fulfiller, err := loadFulfiller(*keystorePath, *passEnv)
	if err != nil {
		return err
	}
	sig, err := signFulfillment(fulfiller.Key, *requestID, *value)
	if err != nil {
		return err
	}
	fmt.Println(sig)
	return nil
}

// signFulfillment returns the hex signature the daemon expects for a
// fulfilment of requestID with value.
func signFulfillment(key *crypto.PrivateKey, requestID, value string) (string, error) {
	id, err := decodeHash(requestID)
	if err != nil {
		return "", fmt.Errorf("id: %w", err)
	}
	v, err := decodeHash(value)
	if err != nil {
		return "", fmt.Errorf("value: %w", err)
	}
	sig, err := key.Sign(randomness.FulfillDigest(id, v))
	if err != nil {
		return "", err
	}
	return hexutil.Encode(sig), nil
}

func decodeHash(raw string) ([32]byte, error) {
	var out [32]byte
	decoded, err := hexutil.Decode(strings.TrimSpace(raw))
	if err != nil {
		return out, err
	}
	if len(decoded) != len(out) {
		return out, fmt.Errorf("expected %d bytes, got %d", len(out), len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}

func loadFulfiller(path, passEnv string) (*crypto.FulfillerKey, error) {
	pass, err := passphrase.NewSource(passEnv, passphrase.WithLabel(keystoreLabel)).Get()
	if err != nil {
		return nil, err
	}
	return crypto.LoadFulfillerKey(path, pass)
}

func printAddress(addr crypto.Address) {
	fmt.Printf("Address: %s\n", addr.String())
	fmt.Printf("Hex:     %s\n", common.BytesToAddress(addr.Bytes()).Hex())
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: claimsctl <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  %s       Generate a key and store it in a keystore file\n", keygenCommand)
	fmt.Fprintf(os.Stderr, "  %s      Print the address held by a keystore file\n", addressCommand)
	fmt.Fprintf(os.Stderr, "  %s        Issue a bearer token for the claimsd API\n", tokenCommand)
	fmt.Fprintf(os.Stderr, "  %s Sign a randomness fulfilment\n", signCommand)
}

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"lockdrop/crypto"
	"lockdrop/native/randomness"
)

func TestSignFulfillmentRecoversSigner(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var id, value [32]byte
	id[0], value[31] = 1, 9
	sigHex, err := signFulfillment(key, hexutil.Encode(id[:]), hexutil.Encode(value[:]))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	signer, err := crypto.RecoverAddress(randomness.FulfillDigest(id, value), sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if signer != key.PubKey().Address().Array() {
		t.Fatalf("recovered %x, want %x", signer, key.PubKey().Address().Bytes())
	}
	if _, err := signFulfillment(key, "0x01", hexutil.Encode(value[:])); err == nil {
		t.Fatalf("expected short id to be rejected")
	}
}

func TestIssueTokenReadsConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claimsd.toml")
	body := "[Auth]\nHMACSecret = \"secret\"\nIssuer = \"lockdrop\"\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	token, err := issueToken(path, "0x00000000000000000000000000000000000000aa", "admin, user", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token == "" {
		t.Fatalf("expected token")
	}
	if _, err := issueToken(path, "nope", "admin", time.Minute); err == nil {
		t.Fatalf("expected invalid subject error")
	}
	if _, err := issueToken(path, "0x00000000000000000000000000000000000000aa", " , ", time.Minute); err == nil {
		t.Fatalf("expected scope error")
	}
}

func TestLoadFulfillerReadsPassphraseFromEnvironment(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "fulfiller.keystore")
	if err := crypto.SaveToKeystore(path, key, "secret"); err != nil {
		t.Fatalf("save keystore: %v", err)
	}
	t.Setenv("CLAIMSCTL_TEST_PASS", "secret")
	fulfiller, err := loadFulfiller(path, "CLAIMSCTL_TEST_PASS")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if fulfiller.Array() != key.PubKey().Address().Array() {
		t.Fatalf("loaded %s, want %s", fulfiller.Address, key.PubKey().Address())
	}
	t.Setenv("CLAIMSCTL_TEST_PASS", "wrong")
	if _, err := loadFulfiller(path, "CLAIMSCTL_TEST_PASS"); err == nil {
		t.Fatalf("expected wrong passphrase to fail")
	}
}

package bundle_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"cgraph/internal/crypto"
	"cgraph/internal/domain"
	"cgraph/internal/services/bundle"
)

func TestGenerateKeyBundle_Composition(t *testing.T) {
	kb, err := bundle.GenerateKeyBundle("dev-1", 25)
	if err != nil {
		t.Fatalf("GenerateKeyBundle: %v", err)
	}
	if kb.DeviceID != "dev-1" {
		t.Fatalf("device id %q", kb.DeviceID)
	}
	if kb.Identity.ID == "" || kb.SignedPreKey.ID == "" {
		t.Fatal("missing key ids")
	}
	if len(kb.OneTimePreKeys) != 25 {
		t.Fatalf("got %d one-time prekeys, want 25", len(kb.OneTimePreKeys))
	}

	seen := make(map[domain.KeyID]bool)
	for _, p := range kb.OneTimePreKeys {
		if p.ID == "" {
			t.Fatal("one-time prekey with empty id")
		}
		if seen[p.ID] {
			t.Fatalf("duplicate one-time prekey id %q", p.ID)
		}
		seen[p.ID] = true
	}
}

func TestGenerateKeyBundle_FreshMaterialPerCall(t *testing.T) {
	a, err := bundle.GenerateKeyBundle("dev-1", 1)
	if err != nil {
		t.Fatalf("GenerateKeyBundle: %v", err)
	}
	b, err := bundle.GenerateKeyBundle("dev-1", 1)
	if err != nil {
		t.Fatalf("GenerateKeyBundle: %v", err)
	}
	if a.Identity.Pub == b.Identity.Pub || a.SignedPreKey.Pub == b.SignedPreKey.Pub {
		t.Fatal("two bundle generations shared key material")
	}
}

func TestGenerateSignedPreKey_SignatureVerifies(t *testing.T) {
	identity, err := bundle.GenerateIdentityKeyPair()
	if err != nil {
		t.Fatalf("GenerateIdentityKeyPair: %v", err)
	}
	spk, err := bundle.GenerateSignedPreKey(identity)
	if err != nil {
		t.Fatalf("GenerateSignedPreKey: %v", err)
	}
	if !crypto.VerifyEd25519(identity.SigningPub, spk.Pub.Slice(), spk.Signature) {
		t.Fatal("signed prekey signature does not verify")
	}
}

func TestFormatForRegistration_NoPrivateBytes(t *testing.T) {
	kb, err := bundle.GenerateKeyBundle("dev-1", 10)
	if err != nil {
		t.Fatalf("GenerateKeyBundle: %v", err)
	}
	reg := bundle.FormatForRegistration("alice", kb)

	wire, err := json.Marshal(reg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	privates := [][]byte{
		kb.Identity.Priv.Slice(),
		kb.Identity.SigningPriv.Slice(),
		kb.SignedPreKey.Priv.Slice(),
	}
	for _, p := range kb.OneTimePreKeys {
		privates = append(privates, p.Priv.Slice())
	}
	for i, priv := range privates {
		encoded, err := json.Marshal(priv)
		if err != nil {
			t.Fatalf("marshal private %d: %v", i, err)
		}
		if bytes.Contains(wire, encoded) {
			t.Fatalf("registration payload contains private key %d", i)
		}
	}
}

func TestFormatForRegistration_CarriesAllPublics(t *testing.T) {
	kb, err := bundle.GenerateKeyBundle("dev-1", 3)
	if err != nil {
		t.Fatalf("GenerateKeyBundle: %v", err)
	}
	reg := bundle.FormatForRegistration("alice", kb)

	if reg.UserID != "alice" || reg.DeviceID != "dev-1" {
		t.Fatalf("addressing mismatch: %+v", reg)
	}
	if !bytes.Equal(reg.IdentityKey, kb.Identity.Pub.Slice()) {
		t.Fatal("identity public mismatch")
	}
	if reg.IdentityKeyID != kb.Identity.ID || reg.SignedPreKey.KeyID != kb.SignedPreKey.ID {
		t.Fatal("key id mismatch")
	}
	if !bytes.Equal(reg.SignedPreKey.Signature, kb.SignedPreKey.Signature) {
		t.Fatal("signature mismatch")
	}
	if len(reg.OneTimePreKeys) != 3 {
		t.Fatalf("got %d one-time publics, want 3", len(reg.OneTimePreKeys))
	}
}

func TestGenerateOneTimePreKeys_ZeroCount(t *testing.T) {
	pairs, err := bundle.GenerateOneTimePreKeys(0)
	if err != nil {
		t.Fatalf("GenerateOneTimePreKeys(0): %v", err)
	}
	if len(pairs) != 0 {
		t.Fatalf("got %d pairs, want 0", len(pairs))
	}
}

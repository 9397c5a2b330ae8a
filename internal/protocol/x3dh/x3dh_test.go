package x3dh_test

import (
	"errors"
	"testing"

	"cgraph/internal/domain"
	"cgraph/internal/protocol/x3dh"
	"cgraph/internal/services/bundle"
)

// serverBundle projects kb into the form the directory would serve,
// optionally attaching the first one-time prekey.
func serverBundle(t *testing.T, user domain.UserID, kb domain.KeyBundle, withOPK bool) domain.ServerPreKeyBundle {
	t.Helper()
	reg := bundle.FormatForRegistration(user, kb)
	out := domain.ServerPreKeyBundle{
		UserID:        reg.UserID,
		DeviceID:      reg.DeviceID,
		IdentityKey:   reg.IdentityKey,
		IdentityKeyID: reg.IdentityKeyID,
		SigningKey:    reg.SigningKey,
		SignedPreKey:  reg.SignedPreKey,
	}
	if withOPK {
		if len(reg.OneTimePreKeys) == 0 {
			t.Fatal("bundle has no one-time prekeys")
		}
		out.OneTimePreKey = &reg.OneTimePreKeys[0]
	}
	return out
}

func generate(t *testing.T, opks int) domain.KeyBundle {
	t.Helper()
	kb, err := bundle.GenerateKeyBundle("dev", opks)
	if err != nil {
		t.Fatalf("GenerateKeyBundle: %v", err)
	}
	return kb
}

func TestInitiatorAndResponder_AgreeWithOneTimePreKey(t *testing.T) {
	alice := generate(t, 0)
	bob := generate(t, 3)
	bobBundle := serverBundle(t, "bob", bob, true)

	secretA, ephPub, opkID, err := x3dh.InitiatorSecret(alice.Identity, bobBundle)
	if err != nil {
		t.Fatalf("InitiatorSecret: %v", err)
	}
	if opkID != bob.OneTimePreKeys[0].ID {
		t.Fatalf("consumed opk %q, want %q", opkID, bob.OneTimePreKeys[0].ID)
	}

	opkPriv := bob.OneTimePreKeys[0].Priv
	secretB, err := x3dh.ResponderSecret(
		bob.Identity.Priv, bob.SignedPreKey.Priv, &opkPriv,
		alice.Identity.Pub, ephPub,
	)
	if err != nil {
		t.Fatalf("ResponderSecret: %v", err)
	}
	if secretA != secretB {
		t.Fatal("initiator and responder derived different secrets")
	}
}

func TestInitiatorAndResponder_AgreeWithoutOneTimePreKey(t *testing.T) {
	alice := generate(t, 0)
	bob := generate(t, 0)
	bobBundle := serverBundle(t, "bob", bob, false)

	secretA, ephPub, opkID, err := x3dh.InitiatorSecret(alice.Identity, bobBundle)
	if err != nil {
		t.Fatalf("InitiatorSecret: %v", err)
	}
	if opkID != "" {
		t.Fatalf("want empty opk id, got %q", opkID)
	}

	secretB, err := x3dh.ResponderSecret(
		bob.Identity.Priv, bob.SignedPreKey.Priv, nil,
		alice.Identity.Pub, ephPub,
	)
	if err != nil {
		t.Fatalf("ResponderSecret: %v", err)
	}
	if secretA != secretB {
		t.Fatal("initiator and responder derived different secrets")
	}
}

func TestInitiator_FreshEphemeralPerExchange(t *testing.T) {
	alice := generate(t, 0)
	bob := generate(t, 0)
	bobBundle := serverBundle(t, "bob", bob, false)

	s1, eph1, _, err := x3dh.InitiatorSecret(alice.Identity, bobBundle)
	if err != nil {
		t.Fatalf("InitiatorSecret: %v", err)
	}
	s2, eph2, _, err := x3dh.InitiatorSecret(alice.Identity, bobBundle)
	if err != nil {
		t.Fatalf("InitiatorSecret: %v", err)
	}
	if eph1 == eph2 {
		t.Fatal("two exchanges reused an ephemeral key")
	}
	if s1 == s2 {
		t.Fatal("two exchanges derived the same secret")
	}
}

func TestInitiator_RejectsBadSignature(t *testing.T) {
	alice := generate(t, 0)
	bob := generate(t, 0)
	bobBundle := serverBundle(t, "bob", bob, false)
	bobBundle.SignedPreKey.Signature[0] ^= 0x01

	_, _, _, err := x3dh.InitiatorSecret(alice.Identity, bobBundle)
	var kae *domain.KeyAgreementError
	if !errors.As(err, &kae) {
		t.Fatalf("got %v, want KeyAgreementError", err)
	}
}

func TestInitiator_RejectsMalformedBundle(t *testing.T) {
	alice := generate(t, 0)
	bob := generate(t, 0)

	cases := map[string]func(*domain.ServerPreKeyBundle){
		"truncated identity key": func(b *domain.ServerPreKeyBundle) { b.IdentityKey = b.IdentityKey[:16] },
		"missing signing key":    func(b *domain.ServerPreKeyBundle) { b.SigningKey = nil },
		"empty signed prekey id": func(b *domain.ServerPreKeyBundle) { b.SignedPreKey.KeyID = "" },
		"short one-time prekey": func(b *domain.ServerPreKeyBundle) {
			b.OneTimePreKey = &domain.WireOneTimePreKey{KeyID: "x", PublicKey: []byte{1, 2, 3}}
		},
	}
	for name, mangle := range cases {
		b := serverBundle(t, "bob", bob, false)
		mangle(&b)
		_, _, _, err := x3dh.InitiatorSecret(alice.Identity, b)
		var kae *domain.KeyAgreementError
		if !errors.As(err, &kae) {
			t.Fatalf("%s: got %v, want KeyAgreementError", name, err)
		}
	}
}

func TestResponder_WrongOneTimeKeyDiverges(t *testing.T) {
	alice := generate(t, 0)
	bob := generate(t, 2)
	bobBundle := serverBundle(t, "bob", bob, true)

	secretA, ephPub, _, err := x3dh.InitiatorSecret(alice.Identity, bobBundle)
	if err != nil {
		t.Fatalf("InitiatorSecret: %v", err)
	}

	// Using a different one-time private key must not reproduce the secret.
	wrong := bob.OneTimePreKeys[1].Priv
	secretB, err := x3dh.ResponderSecret(
		bob.Identity.Priv, bob.SignedPreKey.Priv, &wrong,
		alice.Identity.Pub, ephPub,
	)
	if err != nil {
		t.Fatalf("ResponderSecret: %v", err)
	}
	if secretA == secretB {
		t.Fatal("secrets matched despite wrong one-time key")
	}
}

package store_test

import (
	"errors"
	"testing"

	"cgraph/internal/domain"
	"cgraph/internal/services/bundle"
	"cgraph/internal/store"
)

func testBundle(t *testing.T, opks int) domain.KeyBundle {
	t.Helper()
	kb, err := bundle.GenerateKeyBundle("dev-1", opks)
	if err != nil {
		t.Fatalf("GenerateKeyBundle: %v", err)
	}
	return kb
}

func TestKeyStore_SaveLoad(t *testing.T) {
	ks := store.NewKeyStore(store.NewMemStorage())
	kb := testBundle(t, 3)

	if err := ks.Save(kb); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := ks.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatal("bundle reported absent after save")
	}
	if got.DeviceID != kb.DeviceID {
		t.Fatalf("device id %q, want %q", got.DeviceID, kb.DeviceID)
	}
	if got.Identity.Pub != kb.Identity.Pub || got.SignedPreKey.Priv != kb.SignedPreKey.Priv {
		t.Fatal("key material mismatch after load")
	}
}

func TestKeyStore_LoadAbsent(t *testing.T) {
	ks := store.NewKeyStore(store.NewMemStorage())
	_, ok, err := ks.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Fatal("empty store reported a bundle")
	}
}

func TestKeyStore_RefusesOverwrite(t *testing.T) {
	ks := store.NewKeyStore(store.NewMemStorage())
	if err := ks.Save(testBundle(t, 0)); err != nil {
		t.Fatalf("first save: %v", err)
	}
	err := ks.Save(testBundle(t, 0))
	if !errors.Is(err, domain.ErrAlreadyInitialized) {
		t.Fatalf("second save: got %v, want ErrAlreadyInitialized", err)
	}
}

func TestKeyStore_ConsumeOneTimePreKeyOnce(t *testing.T) {
	ks := store.NewKeyStore(store.NewMemStorage())
	kb := testBundle(t, 2)
	if err := ks.Save(kb); err != nil {
		t.Fatalf("save: %v", err)
	}

	id := kb.OneTimePreKeys[0].ID
	priv, ok, err := ks.ConsumeOneTimePreKey(id)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if !ok {
		t.Fatalf("prekey %q not found", id)
	}
	if priv != kb.OneTimePreKeys[0].Priv {
		t.Fatal("consumed wrong private key")
	}

	if _, ok, err := ks.ConsumeOneTimePreKey(id); err != nil || ok {
		t.Fatalf("second consume: ok=%v err=%v, want ok=false", ok, err)
	}
}

func TestKeyStore_AddAndListOneTimePreKeys(t *testing.T) {
	ks := store.NewKeyStore(store.NewMemStorage())
	if err := ks.Save(testBundle(t, 1)); err != nil {
		t.Fatalf("save: %v", err)
	}

	extra, err := bundle.GenerateOneTimePreKeys(4)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := ks.AddOneTimePreKeys(extra); err != nil {
		t.Fatalf("add: %v", err)
	}
	publics, err := ks.ListOneTimePreKeyPublics()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(publics) != 5 {
		t.Fatalf("got %d prekeys, want 5", len(publics))
	}
}

func TestKeyStore_Clear(t *testing.T) {
	ks := store.NewKeyStore(store.NewMemStorage())
	if err := ks.Save(testBundle(t, 2)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := ks.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := ks.Load(); ok {
		t.Fatal("bundle still present after clear")
	}
	if publics, err := ks.ListOneTimePreKeyPublics(); err != nil || len(publics) != 0 {
		t.Fatalf("prekeys survived clear: n=%d err=%v", len(publics), err)
	}
	// Clearing again (or an empty store) stays silent.
	if err := ks.Clear(); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}

func TestFileStorage_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	ks := store.NewKeyStore(store.NewFileStorage(dir, "correct horse"))
	kb := testBundle(t, 1)
	if err := ks.Save(kb); err != nil {
		t.Fatalf("save: %v", err)
	}

	reopened := store.NewKeyStore(store.NewFileStorage(dir, "correct horse"))
	got, ok, err := reopened.Load()
	if err != nil || !ok {
		t.Fatalf("reload: ok=%v err=%v", ok, err)
	}
	if got.Identity.Pub != kb.Identity.Pub {
		t.Fatal("identity mismatch after reopen")
	}
}

func TestFileStorage_WrongPassphraseFails(t *testing.T) {
	dir := t.TempDir()

	ks := store.NewKeyStore(store.NewFileStorage(dir, "correct"))
	if err := ks.Save(testBundle(t, 0)); err != nil {
		t.Fatalf("save: %v", err)
	}

	bad := store.NewKeyStore(store.NewFileStorage(dir, "wrong"))
	if _, _, err := bad.Load(); err == nil {
		t.Fatal("expected error with wrong passphrase")
	}
}

package utils

import (
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidnextdoor65/coresky/customTypes"
)

func TestMain(m *testing.M) {
	SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func TestAccountStoreUpsertSameWalletKeepsOneEntry(t *testing.T) {
	store := NewAccountStore(filepath.Join(t.TempDir(), "account.json"))

	wallet := "0xAbC0000000000000000000000000000000000001"
	require.NoError(t, store.Upsert(customTypes.Account{Wallet: wallet, PrivateKey: "0x01", Ref: "w5yudk"}))
	require.NoError(t, store.Upsert(customTypes.Account{Wallet: strings.ToLower(wallet), Token: "tok", Signature: "0xsig"}))

	accounts, err := store.Read()
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	assert.Equal(t, customTypes.Account{
		Wallet:     strings.ToLower(wallet),
		PrivateKey: "0x01",
		Ref:        "w5yudk",
		Token:      "tok",
		Signature:  "0xsig",
	}, accounts[0])
}

func TestAccountStoreUpsertAppendsAndDeduplicatesBatch(t *testing.T) {
	store := NewAccountStore(filepath.Join(t.TempDir(), "account.json"))

	require.NoError(t, store.Upsert(
		customTypes.Account{Wallet: "0x1", Token: "a"},
		customTypes.Account{Wallet: "0x2"},
		customTypes.Account{Wallet: "0x1", Token: "b"},
		customTypes.Account{Wallet: ""},
	))

	accounts, err := store.Read()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "b", accounts[0].Token)
	assert.Equal(t, "0x2", accounts[1].Wallet)
}

func TestAccountStoreReadMissingOrBlank(t *testing.T) {
	dir := t.TempDir()

	store := NewAccountStore(filepath.Join(dir, "missing.json"))
	assert.False(t, store.Exists())
	accounts, err := store.Read()
	require.NoError(t, err)
	assert.Empty(t, accounts)

	blank := filepath.Join(dir, "blank.json")
	require.NoError(t, os.WriteFile(blank, []byte("  \n"), 0o600))
	accounts, err = NewAccountStore(blank).Read()
	require.NoError(t, err)
	assert.Empty(t, accounts)

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{"wallet":"0x1"}`), 0o600))
	_, err = NewAccountStore(broken).Read()
	assert.Error(t, err)
}

func newKeyHex(t *testing.T) (string, string) {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return "0x" + hex.EncodeToString(crypto.FromECDSA(key)), crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func TestGenerateAccountsFromTxt(t *testing.T) {
	dir := t.TempDir()
	keyA, addrA := newKeyHex(t)
	keyB, addrB := newKeyHex(t)

	pkFile := filepath.Join(dir, "private_key.txt")
	addrFile := filepath.Join(dir, "address.txt")

	require.NoError(t, os.WriteFile(pkFile, []byte(strings.Join([]string{keyA, "deadbeef", keyB, ""}, "\r\n")), 0o600))
	require.NoError(t, os.WriteFile(addrFile, []byte(strings.Join([]string{addrA, addrB, "0xnope"}, "\n")), 0o600))

	accounts, err := GenerateAccountsFromTxt(pkFile, addrFile, "w5yudk")
	require.NoError(t, err)
	require.Len(t, accounts, 1, "line 2 has a bad key and line 3 a bad address")
	assert.Equal(t, customTypes.Account{Wallet: addrA, PrivateKey: keyA, Ref: "w5yudk"}, accounts[0])
}

func TestGenerateAccountsDerivesAddressWithoutAddressFile(t *testing.T) {
	dir := t.TempDir()
	key, addr := newKeyHex(t)

	pkFile := filepath.Join(dir, "private_key.txt")
	require.NoError(t, os.WriteFile(pkFile, []byte(key+"\n"), 0o600))

	accounts, err := GenerateAccountsFromTxt(pkFile, filepath.Join(dir, "address.txt"), "ref")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, addr, accounts[0].Wallet)

	_, err = GenerateAccountsFromTxt(filepath.Join(dir, "none.txt"), filepath.Join(dir, "address.txt"), "ref")
	assert.Error(t, err)
}

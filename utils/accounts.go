package utils

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/kidnextdoor65/coresky/customTypes"
)

// AccountStore is account.json: a JSON array of accounts keyed by wallet
// address (case-insensitive).
type AccountStore struct {
	mu   sync.Mutex
	path string
}

func NewAccountStore(path string) *AccountStore {
	return &AccountStore{path: path}
}

func (s *AccountStore) Path() string {
	return s.path
}

func (s *AccountStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Read returns the stored accounts. A missing or blank file is an empty store.
func (s *AccountStore) Read() ([]customTypes.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *AccountStore) read() ([]customTypes.Account, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}

	var accounts []customTypes.Account
	if err = json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}

	return accounts, nil
}

func (s *AccountStore) write(accounts []customTypes.Account) error {
	data, err := json.MarshalIndent(accounts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal accounts: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err = os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	tmp := s.path + ".tmp"
	if err = os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}

	if err = os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}

	return nil
}

// Upsert merges updates into the store by wallet address. Existing records
// keep fields the update leaves empty; unknown wallets are appended.
func (s *AccountStore) Upsert(updates ...customTypes.Account) error {
	if len(updates) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.read()
	if err != nil {
		return err
	}

	for _, update := range updates {
		if strings.TrimSpace(update.Wallet) == "" {
			continue
		}

		idx := indexByWallet(existing, update.Wallet)
		if idx == -1 {
			existing = append(existing, update)
			continue
		}

		existing[idx] = mergeAccount(existing[idx], update)
	}

	return s.write(existing)
}

func indexByWallet(accounts []customTypes.Account, wallet string) int {
	for i, acc := range accounts {
		if strings.EqualFold(acc.Wallet, wallet) {
			return i
		}
	}
	return -1
}

func mergeAccount(base, update customTypes.Account) customTypes.Account {
	merged := base
	if update.Wallet != "" {
		merged.Wallet = update.Wallet
	}
	if update.PrivateKey != "" {
		merged.PrivateKey = update.PrivateKey
	}
	if update.Ref != "" {
		merged.Ref = update.Ref
	}
	if update.Token != "" {
		merged.Token = update.Token
	}
	if update.Signature != "" {
		merged.Signature = update.Signature
	}
	if update.DailyCheckinStatus != "" {
		merged.DailyCheckinStatus = update.DailyCheckinStatus
	}
	return merged
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}

	return lines, scanner.Err()
}

func isValidPrivateKey(key string) bool {
	return strings.HasPrefix(key, "0x") && len(key) == 66
}

func isValidAddress(address string) bool {
	return strings.HasPrefix(address, "0x") && len(address) == 42 && common.IsHexAddress(address)
}

// AddressFromPrivateKey derives the checksummed wallet address of a hex key.
func AddressFromPrivateKey(privateKeyHex string) (string, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return "", fmt.Errorf("failed to parse private key: %w", err)
	}

	return crypto.PubkeyToAddress(privateKey.PublicKey).Hex(), nil
}

// GenerateAccountsFromTxt pairs private_key.txt and address.txt line by line.
// When the address file is absent the address is derived from the key.
// Malformed pairs are skipped.
func GenerateAccountsFromTxt(privateKeyFile, addressFile, ref string) ([]customTypes.Account, error) {
	privateKeys, err := readLines(privateKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", privateKeyFile, err)
	}

	addresses, err := readLines(addressFile)
	deriveAddresses := false
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", addressFile, err)
		}
		deriveAddresses = true
	}

	count := len(privateKeys)
	if !deriveAddresses && len(addresses) < count {
		count = len(addresses)
	}

	var accounts []customTypes.Account
	for i := 0; i < count; i++ {
		key := privateKeys[i]
		if !isValidPrivateKey(key) {
			LogDebug(-1, "", "", fmt.Sprintf("Invalid private key on line %d of %s, skipping", i+1, privateKeyFile))
			continue
		}

		var address string
		if deriveAddresses {
			if address, err = AddressFromPrivateKey(key); err != nil {
				LogDebug(-1, "", "", fmt.Sprintf("Line %d of %s: %s", i+1, privateKeyFile, err))
				continue
			}
		} else {
			address = addresses[i]
		}

		if !isValidAddress(address) {
			LogDebug(-1, "", "", fmt.Sprintf("Invalid wallet address on line %d of %s, skipping", i+1, addressFile))
			continue
		}

		accounts = append(accounts, customTypes.Account{
			Wallet:     address,
			PrivateKey: key,
			Ref:        ref,
		})
	}

	if len(accounts) == 0 {
		return nil, fmt.Errorf("no valid private key/address pairs in %s", privateKeyFile)
	}

	return accounts, nil
}

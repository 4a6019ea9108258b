package core

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
)

// MessageSigner produces an EIP-191 personal_sign signature.
type MessageSigner interface {
	Address() string
	SignMessage(message string) (string, error)
}

type WalletSigner struct {
	privateKey *ecdsa.PrivateKey
	address    string
}

func NewWalletSigner(privateKeyHex string) (*WalletSigner, error) {
	if strings.TrimSpace(privateKeyHex) == "" {
		return nil, fmt.Errorf("private key is missing")
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &WalletSigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey).Hex(),
	}, nil
}

func (s *WalletSigner) Address() string {
	return s.address
}

func (s *WalletSigner) SignMessage(message string) (string, error) {
	data := accounts.TextHash([]byte(message))
	signature, err := crypto.Sign(data, s.privateKey)

	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}

	signature[64] += 27
	return fmt.Sprintf("0x%x", signature), nil
}

func loginMessage(wallet string) string {
	return "Welcome to CoreSky!\n\n" +
		"Click to sign in and accept the CoreSky Terms of Service.\n\n" +
		"This request will not trigger a blockchain transaction or cost any gas fees.\n\n" +
		"Your authentication status will reset after 24 hours.\n\n" +
		"Wallet address:\n\n" + wallet
}

package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/scrypt"
)

// fillRandomIV samples len(buf) fresh bytes from crypto/rand, used for the
// per-encryption IV (§4.1 "iv is 16 freshly-sampled bytes").
func fillRandomIV(buf []byte) error {
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("wallet: sample iv: %w", err)
	}
	return nil
}

// legacySalt is a literal fixed scrypt salt preserved for wire-format
// compatibility with existing records (§9 open question: do not silently
// change the KDF).
const legacySalt = "salt"

const (
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
)

// deriveKey runs scrypt against the fixed legacy salt.
func deriveKey(masterSecret string) ([]byte, error) {
	key, err := scrypt.Key([]byte(masterSecret), []byte(legacySalt), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("wallet: derive key: %w", err)
	}
	return key, nil
}

// EncryptPrivateKey produces the §6 wire format:
// hex(iv) + ":" + hex(aes_256_cbc(key, iv, base58(secretKey))).
func EncryptPrivateKey(secretKey ed25519.PrivateKey, masterSecret string, iv [16]byte) (string, error) {
	key, err := deriveKey(masterSecret)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("wallet: new cipher: %w", err)
	}

	plaintext := []byte(base58.Encode(secretKey))
	padded := pkcs7Pad(plaintext, aes.BlockSize)

	ciphertext := make([]byte, len(padded))
	mode := cipher.NewCBCEncrypter(block, iv[:])
	mode.CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv[:]) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptPrivateKey reverses EncryptPrivateKey and returns the recovered
// ed25519 secret key.
func DecryptPrivateKey(wireFormat, masterSecret string) (ed25519.PrivateKey, error) {
	parts := strings.SplitN(wireFormat, ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("wallet: malformed private key cipher (want iv:ciphertext)")
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("wallet: decode iv: %w", err)
	}
	if len(iv) != 16 {
		return nil, fmt.Errorf("wallet: iv must be 16 bytes, got %d", len(iv))
	}

	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("wallet: decode ciphertext: %w", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("wallet: ciphertext is not a multiple of the block size")
	}

	key, err := deriveKey(masterSecret)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("wallet: new cipher: %w", err)
	}

	padded := make([]byte, len(ciphertext))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(padded, ciphertext)

	plaintext, err := pkcs7Unpad(padded)
	if err != nil {
		return nil, err
	}

	secret, err := base58.Decode(string(plaintext))
	if err != nil {
		return nil, fmt.Errorf("wallet: decode base58 secret key: %w", err)
	}
	if len(secret) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("wallet: secret key is %d bytes, want %d", len(secret), ed25519.PrivateKeySize)
	}

	return ed25519.PrivateKey(secret), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := make([]byte, padLen)
	for i := range padding {
		padding[i] = byte(padLen)
	}
	return append(data, padding...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("wallet: cannot unpad empty data")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, fmt.Errorf("wallet: invalid pkcs7 padding")
	}
	return data[:len(data)-padLen], nil
}

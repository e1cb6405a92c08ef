// Package crypto seals connection profile material at rest. Keys are derived
// from an operator-supplied protection password and are never stored.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the size of the encryption key in bytes (32 bytes = 256 bits)
	KeySize = 32
	// NonceSize is the size of the nonce for GCM mode (12 bytes is recommended)
	NonceSize = 12
	// SaltSize is the size of the salt for key derivation (32 bytes)
	SaltSize = 32
	// Iterations is the number of iterations for PBKDF2
	Iterations = 100000
)

// Encryptor derives a key per sealed blob and applies AES-256-GCM.
type Encryptor struct {
	password []byte
}

// NewEncryptor creates a new encryptor with the given password
func NewEncryptor(password string) *Encryptor {
	return &Encryptor{
		password: []byte(password),
	}
}

// Seal encrypts plaintext and returns a self-contained base64 blob laid out
// as salt || nonce || ciphertext.
func (e *Encryptor) Seal(plaintext []byte) (string, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := pbkdf2.Key(e.password, salt, Iterations, KeySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	blob := make([]byte, 0, SaltSize+NonceSize+len(plaintext)+gcm.Overhead())
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = gcm.Seal(blob, nonce, plaintext, nil)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Open decrypts a blob produced by Seal.
func (e *Encryptor) Open(sealed string) ([]byte, error) {
	blob, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}

	if len(blob) <= SaltSize+NonceSize {
		return nil, fmt.Errorf("sealed blob too short: %d bytes", len(blob))
	}

	salt := blob[:SaltSize]
	nonce := blob[SaltSize : SaltSize+NonceSize]
	ciphertext := blob[SaltSize+NonceSize:]

	key := pbkdf2.Key(e.password, salt, Iterations, KeySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}

	return plaintext, nil
}

// SealString seals a string value.
func (e *Encryptor) SealString(plaintext string) (string, error) {
	return e.Seal([]byte(plaintext))
}

// OpenString opens a blob sealed from a string value.
func (e *Encryptor) OpenString(sealed string) (string, error) {
	plaintext, err := e.Open(sealed)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// GeneratePassword generates a random password for encryption
func GeneratePassword(length int) (string, error) {
	if length < 16 {
		return "", fmt.Errorf("password length must be at least 16 characters")
	}

	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return base64.URLEncoding.EncodeToString(bytes)[:length], nil
}

// ValidatePassword validates a password meets minimum requirements
func ValidatePassword(password string) error {
	if len(password) < 12 {
		return fmt.Errorf("password must be at least 12 characters long")
	}
	return nil
}

// HashPassword produces a storable hash of the protection password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword verifies a protection password against its stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// SecureZero securely zeros out sensitive byte slices
func SecureZero(data []byte) {
	for i := range data {
		data[i] = 0
	}
}

// Package clientconfig serves the frontend its database configuration in
// encrypted form.
//
// The panel frontend needs the realtime-database connection settings, but
// shipping them as plain JSON in the page source makes scraping trivial.
// Instead the server encrypts the config blob with a shared secret the
// frontend bundle holds, and serves {encrypted, iv}. This is obfuscation
// against casual scraping, not real secrecy — anyone with the bundle can
// decrypt — which is exactly the guarantee the panel always had.
package clientconfig

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
)

// Payload is the response body of GET /client-config.
type Payload struct {
	Encrypted string `json:"encrypted"`
	IV        string `json:"iv"`
}

// Encryptor produces AES-256-CBC payloads for a fixed config blob.
type Encryptor struct {
	key    []byte
	config []byte
}

// New creates an Encryptor. secret is stretched to a 32-byte key with
// SHA-256, so any non-empty string works; config must be valid JSON.
func New(secret, config string) (*Encryptor, error) {
	if secret == "" {
		return nil, fmt.Errorf("clientconfig: encryption secret is required")
	}
	if !json.Valid([]byte(config)) {
		return nil, fmt.Errorf("clientconfig: config is not valid JSON")
	}
	key := sha256.Sum256([]byte(secret))
	return &Encryptor{key: key[:], config: []byte(config)}, nil
}

// Encrypt returns the config encrypted under a fresh random IV. A new IV
// per request keeps the ciphertext from being a stable fingerprint.
func (e *Encryptor) Encrypt() (*Payload, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, fmt.Errorf("clientconfig: creating cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("clientconfig: generating iv: %w", err)
	}

	plaintext := pkcs7Pad(e.config, aes.BlockSize)
	ciphertext := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, plaintext)

	return &Payload{
		Encrypted: base64.StdEncoding.EncodeToString(ciphertext),
		IV:        base64.StdEncoding.EncodeToString(iv),
	}, nil
}

// Decrypt reverses Encrypt. Only used by tests and tooling; the frontend
// does the real decryption in the browser.
func (e *Encryptor) Decrypt(p *Payload) ([]byte, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, fmt.Errorf("clientconfig: creating cipher: %w", err)
	}

	iv, err := base64.StdEncoding.DecodeString(p.IV)
	if err != nil || len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("clientconfig: bad iv")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(p.Encrypted)
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("clientconfig: bad ciphertext")
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return pkcs7Unpad(plaintext, aes.BlockSize)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("clientconfig: bad padding")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("clientconfig: bad padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("clientconfig: bad padding")
		}
	}
	return data[:len(data)-n], nil
}

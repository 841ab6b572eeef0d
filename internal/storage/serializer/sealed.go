package serializer

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Sealing errors.
var (
	ErrNoSecret          = errors.New("serializer: sealed needs a key or a passphrase")
	ErrKeyTooShort       = errors.New("serializer: key too short (minimum 16 bytes)")
	ErrPassphraseTooWeak = errors.New("serializer: passphrase too weak (minimum 8 characters)")
	ErrNotSealed         = errors.New("serializer: not a sealed file")
	ErrDecryptionFailed  = errors.New("serializer: decryption failed, wrong secret or corrupted data")
)

// Algorithm names accepted by SealConfig.
const (
	AlgorithmAuto     = "auto"
	AlgorithmAESGCM   = "aes-gcm"
	AlgorithmChaCha20 = "chacha20-poly1305"
)

const (
	MinKeyLength        = 16
	MinPassphraseLength = 8

	saltLength = 16
	keyLength  = 32

	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4

	hkdfInfo = "snapkeep sealed v1"
)

// sealMagic opens every sealed file. It is followed by the algorithm id,
// the key derivation id and the salt.
var sealMagic = []byte("SKSEAL\x01")

const (
	algoAESGCM byte = iota + 1
	algoChaCha20
)

const (
	kdfHKDF byte = iota + 1
	kdfArgon2id
)

// SealConfig carries the secret for a sealed serializer. Passphrase wins
// over Key when both are set.
type SealConfig struct {
	Key        []byte
	Passphrase []byte

	// Algorithm is aes-gcm, chacha20-poly1305 or auto (the default), which
	// picks AES-GCM on platforms with hardware AES.
	Algorithm string
}

// Validate checks the secret and the algorithm.
func (c SealConfig) Validate() error {
	switch {
	case len(c.Passphrase) > 0:
		if len(c.Passphrase) < MinPassphraseLength {
			return ErrPassphraseTooWeak
		}
	case len(c.Key) > 0:
		if len(c.Key) < MinKeyLength {
			return ErrKeyTooShort
		}
	default:
		return ErrNoSecret
	}
	if _, err := algorithmID(c.Algorithm); err != nil {
		return err
	}
	return nil
}

type sealed struct {
	inner Serializer
	cfg   SealConfig
	algo  byte
}

// Sealed wraps inner with authenticated encryption. Every file gets a fresh
// random salt, so the derived key differs per file.
func Sealed(inner Serializer, cfg SealConfig) (Serializer, error) {
	if inner == nil {
		return nil, fmt.Errorf("serializer: sealed needs an inner serializer")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	algo, _ := algorithmID(cfg.Algorithm)
	return &sealed{inner: inner, cfg: cfg, algo: algo}, nil
}

func (s *sealed) Name() string { return "sealed+" + s.inner.Name() }

func (s *sealed) Extension(base string) string { return s.inner.Extension(base) + ".sealed" }

func (s *sealed) Encode(w io.Writer, v map[string]any) error {
	var plain bytes.Buffer
	if err := s.inner.Encode(&plain, v); err != nil {
		return err
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("serializer: generate salt: %w", err)
	}

	kdf := kdfHKDF
	if len(s.cfg.Passphrase) > 0 {
		kdf = kdfArgon2id
	}
	header := make([]byte, 0, len(sealMagic)+2+saltLength)
	header = append(header, sealMagic...)
	header = append(header, s.algo, kdf)
	header = append(header, salt...)

	aead, err := s.aead(s.algo, kdf, salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("serializer: generate nonce: %w", err)
	}
	sealedData := aead.Seal(nonce, nonce, plain.Bytes(), header)

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err = w.Write(sealedData)
	return err
}

func (s *sealed) Decode(r io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	headerLen := len(sealMagic) + 2 + saltLength
	if len(data) < headerLen || !bytes.Equal(data[:len(sealMagic)], sealMagic) {
		return nil, ErrNotSealed
	}
	header := data[:headerLen]
	algo := header[len(sealMagic)]
	kdf := header[len(sealMagic)+1]
	salt := header[len(sealMagic)+2:]

	aead, err := s.aead(algo, kdf, salt)
	if err != nil {
		return nil, err
	}
	body := data[headerLen:]
	if len(body) < aead.NonceSize() {
		return nil, ErrDecryptionFailed
	}
	plain, err := aead.Open(nil, body[:aead.NonceSize()], body[aead.NonceSize():], header)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return s.inner.Decode(bytes.NewReader(plain))
}

func (s *sealed) aead(algo, kdf byte, salt []byte) (cipher.AEAD, error) {
	key, err := s.deriveKey(kdf, salt)
	if err != nil {
		return nil, err
	}
	switch algo {
	case algoAESGCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case algoChaCha20:
		return chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("%w: unknown algorithm id %d", ErrNotSealed, algo)
	}
}

func (s *sealed) deriveKey(kdf byte, salt []byte) ([]byte, error) {
	switch kdf {
	case kdfArgon2id:
		if len(s.cfg.Passphrase) == 0 {
			return nil, fmt.Errorf("%w: file was sealed with a passphrase", ErrDecryptionFailed)
		}
		return argon2.IDKey(s.cfg.Passphrase, salt, argon2Time, argon2Memory, argon2Threads, keyLength), nil
	case kdfHKDF:
		if len(s.cfg.Key) == 0 {
			return nil, fmt.Errorf("%w: file was sealed with a raw key", ErrDecryptionFailed)
		}
		key := make([]byte, keyLength)
		if _, err := io.ReadFull(hkdf.New(sha256.New, s.cfg.Key, salt, []byte(hkdfInfo)), key); err != nil {
			return nil, fmt.Errorf("serializer: derive key: %w", err)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("%w: unknown key derivation id %d", ErrNotSealed, kdf)
	}
}

func algorithmID(name string) (byte, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", AlgorithmAuto:
		// Go uses hardware AES on these architectures.
		switch runtime.GOARCH {
		case "amd64", "arm64":
			return algoAESGCM, nil
		default:
			return algoChaCha20, nil
		}
	case AlgorithmAESGCM:
		return algoAESGCM, nil
	case AlgorithmChaCha20:
		return algoChaCha20, nil
	default:
		return 0, fmt.Errorf("serializer: unsupported algorithm %q", name)
	}
}

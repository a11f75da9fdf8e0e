package crypto

import (
	"crypto/cipher"

	"github.com/go-zoox/crypto/hmac"
	"github.com/pkg/errors"
)

// Config is the symmetric cipher configuration shared by every connection.
type Config struct {
	Algorithm string
	Secret    string
}

// Cipher is an immutable, validated cipher configuration. It is safe for
// concurrent use; every encrypter/decrypter it creates owns its own context.
type Cipher struct {
	name string
	alg  *algorithm
	key  []byte
	iv   []byte

	fingerprint string
}

// New validates cfg and derives the key material.
func New(cfg *Config) (*Cipher, error) {
	if cfg == nil || cfg.Algorithm == "" {
		return nil, errors.Wrap(ErrConfig, "algorithm is required")
	}
	if cfg.Secret == "" {
		return nil, errors.Wrap(ErrConfig, "secret is required")
	}

	alg, err := lookup(cfg.Algorithm)
	if err != nil {
		return nil, err
	}

	key, iv := evpBytesToKey(cfg.Secret, alg.keyLen, alg.ivLen)
	c := &Cipher{
		name: cfg.Algorithm,
		alg:  alg,
		key:  key,
		iv:   iv,
		// never log the secret itself
		fingerprint: hmac.Sha256(cfg.Algorithm, cfg.Secret, "hex")[:12],
	}

	// fail at startup rather than on the first connection
	if _, err := c.newStream(false); err != nil {
		return nil, err
	}

	return c, nil
}

// Algorithm returns the algorithm name.
func (c *Cipher) Algorithm() string {
	return c.name
}

// Fingerprint identifies the algorithm+secret pair without revealing the secret.
func (c *Cipher) Fingerprint() string {
	return c.fingerprint
}

// NewEncrypter returns a streaming encrypt stage with a fresh context.
func (c *Cipher) NewEncrypter() (*Stream, error) {
	s, err := c.newStream(false)
	if err != nil {
		return nil, err
	}

	return &Stream{stream: s}, nil
}

// NewDecrypter returns a streaming decrypt stage with a fresh context.
func (c *Cipher) NewDecrypter() (*Stream, error) {
	s, err := c.newStream(true)
	if err != nil {
		return nil, err
	}

	return &Stream{stream: s}, nil
}

// Encrypt encrypts b in one pass with a fresh context.
func (c *Cipher) Encrypt(b []byte) ([]byte, error) {
	s, err := c.NewEncrypter()
	if err != nil {
		return nil, err
	}

	return s.XOR(b), nil
}

// Decrypt decrypts b in one pass with a fresh context.
func (c *Cipher) Decrypt(b []byte) ([]byte, error) {
	s, err := c.NewDecrypter()
	if err != nil {
		return nil, err
	}

	return s.XOR(b), nil
}

func (c *Cipher) newStream(decrypt bool) (s cipher.Stream, err error) {
	if c == nil || c.alg == nil {
		return nil, errors.Wrap(ErrConfig, "cipher is not configured")
	}

	s, err = c.alg.newStream(c.key, c.iv, decrypt)
	if err != nil {
		return nil, errors.Wrapf(ErrCrypto, "failed to init %s: %v", c.name, err)
	}

	return s, nil
}

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"sort"

	"golang.org/x/crypto/chacha20"
)

// DefaultAlgorithm is used when the configuration leaves the algorithm empty.
const DefaultAlgorithm = "aes-256-cfb"

// Every entry must be a length-preserving stream mode: the header codec relies on
// ciphertext length == plaintext length to find the end of a request header.
type algorithm struct {
	keyLen    int
	ivLen     int
	newStream func(key, iv []byte, decrypt bool) (cipher.Stream, error)
}

var algorithms = map[string]*algorithm{
	"aes-128-cfb":   {16, aes.BlockSize, newAESCFB},
	"aes-192-cfb":   {24, aes.BlockSize, newAESCFB},
	"aes-256-cfb":   {32, aes.BlockSize, newAESCFB},
	"aes-128-ctr":   {16, aes.BlockSize, newAESCTR},
	"aes-192-ctr":   {24, aes.BlockSize, newAESCTR},
	"aes-256-ctr":   {32, aes.BlockSize, newAESCTR},
	"aes-128-ofb":   {16, aes.BlockSize, newAESOFB},
	"aes-192-ofb":   {24, aes.BlockSize, newAESOFB},
	"aes-256-ofb":   {32, aes.BlockSize, newAESOFB},
	"chacha20-ietf": {chacha20.KeySize, chacha20.NonceSize, newChaCha20},
}

// Algorithms returns the supported algorithm names, sorted.
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookup(name string) (*algorithm, error) {
	alg, ok := algorithms[name]
	if !ok {
		return nil, &UnsupportedAlgorithmError{Algorithm: name}
	}

	return alg, nil
}

func newAESCFB(key, iv []byte, decrypt bool) (cipher.Stream, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	if decrypt {
		return cipher.NewCFBDecrypter(block, iv), nil
	}
	return cipher.NewCFBEncrypter(block, iv), nil
}

func newAESCTR(key, iv []byte, _ bool) (cipher.Stream, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return cipher.NewCTR(block, iv), nil
}

func newAESOFB(key, iv []byte, _ bool) (cipher.Stream, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return cipher.NewOFB(block, iv), nil
}

func newChaCha20(key, iv []byte, _ bool) (cipher.Stream, error) {
	return chacha20.NewUnauthenticatedCipher(key, iv)
}

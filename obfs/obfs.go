package obfs

import (
	"github.com/go-zoox/potato/pipe"
	"github.com/pkg/errors"
)

const (
	None = "none"
	XOR  = "xor"
	HTTP = "http"
)

// Role decides which side of the HTTP disguise a peer plays.
type Role int

const (
	RoleClient Role = iota
	RoleRelay
)

var ErrMalformedDisguise = errors.New("malformed disguise")

// Obfuscator produces fresh per-connection stages that disguise traffic on
// the wire and strip the disguise again. A nil stage means pass-through.
type Obfuscator interface {
	Name() string
	ApplyDisguise() pipe.Transform
	RemoveDisguise() pipe.Transform
}

type Config struct {
	Name   string
	Secret string
	Role   Role

	// Host and Path are used by the http disguise on the client side.
	Host string
	Path string
}

func New(cfg *Config) (Obfuscator, error) {
	if cfg == nil {
		return &none{}, nil
	}

	switch cfg.Name {
	case "", None:
		return &none{}, nil
	case XOR:
		if cfg.Secret == "" {
			return nil, errors.New("xor obfuscation requires a secret")
		}
		return newXOR(cfg.Secret), nil
	case HTTP:
		return newHTTP(cfg), nil
	default:
		return nil, errors.Errorf("unsupported obfuscation: %s", cfg.Name)
	}
}

type none struct{}

func (none) Name() string { return None }

func (none) ApplyDisguise() pipe.Transform { return nil }

func (none) RemoveDisguise() pipe.Transform { return nil }

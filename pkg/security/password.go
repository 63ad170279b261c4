// Package security hashes operator passwords with Argon2id.
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/angelmondragon/pos-backend/pkg/config"
)

// ErrInvalidHash signals a stored hash that is not a PHC-encoded Argon2id string.
var ErrInvalidHash = errors.New("invalid argon2id hash")

var b64 = base64.RawStdEncoding

// ArgonParams are written into every encoded hash, so hashes made under older
// parameters keep verifying after the config changes.
type ArgonParams struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

// ParamsFromConfig clamps cfg into a usable parameter set.
func ParamsFromConfig(cfg config.PasswordConfig) ArgonParams {
	bound := func(v, lo, hi int) int { return max(lo, min(v, hi)) }
	return ArgonParams{
		Memory:      uint32(bound(cfg.ArgonMemoryKB, 8, 512*1024)),
		Time:        uint32(bound(cfg.ArgonTime, 1, 10)),
		Parallelism: uint8(bound(cfg.ArgonParallelism, 1, 255)),
		SaltLen:     uint32(bound(cfg.ArgonSaltLen, 8, 64)),
		KeyLen:      uint32(bound(cfg.ArgonKeyLen, 16, 64)),
	}
}

// Hasher hashes and verifies passwords under one parameter set.
type Hasher struct {
	params ArgonParams
	// decoy is verified against when no account exists so a miss costs
	// as much as a wrong password
	decoy string
}

func NewHasher(cfg config.PasswordConfig) (*Hasher, error) {
	h := &Hasher{params: ParamsFromConfig(cfg)}
	decoy, err := h.Hash("decoy-password")
	if err != nil {
		return nil, err
	}
	h.decoy = decoy
	return h, nil
}

// Hash returns a PHC-formatted Argon2id hash with a fresh salt.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	p := h.params
	key := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Parallelism, p.KeyLen)
	return strings.Join([]string{
		"",
		"argon2id",
		"v=" + strconv.Itoa(argon2.Version),
		fmt.Sprintf("m=%d,t=%d,p=%d", p.Memory, p.Time, p.Parallelism),
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	}, "$"), nil
}

// Verify compares password with encoded in constant time. stale is true when
// encoded was made under different parameters than h uses now.
func (h *Hasher) Verify(password, encoded string) (ok, stale bool, err error) {
	p, salt, want, err := parsePHC(encoded)
	if err != nil {
		return false, false, err
	}
	got := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Parallelism, p.KeyLen)
	return subtle.ConstantTimeCompare(want, got) == 1, p != h.params, nil
}

// Decoy burns one verification for an unknown account and always fails.
func (h *Hasher) Decoy(password string) {
	_, _, _ = h.Verify(password, h.decoy)
}

func parsePHC(encoded string) (ArgonParams, []byte, []byte, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return ArgonParams{}, nil, nil, ErrInvalidHash
	}
	if fields[2] != "v="+strconv.Itoa(argon2.Version) {
		return ArgonParams{}, nil, nil, ErrInvalidHash
	}

	var p ArgonParams
	for _, kv := range strings.Split(fields[3], ",") {
		name, raw, found := strings.Cut(kv, "=")
		n, err := strconv.ParseUint(raw, 10, 32)
		if !found || err != nil || n == 0 {
			return ArgonParams{}, nil, nil, ErrInvalidHash
		}
		switch name {
		case "m":
			p.Memory = uint32(n)
		case "t":
			p.Time = uint32(n)
		case "p":
			if n > 255 {
				return ArgonParams{}, nil, nil, ErrInvalidHash
			}
			p.Parallelism = uint8(n)
		default:
			return ArgonParams{}, nil, nil, ErrInvalidHash
		}
	}
	if p.Memory == 0 || p.Time == 0 || p.Parallelism == 0 {
		return ArgonParams{}, nil, nil, ErrInvalidHash
	}

	salt, err := b64.DecodeString(fields[4])
	if err != nil || len(salt) == 0 {
		return ArgonParams{}, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(fields[5])
	if err != nil || len(key) == 0 {
		return ArgonParams{}, nil, nil, ErrInvalidHash
	}
	p.SaltLen = uint32(len(salt))
	p.KeyLen = uint32(len(key))
	return p, salt, key, nil
}

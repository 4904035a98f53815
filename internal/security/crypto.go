// Package security provides the local Ed25519 identity and request signing.
// A caller's public key is its marketplace identity; every mutating API
// request carries a signature over the request by that key.
package security

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/distri-network/distri/internal/domain"
)

// Request signing headers.
const (
	HeaderPubkey    = "X-Distri-Pubkey"
	HeaderSignature = "X-Distri-Signature"
	HeaderTimestamp = "X-Distri-Timestamp"
)

// Keypair holds an Ed25519 identity.
type Keypair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// GenerateKeypair creates a new Ed25519 keypair.
func GenerateKeypair() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 keypair: %w", err)
	}
	return &Keypair{Public: pub, Private: priv}, nil
}

// LoadOrCreateKeypair loads the keypair in home/keys, or generates and
// stores one on first run. Keys are stored base58 encoded.
func LoadOrCreateKeypair(home string) (*Keypair, error) {
	keyDir := filepath.Join(home, "keys")
	pubPath := filepath.Join(keyDir, "id.pub")
	privPath := filepath.Join(keyDir, "id.key")

	pubText, pubErr := os.ReadFile(pubPath)
	privText, privErr := os.ReadFile(privPath)
	if pubErr == nil && privErr == nil {
		return decodeKeypair(string(pubText), string(privText))
	}

	kp, err := GenerateKeypair()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(keyDir, 0700); err != nil {
		return nil, fmt.Errorf("create key dir: %w", err)
	}
	if err := os.WriteFile(pubPath, []byte(base58.Encode(kp.Public)), 0644); err != nil {
		return nil, fmt.Errorf("write public key: %w", err)
	}
	if err := os.WriteFile(privPath, []byte(base58.Encode(kp.Private)), 0600); err != nil {
		return nil, fmt.Errorf("write private key: %w", err)
	}
	return kp, nil
}

func decodeKeypair(pubText, privText string) (*Keypair, error) {
	pub, err := base58.Decode(strings.TrimSpace(pubText))
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("decode public key: %w", domain.ErrInvalidPubkey)
	}
	priv, err := base58.Decode(strings.TrimSpace(privText))
	if err != nil || len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("decode private key: invalid length or encoding")
	}
	kp := &Keypair{Public: pub, Private: priv}
	if !kp.Private.Public().(ed25519.PublicKey).Equal(kp.Public) {
		return nil, fmt.Errorf("key files do not belong together")
	}
	return kp, nil
}

// Pubkey returns the identity of the keypair.
func (kp *Keypair) Pubkey() domain.Pubkey {
	var pk domain.Pubkey
	copy(pk[:], kp.Public)
	return pk
}

// Sign signs a message with the private key.
func (kp *Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(kp.Private, message)
}

// Verify checks a signature against an identity.
func Verify(message, signature []byte, signer domain.Pubkey) bool {
	return ed25519.Verify(ed25519.PublicKey(signer[:]), message, signature)
}

// ─── Request Signing ────────────────────────────────────────────────────────

// RequestMessage is the byte string a request signature covers.
func RequestMessage(method, path string, timestamp int64, body []byte) []byte {
	var b strings.Builder
	b.Grow(len(method) + len(path) + len(body) + 24)
	b.WriteString(strings.ToUpper(method))
	b.WriteByte('\n')
	b.WriteString(path)
	b.WriteByte('\n')
	b.WriteString(strconv.FormatInt(timestamp, 10))
	b.WriteByte('\n')
	b.Write(body)
	return []byte(b.String())
}

// SignRequest returns the header values for a signed request.
func (kp *Keypair) SignRequest(method, path string, timestamp int64, body []byte) map[string]string {
	sig := kp.Sign(RequestMessage(method, path, timestamp, body))
	return map[string]string{
		HeaderPubkey:    kp.Pubkey().String(),
		HeaderSignature: base58.Encode(sig),
		HeaderTimestamp: strconv.FormatInt(timestamp, 10),
	}
}

// VerifyRequest checks base58 header values against a request. It returns
// the signer on success.
func VerifyRequest(method, path string, body []byte, pubkey, signature, timestamp string) (domain.Pubkey, int64, error) {
	signer, err := domain.ParsePubkey(pubkey)
	if err != nil {
		return domain.Pubkey{}, 0, err
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return domain.Pubkey{}, 0, fmt.Errorf("bad timestamp %q", timestamp)
	}
	sig, err := base58.Decode(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return domain.Pubkey{}, 0, fmt.Errorf("malformed signature")
	}
	if !Verify(RequestMessage(method, path, ts, body), sig, signer) {
		return domain.Pubkey{}, 0, fmt.Errorf("signature does not match %s", signer)
	}
	return signer, ts, nil
}

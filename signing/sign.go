package signing

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	"github.com/spacemeshos/go-scale"
	"golang.org/x/crypto/blake2b"

	"github.com/subtensor-tools/subreg/ss58"
)

var (
	ErrSigningFailed   = errors.New("couldn't sign")
	ErrInvalidSeedLen  = errors.New("seed has invalid length")
	ErrUnknownScheme   = errors.New("unknown signature scheme")
	ErrKeyUnavailable  = errors.New("key is not available for signing")
	ErrEncryptedKey    = errors.New("keyfile is encrypted")
	ErrKeyfileMismatch = errors.New("keyfile public key does not match its secret seed")
)

// Scheme identifies a signature scheme. The values are the MultiSignature variant indices.
type Scheme byte

const (
	Ed25519 Scheme = 0
	Sr25519 Scheme = 1
)

func (s Scheme) String() string {
	switch s {
	case Ed25519:
		return "ed25519"
	case Sr25519:
		return "sr25519"
	default:
		return fmt.Sprintf("scheme(%d)", byte(s))
	}
}

// UnmarshalFlag implements flags.Unmarshaler.
func (s *Scheme) UnmarshalFlag(value string) error {
	switch value {
	case "ed25519":
		*s = Ed25519
	case "sr25519":
		*s = Sr25519
	default:
		return fmt.Errorf("%w: %q", ErrUnknownScheme, value)
	}
	return nil
}

//go:generate mockgen -package mocks -destination mocks/keypair.go . Keypair

// Keypair signs messages on behalf of an account.
type Keypair interface {
	AccountID() ss58.AccountID
	Scheme() Scheme
	Sign(msg []byte) ([]byte, error)
}

// FromSeed derives a keypair from a 32 byte secret seed.
func FromSeed(scheme Scheme, seed []byte) (Keypair, error) {
	if len(seed) != 32 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSeedLen, len(seed))
	}
	switch scheme {
	case Ed25519:
		return newEd25519(seed), nil
	case Sr25519:
		return newSr25519(seed)
	default:
		return nil, ErrUnknownScheme
	}
}

type ed25519Keypair struct {
	priv ed25519.PrivateKey
	id   ss58.AccountID
}

func newEd25519(seed []byte) *ed25519Keypair {
	priv := ed25519.NewKeyFromSeed(seed)
	kp := &ed25519Keypair{priv: priv}
	copy(kp.id[:], priv.Public().(ed25519.PublicKey))
	return kp
}

func (k *ed25519Keypair) AccountID() ss58.AccountID { return k.id }

func (k *ed25519Keypair) Scheme() Scheme { return Ed25519 }

func (k *ed25519Keypair) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(k.priv, msg), nil
}

// signingContext is the transcript label substrate uses for sr25519.
var signingContext = []byte("substrate")

type sr25519Keypair struct {
	secret *schnorrkel.SecretKey
	public *schnorrkel.PublicKey
	id     ss58.AccountID
}

func newSr25519(seed []byte) (*sr25519Keypair, error) {
	var raw [32]byte
	copy(raw[:], seed)
	mini, err := schnorrkel.NewMiniSecretKeyFromRaw(raw)
	if err != nil {
		return nil, fmt.Errorf("creating sr25519 mini secret: %w", err)
	}
	secret := mini.ExpandEd25519()
	public, err := secret.Public()
	if err != nil {
		return nil, fmt.Errorf("deriving sr25519 public key: %w", err)
	}
	kp := &sr25519Keypair{secret: secret, public: public}
	kp.id = ss58.AccountID(public.Encode())
	return kp, nil
}

func (k *sr25519Keypair) AccountID() ss58.AccountID { return k.id }

func (k *sr25519Keypair) Scheme() Scheme { return Sr25519 }

func (k *sr25519Keypair) Sign(msg []byte) ([]byte, error) {
	sig, err := k.secret.Sign(schnorrkel.NewSigningContext(signingContext, msg))
	if err != nil {
		return nil, fmt.Errorf("%w (%v)", ErrSigningFailed, err)
	}
	encoded := sig.Encode()
	return encoded[:], nil
}

func (k *sr25519Keypair) verify(msg, signature []byte) (bool, error) {
	return verifySr25519(k.public, msg, signature)
}

func verifySr25519(public *schnorrkel.PublicKey, msg, signature []byte) (bool, error) {
	if len(signature) != 64 {
		return false, nil
	}
	var raw [64]byte
	copy(raw[:], signature)
	sig := new(schnorrkel.Signature)
	if err := sig.Decode(raw); err != nil {
		return false, err
	}
	return public.Verify(sig, schnorrkel.NewSigningContext(signingContext, msg))
}

// Verify checks a signature made by Sign over payload.
func Verify(scheme Scheme, signer ss58.AccountID, payload, signature []byte) (bool, error) {
	msg := payload
	if len(msg) > maxUnhashedPayload {
		digest := blake2b.Sum256(msg)
		msg = digest[:]
	}
	switch scheme {
	case Ed25519:
		return ed25519.Verify(signer.Bytes(), msg, signature), nil
	case Sr25519:
		public := new(schnorrkel.PublicKey)
		if err := public.Decode([32]byte(signer)); err != nil {
			return false, fmt.Errorf("decoding sr25519 public key: %w", err)
		}
		return verifySr25519(public, msg, signature)
	default:
		return false, ErrUnknownScheme
	}
}

// maxUnhashedPayload is the payload size above which the blake2b-256 digest is signed instead.
const maxUnhashedPayload = 256

// Signed is the scale encoding of a payload together with its signature.
type Signed struct {
	Payload   []byte
	Signer    ss58.AccountID
	Scheme    Scheme
	Signature []byte
}

type encodable[P any] interface {
	scale.Encodable
	*P
}

// Sign scale-encodes data and signs it with kp.
// Payloads longer than 256 bytes are hashed with blake2b-256 before signing.
// *T must implement scale.Encodable which is constrained by Encodable.
func Sign[T any, Encodable encodable[T]](data T, kp Keypair) (*Signed, error) {
	var dataBuf bytes.Buffer
	if _, err := Encodable(&data).EncodeScale(scale.NewEncoder(&dataBuf)); err != nil {
		return nil, fmt.Errorf("failed to serialize data (%w)", err)
	}
	msg := dataBuf.Bytes()
	if len(msg) > maxUnhashedPayload {
		digest := blake2b.Sum256(msg)
		msg = digest[:]
	}
	signature, err := kp.Sign(msg)
	if err != nil {
		return nil, fmt.Errorf("%w (%v)", ErrSigningFailed, err)
	}
	return &Signed{
		Payload:   dataBuf.Bytes(),
		Signer:    kp.AccountID(),
		Scheme:    kp.Scheme(),
		Signature: signature,
	}, nil
}

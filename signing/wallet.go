package signing

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/exp/slices"

	"github.com/subtensor-tools/subreg/ss58"
)

// KeyRole selects which wallet key signs an extrinsic.
type KeyRole int

const (
	Coldkey KeyRole = iota
	Hotkey
)

func (r KeyRole) String() string {
	if r == Hotkey {
		return "hotkey"
	}
	return "coldkey"
}

// Wallet groups the keys of one participant.
// Coldkey may be nil when only the public part is known (e.g. the keyfile is encrypted).
type Wallet struct {
	Name       string
	Hotkey     Keypair
	Coldkey    Keypair
	ColdkeyPub ss58.AccountID
}

// NewWallet creates a wallet whose coldkey and hotkey are both available for signing.
func NewWallet(name string, coldkey, hotkey Keypair) *Wallet {
	return &Wallet{
		Name:       name,
		Hotkey:     hotkey,
		Coldkey:    coldkey,
		ColdkeyPub: coldkey.AccountID(),
	}
}

func (w *Wallet) HotkeyID() ss58.AccountID {
	return w.Hotkey.AccountID()
}

func (w *Wallet) ColdkeyID() ss58.AccountID {
	if w.Coldkey != nil {
		return w.Coldkey.AccountID()
	}
	return w.ColdkeyPub
}

// Signer returns the keypair for role.
func (w *Wallet) Signer(role KeyRole) (Keypair, error) {
	var kp Keypair
	switch role {
	case Hotkey:
		kp = w.Hotkey
	case Coldkey:
		kp = w.Coldkey
	}
	if kp == nil {
		return nil, fmt.Errorf("%w: %s of wallet %q", ErrKeyUnavailable, role, w.Name)
	}
	return kp, nil
}

// encryptedPrefixes mark keyfiles that were encrypted by the wallet tooling.
var encryptedPrefixes = []string{"$NACL", "$BT", "$ANSIBLE_VAULT"}

// LoadWallet reads keyfiles laid out as
//
//	<dir>/<name>/coldkey
//	<dir>/<name>/coldkeypub.txt
//	<dir>/<name>/hotkeys/<hotkey>
//
// An encrypted coldkey is not an error: the wallet is returned without a coldkey signer.
func LoadWallet(dir, name, hotkey string, scheme Scheme) (*Wallet, error) {
	base := filepath.Join(dir, name)

	hk, err := loadKeyfile(filepath.Join(base, "hotkeys", hotkey), scheme)
	if err != nil {
		return nil, fmt.Errorf("loading hotkey %q: %w", hotkey, err)
	}
	w := &Wallet{Name: name, Hotkey: hk}

	ck, err := loadKeyfile(filepath.Join(base, "coldkey"), scheme)
	switch {
	case err == nil:
		w.Coldkey = ck
		w.ColdkeyPub = ck.AccountID()
		return w, nil
	case !isEncryptedOrMissing(err):
		return nil, fmt.Errorf("loading coldkey: %w", err)
	}

	pub, err := os.ReadFile(filepath.Join(base, "coldkeypub.txt"))
	if err != nil {
		return nil, fmt.Errorf("reading coldkeypub: %w", err)
	}
	id, err := parseAccount(pub)
	if err != nil {
		return nil, fmt.Errorf("parsing coldkeypub: %w", err)
	}
	w.ColdkeyPub = id
	return w, nil
}

func isEncryptedOrMissing(err error) bool {
	return os.IsNotExist(err) || errors.Is(err, ErrEncryptedKey)
}

func loadKeyfile(path string, scheme Scheme) (Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if slices.ContainsFunc(encryptedPrefixes, func(p string) bool { return bytes.HasPrefix(data, []byte(p)) }) {
		return nil, ErrEncryptedKey
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("keyfile %s is not valid json", path)
	}

	seedHex := gjson.GetBytes(data, "secretSeed").String()
	if seedHex == "" {
		return nil, fmt.Errorf("keyfile %s has no secretSeed", path)
	}
	seed, err := hex.DecodeString(strings.TrimPrefix(seedHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decoding secretSeed: %w", err)
	}
	kp, err := FromSeed(scheme, seed)
	if err != nil {
		return nil, err
	}

	if pub := gjson.GetBytes(data, "publicKey").String(); pub != "" {
		id, err := parseAccount([]byte(pub))
		if err != nil {
			return nil, fmt.Errorf("parsing publicKey: %w", err)
		}
		if id != kp.AccountID() {
			return nil, fmt.Errorf("%w (%s)", ErrKeyfileMismatch, path)
		}
	}
	return kp, nil
}

// parseAccount accepts either the json keyfile format, a 0x-prefixed hex key or an ss58 address.
func parseAccount(data []byte) (ss58.AccountID, error) {
	data = bytes.TrimSpace(data)
	if gjson.ValidBytes(data) && bytes.HasPrefix(data, []byte("{")) {
		if addr := gjson.GetBytes(data, "ss58Address").String(); addr != "" {
			return ss58.Parse(addr)
		}
		data = []byte(gjson.GetBytes(data, "publicKey").String())
	}
	s := string(data)
	if strings.HasPrefix(s, "0x") {
		raw, err := hex.DecodeString(s[2:])
		if err != nil {
			return ss58.AccountID{}, err
		}
		return ss58.NewAccountID(raw)
	}
	return ss58.Parse(s)
}

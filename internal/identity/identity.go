// Package identity manages the node's long-lived secret key: persisted
// hex on disk, owner-only permissions on POSIX, and the derived stable
// node id used everywhere else in ClawNet.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"runtime"

	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/clawnet/clawnet/internal/clawerr"
)

// secretLen is the length, in bytes, of the persisted secret.
const secretLen = 32

// Identity is a node's long-lived key pair and its derived public id.
type Identity struct {
	secret [secretLen]byte
	priv   libp2pcrypto.PrivKey
	nodeID peer.ID
}

// NodeID returns the stable string form of this identity's public id.
func (id *Identity) NodeID() string {
	return id.nodeID.String()
}

// PeerID returns the libp2p peer ID, for use when constructing the
// overlay host.
func (id *Identity) PeerID() peer.ID {
	return id.nodeID
}

// PrivKey returns the libp2p private key backing this identity, for use
// by the overlay endpoint when constructing the authenticated host.
func (id *Identity) PrivKey() libp2pcrypto.PrivKey {
	return id.priv
}

// Secret returns a copy of the 32-byte secret.
func (id *Identity) Secret() [secretLen]byte {
	return id.secret
}

// LoadOrGenerate loads the identity at path, or generates and persists a
// new one if the file does not exist. See spec.md §4.1.
func LoadOrGenerate(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return decodeIdentity(path, data)
	}
	if !os.IsNotExist(err) {
		return nil, clawerr.Wrap(clawerr.KindResourceUnavailable, fmt.Errorf("read identity file %s: %w", path, err))
	}

	var secret [secretLen]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return nil, clawerr.Wrap(clawerr.KindResourceUnavailable, fmt.Errorf("generate identity secret: %w", err))
	}

	encoded := []byte(hex.EncodeToString(secret[:]))
	if err := os.WriteFile(path, encoded, 0600); err != nil {
		return nil, clawerr.Wrap(clawerr.KindResourceUnavailable, fmt.Errorf("write identity file %s: %w", path, err))
	}

	return fromSecret(secret)
}

// decodeIdentity validates and parses previously persisted hex data.
func decodeIdentity(path string, data []byte) (*Identity, error) {
	if err := CheckKeyFilePermissions(path); err != nil {
		return nil, err
	}

	decoded, err := hex.DecodeString(string(trimNewline(data)))
	if err != nil {
		return nil, clawerr.Wrap(clawerr.KindInvalidInput, fmt.Errorf("%w: %s: invalid hex: %v", clawerr.ErrIdentityCorrupt, path, err))
	}
	if len(decoded) != secretLen {
		return nil, clawerr.Wrap(clawerr.KindInvalidInput, fmt.Errorf("%w: %s: want %d bytes, got %d", clawerr.ErrIdentityCorrupt, path, secretLen, len(decoded)))
	}

	var secret [secretLen]byte
	copy(secret[:], decoded)
	return fromSecret(secret)
}

// fromSecret derives the libp2p key pair and node id from a 32-byte seed.
func fromSecret(secret [secretLen]byte) (*Identity, error) {
	stdPriv := ed25519.NewKeyFromSeed(secret[:])

	priv, err := libp2pcrypto.UnmarshalEd25519PrivateKey(stdPriv)
	if err != nil {
		return nil, clawerr.Wrap(clawerr.KindInvalidInput, fmt.Errorf("%w: derive key: %v", clawerr.ErrIdentityCorrupt, err))
	}

	nodeID, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		return nil, clawerr.Wrap(clawerr.KindResourceUnavailable, fmt.Errorf("derive node id: %w", err))
	}

	return &Identity{secret: secret, priv: priv, nodeID: nodeID}, nil
}

// CheckKeyFilePermissions verifies that a key file is not readable by
// group or others on POSIX. Windows file permissions work differently,
// so the check is skipped there.
func CheckKeyFilePermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return clawerr.Wrap(clawerr.KindResourceUnavailable, fmt.Errorf("stat identity file %s: %w", path, err))
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		return clawerr.Wrap(clawerr.KindInvalidInput, fmt.Errorf("identity file %s has insecure permissions %04o (expected 0600)", path, mode))
	}
	return nil
}

func trimNewline(data []byte) []byte {
	for len(data) > 0 && (data[len(data)-1] == '\n' || data[len(data)-1] == '\r') {
		data = data[:len(data)-1]
	}
	return data
}

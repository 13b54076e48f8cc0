package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/folajindayo/zoracle-telegram-sub001/utils"
)

// Signing provider failure classes. The core never stores raw
// credentials; it only requests a signing capability per execution.
var (
	ErrSignerNotFound = errors.New("chain: signer not found")
	ErrSignerLocked   = errors.New("chain: signer locked")
)

// Signer is a signing capability bound to one wallet.
type Signer interface {
	Address() string
	SignTx(tx *types.Transaction) (*types.Transaction, error)
}

// SignerProvider resolves a user identifier to a signing capability.
// The credential store behind it is an external collaborator.
type SignerProvider interface {
	GetSigner(ctx context.Context, userID string) (Signer, error)
}

// localSigner signs with an in-memory private key using the chain's
// EIP-155 signer.
type localSigner struct {
	key     *ecdsa.PrivateKey
	address string
	chainID *big.Int
}

func (s *localSigner) Address() string {
	return s.address
}

func (s *localSigner) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.NewLondonSigner(s.chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("chain: sign tx: %w", err)
	}
	return signed, nil
}

// StaticSignerProvider maps user ids to hex private keys. It backs
// tests and single-operator deployments; multi-tenant custody lives
// outside this core.
type StaticSignerProvider struct {
	chainID *big.Int

	mu     sync.RWMutex
	keys   map[string]string
	locked map[string]bool
}

// NewStaticSignerProvider creates an empty provider for the given chain.
func NewStaticSignerProvider(chainID int64) *StaticSignerProvider {
	return &StaticSignerProvider{
		chainID: big.NewInt(chainID),
		keys:    make(map[string]string),
		locked:  make(map[string]bool),
	}
}

// AddKey registers a user's signing key.
func (p *StaticSignerProvider) AddKey(userID, hexKey string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys[strings.ToLower(userID)] = hexKey
}

// SetLocked marks a user's key as locked; GetSigner then fails with
// ErrSignerLocked until unlocked.
func (p *StaticSignerProvider) SetLocked(userID string, locked bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locked[strings.ToLower(userID)] = locked
}

// GetSigner resolves a signing capability for the user.
func (p *StaticSignerProvider) GetSigner(ctx context.Context, userID string) (Signer, error) {
	id := strings.ToLower(userID)

	p.mu.RLock()
	hexKey, ok := p.keys[id]
	locked := p.locked[id]
	p.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSignerNotFound, userID)
	}
	if locked {
		return nil, fmt.Errorf("%w: %s", ErrSignerLocked, userID)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("chain: parse key for %s: %w", userID, err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)
	return &localSigner{
		key:     key,
		address: utils.NormalizeAddress(addr.Hex()),
		chainID: p.chainID,
	}, nil
}

// AddressOfKey derives the wallet address for a hex private key.
func AddressOfKey(hexKey string) (string, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return "", fmt.Errorf("chain: parse key: %w", err)
	}
	return utils.NormalizeAddress(crypto.PubkeyToAddress(key.PublicKey).Hex()), nil
}

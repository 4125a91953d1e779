// Package identity manages the acting identity for a waveroom client.
//
// Anonymous identities are minted once per installation and persisted in
// an injected key-value store, so the same anonymous id survives process
// restarts on one machine. Cross-device continuity for anonymous
// identities is explicitly out of scope.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/alfredjeanlab/waveroom/internal/idgen"
	"github.com/alfredjeanlab/waveroom/internal/model"
)

// ErrKeyNotFound is returned by a Keystore when the key has no value.
var ErrKeyNotFound = errors.New("identity: key not found")

// Keystore is the persistence collaborator for identity state.
type Keystore interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Close() error
}

const identityKey = "identity"

// AvatarCount is the number of avatar variants clients can render.
const AvatarCount = 12

var adjectives = []string{
	"Midnight", "Velvet", "Static", "Neon", "Drifting", "Lo-fi",
	"Analog", "Golden", "Quiet", "Electric", "Wandering", "Hazy",
}

var nouns = []string{
	"Listener", "Owl", "Fox", "Signal", "Wave", "Echo",
	"Vinyl", "Antenna", "Dial", "Chorus", "Reverb", "Cassette",
}

// Provider resolves and updates the current identity.
type Provider struct {
	mu    sync.RWMutex
	ks    Keystore
	saved model.Author
}

// NewProvider loads the stored identity or mints a fresh anonymous one.
// A registered user id, when known (from the hosting application's auth),
// takes precedence over any stored anonymous identity.
func NewProvider(ks Keystore, registeredUserID string) (*Provider, error) {
	p := &Provider{ks: ks}

	if registeredUserID != "" {
		p.saved = model.Author{UserID: registeredUserID}
		return p, nil
	}

	raw, err := ks.Get(identityKey)
	switch {
	case err == nil:
		var anon model.Anonymous
		if jsonErr := json.Unmarshal(raw, &anon); jsonErr == nil && anon.ID != "" {
			p.saved = model.Author{Anonymous: &anon}
			return p, nil
		}
		// Corrupt record: fall through and mint a new identity.
	case !errors.Is(err, ErrKeyNotFound):
		return nil, fmt.Errorf("loading identity: %w", err)
	}

	anon, err := mintAnonymous()
	if err != nil {
		return nil, err
	}
	if err := p.persist(anon); err != nil {
		return nil, err
	}
	p.saved = model.Author{Anonymous: anon}
	return p, nil
}

// Current returns the acting identity.
func (p *Provider) Current() model.Author {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.saved
}

// UpdateDisplayName renames an anonymous identity and persists the change.
// Registered identities are named by the auth system, not here.
func (p *Provider) UpdateDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("identity: display name is empty")
	}
	if n := len([]rune(name)); n > 50 {
		return fmt.Errorf("identity: display name too long: %d chars (max 50)", n)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saved.Anonymous == nil {
		return errors.New("identity: cannot rename a registered identity")
	}

	updated := *p.saved.Anonymous
	updated.DisplayName = name
	if err := p.persist(&updated); err != nil {
		return err
	}
	p.saved = model.Author{Anonymous: &updated}
	return nil
}

func (p *Provider) persist(anon *model.Anonymous) error {
	data, err := json.Marshal(anon)
	if err != nil {
		return fmt.Errorf("marshaling identity: %w", err)
	}
	if err := p.ks.Set(identityKey, data); err != nil {
		return fmt.Errorf("storing identity: %w", err)
	}
	return nil
}

func mintAnonymous() (*model.Anonymous, error) {
	id, err := idgen.Generate(idgen.PrefixIdentity)
	if err != nil {
		return nil, err
	}
	return &model.Anonymous{
		ID:          id,
		DisplayName: adjectives[rand.Intn(len(adjectives))] + " " + nouns[rand.Intn(len(nouns))],
		Avatar:      rand.Intn(AvatarCount),
	}, nil
}

package identity

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// PebbleKeystore implements Keystore on a local pebble database.
type PebbleKeystore struct {
	db *pebble.DB
}

// Compile-time check that PebbleKeystore implements Keystore.
var _ Keystore = (*PebbleKeystore)(nil)

// OpenPebble opens (or creates) the keystore at the given path.
func OpenPebble(path string) (*PebbleKeystore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening keystore at %s: %w", path, err)
	}
	return &PebbleKeystore{db: db}, nil
}

func (k *PebbleKeystore) Get(key string) ([]byte, error) {
	val, closer, err := k.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("keystore get %s: %w", key, err)
	}
	defer closer.Close()

	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (k *PebbleKeystore) Set(key string, value []byte) error {
	if err := k.db.Set([]byte(key), value, pebble.Sync); err != nil {
		return fmt.Errorf("keystore set %s: %w", key, err)
	}
	return nil
}

func (k *PebbleKeystore) Close() error {
	return k.db.Close()
}

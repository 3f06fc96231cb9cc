// Package peerstore persists Telegram peers so channel access hashes are
// resolved once per channel rather than once per process.
package peerstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	boltstor "github.com/gotd/contrib/bbolt"
	"github.com/gotd/contrib/storage"
	"github.com/gotd/td/telegram/query/dialogs"
	"github.com/gotd/td/tg"
	"go.etcd.io/bbolt"
)

var peersBucket = []byte("peers")

// Store is a bbolt-backed storage.PeerStorage.
type Store struct {
	db    *bbolt.DB
	peers storage.PeerStorage
}

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create peer store dir: %w", err)
		}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open peer store %s: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(peersBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init peer store: %w", err)
	}
	return &Store{db: db, peers: boltstor.NewPeerStorage(db, peersBucket)}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Peers exposes the underlying storage for gotd helpers.
func (s *Store) Peers() storage.PeerStorage { return s.peers }

// AccessHash returns the stored hash for an MTProto channel id.
func (s *Store) AccessHash(ctx context.Context, channelID int64) (int64, bool, error) {
	p, err := s.peers.Find(ctx, storage.PeerKey{Kind: dialogs.Channel, ID: channelID})
	switch {
	case errors.Is(err, storage.ErrPeerNotFound):
		return 0, false, nil
	case err != nil:
		return 0, false, errors.Wrapf(err, "find channel %d", channelID)
	}
	return p.Key.AccessHash, true, nil
}

// SaveChannel records a channel returned by the API.
func (s *Store) SaveChannel(ctx context.Context, channel *tg.Channel) error {
	var p storage.Peer
	if !p.FromChat(channel) {
		return errors.Errorf("channel %d cannot be stored", channel.ID)
	}
	return s.peers.Add(ctx, p)
}

// CollectDialogs stores every peer the dialogs iterator yields.
func (s *Store) CollectDialogs(ctx context.Context, iter *dialogs.Iterator) error {
	if err := storage.CollectPeers(s.peers).Dialogs(ctx, iter); err != nil {
		return errors.Wrap(err, "collect dialogs")
	}
	return nil
}

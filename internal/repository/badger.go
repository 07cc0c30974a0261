package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"stakesim/internal/model"
)

const (
	accountPrefix = "account/"
	historyPrefix = "history/"
)

// BadgerStore persists accounts and history as JSON values in an embedded
// badger database, one key per username.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a badger database at path. An empty
// path opens an in-memory database.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (b *BadgerStore) get(key string, value any) error {
	var raw []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, value)
}

func (b *BadgerStore) Load(_ context.Context, username string) (*model.Account, error) {
	if username == "" {
		return nil, ErrEmptyUsername
	}
	var a model.Account
	if err := b.get(accountPrefix+username, &a); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return &a, nil
}

func (b *BadgerStore) Save(_ context.Context, account *model.Account) error {
	if account.Username == "" {
		return ErrEmptyUsername
	}
	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to encode account: %w", err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(accountPrefix+account.Username), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

func (b *BadgerStore) List(_ context.Context) ([]*model.Account, error) {
	accounts := make([]*model.Account, 0)
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(accountPrefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var a model.Account
			if err := json.Unmarshal(raw, &a); err != nil {
				return err
			}
			accounts = append(accounts, &a)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Username < accounts[j].Username })
	return accounts, nil
}

// Append prepends rec to the username's history inside one transaction.
func (b *BadgerStore) Append(_ context.Context, username string, rec model.BetRecord, limit int) error {
	if username == "" {
		return ErrEmptyUsername
	}
	key := []byte(historyPrefix + username)
	err := b.db.Update(func(txn *badger.Txn) error {
		var history []model.BetRecord
		item, err := txn.Get(key)
		switch {
		case err == nil:
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(raw, &history); err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		data, err := json.Marshal(prepend(history, rec, limit))
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("failed to append bet record: %w", err)
	}
	return nil
}

func (b *BadgerStore) Recent(_ context.Context, username string, limit int) ([]model.BetRecord, error) {
	var history []model.BetRecord
	if err := b.get(historyPrefix+username, &history); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return []model.BetRecord{}, nil
		}
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	return history, nil
}

// Close closes the underlying database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}

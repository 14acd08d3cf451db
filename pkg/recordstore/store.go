package recordstore

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"strings"
	"time"

	"github.com/ovenlight/pizzeria-backend/pkg/db"
	"github.com/ovenlight/pizzeria-backend/pkg/db/models"
	"github.com/ovenlight/pizzeria-backend/pkg/errors"
	"gorm.io/gorm"
)

// Collection names used by the domain services.
const (
	CollectionUsers  = "users"
	CollectionTokens = "tokens"
	CollectionCarts  = "carts"
	CollectionOrders = "orders"
)

// Entry pairs a record key with its raw JSON document.
type Entry struct {
	Key       string
	Document  json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists JSON documents keyed by (collection, key). All domain state
// lives here; services never touch GORM directly.
type Store struct {
	client *db.Client
}

func New(client *db.Client) *Store {
	return &Store{client: client}
}

// Create writes a new document. Fails with ALREADY_EXISTS when the key is
// already present in the collection.
func (s *Store) Create(ctx context.Context, collection, key string, doc any) error {
	payload, err := marshalDoc(collection, key, doc)
	if err != nil {
		return err
	}

	rec := models.Record{Collection: collection, Key: key, Document: payload}
	if err := s.conn(ctx).Create(&rec).Error; err != nil {
		if goerrors.Is(err, gorm.ErrDuplicatedKey) {
			return errors.New(errors.CodeAlreadyExists, "a record with this key already exists").
				WithDetails(map[string]any{"collection": collection, "key": key})
		}
		return errors.Wrap(errors.CodeStorage, err, "creating record")
	}
	return nil
}

// Read loads the document stored under key and unmarshals it into out.
func (s *Store) Read(ctx context.Context, collection, key string, out any) error {
	var rec models.Record
	err := s.conn(ctx).
		Where("collection = ? AND key = ?", collection, key).
		First(&rec).Error
	if err != nil {
		if goerrors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(collection, key)
		}
		return errors.Wrap(errors.CodeStorage, err, "reading record")
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rec.Document, out); err != nil {
		return errors.Wrap(errors.CodeStorage, err, "decoding record document")
	}
	return nil
}

// Update replaces the document stored under key. Fails with NOT_FOUND when
// the key does not exist.
func (s *Store) Update(ctx context.Context, collection, key string, doc any) error {
	payload, err := marshalDoc(collection, key, doc)
	if err != nil {
		return err
	}

	res := s.conn(ctx).
		Model(&models.Record{}).
		Where("collection = ? AND key = ?", collection, key).
		Update("document", payload)
	if res.Error != nil {
		return errors.Wrap(errors.CodeStorage, res.Error, "updating record")
	}
	if res.RowsAffected == 0 {
		return notFound(collection, key)
	}
	return nil
}

// Upsert replaces the document stored under key, creating it when missing.
// Cart writes use this: the first item added to a cart creates it.
func (s *Store) Upsert(ctx context.Context, collection, key string, doc any) error {
	payload, err := marshalDoc(collection, key, doc)
	if err != nil {
		return err
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		res := tx.
			Model(&models.Record{}).
			Where("collection = ? AND key = ?", collection, key).
			Update("document", payload)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}

		rec := models.Record{Collection: collection, Key: key, Document: payload}
		return tx.Create(&rec).Error
	})
	if err == nil {
		return nil
	}
	if goerrors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost the race with a concurrent create; the transaction rolled
		// back, so retry as a plain update against the now-present row.
		res := s.conn(ctx).
			Model(&models.Record{}).
			Where("collection = ? AND key = ?", collection, key).
			Update("document", payload)
		if res.Error != nil {
			return errors.Wrap(errors.CodeStorage, res.Error, "upserting record")
		}
		return nil
	}
	return errors.Wrap(errors.CodeStorage, err, "upserting record")
}

// Delete removes the document stored under key. Fails with NOT_FOUND when the
// key does not exist.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	res := s.conn(ctx).
		Where("collection = ? AND key = ?", collection, key).
		Delete(&models.Record{})
	if res.Error != nil {
		return errors.Wrap(errors.CodeStorage, res.Error, "deleting record")
	}
	if res.RowsAffected == 0 {
		return notFound(collection, key)
	}
	return nil
}

// Exists reports whether a record is present without decoding it.
func (s *Store) Exists(ctx context.Context, collection, key string) (bool, error) {
	var count int64
	err := s.conn(ctx).
		Model(&models.Record{}).
		Where("collection = ? AND key = ?", collection, key).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(errors.CodeStorage, err, "checking record")
	}
	return count > 0, nil
}

// ListKeys returns every key in a collection, ordered lexicographically.
func (s *Store) ListKeys(ctx context.Context, collection string) ([]string, error) {
	var keys []string
	err := s.conn(ctx).
		Model(&models.Record{}).
		Where("collection = ?", collection).
		Order("key ASC").
		Pluck("key", &keys).Error
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorage, err, "listing record keys")
	}
	return keys, nil
}

// ListMask returns the entries whose key contains the mask, ordered by key.
func (s *Store) ListMask(ctx context.Context, collection, mask string) ([]Entry, error) {
	var recs []models.Record
	err := s.conn(ctx).
		Where("collection = ? AND key LIKE ? ESCAPE '\\'", collection, "%"+escapeLike(mask)+"%").
		Order("key ASC").
		Find(&recs).Error
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorage, err, "listing records by mask")
	}
	return toEntries(recs), nil
}

// List returns every entry in a collection, ordered by key.
func (s *Store) List(ctx context.Context, collection string) ([]Entry, error) {
	var recs []models.Record
	err := s.conn(ctx).
		Where("collection = ?", collection).
		Order("key ASC").
		Find(&recs).Error
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorage, err, "listing records")
	}

	return toEntries(recs), nil
}

func toEntries(recs []models.Record) []Entry {
	entries := make([]Entry, 0, len(recs))
	for _, rec := range recs {
		entries = append(entries, Entry{
			Key:       rec.Key,
			Document:  json.RawMessage(rec.Document),
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
		})
	}
	return entries
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.client.DB().WithContext(ctx)
}

func marshalDoc(collection, key string, doc any) ([]byte, error) {
	if strings.TrimSpace(collection) == "" || strings.TrimSpace(key) == "" {
		return nil, errors.New(errors.CodeValidation, "collection and key are required")
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorage, err, "encoding record document")
	}
	return payload, nil
}

func notFound(collection, key string) error {
	return errors.New(errors.CodeNotFound, "record not found").
		WithDetails(map[string]any{"collection": collection, "key": key})
}

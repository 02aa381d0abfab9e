package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/leadloop/internal/model"
)

const (
	errorMessageDocumentNotFound = "storage: document not found"
	errorMessageLoadDocument     = "storage: load document"
	errorMessageSaveDocument     = "storage: save document"
	errorMessageDeleteDocument   = "storage: delete document"
	errorMessageLoadVersions     = "storage: load document versions"
)

var (
	// ErrDocumentNotFound indicates the requested slot has never been written.
	ErrDocumentNotFound = errors.New(errorMessageDocumentNotFound)
)

// StoredDocument is a document body together with its write counter.
type StoredDocument struct {
	Key       DocumentKey
	Body      []byte
	Version   int64
	UpdatedAt time.Time
}

// DocumentStore persists named JSON documents. Writers replace whole bodies;
// concurrent writers from separate processes race and the last write wins.
type DocumentStore interface {
	Get(ctx context.Context, key DocumentKey) (StoredDocument, error)
	Put(ctx context.Context, key DocumentKey, body []byte) (int64, error)
	Delete(ctx context.Context, key DocumentKey) error
	Versions(ctx context.Context, keys []DocumentKey) (map[DocumentKey]int64, error)
}

// GormDocumentStore keeps documents in a relational table.
type GormDocumentStore struct {
	database *gorm.DB
}

// NewGormDocumentStore wraps a migrated database.
func NewGormDocumentStore(database *gorm.DB) *GormDocumentStore {
	return &GormDocumentStore{database: database}
}

func (store *GormDocumentStore) Get(ctx context.Context, key DocumentKey) (StoredDocument, error) {
	var document model.Document
	err := store.database.WithContext(ctx).Where("doc_key = ?", string(key)).First(&document).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return StoredDocument{}, fmt.Errorf("%w: %s", ErrDocumentNotFound, key)
	}
	if err != nil {
		return StoredDocument{}, fmt.Errorf("%s: %w", errorMessageLoadDocument, err)
	}
	return StoredDocument{
		Key:       key,
		Body:      []byte(document.Body),
		Version:   document.Version,
		UpdatedAt: document.UpdatedAt,
	}, nil
}

func (store *GormDocumentStore) Put(ctx context.Context, key DocumentKey, body []byte) (int64, error) {
	var version int64
	err := store.database.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		var existing model.Document
		findErr := transaction.Where("doc_key = ?", string(key)).First(&existing).Error
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			created := model.Document{Key: string(key), Body: string(body), Version: 1}
			if createErr := transaction.Create(&created).Error; createErr != nil {
				return createErr
			}
			version = created.Version
			return nil
		}
		if findErr != nil {
			return findErr
		}
		version = existing.Version + 1
		return transaction.Model(&model.Document{}).
			Where("doc_key = ?", string(key)).
			Updates(map[string]any{
				"body":       string(body),
				"version":    version,
				"updated_at": time.Now().UTC(),
			}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", errorMessageSaveDocument, err)
	}
	return version, nil
}

func (store *GormDocumentStore) Delete(ctx context.Context, key DocumentKey) error {
	if err := store.database.WithContext(ctx).Where("doc_key = ?", string(key)).Delete(&model.Document{}).Error; err != nil {
		return fmt.Errorf("%s: %w", errorMessageDeleteDocument, err)
	}
	return nil
}

func (store *GormDocumentStore) Versions(ctx context.Context, keys []DocumentKey) (map[DocumentKey]int64, error) {
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		names = append(names, string(key))
	}
	type versionRow struct {
		DocKey  string
		Version int64
	}
	var rows []versionRow
	err := store.database.WithContext(ctx).
		Model(&model.Document{}).
		Select("doc_key, version").
		Where("doc_key IN ?", names).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageLoadVersions, err)
	}
	versions := make(map[DocumentKey]int64, len(keys))
	for _, key := range keys {
		versions[key] = 0
	}
	for _, row := range rows {
		versions[DocumentKey(row.DocKey)] = row.Version
	}
	return versions, nil
}

package persistence

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/portalpay/backend/internal/domain/split"
	"github.com/portalpay/backend/internal/infrastructure/persistence/models"
)

// SiteConfigStore persists site configuration documents in the database.
// It implements split.ConfigStore.
type SiteConfigStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSiteConfigStore creates a new site config store
func NewSiteConfigStore(db *gorm.DB, logger *zap.Logger) *SiteConfigStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SiteConfigStore{db: db, logger: logger}
}

// Read fetches the document addressed by (docID, wallet). A missing row is
// reported as absence, not an error; infrastructure failures are reported
// separately so callers can decide how much to trust the absence.
func (s *SiteConfigStore) Read(ctx context.Context, docID, wallet string) split.ReadResult {
	var model models.SiteConfigModel
	err := s.db.WithContext(ctx).
		Where("doc_id = ? AND partition_key = ?", docID, strings.ToLower(wallet)).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return split.ReadResult{Outcome: split.ReadNotFound}
	}
	if err != nil {
		return split.ReadResult{Outcome: split.ReadFailed, Err: err}
	}

	doc, err := model.ToDomain()
	if err != nil {
		s.logger.Error("failed to decode site config document",
			zap.String("doc_id", docID),
			zap.Error(err))
		return split.ReadResult{Outcome: split.ReadFailed, Err: err}
	}
	return split.ReadResult{Outcome: split.ReadFound, Doc: doc}
}

// Upsert writes the document, replacing any existing row with the same
// (doc_id, partition_key).
func (s *SiteConfigStore) Upsert(ctx context.Context, doc *split.Document) error {
	var model models.SiteConfigModel
	if err := model.FromDomain(doc); err != nil {
		return err
	}
	model.PartitionKey = strings.ToLower(model.PartitionKey)

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "doc_id"}, {Name: "partition_key"}},
			UpdateAll: true,
		}).
		Create(&model).Error
}

// Migrate creates or updates the backing table
func (s *SiteConfigStore) Migrate() error {
	return s.db.AutoMigrate(&models.SiteConfigModel{})
}

var _ split.ConfigStore = (*SiteConfigStore)(nil)

// MemorySiteConfigStore is an in-memory split.ConfigStore for tests and
// local development.
// WARNING: This should not be used in production with multiple instances
type MemorySiteConfigStore struct {
	mu   sync.RWMutex
	docs map[string]*split.Document
}

// NewMemorySiteConfigStore creates a new in-memory site config store
func NewMemorySiteConfigStore() *MemorySiteConfigStore {
	return &MemorySiteConfigStore{docs: make(map[string]*split.Document)}
}

func (s *MemorySiteConfigStore) key(docID, wallet string) string {
	return docID + "|" + strings.ToLower(wallet)
}

// Read fetches a document by (docID, wallet)
func (s *MemorySiteConfigStore) Read(_ context.Context, docID, wallet string) split.ReadResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[s.key(docID, wallet)]
	if !ok {
		return split.ReadResult{Outcome: split.ReadNotFound}
	}
	return split.ReadResult{Outcome: split.ReadFound, Doc: doc.Clone()}
}

// Upsert stores a deep copy of the document
func (s *MemorySiteConfigStore) Upsert(_ context.Context, doc *split.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[s.key(doc.ID, doc.Wallet)] = doc.Clone()
	return nil
}

var _ split.ConfigStore = (*MemorySiteConfigStore)(nil)

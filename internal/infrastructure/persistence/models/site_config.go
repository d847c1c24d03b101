package models

import (
	"encoding/json"
	"time"

	"github.com/portalpay/backend/internal/domain/split"
)

// SiteConfigModel is the persistence model for merchant site configuration
// documents. A row is addressed by (doc_id, partition_key) the same way the
// documents were addressed in the original store: the doc ID encodes the
// brand scope and the partition key is the merchant wallet. The document
// body is kept as raw JSON so merchant-authored fields (theme, story, tax
// settings) survive round trips untouched.
type SiteConfigModel struct {
	DocID        string `gorm:"column:doc_id;type:varchar(200);primaryKey"`
	PartitionKey string `gorm:"column:partition_key;type:varchar(64);primaryKey"`
	BrandKey     string `gorm:"type:varchar(100);index"`
	SplitAddress string `gorm:"type:varchar(64)"`
	Body         string `gorm:"type:text;not null"`
	UpdatedAt    time.Time
}

// TableName returns the table name for GORM
func (SiteConfigModel) TableName() string {
	return "site_config_documents"
}

// ToDomain converts the persistence model to a domain Document.
func (m *SiteConfigModel) ToDomain() (*split.Document, error) {
	var doc split.Document
	if err := json.Unmarshal([]byte(m.Body), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// FromDomain populates the persistence model from a domain Document. The
// indexed columns are denormalized out of the body for querying; the body
// stays authoritative.
func (m *SiteConfigModel) FromDomain(doc *split.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.DocID = doc.ID
	m.PartitionKey = doc.Wallet
	m.BrandKey = doc.BrandKey
	m.SplitAddress = doc.SplitAddress
	m.Body = string(body)
	m.UpdatedAt = time.UnixMilli(doc.UpdatedAt)
	return nil
}

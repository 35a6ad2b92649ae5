// Package outbox persists governance events for at-least-once delivery to
// the external publication bus. Events are appended with a per-subnet
// monotonic sequence and stay on disk until a publisher marks them delivered.
package outbox

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"

	"subnetgov/core/events"
)

// Record is one persisted event. Attributes holds the envelope's attribute
// map as JSON.
type Record struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	Subnet     string `gorm:"size:128;index:idx_outbox_subnet_seq,unique"`
	Sequence   uint64 `gorm:"index:idx_outbox_subnet_seq,unique"`
	Type       string `gorm:"size:128;index"`
	Attributes string
	Published  bool `gorm:"index"`
	CreatedAt  time.Time
}

// Decode unpacks the record's attribute JSON.
func (r *Record) Decode() (map[string]string, error) {
	attrs := make(map[string]string)
	if r.Attributes == "" {
		return attrs, nil
	}
	if err := json.Unmarshal([]byte(r.Attributes), &attrs); err != nil {
		return nil, fmt.Errorf("outbox: decode record %d: %w", r.ID, err)
	}
	return attrs, nil
}

// Outbox is a SQLite-backed event journal. Appends serialise through a
// process-wide mutex so the per-subnet sequence stays gapless under
// concurrent emitters.
type Outbox struct {
	mu sync.Mutex
	db *gorm.DB
}

// Open creates or opens the journal at path and migrates its schema.
func Open(path string) (*Outbox, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: glogger.Default.LogMode(glogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("outbox: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("outbox: migrate: %w", err)
	}
	return &Outbox{db: db}, nil
}

// Append journals the envelope at the subnet's next sequence number and
// returns that sequence.
func (o *Outbox) Append(env *events.Envelope) (uint64, error) {
	if env == nil || env.Type == "" {
		return 0, fmt.Errorf("outbox: envelope with type required")
	}
	raw, err := json.Marshal(env.Attributes)
	if err != nil {
		return 0, fmt.Errorf("outbox: encode attributes: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	var seq uint64
	err = o.db.Transaction(func(tx *gorm.DB) error {
		var last Record
		res := tx.Where("subnet = ?", env.Subnet).Order("sequence DESC").Limit(1).Find(&last)
		if res.Error != nil {
			return res.Error
		}
		seq = last.Sequence + 1
		return tx.Create(&Record{
			Subnet:     env.Subnet,
			Sequence:   seq,
			Type:       env.Type,
			Attributes: string(raw),
			CreatedAt:  time.Now().UTC(),
		}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("outbox: append %s: %w", env.Type, err)
	}
	return seq, nil
}

// PendingBatch returns up to limit unpublished records, oldest first.
func (o *Outbox) PendingBatch(limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []*Record
	err := o.db.Where("published = ?", false).Order("id ASC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("outbox: load pending: %w", err)
	}
	return records, nil
}

// MarkPublished flags the given records as delivered.
func (o *Outbox) MarkPublished(ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	err := o.db.Model(&Record{}).Where("id IN ?", ids).Update("published", true).Error
	if err != nil {
		return fmt.Errorf("outbox: mark published: %w", err)
	}
	return nil
}

// Pending reports how many records await publication.
func (o *Outbox) Pending() (int64, error) {
	var count int64
	if err := o.db.Model(&Record{}).Where("published = ?", false).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("outbox: count pending: %w", err)
	}
	return count, nil
}

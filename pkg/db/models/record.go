package models

import "time"

// Record is a JSON document stored under a (collection, key) pair. Every
// domain entity (user, token, cart, order) is serialized into Document.
type Record struct {
	ID         uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Collection string    `gorm:"column:collection;size:64;not null;uniqueIndex:idx_records_collection_key"`
	Key        string    `gorm:"column:key;size:255;not null;uniqueIndex:idx_records_collection_key"`
	Document   []byte    `gorm:"column:document;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName keeps the table name stable across dialects.
func (Record) TableName() string {
	return "records"
}

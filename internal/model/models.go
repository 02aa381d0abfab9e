package model

import "time"

// Document is one named JSON slot in the durable store.
type Document struct {
	Key       string    `gorm:"column:doc_key;primaryKey;size:100"`
	Body      string    `gorm:"type:text;not null"`
	Version   int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

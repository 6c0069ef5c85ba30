// Package domain defines document metadata. File bytes never pass through
// this service; clients upload directly against presigned URLs and only the
// metadata row lives here.
package domain

import (
	"errors"
	"time"
)

// Status tracks the upload lifecycle of a document.
type Status string

const (
	// StatusPending means the metadata row exists but the upload has not
	// been confirmed.
	StatusPending Status = "pending"
	// StatusUploaded means the client confirmed the upload completed.
	StatusUploaded Status = "uploaded"
)

// Document is one stored file's metadata, always merchant-scoped.
type Document struct {
	ID          string
	MerchantID  string
	Name        string
	Category    string
	ObjectKey   string
	ContentType string
	SizeBytes   int64
	Status      Status
	UploadedBy  string
	CreatedAt   time.Time
}

// Validate checks required fields.
func (d *Document) Validate() error {
	switch {
	case d.ID == "":
		return errors.New("document: id is required")
	case d.MerchantID == "":
		return errors.New("document: merchant id is required")
	case d.Name == "":
		return errors.New("document: name is required")
	case d.ObjectKey == "":
		return errors.New("document: object key is required")
	case d.UploadedBy == "":
		return errors.New("document: uploader is required")
	}
	return nil
}

// Usage summarizes a merchant's stored documents, used for billing views.
type Usage struct {
	MerchantID    string
	DocumentCount int64
	TotalBytes    int64
}

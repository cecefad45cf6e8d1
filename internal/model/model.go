package model

import "time"

const (
	// ListType marks an item whose content is a newline-separated list of item names.
	ListType = "application/x-internal-list"

	// ListTypeLegacy is the list type written by older deployments.
	ListTypeLegacy = "text/x-bepasty-list"

	// InternalTypePrefix is reserved for pseudo types created by pastebox itself.
	InternalTypePrefix = "application/x-internal-"

	// InternalTypePrefixLegacy is the reserved prefix used by older deployments.
	InternalTypePrefixLegacy = "text/x-bepasty-"

	DefaultType = "application/octet-stream"
)

// ItemMeta is the stored metadata of an item.
//
// Timestamps are unix seconds. ViewedAt is 0 until the item is first viewed
// and ExpiresAt is -1 for items that never expire.
type ItemMeta struct {
	Name       string `json:"name"`
	Filename   string `json:"filename"`
	Type       string `json:"type"`
	Size       int64  `json:"size"`
	SHA256     string `json:"sha256,omitempty"`
	Complete   bool   `json:"complete"`
	Locked     bool   `json:"locked"`
	UploadedAt int64  `json:"uploadedAt"`
	ViewedAt   int64  `json:"viewedAt"`
	ExpiresAt  int64  `json:"expiresAt"`
}

func (m ItemMeta) Expired(now time.Time) bool {
	return m.ExpiresAt >= 0 && now.Unix() >= m.ExpiresAt
}

// DisplayName is the filename, or the item name when no filename was given.
func (m ItemMeta) DisplayName() string {
	if m.Filename != "" {
		return m.Filename
	}
	return m.Name
}

// FileInfo is the listing view of an item.
type FileInfo struct {
	Name       string `json:"name"`
	Filename   string `json:"filename"`
	Type       string `json:"type"`
	Size       int64  `json:"size"`
	Complete   bool   `json:"complete"`
	Locked     bool   `json:"locked"`
	UploadedAt int64  `json:"uploadedAt"`
}

func (m ItemMeta) FileInfo() FileInfo {
	return FileInfo{
		Name:       m.Name,
		Filename:   m.Filename,
		Type:       m.Type,
		Size:       m.Size,
		Complete:   m.Complete,
		Locked:     m.Locked,
		UploadedAt: m.UploadedAt,
	}
}

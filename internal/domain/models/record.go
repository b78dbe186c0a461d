package models

import (
	"time"
)

// RecordType discriminates the three kinds of entries in the collection.
// The type is immutable after creation; only folders may have children.
type RecordType string

const (
	TypeFolder RecordType = "folder"
	TypePage   RecordType = "page"
	TypeLink   RecordType = "link"
)

// Record is one entry in the flat collection. The parent links form a
// forest rooted at nil; deleted records are tombstoned, not removed, so
// they keep their place in the collection for a potential restore.
type Record struct {
	ID       string     `json:"id" bson:"_id,omitempty"`
	ParentID *string    `json:"parent_id" bson:"parent_id,omitempty"` // NULL = root level
	Type     RecordType `json:"type" bson:"type"`
	Name     string     `json:"name" bson:"name"`
	Content  string     `json:"content,omitempty" bson:"content,omitempty"` // pages only
	URL      string     `json:"url,omitempty" bson:"url,omitempty"`         // links only
	IsPinned bool       `json:"is_pinned" bson:"is_pinned"`

	// Tombstone fields. OriginalParentID captures the parent as it stood
	// when the record was deleted, to support restore-to-original-location.
	IsDeleted        bool       `json:"is_deleted" bson:"is_deleted"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty" bson:"deleted_at,omitempty"`
	OriginalParentID *string    `json:"original_parent_id,omitempty" bson:"original_parent_id,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
	CreatedBy string    `json:"created_by,omitempty" bson:"created_by,omitempty"`
}

// IsFolder reports whether the record can contain children.
func (r *Record) IsFolder() bool { return r.Type == TypeFolder }

// Crumb is one entry of a breadcrumb path. The synthetic root entry uses
// an empty ID.
type Crumb struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TreeNode represents the root of the nested record tree
type TreeNode struct {
	Folders []*FolderTreeNode `json:"folders"`
	Records []RecordTreeNode  `json:"records"`
}

// FolderTreeNode represents a folder in the tree with nested children
type FolderTreeNode struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	ParentID  *string           `json:"parent_id"`
	IsPinned  bool              `json:"is_pinned"`
	CreatedAt time.Time         `json:"created_at"`
	Folders   []*FolderTreeNode `json:"folders"` // Pointers for proper nesting
	Records   []RecordTreeNode  `json:"records"`
}

// RecordTreeNode represents a page or link in the tree (metadata only, no content)
type RecordTreeNode struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Type      RecordType `json:"type"`
	ParentID  *string    `json:"parent_id"`
	URL       string     `json:"url,omitempty"`
	IsPinned  bool       `json:"is_pinned"`
	UpdatedAt time.Time  `json:"updated_at"`
}

package service

import (
	"docforest/internal/domain/models"
)

// Tree builds the nested folder/record projection of the whole snapshot
// using a 3-pass algorithm: create folder nodes, nest folders under their
// parents, then attach pages and links to their folders.
func (idx *Index) Tree() *models.TreeNode {
	// First pass: create all folder nodes
	folderMap := make(map[string]*models.FolderTreeNode)
	var rootFolderIDs []string
	for i := range idx.records {
		rec := &idx.records[i]
		if rec.IsDeleted || !rec.IsFolder() {
			continue
		}
		folderMap[rec.ID] = &models.FolderTreeNode{
			ID:        rec.ID,
			Name:      rec.Name,
			ParentID:  rec.ParentID,
			IsPinned:  rec.IsPinned,
			CreatedAt: rec.CreatedAt,
			Folders:   []*models.FolderTreeNode{},
			Records:   []models.RecordTreeNode{},
		}
	}

	// Second pass: nest folders by connecting children to parents
	for i := range idx.records {
		rec := &idx.records[i]
		if rec.IsDeleted || !rec.IsFolder() {
			continue
		}
		node := folderMap[rec.ID]
		if rec.ParentID == nil {
			rootFolderIDs = append(rootFolderIDs, rec.ID)
		} else if parent, exists := folderMap[*rec.ParentID]; exists {
			parent.Folders = append(parent.Folders, node)
		}
	}

	// Third pass: attach pages and links to their folders
	rootRecords := make([]models.RecordTreeNode, 0)
	for i := range idx.records {
		rec := &idx.records[i]
		if rec.IsDeleted || rec.IsFolder() {
			continue
		}
		node := models.RecordTreeNode{
			ID:        rec.ID,
			Name:      rec.Name,
			Type:      rec.Type,
			ParentID:  rec.ParentID,
			URL:       rec.URL,
			IsPinned:  rec.IsPinned,
			UpdatedAt: rec.UpdatedAt,
		}

		if rec.ParentID == nil {
			rootRecords = append(rootRecords, node)
		} else if parent, exists := folderMap[*rec.ParentID]; exists {
			parent.Records = append(parent.Records, node)
		}
	}

	rootFolders := make([]*models.FolderTreeNode, 0, len(rootFolderIDs))
	for _, id := range rootFolderIDs {
		rootFolders = append(rootFolders, folderMap[id])
	}

	return &models.TreeNode{
		Folders: rootFolders,
		Records: rootRecords,
	}
}

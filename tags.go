package main

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/orian/spoolplan/models"
)

// Tag management methods for DuckDBStorage

// AddTag adds a tag to an analysis
func (s *DuckDBStorage) AddTag(analysisID, tag string) (*models.AnalysisTag, error) {
	key, value := models.ParseTag(tag)

	// Check if tag already exists
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM analysis_tags
		WHERE analysis_id = ? AND tag_key = ? AND COALESCE(tag_value, '') = ?
	`, analysisID, key, value).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing tag: %w", err)
	}

	if count > 0 {
		return nil, fmt.Errorf("tag already exists on this analysis")
	}

	// Create new tag
	tagObj := &models.AnalysisTag{
		ID:         generateID(),
		AnalysisID: analysisID,
		TagKey:     key,
		TagValue:   value,
		CreatedAt:  time.Now(),
	}

	_, err = s.db.Exec(`
		INSERT INTO analysis_tags (id, analysis_id, tag_key, tag_value, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, tagObj.ID, tagObj.AnalysisID, tagObj.TagKey, nullString(tagObj.TagValue), tagObj.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to insert tag: %w", err)
	}

	return tagObj, nil
}

// RemoveTag removes a tag from an analysis
func (s *DuckDBStorage) RemoveTag(tagID string) error {
	result, err := s.db.Exec("DELETE FROM analysis_tags WHERE id = ?", tagID)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("tag not found")
	}

	return nil
}

// GetAnalysisTags gets all tags for an analysis
func (s *DuckDBStorage) GetAnalysisTags(analysisID string) ([]*models.AnalysisTag, error) {
	rows, err := s.db.Query(`
		SELECT id, analysis_id, tag_key, COALESCE(tag_value, ''), created_at
		FROM analysis_tags
		WHERE analysis_id = ?
		ORDER BY created_at ASC
	`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	var tags []*models.AnalysisTag
	for rows.Next() {
		var tag models.AnalysisTag
		if err := rows.Scan(&tag.ID, &tag.AnalysisID, &tag.TagKey, &tag.TagValue, &tag.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, &tag)
	}

	return tags, rows.Err()
}

// ToggleStarred toggles the system:starred tag on an analysis
func (s *DuckDBStorage) ToggleStarred(analysisID string) (bool, error) {
	// Check if starred tag exists
	var tagID string
	err := s.db.QueryRow(`
		SELECT id FROM analysis_tags
		WHERE analysis_id = ? AND tag_key = 'system:starred'
	`, analysisID).Scan(&tagID)

	if err == sql.ErrNoRows {
		// Not starred, add the star
		_, err := s.AddTag(analysisID, "system:starred")
		if err != nil {
			return false, fmt.Errorf("failed to star analysis: %w", err)
		}
		return true, nil
	} else if err != nil {
		return false, fmt.Errorf("failed to check star status: %w", err)
	}

	// Already starred, remove the star
	if err := s.RemoveTag(tagID); err != nil {
		return false, fmt.Errorf("failed to unstar analysis: %w", err)
	}
	return false, nil
}

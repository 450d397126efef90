package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	model "github.com/docupilot/docupilot/models"
)

// GormStore is the database-backed DocumentStore.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	if err := s.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *GormStore) SaveDocument(ctx context.Context, doc *model.Document) error {
	return s.db.WithContext(ctx).Save(doc).Error
}

func (s *GormStore) GetUserEmail(ctx context.Context, userID string) (string, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Select("email").First(&user, "id = ?", userID).Error; err != nil {
		return "", fmt.Errorf("failed to resolve user %s: %w", userID, err)
	}
	return user.Email, nil
}

func (s *GormStore) DeleteEntities(ctx context.Context, documentID string) error {
	return s.db.WithContext(ctx).Delete(&model.ExtractedEntity{}, "document_id = ?", documentID).Error
}

func (s *GormStore) CreateEntities(ctx context.Context, entities []*model.ExtractedEntity) error {
	if len(entities) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(entities).Error
}

func (s *GormStore) SaveEntities(ctx context.Context, entities []*model.ExtractedEntity) error {
	for _, e := range entities {
		if err := s.db.WithContext(ctx).Save(e).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *GormStore) AppendLog(ctx context.Context, entry *model.ProcessingLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

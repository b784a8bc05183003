package repository

import (
	"quiz_mentor_backend/internal/model"

	"gorm.io/gorm"
)

type DocumentRepository struct {
	DB *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{DB: db}
}

func (r *DocumentRepository) Create(doc *model.Document) error {
	return r.DB.Create(doc).Error
}

func (r *DocumentRepository) FindByID(id string) (*model.Document, error) {
	var doc model.Document
	err := r.DB.Where("id = ?", id).First(&doc).Error
	return &doc, err
}

func (r *DocumentRepository) ListByCourse(courseID uint, page, limit int) ([]model.Document, int64, error) {
	var docs []model.Document
	var total int64
	query := r.DB.Model(&model.Document{}).Where("course_id = ?", courseID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&docs).Error
	return docs, total, err
}

func (r *DocumentRepository) Update(doc *model.Document) error {
	return r.DB.Save(doc).Error
}

func (r *DocumentRepository) UpdateStatus(id, status, errMsg string) error {
	updates := map[string]interface{}{"status": status}
	if errMsg != "" {
		updates["error"] = errMsg
	}
	return r.DB.Model(&model.Document{}).Where("id = ?", id).Updates(updates).Error
}

func (r *DocumentRepository) Delete(id string) error {
	return r.DB.Where("id = ?", id).Delete(&model.Document{}).Error
}

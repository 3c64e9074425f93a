package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/jordan1monts/COP3060FINAL/internal/model"
)

type GenerationAuditRepository struct {
	db *gorm.DB
}

func NewGenerationAuditRepository(db *gorm.DB) *GenerationAuditRepository {
	return &GenerationAuditRepository{db: db}
}

func (r *GenerationAuditRepository) Create(audit *model.GenerationAudit) error {
	if err := r.db.Create(audit).Error; err != nil {
		return fmt.Errorf("create generation audit failed: %w", err)
	}
	return nil
}

func (r *GenerationAuditRepository) ListByUserID(userID uint, limit int) ([]model.GenerationAudit, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	var audits []model.GenerationAudit
	if err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&audits).Error; err != nil {
		return nil, fmt.Errorf("list generation audits failed: %w", err)
	}
	return audits, nil
}

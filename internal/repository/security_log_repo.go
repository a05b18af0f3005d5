package repository

import (
	"context"

	"authgate/internal/entity"

	"gorm.io/gorm"
)

type SecurityLogRepository interface {
	Record(ctx context.Context, entry *entity.SecurityLog) error
}

type securityLogRepository struct {
	db *gorm.DB
}

func NewSecurityLogRepository(db *gorm.DB) SecurityLogRepository {
	return &securityLogRepository{db: db}
}

func (r *securityLogRepository) Record(ctx context.Context, entry *entity.SecurityLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

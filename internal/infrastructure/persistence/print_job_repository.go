package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/docprint/internal/domain/printing"
	"github.com/erp/docprint/internal/domain/shared"
	"github.com/erp/docprint/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPrintJobRepository implements PrintJobRepository using GORM
type GormPrintJobRepository struct {
	db *gorm.DB
}

// NewGormPrintJobRepository creates a new GormPrintJobRepository
func NewGormPrintJobRepository(db *gorm.DB) *GormPrintJobRepository {
	return &GormPrintJobRepository{db: db}
}

// FindByID finds a job by ID
func (r *GormPrintJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*printing.PrintJob, error) {
	var model models.PrintJobModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindBySessionDocument finds the job recorded for a session document
func (r *GormPrintJobRepository) FindBySessionDocument(ctx context.Context, sessionID uuid.UUID, index int) (*printing.PrintJob, error) {
	var model models.PrintJobModel
	if err := r.db.WithContext(ctx).
		Where("session_id = ? AND document_index = ?", sessionID, index).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds jobs matching the filter
func (r *GormPrintJobRepository) FindAll(ctx context.Context, filter printing.PrintJobFilter) ([]printing.PrintJob, error) {
	var jobModels []models.PrintJobModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.PrintJobModel{}), filter)

	if err := query.Find(&jobModels).Error; err != nil {
		return nil, err
	}

	jobs := make([]printing.PrintJob, len(jobModels))
	for i, model := range jobModels {
		jobs[i] = *model.ToDomain()
	}
	return jobs, nil
}

// Count returns the total count of jobs matching the filter
func (r *GormPrintJobRepository) Count(ctx context.Context, filter printing.PrintJobFilter) (int64, error) {
	var count int64
	query := r.applyFilterWithoutPagination(r.db.WithContext(ctx).Model(&models.PrintJobModel{}), filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save saves a job (insert or update)
func (r *GormPrintJobRepository) Save(ctx context.Context, job *printing.PrintJob) error {
	model := models.PrintJobModelFromDomain(job)
	return r.db.WithContext(ctx).Save(model).Error
}

// DeleteOlderThan deletes jobs created before the cutoff
func (r *GormPrintJobRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.PrintJobModel{})
	return result.RowsAffected, result.Error
}

// applyFilter applies filter options to the query
func (r *GormPrintJobRepository) applyFilter(query *gorm.DB, filter printing.PrintJobFilter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	sortField := ValidateSortField(filter.OrderBy, PrintJobSortFields, "created_at")
	query = query.Order(sortField + " " + ValidateSortOrder(filter.OrderDir))
	if sortField != "created_at" {
		query = query.Order("created_at DESC")
	}
	return query
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormPrintJobRepository) applyFilterWithoutPagination(query *gorm.DB, filter printing.PrintJobFilter) *gorm.DB {
	if filter.DocumentType != nil {
		query = query.Where("document_type = ?", string(*filter.DocumentType))
	}
	if filter.DocumentNumber != "" {
		query = query.Where("document_number = ?", filter.DocumentNumber)
	}
	if filter.SessionID != nil {
		query = query.Where("session_id = ?", *filter.SessionID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	return query
}

// Ensure GormPrintJobRepository implements PrintJobRepository
var _ printing.PrintJobRepository = (*GormPrintJobRepository)(nil)

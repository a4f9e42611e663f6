package models

import (
	"time"

	"github.com/erp/docprint/internal/domain/printing"
	"github.com/google/uuid"
)

// PrintJobModel is the GORM model for print_jobs table
type PrintJobModel struct {
	AggregateModel
	SessionID      *uuid.UUID `gorm:"column:session_id;type:uuid;index"`
	DocumentIndex  int        `gorm:"column:document_index;not null;default:0"`
	DocumentType   string     `gorm:"column:document_type;type:varchar(50);not null"`
	DocumentNumber string     `gorm:"column:document_number;type:varchar(100);not null"`
	Status         string     `gorm:"type:varchar(20);not null;default:'PENDING'"`
	Copies         int        `gorm:"not null;default:1"`
	Strategy       string     `gorm:"type:varchar(20)"`
	PageCount      int        `gorm:"column:page_count;not null;default:0"`
	ByteSize       int        `gorm:"column:byte_size;not null;default:0"`
	DeliveryMethod string     `gorm:"column:delivery_method;type:varchar(20)"`
	DeliveryURL    string     `gorm:"column:delivery_url;type:text"`
	ErrorCode      string     `gorm:"column:error_code;type:varchar(50)"`
	ErrorMessage   string     `gorm:"column:error_message;type:text"`
	CancelReason   string     `gorm:"column:cancel_reason;type:text"`
	FinishedAt     *time.Time `gorm:"column:finished_at"`
}

// TableName returns the table name for PrintJobModel
func (PrintJobModel) TableName() string {
	return "print_jobs"
}

// ToDomain converts PrintJobModel to domain PrintJob
func (m *PrintJobModel) ToDomain() *printing.PrintJob {
	return &printing.PrintJob{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		SessionID:         m.SessionID,
		DocumentIndex:     m.DocumentIndex,
		DocumentType:      printing.DocType(m.DocumentType),
		DocumentNumber:    m.DocumentNumber,
		Status:            printing.JobStatus(m.Status),
		Copies:            m.Copies,
		Strategy:          printing.RenderStrategy(m.Strategy),
		PageCount:         m.PageCount,
		ByteSize:          m.ByteSize,
		DeliveryMethod:    printing.DeliveryMethod(m.DeliveryMethod),
		DeliveryURL:       m.DeliveryURL,
		ErrorCode:         m.ErrorCode,
		ErrorMessage:      m.ErrorMessage,
		CancelReason:      m.CancelReason,
		FinishedAt:        m.FinishedAt,
	}
}

// PrintJobModelFromDomain creates a PrintJobModel from domain PrintJob
func PrintJobModelFromDomain(j *printing.PrintJob) *PrintJobModel {
	m := &PrintJobModel{
		SessionID:      j.SessionID,
		DocumentIndex:  j.DocumentIndex,
		DocumentType:   string(j.DocumentType),
		DocumentNumber: j.DocumentNumber,
		Status:         string(j.Status),
		Copies:         j.Copies,
		Strategy:       string(j.Strategy),
		PageCount:      j.PageCount,
		ByteSize:       j.ByteSize,
		DeliveryMethod: string(j.DeliveryMethod),
		DeliveryURL:    j.DeliveryURL,
		ErrorCode:      j.ErrorCode,
		ErrorMessage:   j.ErrorMessage,
		CancelReason:   j.CancelReason,
		FinishedAt:     j.FinishedAt,
	}
	m.FromDomainAggregateRoot(j.BaseAggregateRoot)
	return m
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/formbox/internal/metrics"
	"github.com/iliyamo/formbox/internal/model"
	"github.com/iliyamo/formbox/internal/queue"
	"github.com/iliyamo/formbox/internal/repository"
)

// FieldInput is a field definition as supplied by the form owner.
type FieldInput struct {
	FieldID  string
	Type     string
	Label    string
	Required bool
}

// FormService manages form definitions.
type FormService interface {
	CreateForm(ctx context.Context, ownerID uint64, title, description string, fields []FieldInput) (formID uint64, err error)
	// DeleteForm removes a form owned by callerID together with its
	// fields and submissions.
	DeleteForm(ctx context.Context, callerID, formID uint64) error
	ListForms(ctx context.Context) ([]model.Form, error)
	GetForm(ctx context.Context, formID uint64) (model.FormDetail, error)
}

type FormServiceImpl struct {
	forms  repository.FormRepository
	events EventPublisher
	log    *zap.Logger
}

var _ FormService = (*FormServiceImpl)(nil)

// NewFormService constructs FormServiceImpl.  events may be nil.
func NewFormService(forms repository.FormRepository, events EventPublisher, log *zap.Logger) *FormServiceImpl {
	if events == nil {
		events = nopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FormServiceImpl{forms: forms, events: events, log: log.Named("form")}
}

func (s *FormServiceImpl) CreateForm(ctx context.Context, ownerID uint64, title, description string, fields []FieldInput) (uint64, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return 0, invalid("title is required")
	}
	rows := make([]model.Field, 0, len(fields))
	for i, f := range fields {
		fd := model.Field{
			FieldID:  strings.TrimSpace(f.FieldID),
			Type:     strings.TrimSpace(f.Type),
			Label:    strings.TrimSpace(f.Label),
			Required: f.Required,
			Position: i,
		}
		if fd.FieldID == "" || fd.Type == "" || fd.Label == "" {
			return 0, invalid(fmt.Sprintf("field %d: field_id, type and label are required", i))
		}
		rows = append(rows, fd)
	}

	form := &model.Form{OwnerID: ownerID, Title: title, Description: strings.TrimSpace(description)}
	id, err := s.forms.CreateWithFields(ctx, form, rows)
	if err != nil {
		return 0, fmt.Errorf("create form: %w", err)
	}
	metrics.FormCreated()
	s.log.Info("form created", zap.Uint64("form_id", id), zap.Uint64("owner_id", ownerID), zap.Int("fields", len(rows)))
	return id, nil
}

func (s *FormServiceImpl) DeleteForm(ctx context.Context, callerID, formID uint64) error {
	// ErrNotFound and ErrForbidden pass through as is
	if err := s.forms.DeleteByIDAndOwner(ctx, formID, callerID); err != nil {
		return err
	}
	metrics.FormDeleted()
	s.log.Info("form deleted", zap.Uint64("form_id", formID), zap.Uint64("owner_id", callerID))
	emit(s.log, func(ctx context.Context) error {
		return s.events.PublishFormDeleted(ctx, queue.FormDeletedEvent{
			FormID:    formID,
			OwnerID:   callerID,
			DeletedAt: time.Now().UTC(),
		})
	})
	return nil
}

func (s *FormServiceImpl) ListForms(ctx context.Context) ([]model.Form, error) {
	forms, err := s.forms.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	return forms, nil
}

func (s *FormServiceImpl) GetForm(ctx context.Context, formID uint64) (model.FormDetail, error) {
	f, err := s.forms.GetByID(ctx, formID)
	if err != nil {
		return model.FormDetail{}, fmt.Errorf("get form: %w", err)
	}
	fields, err := s.forms.ListFields(ctx, formID)
	if err != nil {
		return model.FormDetail{}, fmt.Errorf("list fields: %w", err)
	}
	return model.FormDetail{Form: *f, Fields: fields}, nil
}

const publishTimeout = 5 * time.Second

// emit runs publish in the background so a slow or absent broker never
// delays the response.
func emit(log *zap.Logger, publish func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := publish(ctx); err != nil {
			log.Warn("event not published", zap.Error(err))
		}
	}()
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/formbox/internal/metrics"
	"github.com/iliyamo/formbox/internal/model"
	"github.com/iliyamo/formbox/internal/queue"
	"github.com/iliyamo/formbox/internal/repository"
)

// Paging defaults and bounds for ListSubmissions.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxPageLimit = 100
)

// SubmissionGroup is all answers of one submission event that fall on the
// requested page.  Data maps field id to value, with the later answer
// winning when a field was answered twice; Responses keeps every answer
// in storage order.
type SubmissionGroup struct {
	SubmissionID uint64
	Data         map[string]json.RawMessage
	Responses    []model.Response
}

// SubmissionPage is one page of answers for a form.  TotalCount counts
// answer rows, not submission events.
type SubmissionPage struct {
	TotalCount  int64
	Page        int
	Limit       int
	Submissions []SubmissionGroup
}

// SubmissionService accepts public submissions and pages through them.
type SubmissionService interface {
	// SubmitForm stores the responses as one submission event and returns
	// its id.  An empty response list stores nothing and returns 0.
	SubmitForm(ctx context.Context, formID uint64, remoteIP string, responses []model.Response) (submissionID uint64, err error)
	ListSubmissions(ctx context.Context, formID uint64, page, limit int) (SubmissionPage, error)
}

type SubmissionServiceImpl struct {
	submissions repository.SubmissionRepository
	forms       repository.FormRepository
	events      EventPublisher
	strict      bool
	log         *zap.Logger
}

var _ SubmissionService = (*SubmissionServiceImpl)(nil)

// NewSubmissionService constructs SubmissionServiceImpl.  In strict mode
// responses are checked against the form's fields.  events may be nil.
func NewSubmissionService(submissions repository.SubmissionRepository, forms repository.FormRepository, events EventPublisher, strict bool, log *zap.Logger) *SubmissionServiceImpl {
	if events == nil {
		events = nopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SubmissionServiceImpl{
		submissions: submissions,
		forms:       forms,
		events:      events,
		strict:      strict,
		log:         log.Named("submission"),
	}
}

func (s *SubmissionServiceImpl) SubmitForm(ctx context.Context, formID uint64, remoteIP string, responses []model.Response) (uint64, error) {
	cleaned := make([]model.Response, 0, len(responses))
	for i, r := range responses {
		fid := strings.TrimSpace(r.FieldID)
		if fid == "" {
			return 0, invalid(fmt.Sprintf("response %d: field_id is required", i))
		}
		cleaned = append(cleaned, model.Response{FieldID: fid, Value: r.Value})
	}

	if s.strict {
		if err := s.checkAgainstFields(ctx, formID, cleaned); err != nil {
			return 0, err
		}
	}

	id, err := s.submissions.Create(ctx, formID, remoteIP, cleaned)
	if err != nil {
		return 0, fmt.Errorf("store submission: %w", err)
	}
	if len(cleaned) == 0 {
		return 0, nil
	}

	metrics.SubmissionReceived()
	s.log.Info("submission stored",
		zap.Uint64("form_id", formID),
		zap.Uint64("submission_id", id),
		zap.Int("responses", len(cleaned)))
	emit(s.log, func(ctx context.Context) error {
		return s.events.PublishFormSubmitted(ctx, queue.FormSubmittedEvent{
			FormID:       formID,
			SubmissionID: id,
			Responses:    len(cleaned),
			SubmittedAt:  time.Now().UTC(),
		})
	})
	return id, nil
}

// checkAgainstFields rejects field ids the form does not define and
// required fields that were not answered.
func (s *SubmissionServiceImpl) checkAgainstFields(ctx context.Context, formID uint64, responses []model.Response) error {
	if _, err := s.forms.GetByID(ctx, formID); err != nil {
		return fmt.Errorf("get form: %w", err)
	}
	fields, err := s.forms.ListFields(ctx, formID)
	if err != nil {
		return fmt.Errorf("list fields: %w", err)
	}

	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f.FieldID] = true
	}
	answered := make(map[string]bool, len(responses))
	for _, r := range responses {
		if !known[r.FieldID] {
			return invalid(fmt.Sprintf("unknown field_id %q", r.FieldID))
		}
		answered[r.FieldID] = true
	}
	for _, f := range fields {
		if f.Required && !answered[f.FieldID] {
			return invalid(fmt.Sprintf("field %q is required", f.FieldID))
		}
	}
	return nil
}

func (s *SubmissionServiceImpl) ListSubmissions(ctx context.Context, formID uint64, page, limit int) (SubmissionPage, error) {
	if page < 1 {
		return SubmissionPage{}, invalid("page must be >= 1")
	}
	if limit < 1 || limit > MaxPageLimit {
		return SubmissionPage{}, invalid(fmt.Sprintf("limit must be between 1 and %d", MaxPageLimit))
	}

	// a page past any possible row still reports the real total
	offset := math.MaxInt
	if page-1 <= math.MaxInt/limit {
		offset = (page - 1) * limit
	}

	// an unknown form has no rows, so it pages like an empty one
	rows, total, err := s.submissions.Page(ctx, formID, limit, offset)
	if err != nil {
		return SubmissionPage{}, fmt.Errorf("page submissions: %w", err)
	}
	return SubmissionPage{
		TotalCount:  total,
		Page:        page,
		Limit:       limit,
		Submissions: GroupByEvent(rows),
	}, nil
}

// GroupByEvent folds answer rows into one group per submission event,
// in order of each event's first row.
func GroupByEvent(rows []model.Submission) []SubmissionGroup {
	out := []SubmissionGroup{}
	index := make(map[uint64]int)
	for _, r := range rows {
		i, ok := index[r.EventID]
		if !ok {
			i = len(out)
			index[r.EventID] = i
			out = append(out, SubmissionGroup{
				SubmissionID: r.EventID,
				Data:         map[string]json.RawMessage{},
				Responses:    []model.Response{},
			})
		}
		g := &out[i]
		g.Data[r.FieldID] = r.Value
		g.Responses = append(g.Responses, model.Response{FieldID: r.FieldID, Value: r.Value})
	}
	return out
}

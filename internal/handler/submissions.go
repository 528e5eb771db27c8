package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/formbox/internal/model"
	"github.com/iliyamo/formbox/internal/service"
)

// SubmissionHandler accepts public submissions and lists them page by page.
type SubmissionHandler struct {
	Submissions service.SubmissionService
	Log         *zap.Logger
}

func NewSubmissionHandler(submissions service.SubmissionService, log *zap.Logger) *SubmissionHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SubmissionHandler{Submissions: submissions, Log: log.Named("submissions")}
}

type responseDTO struct {
	FieldID string          `json:"field_id"`
	Value   json.RawMessage `json:"value"`
}

type submitReq struct {
	Responses []responseDTO `json:"responses"`
}

type submissionGroupDTO struct {
	SubmissionID uint64                     `json:"submission_id"`
	Data         map[string]json.RawMessage `json:"data"`
	Responses    []responseDTO              `json:"responses"`
}

type submissionPageDTO struct {
	TotalCount  int64                `json:"total_count"`
	Page        int                  `json:"page"`
	Limit       int                  `json:"limit"`
	Submissions []submissionGroupDTO `json:"submissions"`
}

// Submit records one set of answers for a form.
func (h *SubmissionHandler) Submit(c echo.Context) error {
	formID, err := parseFormID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	var req submitReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	responses := make([]model.Response, 0, len(req.Responses))
	for _, r := range req.Responses {
		responses = append(responses, model.Response{FieldID: r.FieldID, Value: r.Value})
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	id, err := h.Submissions.SubmitForm(ctx, formID, c.RealIP(), responses)
	if err != nil {
		return writeError(c, h.Log, err, "Form not found")
	}
	body := echo.Map{"message": "Form submitted successfully"}
	if id != 0 {
		body["submission_id"] = id
	}
	return c.JSON(http.StatusOK, body)
}

// List returns a page of answer rows grouped by submission.  page and
// limit default to 1 and 10.
func (h *SubmissionHandler) List(c echo.Context) error {
	formID, err := parseFormID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	page, err := queryInt(c, "page", service.DefaultPage)
	if err != nil {
		return badRequest(c, "page must be an integer")
	}
	limit, err := queryInt(c, "limit", service.DefaultLimit)
	if err != nil {
		return badRequest(c, "limit must be an integer")
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	p, err := h.Submissions.ListSubmissions(ctx, formID, page, limit)
	if err != nil {
		return writeError(c, h.Log, err, "Form not found")
	}

	out := submissionPageDTO{
		TotalCount:  p.TotalCount,
		Page:        p.Page,
		Limit:       p.Limit,
		Submissions: make([]submissionGroupDTO, 0, len(p.Submissions)),
	}
	for _, g := range p.Submissions {
		dto := submissionGroupDTO{
			SubmissionID: g.SubmissionID,
			Data:         make(map[string]json.RawMessage, len(g.Data)),
			Responses:    make([]responseDTO, 0, len(g.Responses)),
		}
		for k, v := range g.Data {
			dto.Data[k] = nullJSON(v)
		}
		for _, r := range g.Responses {
			dto.Responses = append(dto.Responses, responseDTO{FieldID: r.FieldID, Value: nullJSON(r.Value)})
		}
		out.Submissions = append(out.Submissions, dto)
	}
	return c.JSON(http.StatusOK, out)
}

func queryInt(c echo.Context, name string, def int) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// nullJSON renders a stored SQL NULL as a JSON null.
func nullJSON(v json.RawMessage) json.RawMessage {
	if len(v) == 0 {
		return json.RawMessage("null")
	}
	return v
}

package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/formbox/internal/middleware"
	"github.com/iliyamo/formbox/internal/model"
	"github.com/iliyamo/formbox/internal/service"
)

// FormHandler serves form definitions.  Create and delete require a
// session; reads are public.
type FormHandler struct {
	Forms service.FormService
	Log   *zap.Logger
}

func NewFormHandler(forms service.FormService, log *zap.Logger) *FormHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &FormHandler{Forms: forms, Log: log.Named("forms")}
}

type fieldDTO struct {
	FieldID  string `json:"field_id"`
	Type     string `json:"type"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

type createFormReq struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Fields      []fieldDTO `json:"fields"`
}

type formSummary struct {
	ID          uint64  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	OwnerID     uint64  `json:"owner_id"`
}

type formDetail struct {
	ID          uint64     `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Fields      []fieldDTO `json:"fields"`
}

// description renders an absent description as JSON null.
func description(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Create stores a new form owned by the caller.
func (h *FormHandler) Create(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Not authenticated"})
	}
	var req createFormReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	fields := make([]service.FieldInput, 0, len(req.Fields))
	for _, f := range req.Fields {
		fields = append(fields, service.FieldInput{FieldID: f.FieldID, Type: f.Type, Label: f.Label, Required: f.Required})
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	id, err := h.Forms.CreateForm(ctx, uid, req.Title, req.Description, fields)
	if err != nil {
		return writeError(c, h.Log, err, "Form not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Form created successfully", "form_id": id})
}

// Delete removes a form the caller owns, with its fields and submissions.
func (h *FormHandler) Delete(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Not authenticated"})
	}
	formID, err := parseFormID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.Forms.DeleteForm(ctx, uid, formID); err != nil {
		if isForbidden(err) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "Not authorized to delete this form"})
		}
		return writeError(c, h.Log, err, "Form not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Form and associated fields/submissions deleted"})
}

// List returns every form of every owner.
func (h *FormHandler) List(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	forms, err := h.Forms.ListForms(ctx)
	if err != nil {
		return writeError(c, h.Log, err, "Form not found")
	}
	out := make([]formSummary, 0, len(forms))
	for _, f := range forms {
		out = append(out, formSummary{ID: f.ID, Title: f.Title, Description: description(f.Description), OwnerID: f.OwnerID})
	}
	return c.JSON(http.StatusOK, echo.Map{"forms": out})
}

// Get returns one form with its fields in creation order.
func (h *FormHandler) Get(c echo.Context) error {
	formID, err := parseFormID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	f, err := h.Forms.GetForm(ctx, formID)
	if err != nil {
		return writeError(c, h.Log, err, "Form not found")
	}
	return c.JSON(http.StatusOK, toFormDetail(f))
}

func toFormDetail(f model.FormDetail) formDetail {
	fields := make([]fieldDTO, 0, len(f.Fields))
	for _, fd := range f.Fields {
		fields = append(fields, fieldDTO{FieldID: fd.FieldID, Type: fd.Type, Label: fd.Label, Required: fd.Required})
	}
	return formDetail{ID: f.ID, Title: f.Title, Description: description(f.Description), Fields: fields}
}

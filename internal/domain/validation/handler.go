package validation

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/cqm/cqm/internal/domain/measure"
	"github.com/cqm/cqm/internal/domain/patient"
	"github.com/cqm/cqm/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("analyst", "steward"))
	g.POST("/measures/:id/validate", h.ValidatePatient)
	g.POST("/validate", h.ValidateInline)
}

type validateRequest struct {
	PatientID uuid.UUID       `json:"patient_id"`
	Period    *measure.Period `json:"period,omitempty"`
}

type inlineValidateRequest struct {
	Measure *measure.MeasureSpec `json:"measure"`
	Patient *patient.TestPatient `json:"patient"`
	Period  *measure.Period      `json:"period,omitempty"`
}

func (h *Handler) ValidatePatient(c echo.Context) error {
	measureID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid measure id")
	}
	var req validateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.PatientID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}

	var period measure.Period
	if req.Period != nil {
		period = *req.Period
	}
	trace, err := h.svc.ValidatePatient(c.Request().Context(), measureID, req.PatientID, period)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "measure or patient not found")
		}
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, trace)
}

func (h *Handler) ValidateInline(c echo.Context) error {
	var req inlineValidateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Measure == nil || req.Patient == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "measure and patient are required")
	}

	var period measure.Period
	if req.Period != nil {
		period = *req.Period
	}
	trace, err := h.svc.ValidateInline(req.Measure, req.Patient, period)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, trace)
}

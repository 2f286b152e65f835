package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cotracker/internal/checkouts"
	"cotracker/internal/models"
)

const formErrorMessage = "Sorry, please check below for any error messages."

// Handler serves the pilot, airstrip, base and checkout pages as JSON
type Handler struct {
	service *checkouts.Service
}

func NewHandler(service *checkouts.Service) *Handler {
	return &Handler{service: service}
}

// newRequest builds the per-request collaborators the checkouts package reports through
func newRequest(c *gin.Context) (*checkouts.Request, *models.Messages) {
	messages := &models.Messages{}
	// requestLogger already carries the actor
	req := &checkouts.Request{
		Actor:    actor(c),
		Logger:   requestLogger(c),
		Messages: messages,
	}
	return req, messages
}

func (h *Handler) ListPilots(c *gin.Context) {
	pilots, err := h.service.Pilots()
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pilots": pilots, "messages": []models.Message{}})
}

func (h *Handler) GetPilot(c *gin.Context) {
	detail, err := h.service.Pilot(c.Param("username"))
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pilot": detail.Pilot, "checkouts": detail.Checkouts, "messages": []models.Message{}})
}

func (h *Handler) ListAirstrips(c *gin.Context) {
	airstrips, err := h.service.Airstrips()
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"airstrips": airstrips, "messages": []models.Message{}})
}

func (h *Handler) GetAirstrip(c *gin.Context) {
	detail, err := h.service.Airstrip(c.Param("ident"))
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"airstrip": detail.Airstrip, "checkouts": detail.Checkouts, "messages": []models.Message{}})
}

func (h *Handler) ListBases(c *gin.Context) {
	bases, err := h.service.Bases()
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bases": bases, "messages": []models.Message{}})
}

func (h *Handler) BaseAttached(c *gin.Context) {
	h.baseAirstrips(c, true)
}

func (h *Handler) BaseUnattached(c *gin.Context) {
	h.baseAirstrips(c, false)
}

func (h *Handler) baseAirstrips(c *gin.Context, attached bool) {
	result, err := h.service.BaseAttached(c.Param("ident"), attached)
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"base":           result.Base,
		"attached_state": result.AttachedState,
		"airstrips":      result.Airstrips,
		"messages":       []models.Message{},
	})
}

func (h *Handler) AttachmentForm(c *gin.Context) {
	req, messages := newRequest(c)
	form, err := h.service.AttachmentForm(req, c.Param("ident"))
	if err != nil {
		h.fail(c, err, messages)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"base":      form.Base,
		"airstrips": form.Airstrips,
		"attached":  form.Attached,
		"messages":  messages.List(),
	})
}

func (h *Handler) EditAttachments(c *gin.Context) {
	req, messages := newRequest(c)
	if err := h.service.Authorize(req, checkouts.ActionEditAttachments); err != nil {
		h.fail(c, err, messages)
		return
	}
	if _, err := h.service.Base(c.Param("ident")); err != nil {
		h.fail(c, err, messages)
		return
	}

	var form attachmentEditForm
	if err := bind(c, &form); err != nil {
		h.fail(c, err, messages)
		return
	}

	outcome, err := h.service.EditAttachments(req, c.Param("ident"), form.Airstrips)
	if err != nil {
		h.fail(c, err, messages)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcome": outcome, "messages": messages.List()})
}

func (h *Handler) CheckoutForm(c *gin.Context) {
	req, messages := newRequest(c)
	form, err := h.service.CheckoutForm(req)
	if err != nil {
		h.fail(c, err, messages)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pilots":         form.Pilots,
		"airstrips":      form.Airstrips,
		"aircraft_types": form.AircraftTypes,
		"initial_pilot":  form.InitialPilot,
		"messages":       messages.List(),
	})
}

func (h *Handler) EditCheckout(c *gin.Context) {
	req, messages := newRequest(c)
	if err := h.service.Authorize(req, checkouts.ActionEditCheckouts); err != nil {
		h.fail(c, err, messages)
		return
	}

	var form checkoutEditForm
	if err := bind(c, &form); err != nil {
		h.fail(c, err, messages)
		return
	}

	outcome, err := h.service.EditCheckout(req, checkouts.CheckoutEdit{
		Pilot:         form.Pilot,
		Airstrip:      form.Airstrip,
		AircraftTypes: form.AircraftTypes,
		Action:        checkouts.ParseCheckoutAction(form.Action),
	})
	if err != nil {
		h.fail(c, err, messages)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcome": outcome, "messages": messages.List()})
}

// FilterCheckouts returns the filter choices when nothing was submitted, and
// the filtered rows otherwise
func (h *Handler) FilterCheckouts(c *gin.Context) {
	_, messages := newRequest(c)

	if c.Request.Method == http.MethodGet && len(c.Request.URL.Query()) == 0 {
		h.filterChoices(c)
		return
	}

	var form checkoutFilterForm
	if err := bind(c, &form); err != nil {
		h.fail(c, err, messages)
		return
	}

	result, err := h.service.Filter(checkouts.FilterCriteria{
		Status:       checkouts.FilterStatus(form.Status),
		Pilot:        form.Pilot,
		Airstrip:     form.Airstrip,
		AircraftType: form.AircraftType,
		Base:         form.Base,
	})
	if err != nil {
		h.fail(c, err, messages)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"checkout_status": result.Status,
		"rows":            result.Rows,
		"count":           result.Count,
		"messages":        messages.List(),
	})
}

func (h *Handler) filterChoices(c *gin.Context) {
	pilots, err := h.service.Pilots()
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	airstrips, err := h.service.Airstrips()
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	aircraftTypes, err := h.service.AircraftTypes()
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	bases, err := h.service.Bases()
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"checkout_statuses": []checkouts.FilterStatus{checkouts.StatusCompleted, checkouts.StatusNotCompleted},
		"pilots":            pilots,
		"airstrips":         airstrips,
		"aircraft_types":    aircraftTypes,
		"bases":             bases,
		"messages":          []models.Message{},
	})
}

// fail maps errors from the checkouts package onto responses. Messages
// recorded before the failure are still returned.
func (h *Handler) fail(c *gin.Context, err error, messages *models.Messages) {
	if messages == nil {
		messages = &models.Messages{}
	}

	var authErr *checkouts.AuthorizationError
	var verr *checkouts.ValidationError
	switch {
	case errors.As(err, &authErr):
		c.JSON(http.StatusForbidden, gin.H{"reason": authErr.Reason})
	case errors.As(err, &verr):
		messages.Error(formErrorMessage)
		c.JSON(http.StatusBadRequest, gin.H{"errors": verr.Fields, "messages": messages.List()})
	case errors.Is(err, checkouts.ErrNotFound), errors.Is(err, checkouts.ErrNotBase):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "messages": messages.List()})
	default:
		requestLogger(c).Error("Request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "messages": messages.List()})
	}
}

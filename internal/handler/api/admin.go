package api

import (
	"net/http"
	"strconv"

	reqdto "github.com/beligro/smart-carwash-sub000/internal/handler/dto/request"
	resdto "github.com/beligro/smart-carwash-sub000/internal/handler/dto/response"
	"github.com/beligro/smart-carwash-sub000/internal/handler/middleware"

	"github.com/beligro/smart-carwash-sub000/internal/domain/session"
	"github.com/beligro/smart-carwash-sub000/internal/usecase"
	"github.com/beligro/smart-carwash-sub000/internal/usecase/readmodel"

	"github.com/gin-gonic/gin"
)

const defaultAuditLimit = 50

// AdminHandler covers staff operations: box management, the coil audit trail,
// cleaning confirmation and session reassignment after hardware faults.
type AdminHandler struct {
	boxes    *usecase.BoxRegistry
	commands *usecase.SessionCommands
}

func NewAdminHandler(boxes *usecase.BoxRegistry, commands *usecase.SessionCommands) *AdminHandler {
	return &AdminHandler{boxes: boxes, commands: commands}
}

// @Summary Create box
// @Description Register a wash box and its coil registers
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body reqdto.CreateBoxRequest true "Box definition"
// @Success 201 {object} readmodel.BoxRM
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /admin/boxes [post]
func (h *AdminHandler) CreateBox(c *gin.Context) {
	act, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	var req reqdto.CreateBoxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	serviceType, err := session.ParseServiceType(req.ServiceType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown service type"})
		return
	}

	box, err := h.boxes.CreateBox(c.Request.Context(), act, usecase.CreateBoxParams{
		Number:                req.Number,
		ServiceType:           serviceType,
		ChemistryEnabled:      req.ChemistryEnabled,
		LightCoilRegister:     req.LightCoilRegister,
		ChemistryCoilRegister: req.ChemistryCoilRegister,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, readmodel.FromBox(box))
}

// @Summary List boxes
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} resdto.BoxListResponse
// @Router /admin/boxes [get]
func (h *AdminHandler) ListBoxes(c *gin.Context) {
	boxes, err := h.boxes.ListBoxes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	rms := make([]readmodel.BoxRM, 0, len(boxes))
	for _, b := range boxes {
		rms = append(rms, readmodel.FromBox(b))
	}
	c.JSON(http.StatusOK, &resdto.BoxListResponse{Boxes: rms})
}

// @Summary Set box maintenance
// @Description Take a box out of rotation or bring it back
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param number path int true "Box number"
// @Param request body reqdto.SetMaintenanceRequest true "Maintenance flag"
// @Success 200 {object} readmodel.BoxRM
// @Failure 409 {object} map[string]string
// @Router /admin/boxes/{number}/maintenance [post]
func (h *AdminHandler) SetMaintenance(c *gin.Context) {
	act, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	number, err := parseBoxNumber(c)
	if err != nil {
		return
	}

	var req reqdto.SetMaintenanceRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil || req.Maintenance == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	box, err := h.boxes.SetMaintenance(c.Request.Context(), act, number, *req.Maintenance)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, readmodel.FromBox(box))
}

// @Summary Complete cleaning
// @Description Confirm a box is clean and free it for the next session
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param number path int true "Box number"
// @Success 200 {object} readmodel.BoxRM
// @Failure 409 {object} map[string]string
// @Router /admin/boxes/{number}/cleaning/complete [post]
func (h *AdminHandler) CompleteCleaning(c *gin.Context) {
	act, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	number, err := parseBoxNumber(c)
	if err != nil {
		return
	}

	box, err := h.commands.CompleteCleaning(c.Request.Context(), act, number)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, readmodel.FromBox(box))
}

// @Summary Box audit trail
// @Description Every coil write and status change for one box
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param number path int true "Box number"
// @Success 200 {object} resdto.AuditTrailResponse
// @Router /admin/boxes/{number}/audit [get]
func (h *AdminHandler) AuditTrail(c *gin.Context) {
	number, err := parseBoxNumber(c)
	if err != nil {
		return
	}

	entries, err := h.boxes.AuditTrail(c.Request.Context(), number, defaultAuditLimit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, &resdto.AuditTrailResponse{BoxNumber: number, Entries: entries})
}

// @Summary Reassign session
// @Description Pull an assigned session off a faulty box; it rejoins the
// front of its queue and the box goes to maintenance
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} readmodel.SessionRM
// @Failure 409 {object} map[string]string
// @Router /admin/sessions/{id}/reassign [post]
func (h *AdminHandler) ReassignSession(c *gin.Context) {
	act, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	id, err := parseID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session ID format"})
		return
	}

	s, err := h.commands.Reassign(c.Request.Context(), act, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, readmodel.FromSession(s))
}

func parseBoxNumber(c *gin.Context) (int, error) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid box number"})
		if err == nil {
			err = strconv.ErrRange
		}
		return 0, err
	}
	return number, nil
}

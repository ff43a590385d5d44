package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"vocalroom/internal/calendar"
	"vocalroom/internal/export"
	"vocalroom/internal/metrics"
	"vocalroom/internal/session"
	"vocalroom/internal/store"
)

// writeFailure maps the error taxonomy onto HTTP statuses. Every failure
// becomes a JSON notice; nothing here is fatal to the process.
func writeFailure(c *gin.Context, err error) {
	var verr *session.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": verr.Reason})
	case errors.Is(err, session.ErrPending):
		c.JSON(http.StatusConflict, gin.H{"error": "operation already in flight"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "reservation not found"})
	case errors.Is(err, store.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
	case errors.Is(err, store.ErrPersistence):
		c.JSON(http.StatusConflict, gin.H{"error": "the backend rejected the change"})
	case errors.Is(err, store.ErrBackendUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backend unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

type sessionInfo struct {
	Role         session.Role `json:"role"`
	ActiveUser   string       `json:"active_user"`
	Year         int          `json:"year"`
	Month        int          `json:"month"`
	SelectedDate string       `json:"selected_date,omitempty"`
}

func (s *Server) handleSessionInfo(c *gin.Context) {
	metrics.IncHTTP("session_info")
	ctrl := s.currentSession(c).ctrl

	year, month := ctrl.Month()
	c.JSON(http.StatusOK, sessionInfo{
		Role:         ctrl.Role(),
		ActiveUser:   ctrl.ActiveUser(),
		Year:         year,
		Month:        int(month),
		SelectedDate: ctrl.SelectedDate(),
	})
}

func (s *Server) handleSetRole(c *gin.Context) {
	metrics.IncHTTP("set_role")

	var req struct {
		Role session.Role `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	if req.Role != session.RoleUser && req.Role != session.RoleAdmin {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be user or admin"})
		return
	}

	ctrl := s.currentSession(c).ctrl
	ctrl.SetRole(req.Role)
	c.JSON(http.StatusOK, gin.H{"role": ctrl.Role(), "active_user": ctrl.ActiveUser()})
}

func (s *Server) handleSetName(c *gin.Context) {
	metrics.IncHTTP("set_name")

	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	ctrl := s.currentSession(c).ctrl
	ctrl.SetActiveUser(req.Name)
	c.JSON(http.StatusOK, gin.H{"active_user": ctrl.ActiveUser()})
}

func (s *Server) handleCalendar(c *gin.Context) {
	metrics.IncHTTP("calendar")
	cs := s.currentSession(c)

	if err := cs.ensureLoaded(c.Request.Context()); err != nil {
		metrics.IncBackendError("list")
		writeFailure(c, err)
		return
	}

	year, month := cs.ctrl.Month()
	c.JSON(http.StatusOK, gin.H{
		"year":  year,
		"month": int(month),
		"cells": cs.ctrl.Cells(),
	})
}

func (s *Server) handleNextMonth(c *gin.Context) {
	metrics.IncHTTP("next_month")
	s.changeMonth(c, func(ctrl *session.Controller) error {
		return ctrl.NextMonth(c.Request.Context())
	})
}

func (s *Server) handlePrevMonth(c *gin.Context) {
	metrics.IncHTTP("prev_month")
	s.changeMonth(c, func(ctrl *session.Controller) error {
		return ctrl.PrevMonth(c.Request.Context())
	})
}

func (s *Server) handleSetMonth(c *gin.Context) {
	metrics.IncHTTP("set_month")

	var req struct {
		Year  int `json:"year"`
		Month int `json:"month"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Month < 1 || req.Month > 12 || req.Year < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid year/month"})
		return
	}

	s.changeMonth(c, func(ctrl *session.Controller) error {
		return ctrl.SetMonth(c.Request.Context(), req.Year, time.Month(req.Month))
	})
}

func (s *Server) changeMonth(c *gin.Context, move func(*session.Controller) error) {
	ctrl := s.currentSession(c).ctrl
	if err := move(ctrl); err != nil {
		metrics.IncBackendError("list")
		writeFailure(c, err)
		return
	}
	year, month := ctrl.Month()
	c.JSON(http.StatusOK, gin.H{
		"year":  year,
		"month": int(month),
		"cells": ctrl.Cells(),
	})
}

func (s *Server) handleOpenDate(c *gin.Context) {
	metrics.IncHTTP("open_date")
	ctrl := s.currentSession(c).ctrl

	if err := ctrl.SelectDate(c.Param("date")); err != nil {
		writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"selected_date": ctrl.SelectedDate()})
}

func (s *Server) handleCloseDate(c *gin.Context) {
	metrics.IncHTTP("close_date")
	s.currentSession(c).ctrl.CloseDate()
	c.Status(http.StatusNoContent)
}

type slotView struct {
	Hour     int    `json:"hour"`
	Label    string `json:"label"`
	Reserved bool   `json:"reserved"`
	User     string `json:"user,omitempty"`
	ID       int64  `json:"id,omitempty"`
}

func (s *Server) handleSlots(c *gin.Context) {
	metrics.IncHTTP("slots")
	cs := s.currentSession(c)

	date := c.Param("date")
	if _, err := calendar.ParseDate(date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date"})
		return
	}
	if err := cs.ensureLoaded(c.Request.Context()); err != nil {
		metrics.IncBackendError("list")
		writeFailure(c, err)
		return
	}

	slots := cs.ctrl.Slots(date)
	out := make([]slotView, 0, len(slots))
	for _, slot := range slots {
		v := slotView{Hour: slot.Hour, Label: slot.Label(), Reserved: slot.Reserved()}
		if slot.Reserved() {
			v.User = slot.Reservation.User
			v.ID = slot.Reservation.ID
		}
		out = append(out, v)
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "slots": out})
}

func (s *Server) handleReserve(c *gin.Context) {
	metrics.IncHTTP("reserve")

	var req struct {
		Date string `json:"date"`
		Hour int    `json:"hour"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	cs := s.currentSession(c)
	if err := cs.ensureLoaded(c.Request.Context()); err != nil {
		metrics.IncBackendError("list")
		writeFailure(c, err)
		return
	}

	created, err := cs.ctrl.Reserve(c.Request.Context(), req.Date, req.Hour)
	if err != nil {
		if errors.Is(err, store.ErrBackendUnavailable) || errors.Is(err, store.ErrPersistence) {
			metrics.IncBackendError("create")
		}
		writeFailure(c, err)
		return
	}

	metrics.IncReservationCreated()
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleCancel(c *gin.Context) {
	metrics.IncHTTP("cancel")

	id, ok := parseID(c)
	if !ok {
		return
	}

	ctrl := s.currentSession(c).ctrl
	if err := ctrl.Cancel(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrBackendUnavailable) {
			metrics.IncBackendError("delete")
		}
		writeFailure(c, err)
		return
	}

	metrics.IncReservationCancelled("user")
	c.Status(http.StatusNoContent)
}

func (s *Server) handleMyReservations(c *gin.Context) {
	metrics.IncHTTP("my_reservations")
	cs := s.currentSession(c)

	if err := cs.ensureLoaded(c.Request.Context()); err != nil {
		metrics.IncBackendError("list")
		writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservations": cs.ctrl.MyReservations()})
}

func (s *Server) handleStartEdit(c *gin.Context) {
	metrics.IncHTTP("start_edit")

	id, ok := parseID(c)
	if !ok {
		return
	}

	ctrl := s.currentSession(c).ctrl
	if err := ctrl.StartEdit(id); err != nil {
		writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, ctrl.Editing())
}

func (s *Server) handleCancelEdit(c *gin.Context) {
	metrics.IncHTTP("cancel_edit")
	s.currentSession(c).ctrl.CancelEdit()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAdminRename(c *gin.Context) {
	metrics.IncHTTP("admin_rename")

	id, ok := parseID(c)
	if !ok {
		return
	}

	var req struct {
		User string `json:"user"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	ctrl := s.currentSession(c).ctrl
	if err := ctrl.AdminRename(c.Request.Context(), id, req.User); err != nil {
		if errors.Is(err, store.ErrBackendUnavailable) {
			metrics.IncBackendError("update")
		}
		writeFailure(c, err)
		return
	}

	metrics.IncReservationRenamed()
	c.JSON(http.StatusOK, gin.H{"id": id, "user": req.User})
}

func (s *Server) handleAdminDelete(c *gin.Context) {
	metrics.IncHTTP("admin_delete")

	id, ok := parseID(c)
	if !ok {
		return
	}

	ctrl := s.currentSession(c).ctrl
	if err := ctrl.AdminDelete(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrBackendUnavailable) {
			metrics.IncBackendError("delete")
		}
		writeFailure(c, err)
		return
	}

	metrics.IncReservationCancelled("admin")
	c.Status(http.StatusNoContent)
}

// handleExport streams the month's reservations as an xlsx workbook,
// straight from the backend rather than the session snapshot.
func (s *Server) handleExport(c *gin.Context) {
	metrics.IncHTTP("export")

	ctrl := s.currentSession(c).ctrl
	if ctrl.Role() != session.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin only"})
		return
	}

	year, err := strconv.Atoi(c.DefaultQuery("year", "0"))
	if err != nil || year < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid year"})
		return
	}
	month, err := strconv.Atoi(c.DefaultQuery("month", "0"))
	if err != nil || month < 0 || month > 12 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid month"})
		return
	}
	if year == 0 || month == 0 {
		y, m := ctrl.Month()
		year, month = y, int(m)
	}

	from, to := calendar.MonthRange(year, time.Month(month))
	reservations, err := s.backend.List(c.Request.Context(), from, to)
	if err != nil {
		metrics.IncBackendError("list")
		writeFailure(c, err)
		return
	}

	sheet := fmt.Sprintf("%04d-%02d", year, month)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="reservations-%s.xlsx"`, sheet))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := export.MonthReport(c.Writer, sheet, reservations); err != nil {
		s.logger.Error().Err(err).Msg("export failed")
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/navpreview/internal/controller"
	"github.com/tphakala/navpreview/internal/logger"
)

// maxSettleWait caps ?wait= on mode and generate requests.
const maxSettleWait = time.Minute

// ModeRequest is the body of PUT /mode.
type ModeRequest struct {
	Mode string `json:"mode"`
}

// GetState handles GET /state.
func (s *Server) GetState(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, s.ctrl.Snapshot())
}

// SetMode handles PUT /mode. The request returns once the mode is queued;
// with ?wait=<seconds> it returns once the coordinator has settled.
func (s *Server) SetMode(ctx echo.Context) error {
	var req ModeRequest
	if err := ctx.Bind(&req); err != nil {
		return s.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	mode, err := controller.ParseMode(req.Mode)
	if err != nil {
		return s.HandleError(ctx, err, "Invalid mode", http.StatusBadRequest)
	}

	if err := s.ctrl.RequestMode(mode); err != nil {
		return s.HandleError(ctx, err, "Failed to change mode", 0)
	}
	s.log.Info("mode requested", logger.String("mode", mode.String()), logger.String("ip", ctx.RealIP()))

	if err := s.waitIfAsked(ctx); err != nil {
		return s.HandleError(ctx, err, "Mode change did not settle", 0)
	}
	return ctx.JSON(http.StatusAccepted, s.ctrl.Snapshot())
}

// Generate handles POST /generate.
func (s *Server) Generate(ctx echo.Context) error {
	if err := s.ctrl.Generate(); err != nil {
		return s.HandleError(ctx, err, "Cannot generate", 0)
	}
	if err := s.waitIfAsked(ctx); err != nil {
		return s.HandleError(ctx, err, "Generation did not settle", 0)
	}
	return ctx.JSON(http.StatusAccepted, s.ctrl.Snapshot())
}

func (s *Server) waitIfAsked(ctx echo.Context) error {
	raw := ctx.QueryParam("wait")
	if raw == "" {
		return nil
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || secs <= 0 {
		return nil
	}
	d := min(time.Duration(secs*float64(time.Second)), maxSettleWait)

	waitCtx, cancel := context.WithTimeout(ctx.Request().Context(), d)
	defer cancel()
	return s.ctrl.WaitSettled(waitCtx)
}

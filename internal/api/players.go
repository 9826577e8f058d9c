package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/navpreview/internal/capture"
	"github.com/tphakala/navpreview/internal/errors"
	"github.com/tphakala/navpreview/internal/player/remote"
)

// reportReceiver is a player that accepts media events from the page.
type reportReceiver interface {
	Deliver(r remote.Report) error
}

// PlayerEvent handles POST /players/:player/events. The body is a single
// report or an array of reports, applied in order.
func (s *Server) PlayerEvent(ctx echo.Context) error {
	name := ctx.Param("player")
	p, ok := s.ctrl.Player(name)
	if !ok {
		return s.HandleError(ctx, nil, "Unknown player "+name, http.StatusNotFound)
	}
	recv, ok := p.(reportReceiver)
	if !ok {
		return s.HandleError(ctx, nil, "Player "+name+" is not browser hosted", http.StatusConflict)
	}

	reports, err := bindReports(ctx)
	if err != nil {
		return s.HandleError(ctx, err, "Invalid media event", http.StatusBadRequest)
	}
	for _, r := range reports {
		if err := recv.Deliver(r); err != nil {
			return s.HandleError(ctx, err, "Rejected media event", http.StatusBadRequest)
		}
	}
	return ctx.NoContent(http.StatusNoContent)
}

func bindReports(ctx echo.Context) ([]remote.Report, error) {
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return nil, err
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.NewStd("empty media event")
	}

	if body[0] == '[' {
		var many []remote.Report
		if err := json.Unmarshal(body, &many); err != nil {
			return nil, err
		}
		return many, nil
	}
	var one remote.Report
	if err := json.Unmarshal(body, &one); err != nil {
		return nil, err
	}
	return []remote.Report{one}, nil
}

// CaptureResult handles POST /capture/result from the page that was asked to
// open its camera.
func (s *Server) CaptureResult(ctx echo.Context) error {
	if s.capture == nil {
		return s.HandleError(ctx, nil, "Camera is not browser hosted", http.StatusConflict)
	}
	var r capture.Result
	if err := ctx.Bind(&r); err != nil {
		return s.HandleError(ctx, err, "Invalid capture result", http.StatusBadRequest)
	}
	if r.RequestID == "" {
		return s.HandleError(ctx, nil, "requestId is required", http.StatusBadRequest)
	}
	if err := s.capture.Resolve(r); err != nil {
		if errors.Is(err, capture.ErrUnknownRequest) {
			return s.HandleError(ctx, err, "Capture request is no longer pending", http.StatusGone)
		}
		return s.HandleError(ctx, err, "Failed to apply capture result", 0)
	}
	return ctx.NoContent(http.StatusNoContent)
}

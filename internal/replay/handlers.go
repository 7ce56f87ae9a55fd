package replay

import (
	"errors"
	"math"
	"strconv"
	"time"

	"backend-railjourney/internal/artifact"
	"backend-railjourney/internal/playback"
	"backend-railjourney/internal/tracking"

	"github.com/gofiber/fiber/v2"
)

type exportRequest struct {
	DurationSec float64 `json:"duration_sec"`
	FrameRate   float64 `json:"frame_rate"`
}

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Get("/sessions/:id/position", func(c *fiber.Ctx) error {
		t, err := seconds(c.Query("t"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "t must be seconds")
		}
		duration, err := seconds(c.Query("duration"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "duration must be seconds")
		}
		pos, err := svc.Position(c.Context(), c.Params("id"), t, duration)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(pos)
	})

	r.Get("/sessions/:id/frames", func(c *fiber.Ctx) error {
		sched, err := scheduleFromQuery(c, svc)
		if err != nil {
			return err
		}
		info, err := svc.FrameInfo(c.Context(), c.Params("id"), sched)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(info)
	})

	r.Get("/sessions/:id/frames/:index", func(c *fiber.Ctx) error {
		index, err := strconv.Atoi(c.Params("index"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "index must be an integer")
		}
		sched, err := scheduleFromQuery(c, svc)
		if err != nil {
			return err
		}
		frame, err := svc.Frame(c.Context(), c.Params("id"), sched, index)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(frame)
	})

	r.Get("/sessions/:id/exports", func(c *fiber.Ctx) error {
		arts, err := svc.Exports(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		if arts == nil {
			arts = []artifact.Artifact{}
		}
		return c.JSON(arts)
	})

	r.Post("/sessions/:id/exports", func(c *fiber.Ctx) error {
		var req exportRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		duration, err := toDuration(req.DurationSec)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "duration_sec must be finite seconds")
		}
		if math.IsNaN(req.FrameRate) || math.IsInf(req.FrameRate, 0) {
			return fiber.NewError(fiber.StatusBadRequest, "frame_rate must be finite")
		}
		sched := svc.Schedule(duration, req.FrameRate)
		status, err := svc.StartExport(c.Context(), c.Params("id"), sched)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusAccepted).JSON(status)
	})

	r.Get("/exports/:id", func(c *fiber.Ctx) error {
		status, err := svc.Export(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(status)
	})

	r.Delete("/exports/:id", func(c *fiber.Ctx) error {
		if err := svc.CancelExport(c.Params("id")); err != nil {
			return httpError(err)
		}
		return c.SendStatus(fiber.StatusAccepted)
	})
}

func scheduleFromQuery(c *fiber.Ctx, svc *Service) (playback.Schedule, error) {
	duration, err := seconds(c.Query("duration"))
	if err != nil {
		return playback.Schedule{}, fiber.NewError(fiber.StatusBadRequest, "duration must be seconds")
	}
	fps := 0.0
	if raw := c.Query("fps"); raw != "" {
		if fps, err = strconv.ParseFloat(raw, 64); err != nil || math.IsNaN(fps) || math.IsInf(fps, 0) {
			return playback.Schedule{}, fiber.NewError(fiber.StatusBadRequest, "fps must be a number")
		}
	}
	return svc.Schedule(duration, fps), nil
}

// seconds parses a decimal seconds value; empty means zero.
func seconds(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	return toDuration(v)
}

var errBadSeconds = errors.New("seconds out of range")

func toDuration(sec float64) (time.Duration, error) {
	if math.IsNaN(sec) || math.Abs(sec) > float64(math.MaxInt64)/float64(time.Second) {
		return 0, errBadSeconds
	}
	return time.Duration(sec * float64(time.Second)), nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, tracking.ErrSessionNotFound),
		errors.Is(err, artifact.ErrArtifactNotFound),
		errors.Is(err, playback.ErrExportNotFound),
		errors.Is(err, playback.ErrFrameOutOfRange):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, playback.ErrInvalidSchedule):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, playback.ErrNoSamples):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrSessionNotFinished):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}

package tracking

import (
	"errors"

	"backend-railjourney/internal/track"

	"github.com/gofiber/fiber/v2"
)

type editRequest struct {
	Name        *string `json:"name"`
	IntervalSec *int    `json:"interval_sec"`
}

type filterRequest struct {
	ThresholdM   *float64 `json:"threshold_m"`
	MinDistanceM *float64 `json:"min_distance_m"`
}

type recoveryResponse struct {
	Recoverable bool     `json:"recoverable"`
	Session     *Session `json:"session,omitempty"`
}

func RegisterRoutes(r fiber.Router, ctl *Controller) {
	r.Get("/state", func(c *fiber.Ctx) error {
		st, err := ctl.State(c.Context())
		if err != nil {
			return httpError(err)
		}
		return c.JSON(st)
	})

	r.Post("/sessions", func(c *fiber.Ctx) error {
		var req StartInput
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		sess, err := ctl.Start(c.Context(), req)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(sess)
	})

	r.Post("/pause", func(c *fiber.Ctx) error {
		st, err := ctl.Pause(c.Context())
		if err != nil {
			return httpError(err)
		}
		return c.JSON(st)
	})

	r.Post("/resume", func(c *fiber.Ctx) error {
		st, err := ctl.Resume(c.Context())
		if err != nil {
			return httpError(err)
		}
		return c.JSON(st)
	})

	r.Post("/stop", func(c *fiber.Ctx) error {
		out, err := ctl.Stop(c.Context())
		if err != nil {
			return httpError(err)
		}
		return c.JSON(out)
	})

	r.Post("/fixes", func(c *fiber.Ctx) error {
		var fix track.Fix
		if err := c.BodyParser(&fix); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		res, err := ctl.SubmitFix(c.Context(), fix)
		if err != nil {
			return httpError(err)
		}
		if res.Accepted {
			return c.Status(fiber.StatusCreated).JSON(res)
		}
		return c.JSON(res)
	})

	r.Get("/recovery", func(c *fiber.Ctx) error {
		err := ctl.CheckRecovery(c.Context())
		var rec *RecoverableSessionError
		switch {
		case err == nil:
			return c.JSON(recoveryResponse{})
		case errors.As(err, &rec):
			return c.JSON(recoveryResponse{Recoverable: true, Session: &rec.Session})
		default:
			return httpError(err)
		}
	})

	r.Post("/recovery/:id/resume", func(c *fiber.Ctx) error {
		sess, err := ctl.ResumeRecovered(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(sess)
	})

	r.Post("/recovery/:id/finalize", func(c *fiber.Ctx) error {
		out, err := ctl.FinalizeRecovered(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(out)
	})

	r.Get("/filter", func(c *fiber.Ctx) error {
		s := ctl.Filter()
		return c.JSON(filterResponse(s.ThresholdM(), s.MinDistanceM()))
	})

	r.Put("/filter", func(c *fiber.Ctx) error {
		var req filterRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		s := ctl.UpdateFilter(req.ThresholdM, req.MinDistanceM)
		return c.JSON(filterResponse(s.ThresholdM(), s.MinDistanceM()))
	})

	r.Get("/sessions", func(c *fiber.Ctx) error {
		sessions, err := ctl.Sessions(c.Context())
		if err != nil {
			return httpError(err)
		}
		if sessions == nil {
			sessions = []Session{}
		}
		return c.JSON(sessions)
	})

	r.Get("/sessions/:id", func(c *fiber.Ctx) error {
		sess, err := ctl.Session(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(sess)
	})

	r.Patch("/sessions/:id", func(c *fiber.Ctx) error {
		var req editRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.Name == nil && req.IntervalSec == nil {
			return fiber.NewError(fiber.StatusBadRequest, "name or interval_sec required")
		}
		var (
			sess Session
			err  error
		)
		id := c.Params("id")
		if req.Name != nil {
			if sess, err = ctl.Rename(c.Context(), id, *req.Name); err != nil {
				return httpError(err)
			}
		}
		if req.IntervalSec != nil {
			if sess, err = ctl.SetInterval(c.Context(), id, *req.IntervalSec); err != nil {
				return httpError(err)
			}
		}
		return c.JSON(sess)
	})

	r.Delete("/sessions/:id", func(c *fiber.Ctx) error {
		if err := ctl.Delete(c.Context(), c.Params("id")); err != nil {
			return httpError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/sessions/:id/samples", func(c *fiber.Ctx) error {
		samples, err := ctl.Samples(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		if samples == nil {
			samples = []track.Sample{}
		}
		return c.JSON(samples)
	})

	r.Get("/sessions/:id/passes", func(c *fiber.Ctx) error {
		events, err := ctl.PassEvents(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(events)
	})

	r.Get("/sessions/:id/summary", func(c *fiber.Ctx) error {
		summary, err := ctl.Summary(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(summary)
	})

	r.Post("/sessions/:id/analysis", func(c *fiber.Ctx) error {
		out, err := ctl.Analyze(c.Context(), c.Params("id"), c.QueryBool("force"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(out)
	})
}

func filterResponse(thresholdM, minDistanceM float64) fiber.Map {
	return fiber.Map{"threshold_m": thresholdM, "min_distance_m": minDistanceM}
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidEdit):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrSessionActive),
		errors.Is(err, ErrNoActiveSession),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrSessionFinalized):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}

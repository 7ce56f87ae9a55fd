package station

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Post("/", func(c *fiber.Ctx) error {
		var req []Station
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		imported := make([]Station, 0, len(req))
		for _, st := range req {
			if st.ExternalID == "" || st.Name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "external_id and name required")
			}
			saved, err := svc.Import(c.Context(), st)
			if errors.Is(err, ErrStationExists) {
				return fiber.NewError(fiber.StatusConflict, st.ExternalID+": "+err.Error())
			}
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, err.Error())
			}
			imported = append(imported, saved)
		}
		return c.Status(fiber.StatusCreated).JSON(imported)
	})

	r.Get("/", func(c *fiber.Ctx) error {
		stations, err := svc.List(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(stations)
	})

	r.Get("/nearby", func(c *fiber.Ctx) error {
		lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
		lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
		if errLat != nil || errLng != nil {
			return fiber.NewError(fiber.StatusBadRequest, "lat and lng required")
		}
		radius, _ := strconv.ParseFloat(c.Query("radius_m"), 64)
		if radius <= 0 {
			radius = DefaultRadiusM
		}
		stations, err := svc.Nearby(c.Context(), lat, lng, radius)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(stations)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		st, err := svc.Get(c.Context(), c.Params("id"))
		if errors.Is(err, ErrStationNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(st)
	})

	r.Delete("/:id", func(c *fiber.Ctx) error {
		if err := svc.Delete(c.Context(), c.Params("id")); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

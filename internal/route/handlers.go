package route

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Post("/", func(c *fiber.Ctx) error {
		var req RailwayRoute
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.FromStationID == "" || req.ToStationID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "from_station_id and to_station_id required")
		}
		created, err := svc.Add(c.Context(), req)
		if errors.Is(err, ErrShortPolyline) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	})

	r.Get("/", func(c *fiber.Ctx) error {
		from, to := c.Query("from"), c.Query("to")
		if from == "" || to == "" {
			return fiber.NewError(fiber.StatusBadRequest, "from and to required")
		}
		routes, err := svc.Between(c.Context(), from, to)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(routes)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		rt, err := svc.Get(c.Context(), c.Params("id"))
		if errors.Is(err, ErrRouteNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(rt)
	})

	r.Delete("/:id", func(c *fiber.Ctx) error {
		if err := svc.Delete(c.Context(), c.Params("id")); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

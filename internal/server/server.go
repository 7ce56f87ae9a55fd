package server

import (
	"backend-railjourney/internal/artifact"
	"backend-railjourney/internal/config"
	"backend-railjourney/internal/filter"
	"backend-railjourney/internal/playback"
	"backend-railjourney/internal/replay"
	"backend-railjourney/internal/route"
	"backend-railjourney/internal/station"
	"backend-railjourney/internal/stream"
	"backend-railjourney/internal/tracking"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Stream   *stream.Hub
	Tracking *tracking.Controller
	Exports  *playback.Jobs

	stations  *station.Service
	routes    *route.Service
	artifacts *artifact.Service
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:       app,
		Cfg:       cfg,
		DB:        db,
		Redis:     redisClient,
		Stream:    stream.NewHub(redisClient),
		stations:  station.NewService(db),
		routes:    route.NewService(db),
		artifacts: artifact.NewService(db),
	}
	s.Tracking = tracking.NewController(
		tracking.NewPGStore(db),
		tracking.WithBroadcaster(s.Stream),
		tracking.WithStations(s.stations),
		tracking.WithDetector(station.NewDetector(cfg.StationRadiusM)),
		tracking.WithFilter(filter.NewSettings(cfg.FilterAccuracyThresholdM, cfg.FilterMinDistanceM)),
		tracking.WithDefaultInterval(cfg.RecordingIntervalSec),
	)
	s.Exports = playback.NewJobs(playback.NewExporter(cfg.ExportDir, nil, s.artifacts))

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	defaults := playback.NewSchedule(s.Cfg.PlaybackDuration(), s.Cfg.VideoFrameRate)

	tracking.RegisterRoutes(s.App.Group("/tracking"), s.Tracking)
	station.RegisterRoutes(s.App.Group("/stations"), s.stations)
	route.RegisterRoutes(s.App.Group("/routes"), s.routes)
	replay.RegisterRoutes(s.App.Group("/replay"), replay.NewService(s.Tracking, s.artifacts, s.Exports, defaults))
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}

// Close releases the held session, leaving it recoverable, and stops the
// stream relay.
func (s *Server) Close() {
	s.Tracking.Close()
	s.Stream.Close()
}

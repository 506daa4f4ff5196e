package router

import (
	"errors"
	"time"

	"github.com/mitrakarya/lending/config"
	mysqldb "github.com/mitrakarya/lending/infra/mysql"
	"github.com/mitrakarya/lending/middleware"
	ratelimiter "github.com/mitrakarya/lending/pkg/rate-limiter"
	"github.com/mitrakarya/lending/pkg/telemetry"
	"github.com/mitrakarya/lending/presenter"

	"github.com/gofiber/contrib/otelfiber/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func NewRouter(
	presenter presenter.Presenter,
	db *gorm.DB,
	tel *telemetry.OpenTelemetry,
	cfg *config.Config,
	limiter *ratelimiter.RateLimiter,
) *fiber.App {

	app := fiber.New(fiber.Config{
		BodyLimit:    10 * 1024 * 1024,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorHandler: ErrorCustomHandler(tel.Log),
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "http://localhost:5000",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, PATCH, OPTIONS",
	}))

	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${ip} ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	app.Use(otelfiber.Middleware(
		otelfiber.WithTracerProvider(tel.TracerProvider),
		otelfiber.WithPropagators(otel.GetTextMapPropagator()),
	))

	if cfg.REQUESTS_METRIC {
		zap.L().Info("Enabling HTTP request metrics middleware")
		app.Use(middleware.NewOtelMiddleware().Handle())
	} else {
		zap.L().Info("HTTP request metrics middleware is disabled")
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := mysqldb.Ping(db, c.Context()); err != nil {
			zap.L().Error("Health check failed: database ping error", zap.Error(err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":      "healthy",
			"service":     cfg.SERVICE_NAME,
			"version":     cfg.SERVICE_VERSION,
			"environment": cfg.ENVIRONMENT,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		})
	})

	api := app.Group("/api/v1")

	api.Use(limiter.RateLimitMiddleware())

	loansAPI := api.Group("/loans")
	{
		loansAPI.Post("/", presenter.LoanPresenter.Disburse)
		loansAPI.Post("/installments/mark-overdue", presenter.LoanPresenter.MarkOverdue)
		loansAPI.Get("/by-member/:memberId", presenter.LoanPresenter.ListByMember)

		loansAPI.Post("/:loanId/payments", presenter.LoanPresenter.RecordPayment)
		loansAPI.Post("/:loanId/advance/apply", presenter.LoanPresenter.ApplyAdvance)
		loansAPI.Post("/:loanId/charges/:chargeId/collect", presenter.LoanPresenter.CollectCharge)
		loansAPI.Get("/:loanId/charges", presenter.LoanPresenter.ListCharges)

		loansAPI.Patch("/:loanId/pause", presenter.LoanPresenter.Pause)
		loansAPI.Patch("/:loanId/deactivate", presenter.LoanPresenter.Deactivate)
		loansAPI.Patch("/:loanId/resume", presenter.LoanPresenter.Resume)
		loansAPI.Patch("/:loanId/close", presenter.LoanPresenter.Close)
		loansAPI.Patch("/:loanId/terms", presenter.LoanPresenter.UpdateTerms)

		loansAPI.Get("/:loanId", presenter.LoanPresenter.Get)
		loansAPI.Get("/:loanId/schedule", presenter.LoanPresenter.GetSchedule)
		loansAPI.Get("/:loanId/statement", presenter.LoanPresenter.GetStatement)
		loansAPI.Get("/:loanId/summary", presenter.LoanPresenter.GetSummary)
	}

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Resource not found",
			"path":    c.Path(),
		})
	})

	return app
}

func ErrorCustomHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
			message = e.Message
		}

		log.Error("Request error occured",
			zap.Error(err),
			zap.String("path", c.Path()),
			zap.String("method", c.Method()),
			zap.Int("status_code", code),
		)

		return c.Status(code).JSON(fiber.Map{
			"error":   true,
			"message": message,
			"code":    code,
		})
	}
}

package presenter

import (
	loanhandler "github.com/mitrakarya/lending/internal/handler/loan"
	"github.com/mitrakarya/lending/internal/repository"
	loansrv "github.com/mitrakarya/lending/internal/service/loan"

	"github.com/mitrakarya/lending/pkg/telemetry"

	"gorm.io/gorm"
)

type Presenter struct {
	LoanPresenter *loanhandler.LoanHandler
}

func NewPresenter(
	db *gorm.DB,
	tel *telemetry.OpenTelemetry,
) Presenter {
	// Repository
	loanRepositoryMeter := tel.MeterProvider.Meter("loan-repository-meter")
	loanRepositoryTracer := tel.TracerProvider.Tracer("loan-repository-tracer")
	loanRepository := repository.NewLoanRepository(
		db,
		loanRepositoryMeter,
		loanRepositoryTracer,
		tel.Log,
	)

	installmentRepositoryMeter := tel.MeterProvider.Meter("installment-repository-meter")
	installmentRepositoryTracer := tel.TracerProvider.Tracer("installment-repository-tracer")
	installmentRepository := repository.NewInstallmentRepository(
		db,
		installmentRepositoryMeter,
		installmentRepositoryTracer,
		tel.Log,
	)

	paymentRepositoryMeter := tel.MeterProvider.Meter("payment-repository-meter")
	paymentRepositoryTracer := tel.TracerProvider.Tracer("payment-repository-tracer")
	paymentRepository := repository.NewPaymentRepository(
		db,
		paymentRepositoryMeter,
		paymentRepositoryTracer,
		tel.Log,
	)

	chargeRepositoryMeter := tel.MeterProvider.Meter("charge-repository-meter")
	chargeRepositoryTracer := tel.TracerProvider.Tracer("charge-repository-tracer")
	chargeRepository := repository.NewChargeRepository(
		db,
		chargeRepositoryMeter,
		chargeRepositoryTracer,
		tel.Log,
	)

	ledgerRepositoryMeter := tel.MeterProvider.Meter("ledger-repository-meter")
	ledgerRepositoryTracer := tel.TracerProvider.Tracer("ledger-repository-tracer")
	ledgerRepository := repository.NewLedgerRepository(
		db,
		ledgerRepositoryMeter,
		ledgerRepositoryTracer,
		tel.Log,
	)

	memberRepositoryMeter := tel.MeterProvider.Meter("member-repository-meter")
	memberRepositoryTracer := tel.TracerProvider.Tracer("member-repository-tracer")
	memberRepository := repository.NewMemberRepository(
		db,
		memberRepositoryMeter,
		memberRepositoryTracer,
		tel.Log,
	)

	settingRepositoryMeter := tel.MeterProvider.Meter("setting-repository-meter")
	settingRepositoryTracer := tel.TracerProvider.Tracer("setting-repository-tracer")
	settingRepository := repository.NewSettingRepository(
		db,
		settingRepositoryMeter,
		settingRepositoryTracer,
		tel.Log,
	)

	// Service
	loanServiceMeter := tel.MeterProvider.Meter("loan-service-meter")
	loanServiceTracer := tel.TracerProvider.Tracer("loan-service-trace")
	loanService := loansrv.NewLoanService(
		db,
		loanRepository,
		installmentRepository,
		paymentRepository,
		chargeRepository,
		ledgerRepository,
		memberRepository,
		settingRepository,
		loanServiceMeter,
		loanServiceTracer,
		tel.Log,
	)

	// Handler
	loanHandlerMeter := tel.MeterProvider.Meter("loan-handler-meter")
	loanHandlerTracer := tel.TracerProvider.Tracer("loan-handler-trace")
	loanHandler := loanhandler.NewLoanHandler(
		loanService,
		loanHandlerMeter,
		loanHandlerTracer,
		tel.Log,
	)

	return Presenter{
		LoanPresenter: loanHandler,
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/dbritez/consultora-billing/internal/auth"
	"github.com/dbritez/consultora-billing/internal/catalog"
	"github.com/dbritez/consultora-billing/internal/config"
	"github.com/dbritez/consultora-billing/internal/db"
	"github.com/dbritez/consultora-billing/internal/exchange"
	"github.com/dbritez/consultora-billing/internal/excel"
	httphandler "github.com/dbritez/consultora-billing/internal/http"
	"github.com/dbritez/consultora-billing/internal/http/middleware"
	"github.com/dbritez/consultora-billing/internal/invoice"
	"github.com/dbritez/consultora-billing/internal/ledger"
	"github.com/dbritez/consultora-billing/internal/logger"
	"github.com/dbritez/consultora-billing/internal/notify"
	"github.com/dbritez/consultora-billing/internal/pdf"
	"github.com/dbritez/consultora-billing/internal/repository"
	"github.com/dbritez/consultora-billing/internal/sequence"
	"github.com/dbritez/consultora-billing/internal/sifen"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	stageRepo := repository.NewStageRepository(database)
	invoiceRepo := repository.NewInvoiceRepository(database)
	profileRepo := repository.NewProfileRepository(database)
	sequenceRepo := repository.NewSequenceRepository(database)

	catalogResolver := catalog.NewResolver(catalog.StaticLoader{}, cfg.Catalog.CacheTTL, cfg.Catalog.DefaultDepartmentCode, log)

	rateResolver := exchange.NewResolver([]exchange.Provider{
		exchange.NewMarketProvider(cfg.Exchange.MarketURL, cfg.Exchange.ProviderTimeout),
		exchange.NewCentralBankProvider(cfg.Exchange.CentralBankURL, cfg.Exchange.ProviderTimeout),
		exchange.NewLocalMarketProvider(cfg.Exchange.LocalMarketURL, cfg.Exchange.ProviderTimeout),
		exchange.NewInternationalProvider(cfg.Exchange.InternationalURL, "PYG", cfg.Exchange.ProviderTimeout),
	}, cfg.Exchange.ProviderTimeout, log)

	builder := invoice.NewBuilder(catalogResolver, log)
	sequencer := sequence.NewSequencer(sequenceRepo)
	gateway := sifen.NewClient(cfg.Sifen.BaseURL, cfg.Sifen.APIKey, cfg.Sifen.SubmitTimeout)
	notifier := notify.NewLogNotifier(log)

	ledgerService := ledger.NewService(
		stageRepo,
		invoiceRepo,
		profileRepo,
		rateResolver,
		builder,
		sequencer,
		gateway,
		notifier,
		cfg.Exchange.FallbackRate,
		cfg.Sifen.SubmitTimeout,
		log,
	)

	pdfGenerator, err := pdf.NewGenerator()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init pdf generator")
	}
	excelGenerator := excel.NewGenerator()

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(ledgerService, excelGenerator, pdfGenerator, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting billing service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

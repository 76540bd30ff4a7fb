package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ogurasousui/payroll-orchestrator/internal/adapters/backend/httpapi"
	"github.com/ogurasousui/payroll-orchestrator/internal/adapters/grpc/handler"
	"github.com/ogurasousui/payroll-orchestrator/internal/adapters/repository/postgres"
	"github.com/ogurasousui/payroll-orchestrator/internal/core/offcycle"
	"github.com/ogurasousui/payroll-orchestrator/internal/core/orchestrator"
	"github.com/ogurasousui/payroll-orchestrator/internal/core/runstate"
	"github.com/ogurasousui/payroll-orchestrator/internal/platform/config"
	pg "github.com/ogurasousui/payroll-orchestrator/internal/platform/db/postgres"
	"github.com/ogurasousui/payroll-orchestrator/internal/platform/logging"
	"github.com/ogurasousui/payroll-orchestrator/internal/platform/server"
	"github.com/rs/zerolog"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	dbPool, err := pg.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("initialize database pool: %w", err)
	}
	defer dbPool.Close()

	txManager := pg.NewTransactionManager(dbPool, pg.WithTxLogger(log))
	stateRepo := postgres.NewStateRepository(dbPool)

	backend, err := httpapi.New(cfg.Backend.BaseURL,
		httpapi.WithTimeout(cfg.Backend.Timeout),
		httpapi.WithLogger(log.With().Str("component", "backend").Logger()),
	)
	if err != nil {
		return fmt.Errorf("initialize backend client: %w", err)
	}

	registry := offcycle.NewRegistry(backend, stateRepo, log.With().Str("component", "offcycle").Logger())

	variants := []struct {
		variant  orchestrator.Variant
		consumer orchestrator.ElementConsumer
	}{
		{variant: buildVariant(orchestrator.VariantPrimary, cfg.Payroll.Primary, false)},
		{variant: buildVariant(orchestrator.VariantOffCycle, cfg.Payroll.OffCycle, true), consumer: registry},
	}

	controllers := make([]*orchestrator.Controller, 0, len(variants))
	for _, v := range variants {
		storeLog := log.With().Str("variant", v.variant.Name).Logger()
		store := runstate.NewStore(stateRepo, runstate.NewKeys(v.variant.KeyPrefix), txManager, storeLog)
		ctrl, err := orchestrator.NewController(ctx, orchestrator.Options{
			Variant:  v.variant,
			Backend:  backend,
			Store:    store,
			Consumer: v.consumer,
			Logger:   log,
		})
		if err != nil {
			for _, c := range controllers {
				c.Close()
			}
			return fmt.Errorf("initialize %s controller: %w", v.variant.Name, err)
		}
		controllers = append(controllers, ctrl)
	}

	manager := orchestrator.NewManager(controllers...)
	defer manager.Close()

	payrollHandler := handler.NewPayrollGrpcHandler(manager, registry, log.With().Str("component", "grpc").Logger())
	grpcServer := server.New(cfg.Server.ListenAddr, payrollHandler, log)

	return grpcServer.Run(ctx)
}

func buildVariant(name string, vc config.VariantConfig, offCycle bool) orchestrator.Variant {
	return orchestrator.Variant{
		Name:                     name,
		PollInterval:             vc.PollInterval,
		AllowBackFromApproval:    vc.BackAllowed(),
		PartitionStartersLeavers: vc.Partitioned(),
		KeyPrefix:                vc.KeyPrefix,
		OffCycle:                 offCycle,
	}
}

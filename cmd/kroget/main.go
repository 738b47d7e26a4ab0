// Command kroget maintains reusable grocery staple lists, builds reviewable
// cart proposals against the Kroger catalog, and applies confirmed proposals
// to the remote cart without double-sending.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/krogetapp/kroget/internal/config"
	"github.com/krogetapp/kroget/internal/domain/models"
	"github.com/krogetapp/kroget/internal/repository/file"
	"github.com/krogetapp/kroget/internal/service/auth"
	"github.com/krogetapp/kroget/internal/service/cart"
	"github.com/krogetapp/kroget/internal/service/catalog"
	proposalsvc "github.com/krogetapp/kroget/internal/service/proposal"
	"github.com/krogetapp/kroget/pkg/clients/kroger"
	"github.com/krogetapp/kroget/pkg/logger"
)

var (
	flagJSON    bool
	flagEnvFile string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:           "kroget",
	Short:         "Staple lists and idempotent cart proposals for Kroger",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// app holds the wired object graph for one invocation.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	client    *kroger.APIClient
	staples   *file.StaplesRepository
	ledger    *file.LedgerRepository
	proposals *file.ProposalRepository
	settings  *file.SettingsRepository
	tokenRepo *file.TokenRepository
	tokens    *auth.Manager
	resolver  *catalog.Resolver
	builder   *proposalsvc.Builder
	engine    *cart.Engine
}

var sharedApp *app

// getApp wires the application lazily so help and version never require
// credentials.
func getApp() (*app, error) {
	if sharedApp != nil {
		return sharedApp, nil
	}

	cfg, err := config.Load(flagEnvFile)
	if err != nil {
		return nil, err
	}

	baseLogger, err := logger.NewCLI(flagVerbose)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	client := kroger.NewClient(cfg.Kroger)
	dataDir := cfg.Storage.DataDir

	staples := file.NewStaplesRepository(dataDir)
	ledger := file.NewLedgerRepository(dataDir)
	proposals := file.NewProposalRepository(dataDir)
	settings := file.NewSettingsRepository(dataDir)
	tokenRepo := file.NewTokenRepository(dataDir)

	tokens := auth.NewManager(client, tokenRepo, logger.Named(baseLogger, "svc.auth"))
	resolver := catalog.NewResolver(client, tokens, logger.Named(baseLogger, "svc.catalog"))
	builder := proposalsvc.NewBuilder(resolver, nil, logger.Named(baseLogger, "svc.proposal"))
	engine := cart.NewEngine(client, tokens, ledger, logger.Named(baseLogger, "svc.cart"))

	sharedApp = &app{
		cfg:       cfg,
		logger:    baseLogger,
		client:    client,
		staples:   staples,
		ledger:    ledger,
		proposals: proposals,
		settings:  settings,
		tokenRepo: tokenRepo,
		tokens:    tokens,
		resolver:  resolver,
		builder:   builder,
		engine:    engine,
	}
	return sharedApp, nil
}

// resolveLocationID prefers the explicit flag, falling back to the stored
// default location.
func (a *app) resolveLocationID(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	settings, err := a.settings.Load()
	if err != nil {
		return "", err
	}
	if settings.DefaultLocationID == "" {
		return "", fmt.Errorf("location id required: pass --location or run `kroget config set-location`")
	}
	return settings.DefaultLocationID, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// gatherLists loads the named lists, or just the active list when none were
// named, preserving the given order.
func (a *app) gatherLists(names []string) ([]models.StapleList, error) {
	if len(names) == 0 {
		active, err := a.staples.List("")
		if err != nil {
			return nil, err
		}
		return []models.StapleList{active}, nil
	}
	lists := make([]models.StapleList, 0, len(names))
	for _, name := range names {
		list, err := a.staples.List(name)
		if err != nil {
			return nil, err
		}
		lists = append(lists, list)
	}
	return lists, nil
}

func main() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit machine-readable JSON output")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", "", "path to an env file with credentials")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		staplesCmd,
		listsCmd,
		productsCmd,
		locationsCmd,
		authCmd,
		proposeCmd,
		applyCmd,
		sentCmd,
		configCmd,
		doctorCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ferreirogomes/starnotary/blockchain_listener"
	"github.com/ferreirogomes/starnotary/handlers"
	"github.com/ferreirogomes/starnotary/logs"
	"github.com/ferreirogomes/starnotary/services"
	"github.com/ferreirogomes/starnotary/storage"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"run"},
	Short:   "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	conf := compositor.Conf
	logger := logs.SetupLogger(conf.Log)

	db, err := storage.NewDB(conf.Database.Driver, conf.Database.DSN, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	registry := services.NewStarRegistry(conf.Collection.Name, conf.Collection.Symbol, db)

	// Sem chave da tesouraria o serviço roda sem liquidação on-chain
	var settlement services.Settlement
	var solanaS *services.SolanaSettlementService
	if conf.Solana.TreasuryKey != "" {
		solanaS, err = services.NewSolanaSettlementService(conf.Solana.RPCURL, conf.Solana.TreasuryKey, logger)
		if err != nil {
			return err
		}
		settlement = solanaS
		logger.Info("liquidação Solana ativa", slog.String("treasury", solanaS.TreasuryAddress().String()))
	}

	notary := services.NewNotaryService(registry, settlement, logger)
	if err := notary.Bootstrap(ctx, db); err != nil {
		return err
	}

	if conf.Solana.Listen && solanaS != nil {
		listener := blockchain_listener.NewBlockchainListener(
			conf.Solana.RPCURL, conf.Solana.WSURL, solanaS.TreasuryAddress(), registry, logger,
		)
		go func() {
			if err := listener.StartListening(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("listener da blockchain parou", slog.Any("error", err))
			}
		}()
	}

	router := handlers.NewRouter(
		handlers.NewStarHandler(notary, db),
		handlers.NewAccountHandler(notary, conf.Ledger.Faucet),
		handlers.RouterOptions{
			Logger:           logger,
			AllowedOrigins:   conf.HTTPServer.AllowedOrigins,
			RequireSignature: conf.Auth.RequireSignature,
			SignatureWindow:  conf.Auth.SignatureWindow,
		},
	)

	srv := &http.Server{
		Addr:         conf.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  conf.HTTPServer.Timeout,
		WriteTimeout: conf.HTTPServer.Timeout,
		IdleTimeout:  conf.HTTPServer.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("servidor HTTP iniciado", slog.String("address", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("encerrando servidor HTTP")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

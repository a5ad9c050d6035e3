package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/reel/internal/auth"
	"github.com/MarcoPoloResearchLab/reel/internal/catalog"
	"github.com/MarcoPoloResearchLab/reel/internal/config"
	"github.com/MarcoPoloResearchLab/reel/internal/database"
	"github.com/MarcoPoloResearchLab/reel/internal/logging"
	"github.com/MarcoPoloResearchLab/reel/internal/server"
	"github.com/MarcoPoloResearchLab/reel/internal/storage"
	"github.com/MarcoPoloResearchLab/reel/internal/users"
	"github.com/MarcoPoloResearchLab/reel/internal/workflows"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "reel-api",
		Short: "Reel video sharing backend service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newTokenCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("database-dsn", "", "Postgres connection string")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "TAuth signing secret (overrides env)")
	cmd.PersistentFlags().String("storage-bucket", "", "Bucket receiving direct uploads")
	cmd.PersistentFlags().String("redis-address", "", "Redis address or URL for workflow jobs")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "tauth.signing_secret", "signing-secret")
	bindFlag(cmd, "storage.bucket", "storage-bucket")
	bindFlag(cmd, "workflows.redis_address", "redis-address")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(database.Options{
		Driver: appConfig.DatabaseDriver,
		Path:   appConfig.DatabasePath,
		DSN:    appConfig.DatabaseDSN,
	}, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.TAuthSigningKey),
		Issuer:        appConfig.TAuthIssuer,
		CookieName:    appConfig.TAuthCookieName,
	})
	if err != nil {
		return err
	}

	userService, err := users.NewService(users.ServiceConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	catalogConfig := catalog.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: catalog.NewUUIDProvider(),
		Logger:     logger,
	}

	if appConfig.StorageBucket != "" {
		signer, err := storage.NewResumableSigner(ctx, storage.SignerConfig{
			Bucket:   appConfig.StorageBucket,
			AccessID: appConfig.StorageSigner,
			TTL:      appConfig.UploadTTL,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		catalogConfig.Uploads = signer
	} else {
		logger.Warn("storage bucket not configured; uploads will not be signed")
	}

	if appConfig.RedisAddress != "" {
		redisClient, err := workflows.NewRedisClient(appConfig.RedisAddress)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		trigger, err := workflows.NewRedisTrigger(workflows.RedisTriggerConfig{
			Client: redisClient,
			Stream: appConfig.WorkflowStream,
			Logger: logger,
		})
		if err != nil {
			return err
		}
		catalogConfig.Jobs = trigger
	} else {
		logger.Warn("redis address not configured; workflow triggers are disabled")
	}

	catalogService, err := catalog.NewService(catalogConfig)
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		SessionValidator:   sessionValidator,
		Identities:         userService,
		Catalog:            catalogService,
		Logger:             logger,
		AllowedOrigins:     appConfig.CORSAllowedOrigins,
		MutationsPerMinute: appConfig.MutationsPerMinute,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// newTokenCommand mints a session token for local development against a server
// sharing the same TAuth signing secret.
func newTokenCommand() *cobra.Command {
	var (
		userID      string
		email       string
		displayName string
		ttl         time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			configViper := viper.GetViper()
			secret := configViper.GetString("tauth.signing_secret")
			if secret == "" {
				return fmt.Errorf("tauth.signing_secret is required")
			}
			issuer, err := auth.NewSessionIssuer(auth.SessionIssuerConfig{
				SigningSecret: []byte(secret),
				Issuer:        configViper.GetString("tauth.issuer"),
				TokenTTL:      ttl,
			})
			if err != nil {
				return err
			}
			token, expiresAt, err := issuer.Issue(auth.SessionIdentity{
				UserID:      userID,
				Email:       email,
				DisplayName: displayName,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "Subject of the token")
	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().StringVar(&displayName, "name", "", "Display name claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/simaogato/indexfund-backend/internal/adapter/clock"
	grpcadapter "github.com/simaogato/indexfund-backend/internal/adapter/grpc"
	"github.com/simaogato/indexfund-backend/internal/adapter/messaging"
	"github.com/simaogato/indexfund-backend/internal/adapter/repository/memory"
	"github.com/simaogato/indexfund-backend/internal/adapter/repository/postgres"
	"github.com/simaogato/indexfund-backend/internal/app"
	"github.com/simaogato/indexfund-backend/internal/config"
	"github.com/simaogato/indexfund-backend/internal/domain"
	"github.com/simaogato/indexfund-backend/internal/usecase/seeder"
)

var serveConf config.ServerConfig

func init() {
	config.SetupLogFlags(&serveConf.Log, serveCmd)
	config.SetupDatabaseFlags(&serveConf.Database, serveCmd)
	config.SetupRedisFlags(&serveConf.Redis, serveCmd)
	config.SetupServerFlags(&serveConf.Server, serveCmd)
	config.SetupFundFlags(&serveConf.Fund, serveCmd)
	config.SetupGovernanceFlags(&serveConf.Governance, serveCmd)
	config.SetupAuthFlags(&serveConf.Auth, serveCmd)

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the gRPC server and the confirmation consumer.",
	Long: `Runs the IndexFundService gRPC server. When redis is configured, outbound
cross-chain instructions are queued on a redis stream and confirmations are
consumed from another one.`,
	PreRunE: setupServe,
	RunE:    serve,
}

var logCloser io.Closer

func setupServe(cmd *cobra.Command, _ []string) error {
	if err := bindFlags(cmd, viperConf); err != nil {
		return err
	}
	if err := serveConf.Validate(); err != nil {
		return err
	}

	closer, err := config.ConfigureLogger(serveConf.Log.Path, serveConf.Log.Level, serveConf.Log.Pretty)
	if err != nil {
		return err
	}
	logCloser = closer

	if ignored := config.CheckSuperfluousKeys(viperConf.AllKeys()); len(ignored) > 0 {
		log.Warn().Strs("keys", ignored).Msg("ignoring unknown config keys")
	}
	return nil
}

// closers run in reverse order on shutdown
type closers []func() error

func (c closers) close() {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}
}

func serve(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var cleanup closers
	defer func() {
		cleanup.close()
		_ = logCloser.Close()
	}()

	// 1. Storage
	repos, tx, closeDB, err := openStorage(ctx, serveConf.Database)
	if err != nil {
		return err
	}
	cleanup = append(cleanup, closeDB)

	// 2. Messaging
	var sender domain.MessageSender = messaging.Disabled{}
	var rdb *redis.Client
	if serveConf.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     serveConf.Redis.Addr,
			Password: serveConf.Redis.Password,
			DB:       serveConf.Redis.DB,
		})
		cleanup = append(cleanup, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		sender = messaging.NewOutbox(rdb, serveConf.Redis.OutboundStream, serveConf.Redis.MaxLen)
	} else {
		log.Warn().Msg("redis not configured, cross-chain operations are disabled")
	}

	// 3. Services
	params, err := fundParams(serveConf)
	if err != nil {
		return err
	}
	genesis, _ := serveConf.Fund.Genesis(time.Now())
	fund := app.New(repos, tx, clock.NewBlockClock(genesis, serveConf.Fund.BlockTime), sender, params)

	if serveConf.Fund.GenesisFile != "" {
		g, err := seeder.LoadGenesis(serveConf.Fund.GenesisFile)
		if err != nil {
			return err
		}
		if err := fund.Seeder.Seed(ctx, g); err != nil {
			return fmt.Errorf("failed to apply genesis: %w", err)
		}
	}

	// 4. Confirmation consumer
	if rdb != nil {
		consumer := messaging.NewConsumer(
			rdb,
			serveConf.Redis.InboundStream,
			serveConf.Redis.Group,
			serveConf.Redis.Consumer,
			fund.Serializer,
			fund.Redemptions,
			fund.Remote,
		)
		go func() {
			if err := consumer.Consume(ctx); err != nil {
				log.Error().Err(err).Msg("confirmation consumer stopped")
				stop()
			}
		}()
	}

	// 5. gRPC server
	tokens, _ := serveConf.Auth.TokenTable()
	auth := grpcadapter.NewAuthenticator(tokens, serveConf.Auth.RootAccounts())
	grpcServer := grpclib.NewServer(
		grpclib.UnaryInterceptor(grpcadapter.AuthInterceptor(auth)),
	)
	grpcadapter.RegisterIndexFundServiceServer(grpcServer, grpcadapter.NewServer(
		fund.Serializer,
		fund.Ledger,
		fund.Prices,
		fund.Index,
		fund.Safts,
		fund.Remote,
		fund.Redemptions,
		fund.Committee,
		fund.Dashboard,
	))
	reflection.Register(grpcServer)

	addr := fmt.Sprintf(":%d", serveConf.Server.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("gRPC server listening")
		serveErr <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down gracefully")
		grpcServer.GracefulStop()
		log.Info().Msg("gRPC server stopped")
		return nil
	case err := <-serveErr:
		return fmt.Errorf("failed to serve gRPC server: %w", err)
	}
}

func openStorage(ctx context.Context, conf config.Database) (app.Repositories, domain.TxManager, func() error, error) {
	if conf.Storage == config.StorageMemory {
		store := memory.NewStore()
		log.Warn().Msg("using in-memory storage, state is lost on exit")
		return app.MemoryRepositories(store), store, func() error { return nil }, nil
	}

	db, err := connectWithRetry(ctx, conf.ConnectionString(), 5)
	if err != nil {
		return app.Repositories{}, nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return app.Repositories{}, nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return app.PostgresRepositories(db), db, db.Close, nil
}

func connectWithRetry(ctx context.Context, dsn string, attempts int) (*postgres.DB, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		db, err := postgres.NewDB(dsn)
		if err == nil {
			return db, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", i+1).Msg("database not ready")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return nil, errors.Join(errors.New("failed to connect to database"), lastErr)
}

func fundParams(conf config.ServerConfig) (app.Params, error) {
	self, err := conf.Fund.Location()
	if err != nil {
		return app.Params{}, err
	}
	minimum, err := conf.Fund.Minimum()
	if err != nil {
		return app.Params{}, err
	}
	rules, err := conf.Governance.Rules()
	if err != nil {
		return app.Params{}, err
	}
	return app.Params{
		Treasury:           domain.AccountID(conf.Fund.Treasury),
		Controller:         domain.AccountID(conf.Fund.Controller),
		SelfLocation:       self,
		Reporters:          conf.Fund.ReporterAccounts(),
		TransferableAssets: conf.Fund.Assets(),
		MinimumRedemption:  minimum,
		Rules:              rules,
	}, nil
}

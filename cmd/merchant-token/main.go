package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/builders-garden/swifty/internal/config"
	"github.com/builders-garden/swifty/internal/domain/entities"
	domainrepo "github.com/builders-garden/swifty/internal/domain/repositories"
	"github.com/builders-garden/swifty/internal/infrastructure/datasources/postgres"
	"github.com/builders-garden/swifty/internal/infrastructure/repositories"
	"github.com/builders-garden/swifty/pkg/jwt"
)

var openMerchantDB = func(cfg config.DatabaseConfig) (*gorm.DB, error) {
	sqlDB, err := postgres.NewConnection(cfg)
	if err != nil {
		return nil, err
	}
	return postgres.OpenGorm(sqlDB)
}

var openMerchantSQLDB = func(db *gorm.DB) (io.Closer, error) {
	return db.DB()
}

type tokenIssuer interface {
	IssueToken(merchantID uuid.UUID, address string) (string, time.Time, error)
}

type merchantTokenRuntime interface {
	GetUserByID(ctx context.Context, userID uuid.UUID) (*entities.User, error)
	tokenIssuer
}

type merchantTokenDeps struct {
	loadEnv func() error
	loadCfg func() *config.Config
	prepare func(cfg *config.Config) (merchantTokenRuntime, io.Closer, error)
	out     io.Writer
}

type merchantTokenRuntimeImpl struct {
	userRepo domainrepo.UserRepository
	issuer   tokenIssuer
}

func (r merchantTokenRuntimeImpl) GetUserByID(ctx context.Context, userID uuid.UUID) (*entities.User, error) {
	return r.userRepo.GetByID(ctx, userID)
}

func (r merchantTokenRuntimeImpl) IssueToken(merchantID uuid.UUID, address string) (string, time.Time, error) {
	return r.issuer.IssueToken(merchantID, address)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func defaultMerchantTokenDeps() merchantTokenDeps {
	return merchantTokenDeps{
		loadEnv: func() error { return godotenv.Load() },
		loadCfg: config.Load,
		prepare: func(cfg *config.Config) (merchantTokenRuntime, io.Closer, error) {
			db, err := openMerchantDB(cfg.Database)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to connect db: %w", err)
			}

			sqlDB, err := openMerchantSQLDB(db)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to init sql db: %w", err)
			}

			return merchantTokenRuntimeImpl{
				userRepo: repositories.NewUserRepository(db),
				issuer:   jwt.NewJWTService(cfg.JWT.Secret, resolveExpiry(0, cfg.JWT.AccessExpiry)),
			}, sqlDB, nil
		},
		out: os.Stdout,
	}
}

func parseMerchantID(merchantID string) (uuid.UUID, error) {
	if merchantID == "" {
		return uuid.Nil, fmt.Errorf("--merchant-id is required")
	}
	return uuid.Parse(merchantID)
}

// resolveExpiry prefers the flag value over the configured access expiry
func resolveExpiry(flagValue, configured time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	if configured > 0 {
		return configured
	}
	return 15 * time.Minute
}

func runMerchantToken(args []string, deps merchantTokenDeps) error {
	if deps.loadEnv == nil {
		deps.loadEnv = func() error { return godotenv.Load() }
	}
	if deps.loadCfg == nil {
		deps.loadCfg = config.Load
	}
	if deps.prepare == nil {
		deps.prepare = defaultMerchantTokenDeps().prepare
	}
	if deps.out == nil {
		deps.out = os.Stdout
	}

	fs := flag.NewFlagSet("merchant-token", flag.ContinueOnError)
	merchantIDFlag := fs.String("merchant-id", "", "merchant UUID (required)")
	expiryFlag := fs.Duration("expiry", 0, "token lifetime (defaults to JWT_ACCESS_EXPIRY)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	merchantID, err := parseMerchantID(*merchantIDFlag)
	if err != nil {
		return err
	}

	if err := deps.loadEnv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := deps.loadCfg()
	cfg.JWT.AccessExpiry = resolveExpiry(*expiryFlag, cfg.JWT.AccessExpiry)

	runtime, closer, err := deps.prepare(cfg)
	if err != nil {
		return err
	}
	if closer == nil {
		closer = nopCloser{}
	}
	defer closer.Close()

	merchant, err := runtime.GetUserByID(context.Background(), merchantID)
	if err != nil {
		return fmt.Errorf("failed to load merchant %s: %w", merchantID, err)
	}

	token, expiresAt, err := runtime.IssueToken(merchant.ID, merchant.Address.Hex())
	if err != nil {
		return fmt.Errorf("failed issuing token: %w", err)
	}

	_, _ = fmt.Fprintln(deps.out, "Issued merchant access token")
	_, _ = fmt.Fprintf(deps.out, "merchant_id=%s\n", merchant.ID.String())
	_, _ = fmt.Fprintf(deps.out, "merchant=%s\n", merchant.DisplayName())
	_, _ = fmt.Fprintf(deps.out, "expires_at=%s\n", expiresAt.UTC().Format(time.RFC3339))
	_, _ = fmt.Fprintf(deps.out, "TOKEN=%s\n", token)
	return nil
}

func main() {
	if err := runMerchantToken(os.Args[1:], defaultMerchantTokenDeps()); err != nil {
		log.Fatal(err)
	}
}

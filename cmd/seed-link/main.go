package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"

	"github.com/builders-garden/swifty/internal/config"
	"github.com/builders-garden/swifty/internal/domain/entities"
	"github.com/builders-garden/swifty/internal/infrastructure/datasources/postgres"
	"github.com/builders-garden/swifty/internal/infrastructure/models"
	"github.com/builders-garden/swifty/internal/infrastructure/repositories"
	"github.com/builders-garden/swifty/internal/usecases"
)

var openSeedDB = func(cfg config.DatabaseConfig) (*gorm.DB, error) {
	sqlDB, err := postgres.NewConnection(cfg)
	if err != nil {
		return nil, err
	}
	return postgres.OpenGorm(sqlDB)
}

var openSeedSQLDB = func(db *gorm.DB) (io.Closer, error) {
	return db.DB()
}

type linkCreator interface {
	CreateLink(ctx context.Context, merchant *entities.User, link *entities.PaymentLink) error
}

type seedLinkDeps struct {
	loadEnv func() error
	loadCfg func() *config.Config
	prepare func(cfg *config.Config) (linkCreator, io.Closer, error)
	out     io.Writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func defaultSeedLinkDeps() seedLinkDeps {
	return seedLinkDeps{
		loadEnv: func() error { return godotenv.Load() },
		loadCfg: config.Load,
		prepare: func(cfg *config.Config) (linkCreator, io.Closer, error) {
			db, err := openSeedDB(cfg.Database)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to connect db: %w", err)
			}

			sqlDB, err := openSeedSQLDB(db)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to init sql db: %w", err)
			}

			if err := models.AutoMigrate(db); err != nil {
				_ = sqlDB.Close()
				return nil, nil, fmt.Errorf("failed to migrate: %w", err)
			}

			return usecases.NewPaymentLinkUsecase(
				repositories.NewPaymentLinkRepository(db),
				repositories.NewUserRepository(db),
				entities.DefaultCatalog(),
				repositories.NewUnitOfWork(db),
			), sqlDB, nil
		},
		out: os.Stdout,
	}
}

type seedLinkInput struct {
	merchantID      string
	merchantAddress string
	smartAccount    string
	company         string
	slug            string
	product         string
	description     string
	price           string
	method          string
	requireIdentity bool
	redirectURL     string
}

// buildLink validates the flags and returns the merchant and link to store.
// A merchant without an id is created together with the link.
func buildLink(in seedLinkInput) (*entities.User, *entities.PaymentLink, error) {
	merchant := &entities.User{}
	if in.merchantID != "" {
		id, err := uuid.Parse(in.merchantID)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid --merchant-id: %w", err)
		}
		merchant.ID = id
	} else {
		if !common.IsHexAddress(in.merchantAddress) {
			return nil, nil, fmt.Errorf("--merchant-address must be an EVM address when --merchant-id is not set")
		}
		merchant.Address = common.HexToAddress(in.merchantAddress)
		merchant.SmartAccountAddress = merchant.Address
		if in.smartAccount != "" {
			if !common.IsHexAddress(in.smartAccount) {
				return nil, nil, fmt.Errorf("invalid --smart-account %q", in.smartAccount)
			}
			merchant.SmartAccountAddress = common.HexToAddress(in.smartAccount)
		}
		if in.company != "" {
			merchant.CompanyName = null.StringFrom(in.company)
		}
	}

	slug := strings.TrimSpace(in.slug)
	if slug == "" {
		return nil, nil, fmt.Errorf("--slug is required")
	}
	if strings.TrimSpace(in.product) == "" {
		return nil, nil, fmt.Errorf("--product is required")
	}
	price, err := decimal.NewFromString(in.price)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid --price %q: %w", in.price, err)
	}

	return merchant, &entities.PaymentLink{
		Slug: slug,
		Product: entities.Product{
			Name:          in.product,
			Description:   in.description,
			Price:         price,
			PaymentMethod: entities.PaymentMethod(strings.ToUpper(in.method)),
		},
		RequiresIdentityVerification: in.requireIdentity,
		RedirectURL:                  in.redirectURL,
	}, nil
}

func runSeedLink(args []string, deps seedLinkDeps) error {
	if deps.loadEnv == nil {
		deps.loadEnv = func() error { return godotenv.Load() }
	}
	if deps.loadCfg == nil {
		deps.loadCfg = config.Load
	}
	if deps.prepare == nil {
		deps.prepare = defaultSeedLinkDeps().prepare
	}
	if deps.out == nil {
		deps.out = os.Stdout
	}

	var in seedLinkInput
	fs := flag.NewFlagSet("seed-link", flag.ContinueOnError)
	fs.StringVar(&in.merchantID, "merchant-id", "", "existing merchant UUID")
	fs.StringVar(&in.merchantAddress, "merchant-address", "", "EOA of a new merchant")
	fs.StringVar(&in.smartAccount, "smart-account", "", "smart account receiving subscriptions (defaults to the EOA)")
	fs.StringVar(&in.company, "company", "", "company name of a new merchant")
	fs.StringVar(&in.slug, "slug", "", "payment link slug (required)")
	fs.StringVar(&in.product, "product", "", "product name (required)")
	fs.StringVar(&in.description, "description", "", "product description")
	fs.StringVar(&in.price, "price", "", "USD price (required)")
	fs.StringVar(&in.method, "method", string(entities.PaymentMethodOneTime), "ONE_TIME or RECURRING")
	fs.BoolVar(&in.requireIdentity, "require-identity", false, "require identity verification before paying")
	fs.StringVar(&in.redirectURL, "redirect-url", "", "redirect after a successful payment")
	if err := fs.Parse(args); err != nil {
		return err
	}

	merchant, link, err := buildLink(in)
	if err != nil {
		return err
	}

	if err := deps.loadEnv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	creator, closer, err := deps.prepare(deps.loadCfg())
	if err != nil {
		return err
	}
	if closer == nil {
		closer = nopCloser{}
	}
	defer closer.Close()

	if err := creator.CreateLink(context.Background(), merchant, link); err != nil {
		return fmt.Errorf("failed creating payment link: %w", err)
	}

	_, _ = fmt.Fprintln(deps.out, "Created payment link")
	_, _ = fmt.Fprintf(deps.out, "merchant_id=%s\n", link.MerchantID.String())
	_, _ = fmt.Fprintf(deps.out, "link_id=%s\n", link.ID.String())
	_, _ = fmt.Fprintf(deps.out, "product_id=%s\n", link.Product.ID.String())
	_, _ = fmt.Fprintf(deps.out, "slug=%s\n", link.Slug)
	_, _ = fmt.Fprintf(deps.out, "payment_method=%s\n", link.Product.PaymentMethod)
	return nil
}

func main() {
	if err := runSeedLink(os.Args[1:], defaultSeedLinkDeps()); err != nil {
		log.Fatal(err)
	}
}

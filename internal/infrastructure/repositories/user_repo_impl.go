package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"

	"github.com/builders-garden/swifty/internal/domain/entities"
	domainerrors "github.com/builders-garden/swifty/internal/domain/errors"
	"github.com/builders-garden/swifty/internal/infrastructure/models"
)

// UserRepository implements merchant account data operations
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new merchant account
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	m := &models.User{
		ID:                  user.ID,
		Address:             user.Address.Hex(),
		SmartAccountAddress: user.SmartAccountAddress.Hex(),
		CompanyName:         user.CompanyName.Ptr(),
		CreatedAt:           user.CreatedAt,
		UpdatedAt:           user.CreatedAt,
	}
	return GetDB(ctx, r.db).Create(m).Error
}

// GetByID gets a merchant account by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	var m models.User
	if err := GetDB(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return userToEntity(&m), nil
}

func userToEntity(m *models.User) *entities.User {
	return &entities.User{
		ID:                  m.ID,
		Address:             common.HexToAddress(m.Address),
		SmartAccountAddress: common.HexToAddress(m.SmartAccountAddress),
		CompanyName:         null.StringFromPtr(m.CompanyName),
		CreatedAt:           m.CreatedAt,
	}
}

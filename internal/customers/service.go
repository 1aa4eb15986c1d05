package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/shopkeeper/pkg/db"
	"github.com/angelmondragon/shopkeeper/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopkeeper/pkg/errors"
	"github.com/go-playground/validator/v10"
)

const (
	defaultRecentLimit = 50
	countryPrefix      = "+998"
)

// Service registers and looks up customers.
type Service interface {
	Create(ctx context.Context, name, phone string) (*models.Customer, error)
	Get(ctx context.Context, id uint64) (*models.Customer, error)
	ListRecent(ctx context.Context, limit int) ([]models.Customer, error)
}

type createInput struct {
	Name  string `validate:"required,max=120"`
	Phone string `validate:"required,e164"`
}

type service struct {
	repo     *Repository
	validate *validator.Validate
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("customer repository required")
	}
	return &service{repo: repo, validate: validator.New()}, nil
}

// Create persists the customer immediately. It is not part of any sale
// transaction, so a customer created for an abandoned checkout remains on file.
func (s *service) Create(ctx context.Context, name, phone string) (*models.Customer, error) {
	input := createInput{
		Name:  strings.Join(strings.Fields(name), " "),
		Phone: NormalizePhone(phone),
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid customer").
			WithDetails(validationFields(err))
	}

	customer := &models.Customer{Name: input.Name, Phone: input.Phone}
	if err := s.repo.Create(ctx, customer); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "save customer")
	}
	return customer, nil
}

func (s *service) Get(ctx context.Context, id uint64) (*models.Customer, error) {
	customer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found").
				WithDetails(map[string]any{"customer_id": id})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load customer")
	}
	return customer, nil
}

func (s *service) ListRecent(ctx context.Context, limit int) ([]models.Customer, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	rows, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list customers")
	}
	return rows, nil
}

// NormalizePhone strips formatting and adds the country prefix to local numbers.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return strings.TrimSpace(raw)
		}
	}
	phone := b.String()
	switch {
	case strings.HasPrefix(phone, "+"):
		return phone
	case len(phone) == 9:
		return countryPrefix + phone
	case len(phone) == 12 && strings.HasPrefix(phone, "998"):
		return "+" + phone
	default:
		return phone
	}
}

func validationFields(err error) map[string]any {
	details := map[string]any{}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			details[strings.ToLower(fe.Field())] = fe.Tag()
		}
	}
	return details
}

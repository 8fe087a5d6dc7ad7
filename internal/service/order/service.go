package order

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"reflect"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/events"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Store is the order persistence the service needs.
type Store interface {
	Create(ctx context.Context, draft domain.OrderDraft) (domain.CheckoutResult, error)
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	List(ctx context.Context, f domain.OrderFilter) ([]domain.Order, int, error)
	UpdateStatus(ctx context.Context, id int64, next domain.OrderStatus, correlationID string) (*domain.Order, error)
}

// Recorder counts submission outcomes.
type Recorder interface {
	OrderSubmitted(result string)
}

type LineInput struct {
	ProductID int64  `json:"productId" validate:"gt=0"`
	Size      string `json:"size" validate:"required,max=16"`
	Color     string `json:"color" validate:"required,max=32"`
}

// SubmitInput is a checkout request as received from a client.
type SubmitInput struct {
	UserID          int64            `json:"userId" validate:"gt=0"`
	Lines           []LineInput      `json:"lines" validate:"required,min=1,max=100,dive"`
	Total           *decimal.Decimal `json:"total" validate:"-"`
	SubmissionToken string           `json:"submissionToken" validate:"max=128"`
}

type ListInput struct {
	Status string
	UserID int64
	Limit  int
	Offset int
}

type OrderPage struct {
	Orders []domain.Order
	Total  int
	Limit  int
	Offset int
}

type Service struct {
	store    Store
	validate *validator.Validate
	strict   bool
	logger   *log.Logger
	recorder Recorder
}

// New builds the order service. With strict set, sizes and colors must be known options.
func New(store Store, strict bool, logger *log.Logger, recorder Recorder) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Service{store: store, validate: v, strict: strict, logger: logger, recorder: recorder}
}

// Submit validates in and runs the atomic checkout. Nothing is written when validation fails.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (domain.CheckoutResult, error) {
	in = normalize(in)
	if err := s.check(in); err != nil {
		s.observe("invalid")
		s.logger.Printf("order service: submit user=%d rejected: %v", in.UserID, err)
		return domain.CheckoutResult{}, err
	}

	lines := make([]domain.CartLine, len(in.Lines))
	for i, l := range in.Lines {
		lines[i] = domain.CartLine{ProductID: l.ProductID, Size: l.Size, Color: l.Color}
	}
	draft := domain.OrderDraft{
		UserID:          in.UserID,
		Cart:            domain.Cart{Lines: lines},
		ExpectedTotal:   in.Total,
		SubmissionToken: in.SubmissionToken,
		CorrelationID:   events.CorrelationID(ctx),
	}

	res, err := s.store.Create(ctx, draft)
	switch {
	case err == nil && res.Replayed:
		s.observe("replayed")
	case err == nil:
		s.observe("created")
	case errors.Is(err, domain.ErrValidation):
		s.observe("invalid")
	case errors.Is(err, domain.ErrIdempotencyConflict):
		s.observe("conflict")
	default:
		s.observe("error")
		s.logger.Printf("order service: submit user=%d error=%v", in.UserID, err)
	}
	return res, err
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Order, error) {
	if id <= 0 {
		return nil, domain.Invalid("id", "must be a positive integer")
	}
	return s.store.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, in ListInput) (*OrderPage, error) {
	var f domain.OrderFilter
	if in.Status != "" {
		st, err := domain.ParseOrderStatus(in.Status)
		if err != nil {
			return nil, err
		}
		f.Status = st
	}
	if in.UserID < 0 {
		return nil, domain.Invalid("userId", "must be a positive integer")
	}
	if in.Offset < 0 {
		return nil, domain.Invalid("offset", "must not be negative")
	}
	f.UserID = in.UserID
	f.Offset = in.Offset
	f.Limit = in.Limit
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}

	orders, total, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return &OrderPage{Orders: orders, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id int64, status string) (*domain.Order, error) {
	if id <= 0 {
		return nil, domain.Invalid("id", "must be a positive integer")
	}
	next, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	return s.store.UpdateStatus(ctx, id, next, events.CorrelationID(ctx))
}

func (s *Service) check(in SubmitInput) error {
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return domain.Invalid("", err.Error())
	}
	if in.Total != nil && in.Total.IsNegative() {
		return domain.Invalid("total", "must not be negative")
	}
	if !s.strict {
		return nil
	}
	for i, l := range in.Lines {
		if !domain.IsKnownSize(l.Size) {
			return domain.Invalid(fmt.Sprintf("lines[%d].size", i), fmt.Sprintf("unknown size %q", l.Size))
		}
		if !domain.IsKnownColor(l.Color) {
			return domain.Invalid(fmt.Sprintf("lines[%d].color", i), fmt.Sprintf("unknown color %q", l.Color))
		}
	}
	return nil
}

func (s *Service) observe(result string) {
	if s.recorder != nil {
		s.recorder.OrderSubmitted(result)
	}
}

func normalize(in SubmitInput) SubmitInput {
	out := in
	out.SubmissionToken = strings.TrimSpace(in.SubmissionToken)
	out.Lines = make([]LineInput, len(in.Lines))
	for i, l := range in.Lines {
		out.Lines[i] = LineInput{
			ProductID: l.ProductID,
			Size:      strings.TrimSpace(l.Size),
			Color:     strings.TrimSpace(l.Color),
		}
	}
	if in.Lines == nil {
		out.Lines = nil
	}
	return out
}

// fieldError turns a validator failure into a ValidationError named by JSON path.
func fieldError(fe validator.FieldError) error {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	var reason string
	switch fe.Tag() {
	case "required":
		reason = "is required"
	case "min":
		reason = "must have at least " + fe.Param()
	case "max":
		reason = "must have at most " + fe.Param()
	case "gt":
		reason = "must be greater than " + fe.Param()
	default:
		reason = "failed " + fe.Tag()
	}
	return domain.Invalid(field, reason)
}

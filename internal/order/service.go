package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wanderhub/checkout-service/internal/checkout"
	"github.com/wanderhub/checkout-service/pkg/metrics"
)

// CartValidator is the read-only cart check. Satisfied by
// checkout.Validator.
type CartValidator interface {
	ValidateCart(ctx context.Context, items []checkout.LineItem, promoCode string) (*checkout.CartValidation, error)
}

// Service is the checkout engine's caller-facing surface. Owner-driven
// operations take the authenticated requester id and verify ownership; a
// uuid.Nil requester means an operator acting without owner scoping.
type Service interface {
	ValidateCart(ctx context.Context, items []checkout.LineItem, promoCode string) (*checkout.CartValidation, error)
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
	GetOrder(ctx context.Context, id, requesterID uuid.UUID) (*Order, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, patch OrderPatch, requesterID uuid.UUID) (*Order, error)
	CancelOrder(ctx context.Context, id uuid.UUID, reason string, requestRefund bool, requesterID uuid.UUID) (*Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, newStatus OrderStatus, reason, trackingNumber string, actorID uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context, f ListFilter) ([]Order, *Pagination, error)
	GetStats(ctx context.Context, f StatsFilter) (*Stats, error)
}

type service struct {
	repo    Repository
	carts   CartValidator
	metrics *metrics.Metrics
}

func NewService(repo Repository, carts CartValidator, m *metrics.Metrics) Service {
	return &service{repo: repo, carts: carts, metrics: m}
}

func (s *service) ValidateCart(ctx context.Context, items []checkout.LineItem, promoCode string) (*checkout.CartValidation, error) {
	verdict, err := s.carts.ValidateCart(ctx, items, promoCode)
	if err != nil {
		log.Error().Err(err).Msg("service: cart validation failed")
		return nil, fmt.Errorf("service: failed to validate cart: %w", err)
	}
	return verdict, nil
}

func (s *service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if req.UserID == uuid.Nil {
		return nil, errors.New("service: user id is required to create an order")
	}

	ord, err := s.repo.CreateOrder(ctx, req)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.Is(err, ErrStockConflict):
			s.metrics.StockConflicts.Inc()
			log.Warn().Err(err).Stringer("user_id", req.UserID).Msg("service: order creation lost a stock race")
			return nil, err
		case errors.As(err, &verr):
			log.Warn().Strs("reasons", verr.Reasons).Stringer("user_id", req.UserID).Msg("service: order creation rejected by validation")
			return nil, err
		case errors.Is(err, ErrOrderNumberExhausted):
			log.Error().Err(err).Stringer("user_id", req.UserID).Msg("service: order number generation exhausted")
			return nil, err
		}
		log.Error().Err(err).Stringer("user_id", req.UserID).Msg("service: failed to create order")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	s.metrics.OrdersCreated.Inc()
	log.Info().
		Stringer("order_id", ord.ID).
		Str("order_number", ord.OrderNumber).
		Stringer("user_id", ord.UserID).
		Float64("total", ord.Total).
		Msg("service: order created")

	return ord, nil
}

func (s *service) GetOrder(ctx context.Context, id, requesterID uuid.UUID) (*Order, error) {
	ord, err := s.fetchOwned(ctx, id, requesterID)
	if err != nil {
		return nil, err
	}
	return ord, nil
}

func (s *service) UpdateOrder(ctx context.Context, id uuid.UUID, patch OrderPatch, requesterID uuid.UUID) (*Order, error) {
	if _, err := s.fetchOwned(ctx, id, requesterID); err != nil {
		return nil, err
	}

	ord, err := s.repo.UpdateOrder(ctx, id, patch)
	if err != nil {
		var serr *StateError
		if errors.As(err, &serr) {
			log.Warn().Stringer("order_id", id).Str("status", serr.Current.String()).Msg("service: order update rejected by status")
			return nil, err
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to update order")
		return nil, fmt.Errorf("service: failed to update order: %w", err)
	}

	log.Info().Stringer("order_id", id).Msg("service: order updated")
	return ord, nil
}

func (s *service) CancelOrder(ctx context.Context, id uuid.UUID, reason string, requestRefund bool, requesterID uuid.UUID) (*Order, error) {
	if _, err := s.fetchOwned(ctx, id, requesterID); err != nil {
		return nil, err
	}

	ord, err := s.repo.CancelOrder(ctx, id, reason, requestRefund)
	if err != nil {
		var serr *StateError
		if errors.As(err, &serr) {
			log.Warn().Stringer("order_id", id).Str("status", serr.Current.String()).Msg("service: order cancel rejected by status")
			return nil, err
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to cancel order")
		return nil, fmt.Errorf("service: failed to cancel order: %w", err)
	}

	s.metrics.OrdersCancelled.Inc()
	log.Info().
		Stringer("order_id", id).
		Str("reason", reason).
		Bool("refund_requested", requestRefund).
		Msg("service: order cancelled, stock restored")

	if requestRefund {
		// Settlement happens outside this engine; the event is the signal.
		log.Info().Stringer("order_id", id).Msg("service: refund initiation recorded")
	}

	return ord, nil
}

func (s *service) UpdateOrderStatus(ctx context.Context, id uuid.UUID, newStatus OrderStatus, reason, trackingNumber string, actorID uuid.UUID) (*Order, error) {
	if !newStatus.Valid() {
		return nil, fmt.Errorf("service: unknown order status %q", newStatus)
	}

	ord, err := s.repo.UpdateOrderStatus(ctx, id, newStatus, reason, trackingNumber)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, err
		}
		var serr *StateError
		if errors.As(err, &serr) {
			log.Warn().
				Stringer("order_id", id).
				Str("current_status", serr.Current.String()).
				Str("new_status", newStatus.String()).
				Stringer("actor_id", actorID).
				Msg("service: invalid status transition attempt")
			return nil, err
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to update order status")
		return nil, fmt.Errorf("service: failed to update order status: %w", err)
	}

	log.Info().
		Stringer("order_id", id).
		Str("new_status", newStatus.String()).
		Stringer("actor_id", actorID).
		Msg("service: order status updated")

	return ord, nil
}

func (s *service) ListOrders(ctx context.Context, f ListFilter) ([]Order, *Pagination, error) {
	orders, pagination, err := s.repo.ListOrders(ctx, f)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list orders")
		return nil, nil, fmt.Errorf("service: failed to list orders: %w", err)
	}
	return orders, pagination, nil
}

func (s *service) GetStats(ctx context.Context, f StatsFilter) (*Stats, error) {
	stats, err := s.repo.GetStats(ctx, f)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to compute order stats")
		return nil, fmt.Errorf("service: failed to compute order stats: %w", err)
	}
	return stats, nil
}

// fetchOwned loads an order and enforces ownership when a requester is
// given. The mismatch is logged as a permission problem; the transport
// layer converts it to a plain not-found.
func (s *service) fetchOwned(ctx context.Context, id, requesterID uuid.UUID) (*Order, error) {
	ord, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, err
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to fetch order")
		return nil, fmt.Errorf("service: failed to fetch order: %w", err)
	}

	if requesterID != uuid.Nil && ord.UserID != requesterID {
		log.Warn().
			Stringer("order_id", id).
			Stringer("owner_id", ord.UserID).
			Stringer("requester_id", requesterID).
			Msg("service: requester does not own order")
		return nil, ErrForbidden
	}

	return ord, nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"storefront-service/internal/domain"
)

const policiesKey = "policies"

// --- OrderStorer Implementation ---

func (s *PostgresStore) CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	created := *order
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	data, err := json.Marshal(created)
	if err != nil {
		return nil, fmt.Errorf("store: CreateOrder failed to encode order: %w", err)
	}
	query := `
		INSERT INTO storefront.orders (id, document, status, week_number, year, order_date)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err = s.db.ExecContext(ctx, query,
		created.ID, data, string(created.Status), created.WeekNumber, created.Year, created.OrderDate,
	)
	if err != nil {
		return nil, fmt.Errorf("store: CreateOrder failed to insert order: %w", err)
	}
	return &created, nil
}

func (s *PostgresStore) ListOrders(ctx context.Context, period Period) ([]domain.Order, error) {
	query := `
		SELECT document
		FROM storefront.orders
		WHERE week_number = $1 AND year = $2
		ORDER BY order_date DESC;
	`
	rows, err := s.db.QueryContext(ctx, query, period.WeekNumber, period.Year)
	if err != nil {
		return nil, fmt.Errorf("store: ListOrders failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("store: ListOrders failed to scan order row: %w", err)
		}
		var o domain.Order
		if err := json.Unmarshal(data, &o); err != nil {
			return nil, fmt.Errorf("store: ListOrders failed to decode order: %w", err)
		}
		orders = append(orders, o)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListOrders iteration error: %w", err)
	}
	return orders, nil
}

// UpdateOrderStatus changes the only mutable field of an order.
func (s *PostgresStore) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	query := `
		UPDATE storefront.orders
		SET status = $1, document = jsonb_set(document, '{status}', to_jsonb($1::TEXT))
		WHERE id = $2
		RETURNING document;
	`
	var data []byte
	if err := s.db.QueryRowContext(ctx, query, string(status), id).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("store: UpdateOrderStatus failed to scan row: %w", err)
	}
	var o domain.Order
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("store: UpdateOrderStatus failed to decode order: %w", err)
	}
	return &o, nil
}

// DeleteOrders removes every order of a period and reports how many went.
func (s *PostgresStore) DeleteOrders(ctx context.Context, period Period) (int64, error) {
	query := `DELETE FROM storefront.orders WHERE week_number = $1 AND year = $2;`
	result, err := s.db.ExecContext(ctx, query, period.WeekNumber, period.Year)
	if err != nil {
		return 0, fmt.Errorf("store: DeleteOrders failed to execute delete: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: DeleteOrders failed to get rows affected: %w", err)
	}
	return n, nil
}

// --- PolicyStorer Implementation ---

func (s *PostgresStore) GetPolicies(ctx context.Context) (*domain.Policies, error) {
	query := `SELECT document FROM storefront.settings WHERE key = $1;`
	var data []byte
	if err := s.db.QueryRowContext(ctx, query, policiesKey).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.Policies{}, nil
		}
		return nil, fmt.Errorf("store: GetPolicies failed to scan row: %w", err)
	}
	var p domain.Policies
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("store: GetPolicies failed to decode policies: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) SavePolicies(ctx context.Context, policies *domain.Policies) (*domain.Policies, error) {
	data, err := json.Marshal(policies)
	if err != nil {
		return nil, fmt.Errorf("store: SavePolicies failed to encode policies: %w", err)
	}
	query := `
		INSERT INTO storefront.settings (key, document)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET document = EXCLUDED.document, updated_at = CURRENT_TIMESTAMP;
	`
	if _, err := s.db.ExecContext(ctx, query, policiesKey, data); err != nil {
		return nil, fmt.Errorf("store: SavePolicies failed to upsert: %w", err)
	}
	saved := *policies
	return &saved, nil
}

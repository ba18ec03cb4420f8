package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var ErrOrderNotFound = errors.New("order not found")

type Repository interface {
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]Order, error)
	GetAll(ctx context.Context) ([]Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	UpdateShippingAddress(ctx context.Context, id uuid.UUID, addr ShippingAddress) error
	BulkUpdateAddress(ctx context.Context, ownerID uuid.UUID, addr ShippingAddress) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

// Create inserts the order and its items in one transaction, so a partially
// written order is never visible.
func (r *postgresRepository) Create(ctx context.Context, order *Order) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Stringer("order_id", order.ID).Msg("repository: failed to rollback create")
			}
		}
	}()

	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now

	queryOrder := `
		INSERT INTO orders (id, owner_id, status, total_amount, shipping_city, shipping_street, tracking_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = tx.Exec(ctx, queryOrder,
		order.ID,
		order.OwnerID,
		string(order.Status),
		order.TotalAmount,
		order.ShippingAddress.City,
		order.ShippingAddress.Street,
		order.TrackingCode,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}

	queryItem := `
		INSERT INTO order_items (id, order_id, product_id, name, quantity, unit_price, image_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for i := range order.Items {
		item := &order.Items[i]

		itemID, genErr := uuid.NewV4()
		if genErr != nil {
			return fmt.Errorf("repository: failed to generate order item ID: %w", genErr)
		}

		_, err = tx.Exec(ctx, queryItem,
			itemID,
			order.ID,
			item.ProductID,
			item.Name,
			item.Quantity,
			item.UnitPrice,
			item.ImageRef,
		)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order item for order %s: %w", order.ID, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: failed to commit transaction: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	queryOrder := `
		SELECT id, owner_id, status, total_amount, shipping_city, shipping_street, tracking_code, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	var order Order
	err := r.db.QueryRow(ctx, queryOrder, id).Scan(
		&order.ID,
		&order.OwnerID,
		&order.Status,
		&order.TotalAmount,
		&order.ShippingAddress.City,
		&order.ShippingAddress.Street,
		&order.TrackingCode,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", id, err)
	}

	queryItems := `
		SELECT product_id, name, quantity, unit_price, image_ref
		FROM order_items
		WHERE order_id = $1
	`
	rows, err := r.db.Query(ctx, queryItems, id)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query items for order %s: %w", id, err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Quantity, &item.UnitPrice, &item.ImageRef); err != nil {
			return nil, fmt.Errorf("repository: failed to scan item for order %s: %w", id, err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating items for order %s: %w", id, err)
	}
	order.Items = items

	return &order, nil
}

func (r *postgresRepository) GetByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]Order, error) {
	query := `
		SELECT id, owner_id, status, total_amount, shipping_city, shipping_street, tracking_code, created_at, updated_at
		FROM orders
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`
	return r.queryOrders(ctx, query, ownerID)
}

func (r *postgresRepository) GetAll(ctx context.Context) ([]Order, error) {
	query := `
		SELECT id, owner_id, status, total_amount, shipping_city, shipping_street, tracking_code, created_at, updated_at
		FROM orders
		ORDER BY created_at DESC
	`
	return r.queryOrders(ctx, query)
}

// queryOrders runs an order query, then fills items for every returned
// order with a single ANY($1) query instead of one round trip per order.
func (r *postgresRepository) queryOrders(ctx context.Context, query string, args ...any) ([]Order, error) {
	orderRows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer orderRows.Close()

	ordersMap := make(map[uuid.UUID]*Order)
	var orderIDs []uuid.UUID

	for orderRows.Next() {
		var order Order
		err := orderRows.Scan(
			&order.ID,
			&order.OwnerID,
			&order.Status,
			&order.TotalAmount,
			&order.ShippingAddress.City,
			&order.ShippingAddress.Street,
			&order.TrackingCode,
			&order.CreatedAt,
			&order.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		order.Items = make([]Item, 0)
		ordersMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}
	if err = orderRows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders: %w", err)
	}

	if len(orderIDs) == 0 {
		return []Order{}, nil
	}

	queryItems := `
		SELECT order_id, product_id, name, quantity, unit_price, image_ref
		FROM order_items
		WHERE order_id = ANY($1)
	`
	itemRows, err := r.db.Query(ctx, queryItems, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var orderID uuid.UUID
		var item Item
		if err := itemRows.Scan(&orderID, &item.ProductID, &item.Name, &item.Quantity, &item.UnitPrice, &item.ImageRef); err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		if order, ok := ordersMap[orderID]; ok {
			order.Items = append(order.Items, item)
		}
	}
	if err = itemRows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items: %w", err)
	}

	result := make([]Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		result = append(result, *ordersMap[id])
	}
	return result, nil
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	query := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3
	`
	cmdTag, err := r.db.Exec(ctx, query, string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("repository: failed to update status for order %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *postgresRepository) UpdateShippingAddress(ctx context.Context, id uuid.UUID, addr ShippingAddress) error {
	query := `
		UPDATE orders
		SET shipping_city = $1, shipping_street = $2, updated_at = $3
		WHERE id = $4
	`
	cmdTag, err := r.db.Exec(ctx, query, addr.City, addr.Street, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("repository: failed to update address for order %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// BulkUpdateAddress rewrites the shipping address on every order owned by
// ownerID in one statement and returns the affected count. Zero matches is
// a valid result, not an error. The count is matched rows, so an order
// already carrying the target address still counts.
func (r *postgresRepository) BulkUpdateAddress(ctx context.Context, ownerID uuid.UUID, addr ShippingAddress) (int64, error) {
	query := `
		UPDATE orders
		SET shipping_city = $1, shipping_street = $2, updated_at = $3
		WHERE owner_id = $4
	`
	cmdTag, err := r.db.Exec(ctx, query, addr.City, addr.Street, time.Now().UTC(), ownerID)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to bulk update address for owner %s: %w", ownerID, err)
	}
	return cmdTag.RowsAffected(), nil
}

// Delete removes the order and reports whether a row existed. Items go with
// the order via ON DELETE CASCADE.
func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("repository: failed to delete order %s: %w", id, err)
	}
	return cmdTag.RowsAffected() > 0, nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/m3rciful/storebot/core/retry"
	"github.com/m3rciful/storebot/internal/shop"
)

// Postgres is a Store over a sqlx pool. Every call runs under the retry policy.
type Postgres struct {
	db     *sqlx.DB
	policy retry.Policy
}

// NewPostgres wraps an open pool whose schema has been migrated.
func NewPostgres(db *sqlx.DB, policy retry.Policy) *Postgres {
	return &Postgres{db: db, policy: policy}
}

var _ Store = (*Postgres)(nil)

// Close closes the pool.
func (s *Postgres) Close() error { return s.db.Close() }

type userRow struct {
	ID          int64  `db:"id"`
	DisplayName string `db:"display_name"`
	Phone       string `db:"phone"`
	Address     string `db:"address"`
	IsAdmin     bool   `db:"is_admin"`
}

func (r userRow) user() shop.User {
	return shop.User{ID: r.ID, DisplayName: r.DisplayName, Phone: r.Phone, Address: r.Address, IsAdmin: r.IsAdmin}
}

type productRow struct {
	ID          int64           `db:"id"`
	Name        string          `db:"name"`
	Price       decimal.Decimal `db:"price"`
	Description string          `db:"description"`
	ImageKey    string          `db:"image_key"`
	ImageURL    string          `db:"image_url"`
}

func (r productRow) product() shop.Product {
	return shop.Product{ID: r.ID, Name: r.Name, Price: r.Price, Description: r.Description, ImageKey: r.ImageKey, ImageURL: r.ImageURL}
}

type lineRow struct {
	ID          int64           `db:"id"`
	ProductID   int64           `db:"product_id"`
	ProductName string          `db:"product_name"`
	Quantity    int             `db:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price"`
}

func (r lineRow) item() shop.LineItem {
	return shop.LineItem{ID: r.ID, ProductID: r.ProductID, ProductName: r.ProductName, Quantity: r.Quantity, UnitPrice: r.UnitPrice}
}

type orderRow struct {
	ID               string          `db:"id"`
	UserID           int64           `db:"user_id"`
	State            string          `db:"state"`
	Total            decimal.Decimal `db:"total"`
	PurchaserName    string          `db:"purchaser_name"`
	PurchaserPhone   string          `db:"purchaser_phone"`
	PurchaserAddress string          `db:"purchaser_address"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

func (r orderRow) order() shop.Order {
	return shop.Order{
		ID:     r.ID,
		UserID: r.UserID,
		Total:  r.Total,
		State:  shop.OrderState(r.State),
		Purchaser: shop.Purchaser{
			Name:    r.PurchaserName,
			Phone:   r.PurchaserPhone,
			Address: r.PurchaserAddress,
		},
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type orderItemRow struct {
	OrderID string `db:"order_id"`
	lineRow
}

const userColumns = `id, display_name, phone, address, is_admin`

func (s *Postgres) GetUser(ctx context.Context, id int64) (shop.User, error) {
	return retry.Value(ctx, s.policy, "store.get_user", func(ctx context.Context) (shop.User, error) {
		var row userRow
		err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
		if err != nil {
			return shop.User{}, notFound(err, "user %d", id)
		}
		return row.user(), nil
	})
}

func (s *Postgres) EnsureUser(ctx context.Context, u shop.User) (shop.User, bool, error) {
	type result struct {
		user    shop.User
		created bool
	}
	res, err := retry.Value(ctx, s.policy, "store.ensure_user", func(ctx context.Context) (result, error) {
		var row userRow
		err := s.db.GetContext(ctx, &row, `
			INSERT INTO users (id, display_name, phone, address, is_admin)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING
			RETURNING `+userColumns,
			u.ID, u.DisplayName, u.Phone, u.Address, u.IsAdmin)
		if err == nil {
			return result{user: row.user(), created: true}, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return result{}, fmt.Errorf("insert user %d: %w", u.ID, err)
		}
		if err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = $1`, u.ID); err != nil {
			return result{}, notFound(err, "user %d", u.ID)
		}
		return result{user: row.user()}, nil
	})
	return res.user, res.created, err
}

func (s *Postgres) UpdateUser(ctx context.Context, id int64, patch shop.UserPatch) (shop.User, error) {
	return retry.Value(ctx, s.policy, "store.update_user", func(ctx context.Context) (shop.User, error) {
		var row userRow
		err := s.db.GetContext(ctx, &row, `
			UPDATE users SET
				display_name = COALESCE($2, display_name),
				phone        = COALESCE($3, phone),
				address      = COALESCE($4, address),
				is_admin     = COALESCE($5, is_admin),
				updated_at   = NOW()
			WHERE id = $1
			RETURNING `+userColumns,
			id, nullString(patch.DisplayName), nullString(patch.Phone), nullString(patch.Address), nullBool(patch.IsAdmin))
		if err != nil {
			return shop.User{}, notFound(err, "user %d", id)
		}
		return row.user(), nil
	})
}

const productColumns = `id, name, price, description, image_key, image_url`

func (s *Postgres) CreateProduct(ctx context.Context, p shop.Product) (shop.Product, error) {
	return retry.Value(ctx, s.policy, "store.create_product", func(ctx context.Context) (shop.Product, error) {
		var row productRow
		err := s.db.GetContext(ctx, &row, `
			INSERT INTO products (name, price, description, image_key, image_url)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING `+productColumns,
			p.Name, p.Price, p.Description, p.ImageKey, p.ImageURL)
		if err != nil {
			return shop.Product{}, conflict(err, "product %q", p.Name)
		}
		return row.product(), nil
	})
}

func (s *Postgres) GetProduct(ctx context.Context, id int64) (shop.Product, error) {
	return retry.Value(ctx, s.policy, "store.get_product", func(ctx context.Context) (shop.Product, error) {
		var row productRow
		if err := s.db.GetContext(ctx, &row, `SELECT `+productColumns+` FROM products WHERE id = $1`, id); err != nil {
			return shop.Product{}, notFound(err, "product %d", id)
		}
		return row.product(), nil
	})
}

func (s *Postgres) GetProductByName(ctx context.Context, name string) (shop.Product, error) {
	return retry.Value(ctx, s.policy, "store.get_product_by_name", func(ctx context.Context) (shop.Product, error) {
		var row productRow
		err := s.db.GetContext(ctx, &row, `SELECT `+productColumns+` FROM products WHERE lower(name) = lower($1) LIMIT 1`, name)
		if err != nil {
			return shop.Product{}, notFound(err, "product %q", name)
		}
		return row.product(), nil
	})
}

func (s *Postgres) ListProducts(ctx context.Context) ([]shop.Product, error) {
	return retry.Value(ctx, s.policy, "store.list_products", func(ctx context.Context) ([]shop.Product, error) {
		var rows []productRow
		if err := s.db.SelectContext(ctx, &rows, `SELECT `+productColumns+` FROM products ORDER BY id`); err != nil {
			return nil, fmt.Errorf("list products: %w", err)
		}
		out := make([]shop.Product, 0, len(rows))
		for _, r := range rows {
			out = append(out, r.product())
		}
		return out, nil
	})
}

func (s *Postgres) UpdateProduct(ctx context.Context, p shop.Product) (shop.Product, error) {
	return retry.Value(ctx, s.policy, "store.update_product", func(ctx context.Context) (shop.Product, error) {
		var row productRow
		err := s.db.GetContext(ctx, &row, `
			UPDATE products SET name = $2, price = $3, description = $4, image_key = $5, image_url = $6, updated_at = NOW()
			WHERE id = $1
			RETURNING `+productColumns,
			p.ID, p.Name, p.Price, p.Description, p.ImageKey, p.ImageURL)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return shop.Product{}, notFound(err, "product %d", p.ID)
			}
			return shop.Product{}, conflict(err, "product %q", p.Name)
		}
		return row.product(), nil
	})
}

func (s *Postgres) DeleteProduct(ctx context.Context, id int64) error {
	return s.policy.Do(ctx, "store.delete_product", func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete product %d: %w", id, err)
		}
		return expectRows(res, 1, "product %d", id)
	})
}

func (s *Postgres) AddCartItem(ctx context.Context, userID int64, item shop.LineItem) (shop.LineItem, error) {
	return retry.Value(ctx, s.policy, "store.add_cart_item", func(ctx context.Context) (shop.LineItem, error) {
		var row lineRow
		err := s.db.GetContext(ctx, &row, `
			INSERT INTO cart_items (user_id, product_id, product_name, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, product_id, product_name, quantity, unit_price`,
			userID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice)
		if err != nil {
			return shop.LineItem{}, fmt.Errorf("insert cart item: %w", err)
		}
		return row.item(), nil
	})
}

func (s *Postgres) ListCartItems(ctx context.Context, userID int64) ([]shop.LineItem, error) {
	return retry.Value(ctx, s.policy, "store.list_cart_items", func(ctx context.Context) ([]shop.LineItem, error) {
		var rows []lineRow
		err := s.db.SelectContext(ctx, &rows, `
			SELECT id, product_id, product_name, quantity, unit_price
			FROM cart_items WHERE user_id = $1 ORDER BY id`, userID)
		if err != nil {
			return nil, fmt.Errorf("list cart items: %w", err)
		}
		out := make([]shop.LineItem, 0, len(rows))
		for _, r := range rows {
			out = append(out, r.item())
		}
		return out, nil
	})
}

func (s *Postgres) RemoveCartItems(ctx context.Context, userID int64, ids []int64) error {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil
	}
	return s.policy.Do(ctx, "store.remove_cart_items", func(ctx context.Context) error {
		return s.inTx(ctx, func(tx *sqlx.Tx) error {
			res, err := tx.ExecContext(ctx,
				`DELETE FROM cart_items WHERE user_id = $1 AND id = ANY($2)`,
				userID, pq.Array(ids))
			if err != nil {
				return fmt.Errorf("delete cart items: %w", err)
			}
			return expectRows(res, int64(len(ids)), "line items %v", ids)
		})
	})
}

func (s *Postgres) CreateOrder(ctx context.Context, o shop.Order) error {
	return s.policy.Do(ctx, "store.create_order", func(ctx context.Context) error {
		return s.inTx(ctx, func(tx *sqlx.Tx) error { return insertOrder(ctx, tx, o) })
	})
}

func (s *Postgres) PlaceOrder(ctx context.Context, o shop.Order, lineIDs []int64) error {
	lineIDs = dedupe(lineIDs)
	attempt := 0
	return s.policy.Do(ctx, "store.place_order", func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			// the previous commit may have succeeded with its reply lost
			var placed bool
			if err := s.db.GetContext(ctx, &placed, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, o.ID); err != nil {
				return fmt.Errorf("check order %s: %w", o.ID, err)
			}
			if placed {
				return nil
			}
		}
		return s.inTx(ctx, func(tx *sqlx.Tx) error {
			if len(lineIDs) > 0 {
				res, err := tx.ExecContext(ctx,
					`DELETE FROM cart_items WHERE user_id = $1 AND id = ANY($2)`,
					o.UserID, pq.Array(lineIDs))
				if err != nil {
					return fmt.Errorf("delete cart items: %w", err)
				}
				if err := expectRows(res, int64(len(lineIDs)), "line items %v", lineIDs); err != nil {
					return err
				}
			}
			return insertOrder(ctx, tx, o)
		})
	})
}

func insertOrder(ctx context.Context, tx *sqlx.Tx, o shop.Order) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, state, total, purchaser_name, purchaser_phone, purchaser_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.UserID, string(o.State), o.Total,
		o.Purchaser.Name, o.Purchaser.Phone, o.Purchaser.Address,
		o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return conflict(err, "order %s", o.ID)
	}
	for i, it := range o.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, position, line_item_id, product_id, product_name, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			o.ID, i, it.ID, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

const orderColumns = `id, user_id, state, total, purchaser_name, purchaser_phone, purchaser_address, created_at, updated_at`

func (s *Postgres) GetOrder(ctx context.Context, id string) (shop.Order, error) {
	return retry.Value(ctx, s.policy, "store.get_order", func(ctx context.Context) (shop.Order, error) {
		var row orderRow
		if err := s.db.GetContext(ctx, &row, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id); err != nil {
			return shop.Order{}, notFound(err, "order %s", id)
		}
		orders := []shop.Order{row.order()}
		if err := s.attachItems(ctx, orders); err != nil {
			return shop.Order{}, err
		}
		return orders[0], nil
	})
}

func (s *Postgres) ListOrders(ctx context.Context, state *shop.OrderState) ([]shop.Order, error) {
	return retry.Value(ctx, s.policy, "store.list_orders", func(ctx context.Context) ([]shop.Order, error) {
		var rows []orderRow
		var err error
		if state != nil {
			err = s.db.SelectContext(ctx, &rows,
				`SELECT `+orderColumns+` FROM orders WHERE state = $1 ORDER BY created_at, id`, string(*state))
		} else {
			err = s.db.SelectContext(ctx, &rows, `SELECT `+orderColumns+` FROM orders ORDER BY created_at, id`)
		}
		if err != nil {
			return nil, fmt.Errorf("list orders: %w", err)
		}
		out := make([]shop.Order, 0, len(rows))
		for _, r := range rows {
			out = append(out, r.order())
		}
		if err := s.attachItems(ctx, out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

func (s *Postgres) attachItems(ctx context.Context, orders []shop.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, 0, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids = append(ids, o.ID)
		index[o.ID] = i
	}
	var rows []orderItemRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT order_id, line_item_id AS id, product_id, product_name, quantity, unit_price
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("list order items: %w", err)
	}
	for _, r := range rows {
		i := index[r.OrderID]
		orders[i].Items = append(orders[i].Items, r.item())
	}
	return nil
}

func (s *Postgres) UpdateOrderState(ctx context.Context, id string, from, to shop.OrderState, at time.Time) (shop.Order, error) {
	return retry.Value(ctx, s.policy, "store.update_order_state", func(ctx context.Context) (shop.Order, error) {
		res, err := s.db.ExecContext(ctx,
			`UPDATE orders SET state = $3, updated_at = $4 WHERE id = $1 AND state = $2`,
			id, string(from), string(to), at)
		if err != nil {
			return shop.Order{}, fmt.Errorf("update order %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			var current string
			if err := s.db.GetContext(ctx, &current, `SELECT state FROM orders WHERE id = $1`, id); err != nil {
				return shop.Order{}, notFound(err, "order %s", id)
			}
			if current != string(to) {
				return shop.Order{}, retry.Permanent(fmt.Errorf("order %s is %s, not %s: %w", id, current, from, ErrConflict))
			}
			// an earlier attempt committed before its reply was lost
		}
		var row orderRow
		if err := s.db.GetContext(ctx, &row, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id); err != nil {
			return shop.Order{}, notFound(err, "order %s", id)
		}
		orders := []shop.Order{row.order()}
		if err := s.attachItems(ctx, orders); err != nil {
			return shop.Order{}, err
		}
		return orders[0], nil
	})
}

func (s *Postgres) AddSubscriber(ctx context.Context, chatID int64) (bool, error) {
	return retry.Value(ctx, s.policy, "store.add_subscriber", func(ctx context.Context) (bool, error) {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO notification_subscribers (chat_id) VALUES ($1) ON CONFLICT (chat_id) DO NOTHING`, chatID)
		if err != nil {
			return false, fmt.Errorf("add subscriber %d: %w", chatID, err)
		}
		n, _ := res.RowsAffected()
		return n > 0, nil
	})
}

func (s *Postgres) RemoveSubscriber(ctx context.Context, chatID int64) (bool, error) {
	return retry.Value(ctx, s.policy, "store.remove_subscriber", func(ctx context.Context) (bool, error) {
		res, err := s.db.ExecContext(ctx, `DELETE FROM notification_subscribers WHERE chat_id = $1`, chatID)
		if err != nil {
			return false, fmt.Errorf("remove subscriber %d: %w", chatID, err)
		}
		n, _ := res.RowsAffected()
		return n > 0, nil
	})
}

func (s *Postgres) ListSubscribers(ctx context.Context) ([]int64, error) {
	return retry.Value(ctx, s.policy, "store.list_subscribers", func(ctx context.Context) ([]int64, error) {
		var ids []int64
		if err := s.db.SelectContext(ctx, &ids, `SELECT chat_id FROM notification_subscribers ORDER BY chat_id`); err != nil {
			return nil, fmt.Errorf("list subscribers: %w", err)
		}
		return ids, nil
	})
}

func (s *Postgres) inTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// notFound maps sql.ErrNoRows to ErrNotFound and marks it permanent.
func notFound(err error, format string, args ...any) error {
	subject := fmt.Sprintf(format, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return retry.Permanent(fmt.Errorf("%s: %w", subject, ErrNotFound))
	}
	return fmt.Errorf("%s: %w", subject, err)
}

// conflict maps unique violations to ErrConflict and marks them permanent.
func conflict(err error, format string, args ...any) error {
	subject := fmt.Sprintf(format, args...)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return retry.Permanent(fmt.Errorf("%s: %w", subject, ErrConflict))
	}
	return fmt.Errorf("%s: %w", subject, err)
}

func expectRows(res sql.Result, want int64, format string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n != want {
		return retry.Permanent(fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound))
	}
	return nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}

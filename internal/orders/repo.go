package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

// PlaceOrderTx places an order atomically: inserts the order row, then for
// every line applies a conditional stock decrement (variation-level when the
// line names a variation, product-level otherwise) and inserts the line.
// The decrement and its stock check are a single UPDATE keyed on
// `stock >= qty`, so two concurrent placements over the same row cannot both
// pass a stale read; the loser sees zero affected rows and the whole call
// fails with InsufficientStockError. Any failure rolls back everything.
func (r *Repo) PlaceOrderTx(ctx context.Context, in PlaceOrderInput) (*Order, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	status := in.InitialStatus
	if status == "" {
		status = StatusPending
	}
	placedAt := in.PlacedAt
	if placedAt.IsZero() {
		placedAt = time.Now().UTC()
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	orderID := uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, code, placed_at, payment_method, note, discount_percent,
		                   total_cents, status, user_id, address_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		orderID, in.Code, placedAt, in.PaymentMethod, in.Note, in.DiscountPercent,
		in.TotalCents(), string(status), in.UserID, in.AddressID,
	)
	if err != nil {
		return nil, classifyInsertErr(err, in.Code)
	}

	// Lines are processed sequentially in the order given; each decrement
	// must observe the effect of earlier lines in the same transaction.
	for _, ln := range in.Lines {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM products WHERE id=$1)`, ln.ProductID,
		).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, &NotFoundError{Entity: "product", ID: ln.ProductID}
		}

		if ln.VariationID != nil {
			if err := r.decrementVariation(ctx, tx, ln); err != nil {
				return nil, err
			}
		} else {
			if err := r.decrementProduct(ctx, tx, ln); err != nil {
				return nil, err
			}
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO order_lines(id, order_id, product_id, variation_id, qty, unit_price_cents)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			uuid.NewString(), orderID, ln.ProductID, ln.VariationID, ln.Qty, ln.UnitPriceCents,
		)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return r.GetOrderByCode(ctx, in.Code)
}

func (r *Repo) decrementVariation(ctx context.Context, tx pgx.Tx, ln LineInput) error {
	ct, err := tx.Exec(ctx, `
		UPDATE product_variations SET stock = stock - $3
		WHERE id=$1 AND product_id=$2 AND stock >= $3`,
		*ln.VariationID, ln.ProductID, ln.Qty,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	// Zero rows: either the variation does not exist or the condition failed.
	// The re-read runs in the same transaction, so `available` is exactly the
	// value the failed decrement saw.
	var available int
	err = tx.QueryRow(ctx,
		`SELECT stock FROM product_variations WHERE id=$1 AND product_id=$2`,
		*ln.VariationID, ln.ProductID,
	).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return &NotFoundError{Entity: "variation", ID: *ln.VariationID}
	}
	if err != nil {
		return err
	}
	return &InsufficientStockError{
		Entity: "variation", ID: *ln.VariationID,
		Requested: ln.Qty, Available: available,
	}
}

func (r *Repo) decrementProduct(ctx context.Context, tx pgx.Tx, ln LineInput) error {
	ct, err := tx.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id=$1 AND stock >= $2`,
		ln.ProductID, ln.Qty,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	var available int
	err = tx.QueryRow(ctx,
		`SELECT stock FROM products WHERE id=$1`, ln.ProductID,
	).Scan(&available)
	if err != nil {
		return err // existence was checked above, so no ErrNoRows mapping here
	}
	return &InsufficientStockError{
		Entity: "product", ID: ln.ProductID,
		Requested: ln.Qty, Available: available,
	}
}

// GetOrderByCode returns the fully populated order: header, user, shipping
// address and lines enriched with product name/image and variation label.
func (r *Repo) GetOrderByCode(ctx context.Context, code string) (*Order, error) {
	var o Order
	o.User = &User{}
	o.Address = &Address{}
	err := r.DB.QueryRow(ctx, `
		SELECT o.id, o.code, o.placed_at, o.payment_method, o.note, o.discount_percent,
		       o.total_cents, o.status, o.user_id, o.address_id,
		       u.full_name, u.email,
		       a.line1, a.city, a.phone,
		       o.created_at, o.updated_at
		FROM orders o
		JOIN users u ON u.id = o.user_id
		JOIN addresses a ON a.id = o.address_id
		WHERE o.code = $1`, code,
	).Scan(
		&o.ID, &o.Code, &o.PlacedAt, &o.PaymentMethod, &o.Note, &o.DiscountPercent,
		&o.TotalCents, &o.Status, &o.UserID, &o.AddressID,
		&o.User.FullName, &o.User.Email,
		&o.Address.Line1, &o.Address.City, &o.Address.Phone,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "order", ID: code}
	}
	if err != nil {
		return nil, err
	}
	o.User.ID = o.UserID
	o.Address.ID = o.AddressID

	rows, err := r.DB.Query(ctx, `
		SELECT l.id, l.order_id, l.product_id, l.variation_id, l.qty, l.unit_price_cents,
		       p.name, p.image_url, v.label
		FROM order_lines l
		JOIN products p ON p.id = l.product_id
		LEFT JOIN product_variations v ON v.id = l.variation_id
		WHERE l.order_id = $1
		ORDER BY l.id`, o.ID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ln OrderLine
		if err := rows.Scan(
			&ln.ID, &ln.OrderID, &ln.ProductID, &ln.VariationID, &ln.Qty, &ln.UnitPriceCents,
			&ln.ProductName, &ln.ProductImageURL, &ln.VariationLabel,
		); err != nil {
			return nil, err
		}
		o.Lines = append(o.Lines, ln)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateStatus moves an order along the lifecycle, enforcing the transition
// table. Moving to CANCELLED re-credits the stock taken by every line, in
// the same transaction as the status flip.
func (r *Repo) UpdateStatus(ctx context.Context, code string, next Status) (Status, error) {
	if !ValidStatus(next) {
		return "", &InvalidInputError{Field: "status", Reason: "unknown status " + string(next)}
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var orderID string
	var cur Status
	err = tx.QueryRow(ctx,
		`SELECT id, status FROM orders WHERE code=$1 FOR UPDATE`, code,
	).Scan(&orderID, &cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", &NotFoundError{Entity: "order", ID: code}
	}
	if err != nil {
		return "", err
	}
	if !CanTransition(cur, next) {
		return "", &IllegalTransitionError{From: cur, To: next}
	}

	if next == StatusCancelled {
		if err := releaseStock(ctx, tx, orderID); err != nil {
			return "", err
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`,
		orderID, string(next),
	); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return cur, nil
}

// releaseStock credits back the quantities held by an order's lines.
func releaseStock(ctx context.Context, tx pgx.Tx, orderID string) error {
	rows, err := tx.Query(ctx,
		`SELECT product_id, variation_id, qty FROM order_lines WHERE order_id=$1`, orderID)
	if err != nil {
		return err
	}
	defer rows.Close()

	type rec struct {
		productID   string
		variationID *string
		qty         int
	}
	var recs []rec
	for rows.Next() {
		var x rec
		if err := rows.Scan(&x.productID, &x.variationID, &x.qty); err != nil {
			return err
		}
		recs = append(recs, x)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, x := range recs {
		if x.variationID != nil {
			_, err = tx.Exec(ctx,
				`UPDATE product_variations SET stock = stock + $2 WHERE id=$1`,
				*x.variationID, x.qty)
		} else {
			_, err = tx.Exec(ctx,
				`UPDATE products SET stock = stock + $2, updated_at = now() WHERE id=$1`,
				x.productID, x.qty)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ListProducts returns the catalog with per-product variations attached.
func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, sku, name, stock, price_cents, image_url, created_at, updated_at
		FROM products ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	index := map[string]int{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Stock, &p.PriceCents,
			&p.ImageURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		index[p.ID] = len(out)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	vrows, err := r.DB.Query(ctx, `
		SELECT id, product_id, label, stock FROM product_variations ORDER BY label`)
	if err != nil {
		return nil, err
	}
	defer vrows.Close()

	for vrows.Next() {
		var v ProductVariation
		if err := vrows.Scan(&v.ID, &v.ProductID, &v.Label, &v.Stock); err != nil {
			return nil, err
		}
		if i, ok := index[v.ProductID]; ok {
			out[i].Variations = append(out[i].Variations, v)
		}
	}
	return out, vrows.Err()
}

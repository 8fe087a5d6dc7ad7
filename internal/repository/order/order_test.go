package order

import (
	"context"
	"errors"
	"os"
	"regexp"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/migrate"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	orderCols = []string{"id", "user_id", "total", "status", "token", "created_at", "updated_at"}
	itemCols  = []string{"order_id", "position", "product_id", "size", "color", "unit_price"}
)

func twoTeeDraft(token string) domain.OrderDraft {
	return domain.OrderDraft{
		UserID: 3,
		Cart: domain.Cart{Lines: []domain.CartLine{
			{ProductID: 5, Size: "M", Color: "Black"},
			{ProductID: 5, Size: "L", Color: "Blue"},
		}},
		SubmissionToken: token,
		CorrelationID:   "corr-1",
	}
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestCreate_PricesAndStoresAtomically(t *testing.T) {
	mock := newMock(t)
	now := time.Now()
	draft := twoTeeDraft("tok-1")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM order_submissions WHERE token = $1`)).
		WithArgs("tok-1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM users WHERE id = $1 FOR SHARE`)).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM products WHERE id = ANY($1) FOR SHARE`)).
		WithArgs([]int64{5}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "price"}).AddRow(int64(5), "19.99"))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO orders`)).
		WithArgs(int64(3), "39.98", "pending").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(11), now, now))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO order_items`)).
		WithArgs(int64(11), []int{0, 1}, []int64{5, 5}, []string{"M", "L"}, []string{"Black", "Blue"}, []string{"19.99", "19.99"}).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO order_submissions`)).
		WithArgs("tok-1", int64(11), draft.Fingerprint()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO outbox`)).
		WithArgs(pgxmock.AnyArg(), "order.created", "11", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	res, err := NewPostgres(mock, nil).Create(context.Background(), draft)
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	require.NotNil(t, res.Order)
	assert.Equal(t, int64(11), res.Order.ID)
	assert.Equal(t, domain.StatusPending, res.Order.Status)
	assert.Equal(t, "39.98", res.Order.Total.StringFixed(2))
	assert.Equal(t, []int64{5, 5}, res.Order.ProductIDs())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_UnknownUserWritesNothing(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM users WHERE id = $1 FOR SHARE`)).
		WithArgs(int64(3)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := NewPostgres(mock, nil).Create(context.Background(), twoTeeDraft(""))
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "userId", verr.Field)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_UnknownProductWritesNothing(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM users`)).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM products WHERE id = ANY($1)`)).
		WithArgs([]int64{5}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "price"}))
	mock.ExpectRollback()

	_, err := NewPostgres(mock, nil).Create(context.Background(), twoTeeDraft(""))
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_TotalMismatch(t *testing.T) {
	mock := newMock(t)
	draft := twoTeeDraft("")
	wrong := decimal.RequireFromString("10.00")
	draft.ExpectedTotal = &wrong

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM users`)).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM products`)).
		WithArgs([]int64{5}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "price"}).AddRow(int64(5), "19.99"))
	mock.ExpectRollback()

	_, err := NewPostgres(mock, nil).Create(context.Background(), draft)
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "total", verr.Field)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_ReplayReturnsStoredOrder(t *testing.T) {
	mock := newMock(t)
	now := time.Now()
	draft := twoTeeDraft("tok-1")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM order_submissions WHERE token = $1`)).
		WithArgs("tok-1").
		WillReturnRows(pgxmock.NewRows([]string{"order_id", "fingerprint"}).AddRow(int64(11), draft.Fingerprint()))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE o.id = $1`)).
		WithArgs(int64(11)).
		WillReturnRows(pgxmock.NewRows(orderCols).AddRow(int64(11), int64(3), "39.98", "pending", "tok-1", now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE order_id = ANY($1)`)).
		WithArgs([]int64{11}).
		WillReturnRows(pgxmock.NewRows(itemCols).
			AddRow(int64(11), 0, int64(5), "M", "Black", "19.99").
			AddRow(int64(11), 1, int64(5), "L", "Blue", "19.99"))
	mock.ExpectRollback()

	res, err := NewPostgres(mock, nil).Create(context.Background(), draft)
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, int64(11), res.Order.ID)
	assert.Len(t, res.Order.Items, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_TokenReusedForDifferentCart(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM order_submissions WHERE token = $1`)).
		WithArgs("tok-1").
		WillReturnRows(pgxmock.NewRows([]string{"order_id", "fingerprint"}).AddRow(int64(11), "something-else"))
	mock.ExpectRollback()

	_, err := NewPostgres(mock, nil).Create(context.Background(), twoTeeDraft("tok-1"))
	assert.ErrorIs(t, err, domain.ErrIdempotencyConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_InsertFailureIsPersistenceError(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM users`)).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM products`)).
		WithArgs([]int64{5}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "price"}).AddRow(int64(5), "19.99"))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO orders`)).
		WithArgs(int64(3), "39.98", "pending").
		WillReturnError(&pgconn.PgError{Code: "53100", Message: "disk full"})
	mock.ExpectRollback()

	_, err := NewPostgres(mock, nil).Create(context.Background(), twoTeeDraft(""))
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.NotErrorIs(t, err, domain.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_FiltersAndLoadsItems(t *testing.T) {
	mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM orders o WHERE o.status = $1 AND o.user_id = $2`)).
		WithArgs("pending", int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY o.created_at DESC, o.id DESC LIMIT $3 OFFSET $4`)).
		WithArgs("pending", int64(3), 20, 0).
		WillReturnRows(pgxmock.NewRows(orderCols).AddRow(int64(11), int64(3), "19.99", "pending", "", now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE order_id = ANY($1)`)).
		WithArgs([]int64{11}).
		WillReturnRows(pgxmock.NewRows(itemCols).AddRow(int64(11), 0, int64(5), "M", "Black", "19.99"))

	list, total, err := NewPostgres(mock, nil).List(context.Background(), domain.OrderFilter{
		Status: domain.StatusPending,
		UserID: 3,
		Limit:  20,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"M"}, list[0].Sizes())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE o.id = $1`)).
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)

	_, err := NewPostgres(mock, nil).GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateStatus_RejectsInvalidTransition(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status FROM orders WHERE id = $1 FOR UPDATE`)).
		WithArgs(int64(11)).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("delivered"))
	mock.ExpectRollback()

	_, err := NewPostgres(mock, nil).UpdateStatus(context.Background(), 11, domain.StatusPaid, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_EmitsEvent(t *testing.T) {
	mock := newMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status FROM orders WHERE id = $1 FOR UPDATE`)).
		WithArgs(int64(11)).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("pending"))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE orders SET status = $2`)).
		WithArgs(int64(11), "paid").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE o.id = $1`)).
		WithArgs(int64(11)).
		WillReturnRows(pgxmock.NewRows(orderCols).AddRow(int64(11), int64(3), "19.99", "paid", "", now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE order_id = ANY($1)`)).
		WithArgs([]int64{11}).
		WillReturnRows(pgxmock.NewRows(itemCols).AddRow(int64(11), 0, int64(5), "M", "Black", "19.99"))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO outbox`)).
		WithArgs(pgxmock.AnyArg(), "order.status_changed", "11", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	o, err := NewPostgres(mock, nil).UpdateStatus(context.Background(), 11, domain.StatusPaid, "corr")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, o.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CheckoutEndToEnd(t *testing.T) {
	ctx := context.Background()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, migrate.Apply(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE outbox, order_submissions, order_items, orders, products, categories, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	var userID, productID int64
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO users (email) VALUES ('ada@example.com') RETURNING id`).Scan(&userID))
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO products (sku, name, price) VALUES ('TEE', 'Tee', 19.99) RETURNING id`).Scan(&productID))

	repo := NewPostgres(pool, nil)
	draft := domain.OrderDraft{
		UserID: userID,
		Cart: domain.Cart{Lines: []domain.CartLine{
			{ProductID: productID, Size: "M", Color: "Black"},
			{ProductID: productID, Size: "L", Color: "Blue"},
		}},
		SubmissionToken: "tok-e2e",
	}

	first, err := repo.Create(ctx, draft)
	require.NoError(t, err)
	assert.Equal(t, "39.98", first.Order.Total.StringFixed(2))

	again, err := repo.Create(ctx, draft)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Order.ID, again.Order.ID)

	var orders, pending int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM orders`).Scan(&orders))
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM outbox WHERE sent_at IS NULL`).Scan(&pending))
	assert.Equal(t, 1, orders)
	assert.Equal(t, 1, pending)

	draft.UserID = userID + 100
	draft.SubmissionToken = ""
	_, err = repo.Create(ctx, draft)
	assert.ErrorIs(t, err, domain.ErrValidation)
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM orders`).Scan(&orders))
	assert.Equal(t, 1, orders)
}

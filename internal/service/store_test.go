package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/HaruCodeTI/manifeste/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

var errBoom = errors.New("boom")

// --- In-memory database with transactional staging ---

type memState struct {
	products map[uuid.UUID]string
	variants map[uuid.UUID]database.ProductVariant
	coupons  map[uuid.UUID]database.Coupon
	orders   map[uuid.UUID]database.Order
	items    []database.OrderItem
	history  []database.OrderStatusHistory
}

func newMemState() *memState {
	return &memState{
		products: map[uuid.UUID]string{},
		variants: map[uuid.UUID]database.ProductVariant{},
		coupons:  map[uuid.UUID]database.Coupon{},
		orders:   map[uuid.UUID]database.Order{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.variants {
		c.variants[k] = v
	}
	for k, v := range s.coupons {
		c.coupons[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	c.items = append(c.items, s.items...)
	c.history = append(c.history, s.history...)
	return c
}

// memDB serializes transactions: Begin holds the lock until Commit or
// Rollback, which mirrors row locks taken by the conditional updates.
type memDB struct {
	mu    sync.Mutex
	state *memState
	now   time.Time

	// failOn makes the named store method return errBoom.
	failOn string
	// beforeUpdateStatus runs inside UpdateOrderStatus before the
	// compare-and-set, to simulate a concurrent writer.
	beforeUpdateStatus func(s *memState, id uuid.UUID)
	// beforeDecrement runs inside DecrementVariantStock, to simulate an
	// order committed between the stock read and the decrement.
	beforeDecrement func(s *memState, id uuid.UUID)

	commits   int
	rollbacks int
}

func newMemDB() *memDB {
	return &memDB{
		state: newMemState(),
		now:   time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
	}
}

func (db *memDB) Begin(ctx context.Context) (pgx.Tx, error) {
	db.mu.Lock()
	return &memTx{db: db, state: db.state.clone()}, nil
}

func (db *memDB) snapshot() *memState {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state.clone()
}

func (db *memDB) addVariant(name, color, price string, stock int32) uuid.UUID {
	productID := uuid.New()
	variantID := uuid.New()
	db.state.products[productID] = name
	db.state.variants[variantID] = database.ProductVariant{
		ID:            variantID,
		ProductID:     productID,
		Color:         color,
		Price:         database.DecimalToNumeric(decimal.RequireFromString(price)),
		StockQuantity: stock,
	}
	return variantID
}

func (db *memDB) addCoupon(c database.Coupon) database.Coupon {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	db.state.coupons[c.ID] = c
	return c
}

// addOrder seeds a committed order with one item per variant (quantity 1).
func (db *memDB) addOrder(status, shippingMethod string, variantIDs ...uuid.UUID) database.Order {
	o := database.Order{
		ID:             uuid.New(),
		CustomerEmail:  "ana@example.com",
		CustomerName:   "Ana",
		CustomerPhone:  "(11) 98888-7777",
		ShippingMethod: shippingMethod,
		PaymentMethod:  "card",
		Status:         status,
		CreatedAt:      db.now,
		UpdatedAt:      db.now,
	}
	db.state.orders[o.ID] = o
	for _, vid := range variantIDs {
		v := db.state.variants[vid]
		db.state.items = append(db.state.items, database.OrderItem{
			ID:              uuid.New(),
			OrderID:         o.ID,
			ProductID:       v.ProductID,
			VariantID:       vid,
			Quantity:        1,
			PriceAtPurchase: v.Price,
		})
	}
	return o
}

func (s *memState) stock(id uuid.UUID) int32 {
	return s.variants[id].StockQuantity
}

func (s *memState) historyFor(orderID uuid.UUID) []database.OrderStatusHistory {
	var out []database.OrderStatusHistory
	for _, h := range s.history {
		if h.OrderID == orderID {
			out = append(out, h)
		}
	}
	return out
}

// memTx implements pgx.Tx. Query methods panic so accidental raw SQL is caught.
type memTx struct {
	db    *memDB
	state *memState
	done  bool
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.db.state = t.state
	t.db.commits++
	t.db.mu.Unlock()
	return nil
}
func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.db.rollbacks++
	t.db.mu.Unlock()
	return nil
}
func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (t *memTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (t *memTx) Conn() *pgx.Conn { panic("not implemented") }

// memStore implements OrderStore and StatusStore against a memTx.
type memStore struct {
	tx *memTx
}

func newMemOrderStore(db database.DBTX) OrderStore   { return &memStore{tx: db.(*memTx)} }
func newMemStatusStore(db database.DBTX) StatusStore { return &memStore{tx: db.(*memTx)} }

func (m *memStore) fail(method string) error {
	if m.tx.db.failOn == method {
		return errBoom
	}
	return nil
}

func (m *memStore) GetVariantsForOrder(ctx context.Context, ids []uuid.UUID) ([]database.GetVariantsForOrderRow, error) {
	if err := m.fail("GetVariantsForOrder"); err != nil {
		return nil, err
	}
	var rows []database.GetVariantsForOrderRow
	for _, id := range ids {
		v, ok := m.tx.state.variants[id]
		if !ok {
			continue
		}
		rows = append(rows, database.GetVariantsForOrderRow{
			ID:            v.ID,
			ProductID:     v.ProductID,
			ProductName:   m.tx.state.products[v.ProductID],
			Color:         v.Color,
			Price:         v.Price,
			StockQuantity: v.StockQuantity,
		})
	}
	return rows, nil
}

func (m *memStore) GetCouponByCode(ctx context.Context, code string) (database.Coupon, error) {
	for _, c := range m.tx.state.coupons {
		if strings.EqualFold(c.Code, code) {
			return c, nil
		}
	}
	return database.Coupon{}, pgx.ErrNoRows
}

func (m *memStore) GetCouponByID(ctx context.Context, id uuid.UUID) (database.Coupon, error) {
	c, ok := m.tx.state.coupons[id]
	if !ok {
		return database.Coupon{}, pgx.ErrNoRows
	}
	return c, nil
}

func (m *memStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	if err := m.fail("CreateOrder"); err != nil {
		return database.Order{}, err
	}
	o := database.Order{
		ID:              uuid.New(),
		CustomerEmail:   arg.CustomerEmail,
		CustomerName:    arg.CustomerName,
		CustomerPhone:   arg.CustomerPhone,
		ShippingAddress: arg.ShippingAddress,
		ShippingCost:    arg.ShippingCost,
		ShippingMethod:  arg.ShippingMethod,
		PaymentMethod:   arg.PaymentMethod,
		Installments:    arg.Installments,
		PaymentFee:      arg.PaymentFee,
		Subtotal:        arg.Subtotal,
		DiscountAmount:  arg.DiscountAmount,
		TotalPrice:      arg.TotalPrice,
		CouponID:        arg.CouponID,
		Status:          arg.Status,
		CreatedAt:       m.tx.db.now,
		UpdatedAt:       m.tx.db.now,
	}
	m.tx.state.orders[o.ID] = o
	return o, nil
}

func (m *memStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	if err := m.fail("CreateOrderItem"); err != nil {
		return database.OrderItem{}, err
	}
	item := database.OrderItem{
		ID:              uuid.New(),
		OrderID:         arg.OrderID,
		ProductID:       arg.ProductID,
		VariantID:       arg.VariantID,
		Quantity:        arg.Quantity,
		PriceAtPurchase: arg.PriceAtPurchase,
	}
	m.tx.state.items = append(m.tx.state.items, item)
	return item, nil
}

func (m *memStore) DecrementVariantStock(ctx context.Context, arg database.DecrementVariantStockParams) (int32, error) {
	if err := m.fail("DecrementVariantStock"); err != nil {
		return 0, err
	}
	if m.tx.db.beforeDecrement != nil {
		m.tx.db.beforeDecrement(m.tx.state, arg.ID)
	}
	v, ok := m.tx.state.variants[arg.ID]
	if !ok || v.StockQuantity < arg.Quantity {
		return 0, pgx.ErrNoRows
	}
	v.StockQuantity -= arg.Quantity
	m.tx.state.variants[arg.ID] = v
	return v.StockQuantity, nil
}

func (m *memStore) GetVariantStock(ctx context.Context, id uuid.UUID) (int32, error) {
	v, ok := m.tx.state.variants[id]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	return v.StockQuantity, nil
}

func (m *memStore) RedeemCoupon(ctx context.Context, id uuid.UUID) (database.Coupon, error) {
	if err := m.fail("RedeemCoupon"); err != nil {
		return database.Coupon{}, err
	}
	c, ok := m.tx.state.coupons[id]
	if !ok || checkCoupon(c, m.tx.db.now) != nil {
		return database.Coupon{}, pgx.ErrNoRows
	}
	c.TimesUsed++
	m.tx.state.coupons[id] = c
	return c, nil
}

func (m *memStore) CreateOrderStatusHistory(ctx context.Context, arg database.CreateOrderStatusHistoryParams) (database.OrderStatusHistory, error) {
	if err := m.fail("CreateOrderStatusHistory"); err != nil {
		return database.OrderStatusHistory{}, err
	}
	h := database.OrderStatusHistory{
		ID:        uuid.New(),
		OrderID:   arg.OrderID,
		Status:    arg.Status,
		ChangedAt: m.tx.db.now,
		ChangedBy: arg.ChangedBy,
	}
	m.tx.state.history = append(m.tx.state.history, h)
	return h, nil
}

func (m *memStore) SetOrderCheckoutSession(ctx context.Context, arg database.SetOrderCheckoutSessionParams) (database.Order, error) {
	o, ok := m.tx.state.orders[arg.ID]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	o.StripeCheckoutSessionID = pgtype.Text{String: arg.SessionID, Valid: true}
	m.tx.state.orders[o.ID] = o
	return o, nil
}

func (m *memStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	if err := m.fail("GetOrder"); err != nil {
		return database.Order{}, err
	}
	o, ok := m.tx.state.orders[id]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *memStore) GetOrderBySessionID(ctx context.Context, sessionID string) (database.Order, error) {
	for _, o := range m.tx.state.orders {
		if o.StripeCheckoutSessionID.Valid && o.StripeCheckoutSessionID.String == sessionID {
			return o, nil
		}
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *memStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	if err := m.fail("UpdateOrderStatus"); err != nil {
		return database.Order{}, err
	}
	if hook := m.tx.db.beforeUpdateStatus; hook != nil {
		hook(m.tx.state, arg.ID)
	}
	o, ok := m.tx.state.orders[arg.ID]
	if !ok || o.Status != arg.PreviousStatus {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Status = arg.Status
	o.UpdatedAt = m.tx.db.now.Add(time.Minute)
	m.tx.state.orders[o.ID] = o
	return o, nil
}

func (m *memStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.ListOrderItemsByOrderRow, error) {
	var rows []database.ListOrderItemsByOrderRow
	for _, it := range m.tx.state.items {
		if it.OrderID != orderID {
			continue
		}
		rows = append(rows, database.ListOrderItemsByOrderRow{
			ID:              it.ID,
			OrderID:         it.OrderID,
			ProductID:       it.ProductID,
			VariantID:       it.VariantID,
			Quantity:        it.Quantity,
			PriceAtPurchase: it.PriceAtPurchase,
			ProductName:     m.tx.state.products[it.ProductID],
			Color:           m.tx.state.variants[it.VariantID].Color,
		})
	}
	return rows, nil
}

func (m *memStore) RestockVariant(ctx context.Context, arg database.RestockVariantParams) (int32, error) {
	if err := m.fail("RestockVariant"); err != nil {
		return 0, err
	}
	v, ok := m.tx.state.variants[arg.ID]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	v.StockQuantity += arg.Quantity
	m.tx.state.variants[arg.ID] = v
	return v.StockQuantity, nil
}

func (m *memStore) SetOrderTrackingCode(ctx context.Context, arg database.SetOrderTrackingCodeParams) (database.Order, error) {
	o, ok := m.tx.state.orders[arg.ID]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	o.TrackingCode = arg.TrackingCode
	m.tx.state.orders[o.ID] = o
	return o, nil
}

// --- Publisher ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []OrderEvent
}

func (p *recordingPublisher) PublishOrderEvent(evt OrderEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) all() []OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]OrderEvent(nil), p.events...)
}

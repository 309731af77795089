package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"rental_manager/internal/models"
	"rental_manager/internal/rental"
	"rental_manager/internal/repository"
)

var (
	testStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	testEnd   = time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

type seqIDs struct{ n int }

func (g *seqIDs) New() (string, error) {
	g.n++
	return fmt.Sprintf("%04d", g.n), nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func cloneOrder(o *models.RentalOrder) *models.RentalOrder {
	out := *o
	out.Items = make([]models.RentalItem, len(o.Items))
	for i, item := range o.Items {
		c := item
		if item.ReturnedQuantity != nil {
			v := *item.ReturnedQuantity
			c.ReturnedQuantity = &v
		}
		if item.ReturnStatus != nil {
			v := *item.ReturnStatus
			c.ReturnStatus = &v
		}
		if item.DamageCost != nil {
			v := *item.DamageCost
			c.DamageCost = &v
		}
		out.Items[i] = c
	}
	return &out
}

// memStore backs the order, item and event fakes. rejectStatuses mimics a
// narrow status check constraint on orders and items.
type memStore struct {
	mu             sync.Mutex
	orders         map[uint]*models.RentalOrder
	events         []models.ReturnEvent
	nextOrderID    uint
	nextItemID     uint
	nextEventID    uint
	rejectStatuses map[string]bool
	saves          int
}

func newMemStore() *memStore {
	return &memStore{orders: map[uint]*models.RentalOrder{}, rejectStatuses: map[string]bool{}}
}

func (m *memStore) get(id uint) *models.RentalOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil
	}
	return cloneOrder(o)
}

type memOrderRepo struct{ store *memStore }

var _ repository.OrderRepository = (*memOrderRepo)(nil)

func (r *memOrderRepo) Create(_ context.Context, order *models.RentalOrder) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.nextOrderID++
	order.ID = r.store.nextOrderID
	for i := range order.Items {
		r.store.nextItemID++
		order.Items[i].ID = r.store.nextItemID
		order.Items[i].OrderID = order.ID
	}
	r.store.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *memOrderRepo) GetByID(_ context.Context, id uint) (*models.RentalOrder, error) {
	if o := r.store.get(id); o != nil {
		return o, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memOrderRepo) GetForUpdate(ctx context.Context, id uint) (*models.RentalOrder, error) {
	return r.GetByID(ctx, id)
}

func (r *memOrderRepo) List(_ context.Context, filter repository.OrderFilter) ([]models.RentalOrder, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.RentalOrder
	for _, o := range r.store.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.BranchID != 0 && o.BranchID != filter.BranchID {
			continue
		}
		out = append(out, *cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memOrderRepo) ListOpen(_ context.Context, limit int) ([]models.RentalOrder, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.RentalOrder
	for _, o := range r.store.orders {
		if o.Cancelled() {
			continue
		}
		if o.Status == string(rental.StatusScheduled) || o.Status == string(rental.StatusActive) {
			out = append(out, *cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memOrderRepo) checkStatuses(order *models.RentalOrder) error {
	if r.store.rejectStatuses[order.Status] {
		return &rental.PersistenceRejected{Constraint: "chk_rental_orders_status", Err: fmt.Errorf("status %q rejected", order.Status)}
	}
	for _, item := range order.Items {
		if item.ReturnStatus != nil && r.store.rejectStatuses[*item.ReturnStatus] {
			return &rental.PersistenceRejected{Constraint: "chk_rental_items_return_status", Err: fmt.Errorf("return status %q rejected", *item.ReturnStatus)}
		}
	}
	return nil
}

func (r *memOrderRepo) Save(_ context.Context, order *models.RentalOrder) error {
	if err := r.checkStatuses(order); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i := range order.Items {
		if order.Items[i].ID == 0 {
			r.store.nextItemID++
			order.Items[i].ID = r.store.nextItemID
		}
		order.Items[i].OrderID = order.ID
	}
	r.store.orders[order.ID] = cloneOrder(order)
	r.store.saves++
	return nil
}

func (r *memOrderRepo) UpdateStatus(_ context.Context, id uint, status string) error {
	if r.store.rejectStatuses[status] {
		return &rental.PersistenceRejected{Constraint: "chk_rental_orders_status"}
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	o, ok := r.store.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	o.Status = status
	return nil
}

func (r *memOrderRepo) DeleteItem(_ context.Context, orderID, itemID uint) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	o, ok := r.store.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			o.Items = append(o.Items[:i], o.Items[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *memOrderRepo) SaveReconciliation(ctx context.Context, order *models.RentalOrder, event *models.ReturnEvent) error {
	if err := r.Save(ctx, order); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.nextEventID++
	event.ID = r.store.nextEventID
	event.OrderID = order.ID
	r.store.events = append(r.store.events, *event)
	return nil
}

// Transaction restores the previous state when fn fails.
func (r *memOrderRepo) Transaction(_ context.Context, fn func(repository.OrderRepository) error) error {
	r.store.mu.Lock()
	snapshot := make(map[uint]*models.RentalOrder, len(r.store.orders))
	for id, o := range r.store.orders {
		snapshot[id] = cloneOrder(o)
	}
	events := append([]models.ReturnEvent(nil), r.store.events...)
	r.store.mu.Unlock()

	if err := fn(r); err != nil {
		r.store.mu.Lock()
		r.store.orders = snapshot
		r.store.events = events
		r.store.mu.Unlock()
		return err
	}
	return nil
}

type memItemRepo struct{ store *memStore }

func (r *memItemRepo) GetByOrderID(_ context.Context, orderID uint) ([]*models.RentalItem, error) {
	o := r.store.get(orderID)
	if o == nil {
		return nil, nil
	}
	out := make([]*models.RentalItem, 0, len(o.Items))
	for i := range o.Items {
		out = append(out, &o.Items[i])
	}
	return out, nil
}

func (r *memItemRepo) GetByReturnStatus(ctx context.Context, orderID uint, status string) ([]*models.RentalItem, error) {
	items, err := r.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	var out []*models.RentalItem
	for _, item := range items {
		current := "not_yet_returned"
		if item.ReturnStatus != nil && *item.ReturnStatus != "" {
			current = *item.ReturnStatus
		}
		if current == status {
			out = append(out, item)
		}
	}
	return out, nil
}

type memEventRepo struct{ store *memStore }

func (r *memEventRepo) GetByReference(_ context.Context, reference string) (*models.ReturnEvent, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, e := range r.store.events {
		if e.Reference == reference {
			e := e
			return &e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memEventRepo) ListByOrder(_ context.Context, orderID uint) ([]models.ReturnEvent, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.ReturnEvent
	for _, e := range r.store.events {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

type memBranchRepo struct {
	mu       sync.Mutex
	branches map[uint]*models.Branch
	nextID   uint
}

func newMemBranchRepo() *memBranchRepo {
	return &memBranchRepo{branches: map[uint]*models.Branch{}}
}

func (r *memBranchRepo) Create(_ context.Context, branch *models.Branch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.branches {
		if strings.EqualFold(b.Name, branch.Name) {
			return repository.ErrDuplicate
		}
	}
	r.nextID++
	branch.ID = r.nextID
	c := *branch
	r.branches[branch.ID] = &c
	return nil
}

func (r *memBranchRepo) GetByID(_ context.Context, id uint) (*models.Branch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.branches[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *b
	return &c, nil
}

func (r *memBranchRepo) GetByName(_ context.Context, name string) (*models.Branch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.branches {
		if b.Name == name {
			c := *b
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memBranchRepo) List(_ context.Context) ([]models.Branch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Branch
	for _, b := range r.branches {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memBranchRepo) Update(_ context.Context, branch *models.Branch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.branches[branch.ID]; !ok {
		return repository.ErrNotFound
	}
	c := *branch
	r.branches[branch.ID] = &c
	return nil
}

type memCustomerRepo struct {
	mu        sync.Mutex
	customers map[uint]*models.Customer
	nextID    uint
}

func newMemCustomerRepo() *memCustomerRepo {
	return &memCustomerRepo{customers: map[uint]*models.Customer{}}
}

func (r *memCustomerRepo) Create(_ context.Context, customer *models.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	customer.ID = r.nextID
	c := *customer
	r.customers[customer.ID] = &c
	return nil
}

func (r *memCustomerRepo) GetByID(_ context.Context, id uint) (*models.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.customers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (r *memCustomerRepo) ListByBranch(_ context.Context, branchID uint, search string) ([]models.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Customer
	for _, c := range r.customers {
		if c.BranchID != branchID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(search)) && !strings.Contains(c.Phone, search) {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memStaffRepo struct {
	mu     sync.Mutex
	staff  map[uint]*models.Staff
	nextID uint
}

func newMemStaffRepo() *memStaffRepo {
	return &memStaffRepo{staff: map[uint]*models.Staff{}}
}

func (r *memStaffRepo) Create(_ context.Context, staff *models.Staff) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.staff {
		if s.Email == staff.Email {
			return repository.ErrDuplicate
		}
	}
	r.nextID++
	staff.ID = r.nextID
	c := *staff
	r.staff[staff.ID] = &c
	return nil
}

func (r *memStaffRepo) GetByID(_ context.Context, id uint) (*models.Staff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.staff[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (r *memStaffRepo) GetByEmail(_ context.Context, email string) (*models.Staff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.staff {
		if s.Email == email {
			c := *s
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

// inlineLocker serializes callers with a process-local mutex.
type inlineLocker struct {
	mu    sync.Mutex
	calls int
	busy  error
}

func (l *inlineLocker) WithOrderLock(ctx context.Context, _ uint, _ time.Duration, fn func(context.Context) error) error {
	if l.busy != nil {
		return l.busy
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return fn(ctx)
}

type memCache struct {
	mu          sync.Mutex
	entries     map[uint]OrderSummary
	invalidated []uint
}

func newMemCache() *memCache {
	return &memCache{entries: map[uint]OrderSummary{}}
}

func (c *memCache) SetOrderSummary(_ context.Context, orderID uint, summary interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[orderID] = *summary.(*OrderSummary)
	return nil
}

func (c *memCache) GetOrderSummary(_ context.Context, orderID uint, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[orderID]
	if !ok {
		return fmt.Errorf("miss")
	}
	*dest.(*OrderSummary) = s
	return nil
}

func (c *memCache) InvalidateOrderSummary(_ context.Context, orderID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, orderID)
	c.invalidated = append(c.invalidated, orderID)
	return nil
}

// fixture wires every service against the in-memory fakes.
type fixture struct {
	store     *memStore
	branches  *memBranchRepo
	customers *memCustomerRepo
	staffRepo *memStaffRepo
	locker    *inlineLocker
	cache     *memCache
	clock     *fixedClock

	staff   StaffService
	orders  OrderService
	returns ReturnService

	branch   *models.Branch
	customer *models.Customer
	admin    *models.Staff
	clerk    *models.Staff
}

func newFixture() *fixture {
	f := &fixture{
		store:     newMemStore(),
		branches:  newMemBranchRepo(),
		customers: newMemCustomerRepo(),
		staffRepo: newMemStaffRepo(),
		locker:    &inlineLocker{},
		cache:     newMemCache(),
		clock:     &fixedClock{now: testStart.Add(-24 * time.Hour)},
	}
	f.staff = NewStaffService(f.staffRepo)
	ids := &seqIDs{}
	orderRepo := &memOrderRepo{store: f.store}

	f.orders = NewOrderService(OrderServiceDeps{
		Orders:     orderRepo,
		Items:      &memItemRepo{store: f.store},
		Branches:   f.branches,
		Customers:  f.customers,
		Staff:      f.staff,
		Locker:     f.locker,
		Cache:      f.cache,
		Clock:      f.clock,
		IDs:        ids,
		Logger:     zerolog.Nop(),
		LockTTL:    time.Second,
		SummaryTTL: time.Minute,
	})
	f.returns = NewReturnService(ReturnServiceDeps{
		Orders:   orderRepo,
		Events:   &memEventRepo{store: f.store},
		Branches: f.branches,
		Staff:    f.staff,
		Locker:   f.locker,
		Cache:    f.cache,
		Clock:    f.clock,
		IDs:      ids,
		Logger:   zerolog.Nop(),
		LockTTL:  time.Second,
	})

	ctx := context.Background()
	f.branch = &models.Branch{Name: "Main", GSTEnabled: true, GSTRate: dec("18"), IsActive: true}
	_ = f.branches.Create(ctx, f.branch)
	f.customer = &models.Customer{BranchID: f.branch.ID, Name: "Asha Rao", Phone: "9800000001"}
	_ = f.customers.Create(ctx, f.customer)
	f.admin = &models.Staff{Name: "Admin", Email: "admin@example.com", Role: string(models.RoleAdmin), IsActive: true}
	_ = f.staffRepo.Create(ctx, f.admin)
	f.clerk = &models.Staff{Name: "Clerk", Email: "clerk@example.com", Role: string(models.RoleStaff), IsActive: true}
	_ = f.staffRepo.Create(ctx, f.clerk)
	return f
}

func (f *fixture) createOrder(items ...ItemInput) (*models.RentalOrder, error) {
	if len(items) == 0 {
		items = []ItemInput{
			{ItemName: "Chair", Quantity: 5, PricePerDay: dec("100")},
			{ItemName: "Table", Quantity: 2, PricePerDay: dec("250")},
		}
	}
	return f.orders.CreateOrder(context.Background(), CreateOrderInput{
		BranchID:   f.branch.ID,
		CustomerID: f.customer.ID,
		CreatedBy:  f.admin.ID,
		StartDate:  testStart,
		EndDate:    testEnd,
		Items:      items,
	})
}

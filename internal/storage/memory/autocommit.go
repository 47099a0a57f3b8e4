package memory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/likebank/likebank/internal/domain"
	"github.com/likebank/likebank/internal/storage"
)

// Autocommit methods: each takes the lock for a single operation.

func (m *Store) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.getUser(id)
}

func (m *Store) GetUserForUpdate(ctx context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.getUser(id)
}

func (m *Store) AdjustUserBalance(ctx context.Context, id int64, delta decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.adjustUserBalance(id, delta)
}

func (m *Store) InsertCoinEntry(ctx context.Context, e *domain.CoinEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.insertCoinEntry(e)
}

func (m *Store) SumCoinDeltas(ctx context.Context, userID int64) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.sumCoinDeltas(userID), nil
}

func (m *Store) ListCoinEntries(ctx context.Context, userID int64, limit int) ([]domain.CoinEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.listCoinEntries(userID, limit), nil
}

func (m *Store) CreateOrder(ctx context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.createOrder(o)
	return nil
}

func (m *Store) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.getOrder(id)
}

func (m *Store) GetOrderForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.getOrder(id)
}

func (m *Store) UpdateOrderStatus(ctx context.Context, id int64, from, to domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.updateOrderStatus(id, from, to)
}

func (m *Store) SetOrderCancelRequested(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.st.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.CancelRequested = true
	return nil
}

func (m *Store) DecrementOrderRemaining(ctx context.Context, id int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.decrementOrderRemaining(id)
}

func (m *Store) ListActiveOrdersOwnedBy(ctx context.Context, userID int64) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.listActiveOrdersOwnedBy(userID), nil
}

func (m *Store) BulkCreateTasks(ctx context.Context, orderID int64, count int, now time.Time) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.bulkCreateTasks(orderID, count, now), nil
}

func (m *Store) GetTask(ctx context.Context, id int64) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.getTask(id)
}

func (m *Store) GetTaskForUpdate(ctx context.Context, id int64) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.getTask(id)
}

func (m *Store) ActiveTaskFor(ctx context.Context, userID int64) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.activeTaskFor(userID), nil
}

func (m *Store) ClaimTask(ctx context.Context, taskID, userID int64, now, deadline time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.claimTask(taskID, userID, now, deadline), nil
}

func (m *Store) ReleaseExpiredTasks(ctx context.Context, now time.Time) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.releaseExpiredTasks(now), nil
}

func (m *Store) MarkTaskVerified(ctx context.Context, taskID int64, validationRef string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.markTaskVerified(taskID, validationRef, now)
}

func (m *Store) MarkTaskRejected(ctx context.Context, taskID int64, kind domain.RejectKind, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.markTaskRejected(taskID, kind, now)
}

func (m *Store) ResetTaskToPending(ctx context.Context, taskID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.resetTaskToPending(taskID)
}

func (m *Store) SetTaskReplacedBy(ctx context.Context, taskID, replacementID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.st.tasks[taskID]
	if !ok {
		return domain.ErrTaskNotFound
	}
	id := replacementID
	task.ReplacedByTaskID = &id
	return nil
}

func (m *Store) ListTasksByOrder(ctx context.Context, orderID int64) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.listTasksByOrder(orderID, false), nil
}

func (m *Store) ListPendingTasksByOrder(ctx context.Context, orderID int64) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.listTasksByOrder(orderID, true), nil
}

func (m *Store) CountVerifiedTasks(ctx context.Context, orderID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.countVerifiedTasks(orderID), nil
}

func (m *Store) FindCandidateTasks(ctx context.Context, workerID int64, limit int) ([]storage.CandidateTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.findCandidateTasks(workerID, limit), nil
}

package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/likebank/likebank/internal/domain"
	"github.com/likebank/likebank/internal/storage"
)

// tx operates on the live state while Store.WithTx holds the lock.
type tx struct {
	st *state
}

var _ storage.Tx = (*tx)(nil)

// ---- users ----

func (s *state) getUser(id int64) (*domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cu := *u
	return &cu, nil
}

func (s *state) adjustUserBalance(id int64, delta decimal.Decimal) (decimal.Decimal, error) {
	u, ok := s.users[id]
	if !ok {
		return decimal.Zero, domain.ErrUserNotFound
	}
	u.CoinBalance = u.CoinBalance.Add(delta)
	return u.CoinBalance, nil
}

func (t *tx) GetUser(_ context.Context, id int64) (*domain.User, error) { return t.st.getUser(id) }
func (t *tx) GetUserForUpdate(_ context.Context, id int64) (*domain.User, error) {
	return t.st.getUser(id)
}
func (t *tx) AdjustUserBalance(_ context.Context, id int64, delta decimal.Decimal) (decimal.Decimal, error) {
	return t.st.adjustUserBalance(id, delta)
}

// ---- ledger ----

func refKey(reason domain.CoinReason, ref string) string { return string(reason) + "|" + ref }

func (s *state) insertCoinEntry(e *domain.CoinEntry) error {
	key := refKey(e.Reason, e.Ref)
	if s.refs[key] {
		return domain.ErrDuplicateEntry
	}
	s.refs[key] = true
	e.ID = s.nextID()
	stored := *e
	s.entries = append(s.entries, &stored)
	return nil
}

func (s *state) sumCoinDeltas(userID int64) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range s.entries {
		if e.UserID == userID {
			sum = sum.Add(e.Delta)
		}
	}
	return sum
}

func (s *state) listCoinEntries(userID int64, limit int) []domain.CoinEntry {
	var out []domain.CoinEntry
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if s.entries[i].UserID == userID {
			out = append(out, *s.entries[i])
		}
	}
	return out
}

func (t *tx) InsertCoinEntry(_ context.Context, e *domain.CoinEntry) error {
	return t.st.insertCoinEntry(e)
}
func (t *tx) SumCoinDeltas(_ context.Context, userID int64) (decimal.Decimal, error) {
	return t.st.sumCoinDeltas(userID), nil
}
func (t *tx) ListCoinEntries(_ context.Context, userID int64, limit int) ([]domain.CoinEntry, error) {
	return t.st.listCoinEntries(userID, limit), nil
}

// ---- orders ----

func (s *state) createOrder(o *domain.Order) {
	o.ID = s.nextID()
	stored := *o
	s.orders[o.ID] = &stored
}

func (s *state) getOrder(id int64) (*domain.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	co := *o
	return &co, nil
}

func (s *state) updateOrderStatus(id int64, from, to domain.OrderStatus) error {
	o, ok := s.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.Status != from {
		return domain.ErrIllegalTransition
	}
	o.Status = to
	return nil
}

func (s *state) decrementOrderRemaining(id int64) (int, error) {
	o, ok := s.orders[id]
	if !ok {
		return 0, domain.ErrOrderNotFound
	}
	if o.RemainingCount <= 0 {
		return 0, domain.ErrWrongState
	}
	o.RemainingCount--
	return o.RemainingCount, nil
}

func (t *tx) CreateOrder(_ context.Context, o *domain.Order) error {
	t.st.createOrder(o)
	return nil
}
func (t *tx) GetOrder(_ context.Context, id int64) (*domain.Order, error) { return t.st.getOrder(id) }
func (t *tx) GetOrderForUpdate(_ context.Context, id int64) (*domain.Order, error) {
	return t.st.getOrder(id)
}
func (t *tx) UpdateOrderStatus(_ context.Context, id int64, from, to domain.OrderStatus) error {
	return t.st.updateOrderStatus(id, from, to)
}
func (t *tx) SetOrderCancelRequested(_ context.Context, id int64) error {
	o, ok := t.st.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.CancelRequested = true
	return nil
}
func (t *tx) DecrementOrderRemaining(_ context.Context, id int64) (int, error) {
	return t.st.decrementOrderRemaining(id)
}
func (t *tx) ListActiveOrdersOwnedBy(_ context.Context, userID int64) ([]domain.Order, error) {
	return t.st.listActiveOrdersOwnedBy(userID), nil
}

func (s *state) listActiveOrdersOwnedBy(userID int64) []domain.Order {
	var out []domain.Order
	for _, o := range s.orders {
		if o.OwnerUserID == userID && o.Status == domain.OrderActive {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ---- tasks ----

func (s *state) bulkCreateTasks(orderID int64, count int, now time.Time) []int64 {
	ids := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		id := s.nextID()
		s.tasks[id] = &domain.Task{
			ID:        id,
			OrderID:   orderID,
			Status:    domain.TaskPending,
			CreatedAt: now,
		}
		ids = append(ids, id)
	}
	return ids
}

func (s *state) getTask(id int64) (*domain.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return copyTask(t), nil
}

func (s *state) activeTaskFor(userID int64) *domain.Task {
	for _, t := range s.tasks {
		if t.Status == domain.TaskAssigned && t.AssignedUserID != nil && *t.AssignedUserID == userID {
			return copyTask(t)
		}
	}
	return nil
}

func (s *state) claimTask(taskID, userID int64, now, deadline time.Time) bool {
	t, ok := s.tasks[taskID]
	if !ok || t.Status != domain.TaskPending {
		return false
	}
	o, ok := s.orders[t.OrderID]
	if !ok || o.OwnerUserID == userID {
		return false
	}
	if s.activeTaskFor(userID) != nil {
		return false
	}
	t.Status = domain.TaskAssigned
	t.AssignedUserID = &userID
	at := now
	t.AssignedAt = &at
	dl := deadline
	t.ExpiresAt = &dl
	return true
}

func (s *state) releaseExpiredTasks(now time.Time) []int64 {
	var ids []int64
	for _, t := range s.tasks {
		if t.Status == domain.TaskAssigned && t.ExpiresAt != nil && !t.ExpiresAt.After(now) {
			t.Status = domain.TaskPending
			t.AssignedUserID = nil
			t.AssignedAt = nil
			t.ExpiresAt = nil
			t.AttemptCount++
			ids = append(ids, t.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *state) markTaskVerified(taskID int64, validationRef string, now time.Time) error {
	t, ok := s.tasks[taskID]
	if !ok {
		return domain.ErrTaskNotFound
	}
	if t.Status != domain.TaskAssigned {
		return domain.ErrWrongState
	}
	t.Status = domain.TaskVerified
	ref := validationRef
	t.ValidationRef = &ref
	done := now
	t.CompletedAt = &done
	return nil
}

func (s *state) markTaskRejected(taskID int64, kind domain.RejectKind, now time.Time) error {
	t, ok := s.tasks[taskID]
	if !ok {
		return domain.ErrTaskNotFound
	}
	if t.Status != domain.TaskPending && t.Status != domain.TaskAssigned {
		return domain.ErrWrongState
	}
	t.Status = domain.TaskRejected
	t.RejectKind = kind
	done := now
	t.CompletedAt = &done
	return nil
}

func (s *state) resetTaskToPending(taskID int64) error {
	t, ok := s.tasks[taskID]
	if !ok {
		return domain.ErrTaskNotFound
	}
	if t.Status != domain.TaskAssigned {
		return domain.ErrWrongState
	}
	t.Status = domain.TaskPending
	t.AssignedUserID = nil
	t.AssignedAt = nil
	t.ExpiresAt = nil
	t.AttemptCount++
	return nil
}

func (s *state) listTasksByOrder(orderID int64, onlyPending bool) []domain.Task {
	var out []domain.Task
	for _, t := range s.tasks {
		if t.OrderID != orderID {
			continue
		}
		if onlyPending && t.Status != domain.TaskPending {
			continue
		}
		out = append(out, *copyTask(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *state) countVerifiedTasks(orderID int64) int {
	n := 0
	for _, t := range s.tasks {
		if t.OrderID == orderID && t.Status == domain.TaskVerified {
			n++
		}
	}
	return n
}

func (s *state) findCandidateTasks(workerID int64, limit int) []storage.CandidateTask {
	var out []storage.CandidateTask
	for _, t := range s.tasks {
		if t.Status != domain.TaskPending {
			continue
		}
		o, ok := s.orders[t.OrderID]
		if !ok || o.Status != domain.OrderActive || o.OwnerUserID == workerID {
			continue
		}
		out = append(out, storage.CandidateTask{
			TaskID:          t.ID,
			OrderID:         t.OrderID,
			OwnerUserID:     o.OwnerUserID,
			TaskCreatedAt:   t.CreatedAt,
			VerifiedInOrder: s.workerHistory(t.OrderID, workerID, domain.TaskVerified, domain.RejectNone),
			FaultedInOrder:  s.workerHistory(t.OrderID, workerID, domain.TaskRejected, domain.RejectWorkerFault),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.TaskCreatedAt.Equal(b.TaskCreatedAt) {
			return a.TaskCreatedAt.Before(b.TaskCreatedAt)
		}
		if a.OrderID != b.OrderID {
			return a.OrderID < b.OrderID
		}
		return a.TaskID < b.TaskID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *state) workerHistory(orderID, workerID int64, status domain.TaskStatus, kind domain.RejectKind) bool {
	for _, t := range s.tasks {
		if t.OrderID != orderID || t.Status != status {
			continue
		}
		if kind != domain.RejectNone && t.RejectKind != kind {
			continue
		}
		if t.AssignedUserID != nil && *t.AssignedUserID == workerID {
			return true
		}
	}
	return false
}

func (t *tx) BulkCreateTasks(_ context.Context, orderID int64, count int, now time.Time) ([]int64, error) {
	return t.st.bulkCreateTasks(orderID, count, now), nil
}
func (t *tx) GetTask(_ context.Context, id int64) (*domain.Task, error) { return t.st.getTask(id) }
func (t *tx) GetTaskForUpdate(_ context.Context, id int64) (*domain.Task, error) {
	return t.st.getTask(id)
}
func (t *tx) ActiveTaskFor(_ context.Context, userID int64) (*domain.Task, error) {
	return t.st.activeTaskFor(userID), nil
}
func (t *tx) ClaimTask(_ context.Context, taskID, userID int64, now, deadline time.Time) (bool, error) {
	return t.st.claimTask(taskID, userID, now, deadline), nil
}
func (t *tx) ReleaseExpiredTasks(_ context.Context, now time.Time) ([]int64, error) {
	return t.st.releaseExpiredTasks(now), nil
}
func (t *tx) MarkTaskVerified(_ context.Context, taskID int64, validationRef string, now time.Time) error {
	return t.st.markTaskVerified(taskID, validationRef, now)
}
func (t *tx) MarkTaskRejected(_ context.Context, taskID int64, kind domain.RejectKind, now time.Time) error {
	return t.st.markTaskRejected(taskID, kind, now)
}
func (t *tx) ResetTaskToPending(_ context.Context, taskID int64) error {
	return t.st.resetTaskToPending(taskID)
}
func (t *tx) SetTaskReplacedBy(_ context.Context, taskID, replacementID int64) error {
	task, ok := t.st.tasks[taskID]
	if !ok {
		return domain.ErrTaskNotFound
	}
	id := replacementID
	task.ReplacedByTaskID = &id
	return nil
}
func (t *tx) ListTasksByOrder(_ context.Context, orderID int64) ([]domain.Task, error) {
	return t.st.listTasksByOrder(orderID, false), nil
}
func (t *tx) ListPendingTasksByOrder(_ context.Context, orderID int64) ([]domain.Task, error) {
	return t.st.listTasksByOrder(orderID, true), nil
}
func (t *tx) CountVerifiedTasks(_ context.Context, orderID int64) (int, error) {
	return t.st.countVerifiedTasks(orderID), nil
}
func (t *tx) FindCandidateTasks(_ context.Context, workerID int64, limit int) ([]storage.CandidateTask, error) {
	return t.st.findCandidateTasks(workerID, limit), nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/likebank/likebank/internal/domain"
	"github.com/likebank/likebank/internal/storage"
)

const taskColumns = `id, order_id, status, assigned_user_id, assigned_at, expires_at,
	completed_at, validation_ref, reject_kind, replaced_by_task_id, attempt_count, created_at`

func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	var status, rejectKind string
	err := row.Scan(&t.ID, &t.OrderID, &status, &t.AssignedUserID, &t.AssignedAt, &t.ExpiresAt,
		&t.CompletedAt, &t.ValidationRef, &rejectKind, &t.ReplacedByTaskID, &t.AttemptCount, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, storageErr(err)
	}
	t.Status = domain.TaskStatus(status)
	t.RejectKind = domain.RejectKind(rejectKind)
	return &t, nil
}

func (q *queries) BulkCreateTasks(ctx context.Context, orderID int64, count int, now time.Time) ([]int64, error) {
	rows, err := q.db.Query(ctx,
		`INSERT INTO tasks (order_id, status, created_at)
		 SELECT $1, 'pending', $3 FROM generate_series(1, $2)
		 RETURNING id`,
		orderID, count, now,
	)
	if err != nil {
		return nil, fmt.Errorf("bulk create tasks: %w", storageErr(err))
	}
	defer rows.Close()

	ids := make([]int64, 0, count)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storageErr(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return ids, nil
}

func (q *queries) GetTask(ctx context.Context, id int64) (*domain.Task, error) {
	return scanTask(q.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
}

func (q *queries) GetTaskForUpdate(ctx context.Context, id int64) (*domain.Task, error) {
	return scanTask(q.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, id))
}

func (q *queries) ActiveTaskFor(ctx context.Context, userID int64) (*domain.Task, error) {
	t, err := scanTask(q.db.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE assigned_user_id = $1 AND status = 'assigned'`,
		userID,
	))
	if errors.Is(err, domain.ErrTaskNotFound) {
		return nil, nil
	}
	return t, err
}

// ClaimTask is the dispatch linearization point: a single conditional UPDATE
// that fails when the task left pending, the worker owns the order, or the
// worker already holds an assignment.
func (q *queries) ClaimTask(ctx context.Context, taskID, userID int64, now, deadline time.Time) (bool, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE tasks SET status = 'assigned', assigned_user_id = $2, assigned_at = $3, expires_at = $4
		 WHERE id = $1
		   AND status = 'pending'
		   AND NOT EXISTS (
		     SELECT 1 FROM orders o WHERE o.id = tasks.order_id AND o.owner_user_id = $2
		   )
		   AND NOT EXISTS (
		     SELECT 1 FROM tasks a WHERE a.assigned_user_id = $2 AND a.status = 'assigned'
		   )`,
		taskID, userID, now, deadline,
	)
	if err != nil {
		// The partial unique index can still reject a racing second claim.
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("claim task: %w", storageErr(err))
	}
	return tag.RowsAffected() == 1, nil
}

func (q *queries) ReleaseExpiredTasks(ctx context.Context, now time.Time) ([]int64, error) {
	rows, err := q.db.Query(ctx,
		`UPDATE tasks
		 SET status = 'pending', assigned_user_id = NULL, assigned_at = NULL, expires_at = NULL,
		     attempt_count = attempt_count + 1
		 WHERE status = 'assigned' AND expires_at <= $1
		 RETURNING id`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("release expired: %w", storageErr(err))
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storageErr(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return ids, nil
}

func (q *queries) MarkTaskVerified(ctx context.Context, taskID int64, validationRef string, now time.Time) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE tasks SET status = 'verified', validation_ref = $2, completed_at = $3
		 WHERE id = $1 AND status = 'assigned'`,
		taskID, validationRef, now,
	)
	if err != nil {
		return fmt.Errorf("mark verified: %w", storageErr(err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrWrongState
	}
	return nil
}

func (q *queries) MarkTaskRejected(ctx context.Context, taskID int64, kind domain.RejectKind, now time.Time) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE tasks SET status = 'rejected', reject_kind = $2, completed_at = $3
		 WHERE id = $1 AND status IN ('pending', 'assigned')`,
		taskID, string(kind), now,
	)
	if err != nil {
		return fmt.Errorf("mark rejected: %w", storageErr(err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrWrongState
	}
	return nil
}

func (q *queries) ResetTaskToPending(ctx context.Context, taskID int64) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE tasks
		 SET status = 'pending', assigned_user_id = NULL, assigned_at = NULL, expires_at = NULL,
		     attempt_count = attempt_count + 1
		 WHERE id = $1 AND status = 'assigned'`,
		taskID,
	)
	if err != nil {
		return fmt.Errorf("reset task: %w", storageErr(err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrWrongState
	}
	return nil
}

func (q *queries) SetTaskReplacedBy(ctx context.Context, taskID, replacementID int64) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE tasks SET replaced_by_task_id = $2 WHERE id = $1`,
		taskID, replacementID,
	)
	if err != nil {
		return fmt.Errorf("set replaced by: %w", storageErr(err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (q *queries) listTasks(ctx context.Context, query string, args ...any) ([]domain.Task, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", storageErr(err))
	}
	defer rows.Close()

	var out []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}

func (q *queries) ListTasksByOrder(ctx context.Context, orderID int64) ([]domain.Task, error) {
	return q.listTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE order_id = $1 ORDER BY id`, orderID)
}

func (q *queries) ListPendingTasksByOrder(ctx context.Context, orderID int64) ([]domain.Task, error) {
	return q.listTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE order_id = $1 AND status = 'pending' ORDER BY id`, orderID)
}

func (q *queries) CountVerifiedTasks(ctx context.Context, orderID int64) (int, error) {
	var n int
	err := q.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM tasks WHERE order_id = $1 AND status = 'verified'`, orderID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count verified: %w", storageErr(err))
	}
	return n, nil
}

func (q *queries) FindCandidateTasks(ctx context.Context, workerID int64, limit int) ([]storage.CandidateTask, error) {
	rows, err := q.db.Query(ctx,
		`SELECT t.id, t.order_id, o.owner_user_id, t.created_at,
		        EXISTS (
		          SELECT 1 FROM tasks v
		          WHERE v.order_id = t.order_id AND v.status = 'verified' AND v.assigned_user_id = $1
		        ) AS verified_in_order,
		        EXISTS (
		          SELECT 1 FROM tasks r
		          WHERE r.order_id = t.order_id AND r.status = 'rejected'
		            AND r.reject_kind = 'worker_fault' AND r.assigned_user_id = $1
		        ) AS faulted_in_order
		 FROM tasks t
		 JOIN orders o ON o.id = t.order_id
		 WHERE t.status = 'pending' AND o.status = 'active' AND o.owner_user_id <> $1
		 ORDER BY t.created_at, t.order_id, t.id
		 LIMIT $2`,
		workerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", storageErr(err))
	}
	defer rows.Close()

	var out []storage.CandidateTask
	for rows.Next() {
		var c storage.CandidateTask
		if err := rows.Scan(&c.TaskID, &c.OrderID, &c.OwnerUserID, &c.TaskCreatedAt,
			&c.VerifiedInOrder, &c.FaultedInOrder); err != nil {
			return nil, storageErr(err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}

package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmsd/dmsd/internal/contract"
	"github.com/dmsd/dmsd/internal/ethaddr"
	"github.com/dmsd/dmsd/internal/nav"
	"github.com/dmsd/dmsd/internal/notification"
	"github.com/dmsd/dmsd/internal/session"
	"github.com/dmsd/dmsd/internal/txlog"
	"github.com/dmsd/dmsd/internal/wallet"
)

// TaskStatus is the outcome of a contract write.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskConfirmed TaskStatus = "confirmed"
	TaskFailed    TaskStatus = "failed"
	// TaskDiscarded means the panel unmounted before confirmation; nothing was dispatched.
	TaskDiscarded TaskStatus = "discarded"
)

// TaskResult is available once a task is done.
type TaskResult struct {
	Status  TaskStatus
	Receipt contract.Receipt
	// State is the session state after the confirmation dispatched.
	State session.State
	Err   error
}

// Task is a submitted write awaiting confirmation. It dispatches at most once.
type Task struct {
	Tx    contract.Tx
	Panel nav.Panel

	done   chan struct{}
	result TaskResult
}

// Done is closed when the task finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Result returns the outcome, or a pending result while the task runs.
func (t *Task) Result() TaskResult {
	select {
	case <-t.done:
		return t.result
	default:
		return TaskResult{Status: TaskPending}
	}
}

// Wait blocks until the task finished or ctx ends.
func (t *Task) Wait(ctx context.Context) (TaskResult, error) {
	select {
	case <-t.done:
		return t.result, nil
	case <-ctx.Done():
		return TaskResult{Status: TaskPending}, ctx.Err()
	}
}

// followUp runs after confirmation and returns the actions to dispatch.
type followUp func(ctx context.Context) ([]session.Action, error)

type submitFunc func(ctx context.Context, s wallet.Signer) (contract.Tx, error)

// write submits a contract write from panel p and confirms it in the
// background under the panel's mount.
func (d *Dashboard) write(ctx context.Context, p nav.Panel, submit submitFunc, then followUp) (*Task, error) {
	m, err := d.current(p)
	if err != nil {
		return nil, err
	}
	address := d.store.Snapshot().UserAddress
	if ethaddr.IsUnset(address) {
		return nil, ErrNotConnected
	}
	signer, err := d.deps.Signers.Signer(address)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := bind(ctx, m)
	tx, err := submit(callCtx, signer)
	cancel()
	if err != nil {
		d.logger.Warn("contract write failed", "panel", p.String(), "error", err)
		return nil, err
	}

	entry := txlog.Entry{Hash: tx.Hash, SessionID: d.id, Address: address, Method: tx.Method, Panel: p.String(), Status: txlog.StatusPending}
	if err := d.deps.Journal.Record(ctx, entry); err != nil {
		d.logger.Error("journal record failed", "tx_hash", tx.Hash.Hex(), "error", err)
	}

	task := &Task{Tx: tx, Panel: p, done: make(chan struct{})}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		task.result = TaskResult{Status: TaskDiscarded, Err: ErrClosed}
		d.finish(task, txlog.Outcome{Status: txlog.StatusAbandoned})
		close(task.done)
		return task, nil
	}
	// Add happens under the lock Close takes, so Wait never races it.
	d.tasks.Add(1)
	d.mu.Unlock()
	go d.confirm(m, task, then)
	return task, nil
}

func (d *Dashboard) confirm(m *mount, task *Task, then followUp) {
	defer d.tasks.Done()
	defer close(task.done)

	waitCtx, cancel := context.WithTimeout(m.ctx, d.deps.TxTimeout)
	defer cancel()

	receipt, err := d.deps.Contract.WaitMined(waitCtx, task.Tx)
	switch {
	case m.ctx.Err() != nil:
		task.result = TaskResult{Status: TaskDiscarded, Receipt: receipt, Err: m.ctx.Err()}
		d.finish(task, txlog.Outcome{Status: txlog.StatusAbandoned, BlockNumber: receipt.BlockNumber})
		return
	case err != nil:
		task.result = TaskResult{Status: TaskFailed, Err: err}
		d.finish(task, txlog.Outcome{Status: txlog.StatusFailed, Error: err.Error()})
		return
	}

	var actions []session.Action
	if then != nil {
		actions, err = then(waitCtx)
	}
	d.finish(task, txlog.Outcome{Status: txlog.StatusConfirmed, BlockNumber: receipt.BlockNumber})
	if err != nil {
		if m.ctx.Err() != nil {
			task.result = TaskResult{Status: TaskDiscarded, Receipt: receipt, Err: m.ctx.Err()}
			return
		}
		task.result = TaskResult{Status: TaskFailed, Receipt: receipt, Err: fmt.Errorf("refresh after confirmation: %w", err)}
		return
	}

	state, mounted, err := d.dispatchMounted(m, actions...)
	switch {
	case !mounted:
		task.result = TaskResult{Status: TaskDiscarded, Receipt: receipt, Err: context.Canceled}
	case err != nil:
		task.result = TaskResult{Status: TaskFailed, Receipt: receipt, Err: err}
	default:
		task.result = TaskResult{Status: TaskConfirmed, Receipt: receipt, State: state}
	}
}

// finish journals the outcome and notifies the wallet owner.
func (d *Dashboard) finish(task *Task, outcome txlog.Outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := d.deps.Journal.Complete(ctx, task.Tx.Hash, outcome); err != nil && !errors.Is(err, txlog.ErrNotFound) {
		d.logger.Error("journal completion failed", "tx_hash", task.Tx.Hash.Hex(), "error", err)
	}
	d.logger.Info("contract write finished", "tx_hash", task.Tx.Hash.Hex(), "method", task.Tx.Method, "status", string(outcome.Status))

	if d.deps.Notifier == nil || outcome.Status == txlog.StatusAbandoned {
		return
	}
	msg := notification.Message{
		Kind:        notification.KindTxConfirmed,
		Destination: task.Tx.From.Hex(),
		TxHash:      task.Tx.Hash.Hex(),
		Body:        task.Tx.Method + " confirmed",
	}
	if outcome.Status == txlog.StatusFailed {
		msg.Kind = notification.KindTxFailed
		msg.Body = task.Tx.Method + " failed: " + outcome.Error
	}
	if err := d.deps.Notifier.Send(ctx, msg); err != nil {
		d.logger.Warn("notification failed", "tx_hash", task.Tx.Hash.Hex(), "error", err)
	}
}

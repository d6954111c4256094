// Package notify fans workflow outcomes out over Redis pub/sub. Consumers
// (dashboards, mailers) subscribe to the channel; the engine itself never
// waits on them.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"bursar/internal/ledger"
	"bursar/internal/workflow"
	"bursar/pkg/domain"
)

// Channel is the pub/sub channel every notification goes to.
const Channel = "bursar.notifications"

type message struct {
	Kind       string `json:"kind"`
	Entity     string `json:"entity,omitempty"`
	EntityID   string `json:"entityId,omitempty"`
	Department string `json:"department,omitempty"`
	Decision   string `json:"decision,omitempty"`
	Remarks    string `json:"remarks,omitempty"`

	BudgetHead    string `json:"budgetHead,omitempty"`
	FinancialYear string `json:"financialYear,omitempty"`
	Remaining     string `json:"remaining,omitempty"`
	Allocated     string `json:"allocated,omitempty"`
}

// RedisNotifier implements the coordinator's notifier port.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) SubmissionReceived(ctx context.Context, entity workflow.EntityType, id string, dept domain.DepartmentID) error {
	return n.publish(ctx, message{
		Kind:       "submission_received",
		Entity:     string(entity),
		EntityID:   id,
		Department: dept.String(),
	})
}

func (n *RedisNotifier) DecisionTaken(ctx context.Context, entity workflow.EntityType, id string, decision domain.Decision, remarks string) error {
	return n.publish(ctx, message{
		Kind:     "decision_taken",
		Entity:   string(entity),
		EntityID: id,
		Decision: string(decision),
		Remarks:  remarks,
	})
}

func (n *RedisNotifier) LedgerNearExhaustion(ctx context.Context, key ledger.Key, remaining, allocated decimal.Decimal) error {
	return n.publish(ctx, message{
		Kind:          "ledger_near_exhaustion",
		Department:    key.Department.String(),
		BudgetHead:    key.BudgetHead.String(),
		FinancialYear: key.FinancialYear.String(),
		Remaining:     remaining.String(),
		Allocated:     allocated.String(),
	})
}

func (n *RedisNotifier) publish(ctx context.Context, msg message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := n.client.Publish(ctx, Channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

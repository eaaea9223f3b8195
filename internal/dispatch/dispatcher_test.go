package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/fin-ai-tgbot-go/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dispatchUser int64 = 42

func TestDispatchAllRunsEveryCall(t *testing.T) {
	d, _ := newTestDispatcher(t)

	calls := []models.ToolCall{
		{ID: "call_1", Name: "add_expense", Arguments: json.RawMessage(`{"description":"café","amount":8000,"category":"comida"}`)},
		{ID: "call_2", Name: "pay_bill", Arguments: json.RawMessage(`{"bill_id":`)},
		{ID: "call_3", Name: "list_goals"},
	}

	results := d.DispatchAll(context.Background(), dispatchUser, calls)
	require.Len(t, results, 3, "a failing call never aborts the batch")

	assert.Equal(t, "call_1", results[0].CallID)
	assert.Equal(t, "add_expense", results[0].Name)
	assert.Contains(t, results[0].Payload, `"ok":true`)

	assert.Equal(t, "call_2", results[1].CallID)
	assert.Contains(t, results[1].Payload, `"ok":false`)
	assert.Contains(t, results[1].Payload, `"code":"invalid_arguments"`)

	assert.Contains(t, results[2].Payload, `"ok":true`)
}

func TestDispatchCreateAndListBills(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	results := d.DispatchAll(ctx, dispatchUser, []models.ToolCall{
		{ID: "call_1", Name: "create_bill", Arguments: json.RawMessage(`{"description":"arriendo","amount":1200000,"category":"servicios","day_of_month":1}`)},
		{ID: "call_2", Name: "list_bills"},
	})
	require.Len(t, results, 2)

	var payload struct {
		OK   bool `json:"ok"`
		Data struct {
			Bills []struct {
				Bill struct {
					Description string `json:"description"`
				} `json:"bill"`
				Paid    bool   `json:"paid"`
				NextDue string `json:"next_due"`
			} `json:"bills"`
			PendingTotal decimal.Decimal `json:"pending_total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(results[1].Payload), &payload))

	require.True(t, payload.OK)
	require.Len(t, payload.Data.Bills, 1)
	assert.Equal(t, "arriendo", payload.Data.Bills[0].Bill.Description)
	assert.False(t, payload.Data.Bills[0].Paid)
	assert.NotEmpty(t, payload.Data.Bills[0].NextDue)
	assert.True(t, payload.Data.PendingTotal.Equal(cop(1200000)))
}

func TestDispatchDuplicatePaymentCode(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	results := d.DispatchAll(ctx, dispatchUser, []models.ToolCall{
		{ID: "call_1", Name: "create_bill", Arguments: json.RawMessage(`{"description":"luz","amount":120000,"day_of_month":5}`)},
		{ID: "call_2", Name: "pay_bill", Arguments: json.RawMessage(`{"description":"luz","month":4,"year":2025}`)},
		{ID: "call_3", Name: "pay_bill", Arguments: json.RawMessage(`{"description":"luz","month":4,"year":2025}`)},
	})
	require.Len(t, results, 3)

	assert.Contains(t, results[1].Payload, `"ok":true`)
	assert.Contains(t, results[2].Payload, `"code":"duplicate_payment"`)
}

func TestDispatchNotFoundCode(t *testing.T) {
	d, _ := newTestDispatcher(t)

	results := d.DispatchAll(context.Background(), dispatchUser, []models.ToolCall{
		{ID: "call_1", Name: "contribute_goal", Arguments: json.RawMessage(`{"name":"nada","amount":1000}`)},
	})
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Payload, `"code":"not_found"`)
}

func TestDispatchGoalInactiveCode(t *testing.T) {
	d, store := newTestDispatcher(t)
	ctx := context.Background()

	results := d.DispatchAll(ctx, dispatchUser, []models.ToolCall{
		{ID: "call_1", Name: "create_goal", Arguments: json.RawMessage(`{"name":"viaje","target_amount":5000000}`)},
	})
	require.Contains(t, results[0].Payload, `"ok":true`)

	goal, err := store.GoalByID(ctx, dispatchUser, 1)
	require.NoError(t, err)
	goal.Active = false
	require.NoError(t, store.UpdateGoal(ctx, goal))

	results = d.DispatchAll(ctx, dispatchUser, []models.ToolCall{
		{ID: "call_2", Name: "contribute_goal", Arguments: json.RawMessage(`{"name":"viaje","amount":1000}`)},
	})
	assert.Contains(t, results[0].Payload, `"code":"goal_inactive"`)
}

func TestDispatchInsufficientDataCode(t *testing.T) {
	d, _ := newTestDispatcher(t)

	results := d.DispatchAll(context.Background(), dispatchUser, []models.ToolCall{
		{ID: "call_1", Name: "project_spending"},
	})
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Payload, `"code":"insufficient_data"`)
}

package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semed/merenda/core"
)

func testSupplies() []SupplyLine {
	return []SupplyLine{
		{ID: "s-1", Name: "Arroz", Unit: "KG"},
		{ID: "s-2", Name: "Feijão", Unit: "KG"},
		{ID: "s-3", Name: "Leite", Unit: "L"},
	}
}

func TestNewConsumption(t *testing.T) {
	c := NewConsumption(testSupplies(), &fakeConsumptionSubmitter{}, testOptions())

	assert.Equal(t, Position{Stage: StageDate}, c.Position())
	assert.Equal(t, "2026-03-14", c.Date(), "date defaults to today")
	assert.Len(t, c.Items(), 3)
	assert.Empty(t, c.Added())
}

func TestConsumption_Date(t *testing.T) {
	tests := []struct {
		name    string
		date    string
		wantErr string
	}{
		{name: "empty", date: "", wantErr: "movement_date is required"},
		{name: "not a date", date: "14/03/2026", wantErr: "movement_date must be a date formatted as YYYY-MM-DD"},
		{name: "invalid day", date: "2026-02-30", wantErr: "movement_date must be a date formatted as YYYY-MM-DD"},
		{name: "valid", date: " 2026-03-01 "},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewConsumption(testSupplies(), &fakeConsumptionSubmitter{}, testOptions())
			require.NoError(t, c.SetDate(tc.date))

			err := c.Next()
			if tc.wantErr != "" {
				assert.Equal(t, tc.wantErr, fieldErrors(t, err)["movement_date"])
				assert.Equal(t, Position{Stage: StageDate}, c.Position())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, itemAt(0), c.Position())
			assert.Equal(t, "2026-03-01", c.Date())
		})
	}
}

func TestConsumption_ItemQuantity(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantErr   string
		wantAdded bool
		wantQty   float64
	}{
		{name: "empty is not added", text: " "},
		{name: "zero", text: "0", wantErr: "quantity must be greater than 0"},
		{name: "negative", text: "-2", wantErr: "quantity must be greater than 0"},
		{name: "not a number", text: "dois", wantErr: "quantity must be a valid numeric value"},
		{name: "decimal comma", text: "1,5", wantAdded: true, wantQty: 1.5},
		{name: "integer", text: "3", wantAdded: true, wantQty: 3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewConsumption(testSupplies(), &fakeConsumptionSubmitter{}, testOptions())
			require.NoError(t, c.Next())
			require.NoError(t, c.SetQuantity(0, tc.text))

			err := c.Next()
			if tc.wantErr != "" {
				assert.Equal(t, tc.wantErr, fieldErrors(t, err)["quantity"])
				assert.Equal(t, itemAt(0), c.Position())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, itemAt(1), c.Position())
			it := c.Items()[0]
			assert.Equal(t, tc.wantAdded, it.Added)
			assert.Equal(t, tc.wantQty, it.Amount)
		})
	}
}

func TestConsumption_Skip(t *testing.T) {
	c := NewConsumption(testSupplies(), &fakeConsumptionSubmitter{}, testOptions())
	assert.True(t, errors.Is(c.Skip(), ErrNotAllowed), "date step cannot be skipped")
	require.NoError(t, c.Next())

	require.NoError(t, c.SetQuantity(0, "4"))
	require.NoError(t, c.Skip())
	assert.Equal(t, itemAt(1), c.Position())
	assert.Equal(t, ConsumptionItem{SupplyID: "s-1", Name: "Arroz", Unit: "KG"}, c.Items()[0], "skip discards the typed quantity")

	require.NoError(t, c.Skip())
	require.NoError(t, c.Skip())
	assert.Equal(t, Position{Stage: StageSummary}, c.Position())
	assert.True(t, errors.Is(c.Skip(), ErrNotAllowed))
}

func TestConsumption_Submit(t *testing.T) {
	ctx := context.Background()
	sub := &fakeConsumptionSubmitter{}
	c := NewConsumption(testSupplies(), sub, testOptions())

	require.NoError(t, c.Next())
	require.NoError(t, c.SetQuantity(0, "2,5"))
	require.NoError(t, c.SetNote(0, " almoço "))
	require.NoError(t, c.Next())
	require.NoError(t, c.Skip())
	require.NoError(t, c.SetQuantity(2, "10"))
	require.NoError(t, c.Next())
	require.Equal(t, Position{Stage: StageSummary}, c.Position())
	assert.True(t, errors.Is(c.Next(), ErrNotAllowed), "summary only submits")

	want := []ConsumptionEntry{
		{SupplyID: "s-1", Name: "Arroz", Unit: "KG", Quantity: 2.5, Date: "2026-03-14", Note: "almoço"},
		{SupplyID: "s-3", Name: "Leite", Unit: "L", Quantity: 10, Date: "2026-03-14"},
	}
	assert.Equal(t, want, c.Added())

	require.NoError(t, c.Submit(ctx))
	assert.True(t, c.Completed())
	require.Equal(t, 1, sub.calls)
	assert.Equal(t, want, sub.entries[0])
	assert.Equal(t, want, c.Submitted())
	assert.True(t, errors.Is(c.Submit(ctx), ErrNotAllowed))
	assert.True(t, errors.Is(c.SetDate("2026-03-15"), ErrCompleted))
}

func TestConsumption_SubmitNothingAdded(t *testing.T) {
	sub := &fakeConsumptionSubmitter{}
	c := NewConsumption(testSupplies(), sub, testOptions())
	require.NoError(t, c.GoTo(Position{Stage: StageSummary}))

	err := c.Submit(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
	assert.True(t, errors.Is(err, ErrNoItems))
	assert.Equal(t, "add at least one item", fieldErrors(t, err)["items"])
	assert.Zero(t, sub.calls)
	assert.Equal(t, Position{Stage: StageSummary}, c.Position())
}

func TestConsumption_SubmitFailure(t *testing.T) {
	ctx := context.Background()
	sub := &fakeConsumptionSubmitter{err: errors.New("supply not found")}
	c := NewConsumption(testSupplies(), sub, testOptions())
	require.NoError(t, c.Next())
	require.NoError(t, c.SetQuantity(0, "1"))
	require.NoError(t, c.Next())
	require.NoError(t, c.GoTo(Position{Stage: StageSummary}))

	err := c.Submit(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "supply not found")
	assert.Equal(t, Position{Stage: StageSummary}, c.Position())
	assert.Len(t, c.Added(), 1)
	assert.Nil(t, c.Submitted())

	sub.err = nil
	require.NoError(t, c.Submit(ctx))
	assert.Equal(t, 2, sub.calls)
}

func TestConsumption_EditAfterAdding(t *testing.T) {
	ctx := context.Background()
	sub := &fakeConsumptionSubmitter{}
	c := NewConsumption(testSupplies(), sub, testOptions())
	require.NoError(t, c.Next())
	require.NoError(t, c.SetQuantity(0, "5"))
	require.NoError(t, c.Next())
	require.NoError(t, c.GoTo(Position{Stage: StageSummary}))
	require.Len(t, c.Added(), 1)

	require.NoError(t, c.GoTo(itemAt(0)))
	require.NoError(t, c.SetQuantity(0, "2"))
	assert.False(t, c.Items()[0].Added)
	assert.Empty(t, c.Added(), "an edited item leaves the summary")
	assert.True(t, errors.Is(c.GoTo(Position{Stage: StageSummary}), ErrNotAllowed))

	// walking forward without confirming still cannot submit the edit
	require.NoError(t, c.GoTo(itemAt(2)))
	require.NoError(t, c.Next())
	require.Equal(t, Position{Stage: StageSummary}, c.Position())
	assert.True(t, errors.Is(c.Submit(ctx), ErrNotAllowed))
	assert.Zero(t, sub.calls)

	require.NoError(t, c.GoTo(itemAt(0)))
	require.NoError(t, c.SetQuantity(0, "abc"))
	assert.Equal(t, "quantity must be a valid numeric value", fieldErrors(t, c.Next())["quantity"])

	require.NoError(t, c.SetQuantity(0, "2"))
	require.NoError(t, c.Next())
	require.NoError(t, c.GoTo(Position{Stage: StageSummary}))
	require.NoError(t, c.Submit(ctx))
	require.Len(t, sub.entries[0], 1)
	assert.Equal(t, 2.0, sub.entries[0][0].Quantity)
}

func TestConsumption_Remove(t *testing.T) {
	c := NewConsumption(testSupplies(), &fakeConsumptionSubmitter{}, testOptions())
	require.NoError(t, c.Next())
	for i := range c.Items() {
		require.NoError(t, c.SetQuantity(i, "1"))
		require.NoError(t, c.Next())
	}
	require.Len(t, c.Added(), 3)

	require.NoError(t, c.Remove("s-2"))
	added := c.Added()
	require.Len(t, added, 2)
	assert.Equal(t, "s-1", added[0].SupplyID)
	assert.Equal(t, "s-3", added[1].SupplyID)
	assert.Len(t, c.Items(), 3, "removed items stay in place")
	assert.Equal(t, "", c.Items()[1].Quantity)

	assert.True(t, errors.Is(c.Remove("s-2"), ErrNotAllowed))
	assert.True(t, errors.Is(c.Remove("nope"), ErrNotAllowed))
}

func TestConsumption_Navigation(t *testing.T) {
	c := NewConsumption(testSupplies(), &fakeConsumptionSubmitter{}, testOptions())
	assert.True(t, errors.Is(c.Back(), ErrNotAllowed))

	require.NoError(t, c.Next())
	require.NoError(t, c.SetQuantity(0, "2"))
	require.NoError(t, c.Next())
	require.NoError(t, c.Back())
	assert.Equal(t, itemAt(0), c.Position())
	require.NoError(t, c.Back())
	assert.Equal(t, Position{Stage: StageDate}, c.Position())

	require.NoError(t, c.GoTo(Position{Stage: StageSummary}))
	require.NoError(t, c.Back())
	assert.Equal(t, itemAt(2), c.Position(), "back from summary goes to the last item")

	require.NoError(t, c.SetDate(""))
	assert.True(t, errors.Is(c.GoTo(itemAt(1)), ErrNotAllowed), "no date chosen")
	assert.True(t, errors.Is(c.GoTo(itemAt(9)), ErrNotAllowed))
	require.NoError(t, c.GoTo(Position{Stage: StageDate}))
}

func TestConsumption_Reset(t *testing.T) {
	ctx := context.Background()
	c := NewConsumption(testSupplies(), &fakeConsumptionSubmitter{}, testOptions())
	require.NoError(t, c.SetDate("2026-03-10"))
	require.NoError(t, c.Next())
	require.NoError(t, c.SetQuantity(0, "2"))
	require.NoError(t, c.Next())
	require.NoError(t, c.GoTo(Position{Stage: StageSummary}))
	require.NoError(t, c.Submit(ctx))

	c.Reset()

	assert.Equal(t, Position{Stage: StageDate}, c.Position())
	assert.Equal(t, "2026-03-10", c.Date())
	assert.Empty(t, c.Added())
	assert.Nil(t, c.Submitted())
	for _, it := range c.Items() {
		assert.Empty(t, it.Quantity)
	}
}

func TestConsumption_NoSupplies(t *testing.T) {
	c := NewConsumption(nil, &fakeConsumptionSubmitter{}, testOptions())
	require.NoError(t, c.Next())
	assert.Equal(t, Position{Stage: StageSummary}, c.Position())
	require.NoError(t, c.Back())
	assert.Equal(t, Position{Stage: StageDate}, c.Position())
}

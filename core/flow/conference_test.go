package flow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semed/merenda/core/signature"
)

func testDelivery() DeliveryRecord {
	return DeliveryRecord{
		ID:           "d-1",
		SchoolName:   "EMEF Centro",
		DeliveryDate: "2026-03-14",
		Status:       "SENT",
		Lines: []DeliveryLine{
			{ID: "i-1", SupplyName: "Arroz", Unit: "KG", Planned: 10},
			{ID: "i-2", SupplyName: "Leite", Unit: "L", Planned: 5, Received: ptrFloat(4), Note: "uma caixa furada"},
		},
	}
}

// walkItems confirms every item with its preloaded quantity.
func walkItems(t *testing.T, c *Conference) {
	t.Helper()
	for range c.Items() {
		require.NoError(t, c.Next(context.Background()))
	}
}

func signBoth(t *testing.T, c *Conference) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, c.SetReceiverName("Maria"))
	sign(t, c.ReceiverPad())
	require.NoError(t, c.Next(ctx))
	require.NoError(t, c.SetSenderName("João"))
	sign(t, c.SenderPad())
}

func TestNewConference_Preload(t *testing.T) {
	c := NewConference(testDelivery(), &fakeConferenceSubmitter{}, testOptions())

	assert.Equal(t, itemAt(0), c.Position())
	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "10", items[0].Quantity, "planned quantity when nothing was received")
	assert.Equal(t, "4", items[1].Quantity, "received quantity wins over planned")
	assert.Equal(t, "uma caixa furada", items[1].Note)
	assert.False(t, items[0].Divergent())
	assert.True(t, items[1].Divergent())
	assert.False(t, c.ReceiverPad().Disabled())
}

func TestNewConference_NoItems(t *testing.T) {
	d := testDelivery()
	d.Lines = nil
	c := NewConference(d, &fakeConferenceSubmitter{}, testOptions())

	assert.Equal(t, Position{Stage: StageReceiverSignature}, c.Position())
	assert.True(t, errors.Is(c.Back(), ErrNotAllowed))
}

func TestNewConference_AlreadyConferred(t *testing.T) {
	d := testDelivery()
	d.Status = "CONFERRED"
	d.Conferred = true
	d.ReceiverSignature = SignatureRecord{ImageData: "data:image/png;base64,AAAA", SignerName: "Maria", HasInk: true}
	sub := &fakeConferenceSubmitter{}

	c := NewConference(d, sub, testOptions())

	assert.True(t, c.Completed())
	assert.True(t, c.ReceiverPad().Disabled())
	assert.True(t, c.SenderPad().Disabled())
	rec, ok := c.ReceiverSignature()
	require.True(t, ok)
	assert.Equal(t, "Maria", rec.SignerName)
	_, ok = c.SenderSignature()
	assert.False(t, ok)
	for _, it := range c.Items() {
		assert.True(t, it.Confirmed)
	}
	assert.Equal(t, 4.0, c.Items()[1].Received)

	assert.True(t, errors.Is(c.Next(context.Background()), ErrCompleted))
	assert.True(t, errors.Is(c.SetQuantity(0, "1"), ErrCompleted))
	assert.Zero(t, sub.calls)
}

func TestConference_ItemQuantity(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantErr  string
		wantQty  float64
		wantNext Position
	}{
		{name: "empty", text: "  ", wantErr: "quantity is required"},
		{name: "not a number", text: "abc", wantErr: "quantity must be a valid numeric value"},
		{name: "negative", text: "-1", wantErr: "quantity must be 0 or greater"},
		{name: "zero", text: "0", wantQty: 0, wantNext: itemAt(1)},
		{name: "decimal comma", text: "9,5", wantQty: 9.5, wantNext: itemAt(1)},
		{name: "decimal point", text: "12.25", wantQty: 12.25, wantNext: itemAt(1)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewConference(testDelivery(), &fakeConferenceSubmitter{}, testOptions())
			require.NoError(t, c.SetQuantity(0, tc.text))

			err := c.Next(context.Background())
			if tc.wantErr != "" {
				assert.Equal(t, tc.wantErr, fieldErrors(t, err)["quantity"])
				assert.Equal(t, itemAt(0), c.Position())
				assert.False(t, c.Items()[0].Confirmed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantNext, c.Position())
			assert.Equal(t, tc.wantQty, c.Items()[0].Received)
			assert.True(t, c.Items()[0].Confirmed)
		})
	}
}

func TestConference_SignatureRequired(t *testing.T) {
	ctx := context.Background()

	t.Run("no name and no ink", func(t *testing.T) {
		c := NewConference(testDelivery(), &fakeConferenceSubmitter{}, testOptions())
		walkItems(t, c)
		require.Equal(t, Position{Stage: StageReceiverSignature}, c.Position())

		flds := fieldErrors(t, c.Next(ctx))
		assert.Equal(t, "signer_name is required", flds["signer_name"])
		assert.Equal(t, "signature is required", flds["signature"])
		assert.Equal(t, Position{Stage: StageReceiverSignature}, c.Position())
	})

	t.Run("name only", func(t *testing.T) {
		c := NewConference(testDelivery(), &fakeConferenceSubmitter{}, testOptions())
		walkItems(t, c)
		require.NoError(t, c.SetReceiverName("Maria"))

		flds := fieldErrors(t, c.Next(ctx))
		assert.NotContains(t, flds, "signer_name")
		assert.Equal(t, "signature is required", flds["signature"])
	})

	t.Run("ink only", func(t *testing.T) {
		c := NewConference(testDelivery(), &fakeConferenceSubmitter{}, testOptions())
		walkItems(t, c)
		sign(t, c.ReceiverPad())
		require.NoError(t, c.SetReceiverName("   "))

		flds := fieldErrors(t, c.Next(ctx))
		assert.Equal(t, map[string]string{"signer_name": "signer_name is required"}, flds)
	})

	t.Run("cleared pad", func(t *testing.T) {
		c := NewConference(testDelivery(), &fakeConferenceSubmitter{}, testOptions())
		walkItems(t, c)
		require.NoError(t, c.SetReceiverName("Maria"))
		sign(t, c.ReceiverPad())
		require.NoError(t, c.ReceiverPad().Clear())

		flds := fieldErrors(t, c.Next(ctx))
		assert.Equal(t, "signature is required", flds["signature"])
	})
}

func TestConference_Submit(t *testing.T) {
	ctx := context.Background()
	sub := &fakeConferenceSubmitter{}
	c := NewConference(testDelivery(), sub, testOptions())

	require.NoError(t, c.SetQuantity(0, "9,5"))
	require.NoError(t, c.SetNote(0, "  faltou meio quilo "))
	walkItems(t, c)
	signBoth(t, c)
	require.Zero(t, sub.calls, "nothing is sent before the last step")

	require.NoError(t, c.Next(ctx))

	assert.True(t, c.Completed())
	require.Equal(t, 1, sub.calls)
	payload := sub.payloads[0]
	assert.Equal(t, []ConferenceEntry{
		{ItemID: "i-1", Received: 9.5, Note: "faltou meio quilo"},
		{ItemID: "i-2", Received: 4, Note: "uma caixa furada"},
	}, payload.Items)
	assert.Equal(t, "Maria", payload.Receiver.SignerName)
	assert.Equal(t, "João", payload.Sender.SignerName)
	assert.True(t, strings.HasPrefix(payload.Receiver.ImageData, "data:image/png;base64,"))
	assert.True(t, strings.HasPrefix(payload.Sender.ImageData, "data:image/png;base64,"))

	_, err := signature.DecodeDataURL(payload.Sender.ImageData)
	assert.NoError(t, err)

	assert.True(t, c.Delivery().Conferred, "server copy replaces the loaded one")
	assert.True(t, c.ReceiverPad().Disabled())
	assert.True(t, c.SenderPad().Disabled())
	assert.True(t, errors.Is(c.Next(ctx), ErrCompleted))
	assert.True(t, errors.Is(c.Back(), ErrCompleted))
	assert.Equal(t, 1, sub.calls)
}

func TestConference_SignatureIsSnapshot(t *testing.T) {
	ctx := context.Background()
	sub := &fakeConferenceSubmitter{}
	c := NewConference(testDelivery(), sub, testOptions())
	walkItems(t, c)
	require.NoError(t, c.SetReceiverName("Maria"))
	sign(t, c.ReceiverPad())
	require.NoError(t, c.Next(ctx))
	captured, ok := c.ReceiverSignature()
	require.True(t, ok)

	// drawing after leaving the step does not change what was captured
	require.NoError(t, c.ReceiverPad().Start(signature.Point{X: 300, Y: 100}))
	require.NoError(t, c.ReceiverPad().Move(signature.Point{X: 500, Y: 150}))
	c.ReceiverPad().End()

	require.NoError(t, c.SetSenderName("João"))
	sign(t, c.SenderPad())
	require.NoError(t, c.Next(ctx))
	assert.Equal(t, captured.ImageData, sub.payloads[0].Receiver.ImageData)
}

func TestConference_SubmitFailure(t *testing.T) {
	ctx := context.Background()
	sub := &fakeConferenceSubmitter{err: errors.New("delivery already conferred")}
	c := NewConference(testDelivery(), sub, testOptions())
	require.NoError(t, c.SetQuantity(1, "3"))
	walkItems(t, c)
	signBoth(t, c)

	err := c.Next(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delivery already conferred")
	assert.Equal(t, Position{Stage: StageSenderSignature}, c.Position())
	assert.False(t, c.SenderPad().Disabled())
	assert.Equal(t, "3", c.Items()[1].Quantity)

	sub.err = nil
	require.NoError(t, c.Next(ctx))
	assert.True(t, c.Completed())
	assert.Equal(t, 2, sub.calls)
	assert.Equal(t, 3.0, sub.payloads[1].Items[1].Received)
}

func TestConference_Navigation(t *testing.T) {
	ctx := context.Background()
	c := NewConference(testDelivery(), &fakeConferenceSubmitter{}, testOptions())

	assert.True(t, errors.Is(c.Back(), ErrNotAllowed), "no step before the first item")
	assert.True(t, errors.Is(c.GoTo(itemAt(1)), ErrNotAllowed), "item 0 not confirmed")
	assert.True(t, errors.Is(c.GoTo(Position{Stage: StageReceiverSignature}), ErrNotAllowed))

	require.NoError(t, c.SetQuantity(0, "7"))
	require.NoError(t, c.Next(ctx))
	require.NoError(t, c.Back())
	assert.Equal(t, itemAt(0), c.Position())
	assert.Equal(t, "7", c.Items()[0].Quantity, "values survive going back")

	require.NoError(t, c.GoTo(itemAt(1)))
	require.NoError(t, c.Next(ctx))
	assert.Equal(t, Position{Stage: StageReceiverSignature}, c.Position())
	assert.True(t, errors.Is(c.GoTo(Position{Stage: StageSenderSignature}), ErrNotAllowed), "receiver has not signed")

	require.NoError(t, c.Back())
	assert.Equal(t, itemAt(1), c.Position())
	require.NoError(t, c.GoTo(Position{Stage: StageReceiverSignature}))

	require.NoError(t, c.SetReceiverName("Maria"))
	sign(t, c.ReceiverPad())
	require.NoError(t, c.Next(ctx))
	require.NoError(t, c.Back())
	assert.Equal(t, Position{Stage: StageReceiverSignature}, c.Position())
	require.NoError(t, c.GoTo(Position{Stage: StageSenderSignature}))

	assert.True(t, errors.Is(c.GoTo(Position{Stage: StageComplete}), ErrNotAllowed))
	assert.True(t, errors.Is(c.SetQuantity(5, "1"), ErrNotAllowed))
}

func TestConference_EditAfterConfirming(t *testing.T) {
	ctx := context.Background()
	sub := &fakeConferenceSubmitter{}
	c := NewConference(testDelivery(), sub, testOptions())
	walkItems(t, c)
	require.NoError(t, c.SetReceiverName("Maria"))
	sign(t, c.ReceiverPad())
	require.NoError(t, c.Next(ctx))

	require.NoError(t, c.GoTo(itemAt(0)))
	require.NoError(t, c.SetQuantity(0, "7"))
	assert.False(t, c.Items()[0].Confirmed)
	assert.True(t, errors.Is(c.GoTo(Position{Stage: StageSenderSignature}), ErrNotAllowed))
	assert.True(t, errors.Is(c.GoTo(Position{Stage: StageReceiverSignature}), ErrNotAllowed))
	assert.True(t, errors.Is(c.GoTo(itemAt(1)), ErrNotAllowed))

	require.NoError(t, c.SetQuantity(0, "abc"))
	assert.Equal(t, "quantity must be a valid numeric value", fieldErrors(t, c.Next(ctx))["quantity"])

	require.NoError(t, c.SetQuantity(0, "7"))
	require.NoError(t, c.Next(ctx))
	require.NoError(t, c.GoTo(Position{Stage: StageSenderSignature}))
	require.NoError(t, c.SetSenderName("João"))
	sign(t, c.SenderPad())
	require.NoError(t, c.Next(ctx))

	require.Equal(t, 1, sub.calls)
	assert.Equal(t, 7.0, sub.payloads[0].Items[0].Received)
}

func TestConference_SetSameQuantityKeepsConfirmation(t *testing.T) {
	c := NewConference(testDelivery(), &fakeConferenceSubmitter{}, testOptions())
	walkItems(t, c)
	require.NoError(t, c.SetQuantity(1, "4"))
	assert.True(t, c.Items()[1].Confirmed)
	require.NoError(t, c.GoTo(Position{Stage: StageReceiverSignature}))
}

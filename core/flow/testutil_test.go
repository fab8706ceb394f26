package flow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/semed/merenda/core"
	"github.com/semed/merenda/core/signature"
)

var today = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func testOptions() *Options {
	return &Options{Now: func() time.Time { return today }}
}

func ptrFloat(f float64) *float64 { return &f }

// sign draws a short stroke on the pad.
func sign(t *testing.T, pad *signature.Pad) {
	t.Helper()
	require.NoError(t, pad.Start(signature.Point{X: 10, Y: 10}))
	require.NoError(t, pad.Move(signature.Point{X: 80, Y: 40}))
	pad.End()
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr), "expected a validation error, got %v", err)
	return vErr.FieldErrors()
}

type fakeConferenceSubmitter struct {
	mu       sync.Mutex
	calls    int
	payloads []ConferencePayload
	err      error
	response func(ConferencePayload) DeliveryRecord
}

func (f *fakeConferenceSubmitter) SubmitConference(_ context.Context, payload ConferencePayload) (DeliveryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.payloads = append(f.payloads, payload)
	if f.err != nil {
		return DeliveryRecord{}, f.err
	}
	if f.response != nil {
		return f.response(payload), nil
	}
	return DeliveryRecord{Status: "CONFERRED", Conferred: true, SenderSignature: payload.Sender, ReceiverSignature: payload.Receiver}, nil
}

type fakeConsumptionSubmitter struct {
	calls   int
	entries [][]ConsumptionEntry
	err     error
}

func (f *fakeConsumptionSubmitter) SubmitConsumption(_ context.Context, entries []ConsumptionEntry) error {
	f.calls++
	f.entries = append(f.entries, entries)
	return f.err
}

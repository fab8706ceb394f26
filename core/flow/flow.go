// Package flow holds the step-by-step wizards of the public portals:
// the delivery conference and the consumption registration.
package flow

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/semed/merenda/core"
)

var (
	ErrNotAllowed = errors.New("step not allowed")
	ErrCompleted  = errors.New("flow already submitted")
	ErrNoItems    = errors.New("add at least one item")
)

// Stage tags the fixed steps of a flow; item steps are addressed by Position.Item.
type Stage int

const (
	StageDate Stage = iota
	StageItem
	StageReceiverSignature
	StageSenderSignature
	StageSummary
	StageComplete
)

func (s Stage) String() string {
	switch s {
	case StageDate:
		return "date"
	case StageItem:
		return "item"
	case StageReceiverSignature:
		return "receiver_signature"
	case StageSenderSignature:
		return "sender_signature"
	case StageSummary:
		return "summary"
	case StageComplete:
		return "complete"
	}
	return "unknown"
}

// Position is the current step: a stage and, for StageItem, the item index.
type Position struct {
	Stage Stage
	Item  int
}

func (p Position) String() string {
	if p.Stage == StageItem {
		return "item[" + strconv.Itoa(p.Item) + "]"
	}
	return p.Stage.String()
}

func itemAt(i int) Position {
	return Position{Stage: StageItem, Item: i}
}

type Options struct {
	Validator *core.Validator
	Logger    core.Logger
	Now       func() time.Time
}

func (o *Options) withDefaults() Options {
	var opts Options
	if o != nil {
		opts = *o
	}
	if opts.Validator == nil {
		opts.Validator = core.NewValidator()
	}
	if opts.Logger == nil {
		opts.Logger = core.NopLogger
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return opts
}

type quantityInput struct {
	Quantity string `json:"quantity" validate:"required,numeric"`
}

// parseQuantity validates a typed quantity; positive requires > 0, otherwise >= 0.
func parseQuantity(v *core.Validator, text string, positive bool) (float64, error) {
	text = normalizeQuantity(text)
	if err := v.Struct(quantityInput{Quantity: text}); err != nil {
		return 0, err
	}
	q, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, core.NewValidationError(err, core.FieldError{Field: "quantity", Error: "quantity must be a valid numeric value"})
	}
	switch {
	case positive && q <= 0:
		return 0, core.NewValidationError(errors.New("invalid quantity"), core.FieldError{Field: "quantity", Error: "quantity must be greater than 0"})
	case q < 0:
		return 0, core.NewValidationError(errors.New("invalid quantity"), core.FieldError{Field: "quantity", Error: "quantity must be 0 or greater"})
	}
	return q, nil
}

// normalizeQuantity accepts a decimal comma.
func normalizeQuantity(text string) string {
	return strings.Replace(core.CleanString(text), ",", ".", 1)
}

func formatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

package flow

import (
	"context"
	"math"
	"strconv"

	"github.com/pkg/errors"

	"github.com/semed/merenda/core"
	"github.com/semed/merenda/core/signature"
)

// signature surface size, in pixels
const (
	padWidth  = 600
	padHeight = 200
)

type (
	// DeliveryLine is a delivery item as served by the API.
	DeliveryLine struct {
		ID         string
		SupplyName string
		Unit       string
		Planned    float64
		Received   *float64
		Note       string
	}

	// DeliveryRecord is the delivery being confered; after submission it is the server's canonical copy.
	DeliveryRecord struct {
		ID                string
		SchoolName        string
		DeliveryDate      string
		Status            string
		Conferred         bool
		Lines             []DeliveryLine
		SenderSignature   SignatureRecord
		ReceiverSignature SignatureRecord
	}

	SignatureRecord struct {
		ImageData  string
		SignerName string
		HasInk     bool
	}

	ConferenceEntry struct {
		ItemID   string
		Received float64
		Note     string
	}

	ConferencePayload struct {
		Items    []ConferenceEntry
		Sender   SignatureRecord
		Receiver SignatureRecord
	}

	// ConferenceSubmitter sends a completed conference.
	ConferenceSubmitter interface {
		SubmitConference(ctx context.Context, payload ConferencePayload) (DeliveryRecord, error)
	}

	ConferenceItem struct {
		ID         string
		SupplyName string
		Unit       string
		Planned    float64
		Quantity   string // as typed
		Received   float64
		Note       string
		Confirmed  bool
	}

	// Conference walks item[0..n-1] -> receiver signature -> sender signature -> complete.
	Conference struct {
		opts      Options
		submitter ConferenceSubmitter

		delivery DeliveryRecord
		items    []ConferenceItem
		pos      Position

		receiverName string
		senderName   string
		receiverPad  *signature.Pad
		senderPad    *signature.Pad
		receiver     *SignatureRecord
		sender       *SignatureRecord
	}
)

// Divergent reports whether the typed quantity differs from the planned one.
func (it ConferenceItem) Divergent() bool {
	q, err := strconv.ParseFloat(normalizeQuantity(it.Quantity), 64)
	if err != nil {
		return false
	}
	return math.Abs(q-it.Planned) > 1e-9
}

func NewConference(delivery DeliveryRecord, submitter ConferenceSubmitter, opts *Options) *Conference {
	c := &Conference{
		opts:        opts.withDefaults(),
		submitter:   submitter,
		delivery:    delivery,
		items:       make([]ConferenceItem, len(delivery.Lines)),
		receiverPad: signature.NewPad(padWidth, padHeight),
		senderPad:   signature.NewPad(padWidth, padHeight),
	}
	for i, line := range delivery.Lines {
		qty := line.Planned
		if line.Received != nil {
			qty = *line.Received
		}
		c.items[i] = ConferenceItem{
			ID:         line.ID,
			SupplyName: line.SupplyName,
			Unit:       line.Unit,
			Planned:    line.Planned,
			Quantity:   formatQuantity(qty),
			Note:       line.Note,
		}
	}

	if delivery.Conferred {
		c.finish(delivery)
		for i := range c.items {
			c.items[i].Received, _ = parseQuantity(c.opts.Validator, c.items[i].Quantity, false)
			c.items[i].Confirmed = true
		}
		return c
	}
	c.pos = c.first()
	return c
}

func (c *Conference) first() Position {
	if len(c.items) == 0 {
		return Position{Stage: StageReceiverSignature}
	}
	return itemAt(0)
}

func (c *Conference) Position() Position {
	return c.pos
}

func (c *Conference) Completed() bool {
	return c.pos.Stage == StageComplete
}

// Delivery returns the delivery as loaded, or the server's copy once submitted.
func (c *Conference) Delivery() DeliveryRecord {
	return c.delivery
}

// Items returns a copy of the item steps.
func (c *Conference) Items() []ConferenceItem {
	items := make([]ConferenceItem, len(c.items))
	copy(items, c.items)
	return items
}

func (c *Conference) ReceiverPad() *signature.Pad { return c.receiverPad }
func (c *Conference) SenderPad() *signature.Pad   { return c.senderPad }

// ReceiverSignature returns the receiver signature accepted when leaving its step.
func (c *Conference) ReceiverSignature() (SignatureRecord, bool) {
	if c.receiver == nil {
		return SignatureRecord{}, false
	}
	return *c.receiver, true
}

func (c *Conference) SenderSignature() (SignatureRecord, bool) {
	if c.sender == nil {
		return SignatureRecord{}, false
	}
	return *c.sender, true
}

func (c *Conference) checkItem(i int) error {
	if c.Completed() {
		return ErrCompleted
	}
	if i < 0 || i >= len(c.items) {
		return errors.Wrapf(ErrNotAllowed, "no item %d", i)
	}
	return nil
}

// SetQuantity records the typed received quantity of item i.
// Changing it withdraws the item's confirmation until Next validates it again.
func (c *Conference) SetQuantity(i int, text string) error {
	if err := c.checkItem(i); err != nil {
		return err
	}
	it := &c.items[i]
	if it.Quantity != text {
		it.Quantity = text
		it.Received = 0
		it.Confirmed = false
	}
	return nil
}

// SetNote records the optional divergence note of item i.
func (c *Conference) SetNote(i int, note string) error {
	if err := c.checkItem(i); err != nil {
		return err
	}
	c.items[i].Note = note
	return nil
}

func (c *Conference) SetReceiverName(name string) error {
	if c.Completed() {
		return ErrCompleted
	}
	c.receiverName = name
	return nil
}

func (c *Conference) SetSenderName(name string) error {
	if c.Completed() {
		return ErrCompleted
	}
	c.senderName = name
	return nil
}

func (c *Conference) allConfirmed() bool {
	for _, it := range c.items {
		if !it.Confirmed {
			return false
		}
	}
	return true
}

// Next validates the current step and moves forward. On the sender signature step it submits.
func (c *Conference) Next(ctx context.Context) error {
	switch c.pos.Stage {
	case StageItem:
		i := c.pos.Item
		q, err := parseQuantity(c.opts.Validator, c.items[i].Quantity, false)
		if err != nil {
			return err
		}
		c.items[i].Received = q
		c.items[i].Confirmed = true
		if i+1 < len(c.items) {
			c.pos = itemAt(i + 1)
		} else {
			c.pos = Position{Stage: StageReceiverSignature}
		}
		return nil

	case StageReceiverSignature:
		rec, err := c.capture(c.receiverName, c.receiverPad)
		if err != nil {
			return err
		}
		c.receiver = &rec
		c.pos = Position{Stage: StageSenderSignature}
		return nil

	case StageSenderSignature:
		rec, err := c.capture(c.senderName, c.senderPad)
		if err != nil {
			return err
		}
		c.sender = &rec
		return c.submit(ctx)

	case StageComplete:
		return ErrCompleted
	}
	return ErrNotAllowed
}

type signerInput struct {
	Name string `json:"signer_name" validate:"required"`
}

// capture validates a signature step and snapshots its drawing.
func (c *Conference) capture(name string, pad *signature.Pad) (SignatureRecord, error) {
	name = core.CleanString(name)
	err := c.opts.Validator.Struct(signerInput{Name: name})
	if !pad.HasInk() {
		inkErr := core.FieldError{Field: "signature", Error: "signature is required"}
		if vErr, ok := err.(*core.ValidationError); ok {
			vErr.Fields = append(vErr.Fields, inkErr)
		} else {
			err = core.NewValidationError(errors.New("missing signature"), inkErr)
		}
	}
	if err != nil {
		return SignatureRecord{}, err
	}

	data, err := pad.Export()
	if err != nil {
		return SignatureRecord{}, errors.Wrap(err, "exporting signature")
	}
	return SignatureRecord{ImageData: data, SignerName: name, HasInk: true}, nil
}

func (c *Conference) submit(ctx context.Context) error {
	if c.receiver == nil || !c.allConfirmed() {
		return ErrNotAllowed
	}

	payload := ConferencePayload{
		Items:    make([]ConferenceEntry, len(c.items)),
		Sender:   *c.sender,
		Receiver: *c.receiver,
	}
	for i, it := range c.items {
		payload.Items[i] = ConferenceEntry{ItemID: it.ID, Received: it.Received, Note: core.CleanString(it.Note)}
	}

	delivery, err := c.submitter.SubmitConference(ctx, payload)
	if err != nil {
		c.opts.Logger.Error("submitting delivery conference", err, map[string]interface{}{"delivery": c.delivery.ID})
		return errors.Wrap(err, "submitting conference")
	}
	c.finish(delivery)
	return nil
}

func (c *Conference) finish(delivery DeliveryRecord) {
	c.delivery = delivery
	c.pos = Position{Stage: StageComplete}
	if delivery.ReceiverSignature.ImageData != "" {
		rec := delivery.ReceiverSignature
		c.receiver = &rec
	}
	if delivery.SenderSignature.ImageData != "" {
		rec := delivery.SenderSignature
		c.sender = &rec
	}
	c.receiverPad.Disable()
	c.senderPad.Disable()
}

// Back moves to the previous step, keeping everything entered so far.
func (c *Conference) Back() error {
	switch c.pos.Stage {
	case StageItem:
		if c.pos.Item == 0 {
			return ErrNotAllowed
		}
		c.pos = itemAt(c.pos.Item - 1)
	case StageReceiverSignature:
		if len(c.items) == 0 {
			return ErrNotAllowed
		}
		c.pos = itemAt(len(c.items) - 1)
	case StageSenderSignature:
		c.pos = Position{Stage: StageReceiverSignature}
	case StageComplete:
		return ErrCompleted
	default:
		return ErrNotAllowed
	}
	return nil
}

// GoTo jumps to any step whose preceding steps are already satisfied.
func (c *Conference) GoTo(pos Position) error {
	if c.Completed() {
		return ErrCompleted
	}
	switch pos.Stage {
	case StageItem:
		if pos.Item < 0 || pos.Item >= len(c.items) {
			return ErrNotAllowed
		}
		for _, it := range c.items[:pos.Item] {
			if !it.Confirmed {
				return ErrNotAllowed
			}
		}
	case StageReceiverSignature:
		if !c.allConfirmed() {
			return ErrNotAllowed
		}
	case StageSenderSignature:
		if !c.allConfirmed() || c.receiver == nil {
			return ErrNotAllowed
		}
	default:
		return ErrNotAllowed
	}
	c.pos = Position{Stage: pos.Stage, Item: pos.Item}
	if pos.Stage != StageItem {
		c.pos.Item = 0
	}
	return nil
}

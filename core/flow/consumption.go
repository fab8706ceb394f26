package flow

import (
	"context"

	"github.com/pkg/errors"

	"github.com/semed/merenda/core"
)

const dateLayout = "2006-01-02"

type (
	SupplyLine struct {
		ID   string
		Name string
		Unit string
	}

	ConsumptionEntry struct {
		SupplyID string
		Name     string
		Unit     string
		Quantity float64
		Date     string
		Note     string
	}

	// ConsumptionSubmitter sends the added consumption entries.
	ConsumptionSubmitter interface {
		SubmitConsumption(ctx context.Context, entries []ConsumptionEntry) error
	}

	ConsumptionItem struct {
		SupplyID string
		Name     string
		Unit     string
		Quantity string // as typed
		Amount   float64
		Note     string
		Added    bool
	}

	// Consumption walks date -> item[0..n-1] -> summary -> complete. Items may be skipped.
	Consumption struct {
		opts      Options
		submitter ConsumptionSubmitter

		date      string
		items     []ConsumptionItem
		pos       Position
		submitted []ConsumptionEntry
	}
)

func NewConsumption(supplies []SupplyLine, submitter ConsumptionSubmitter, opts *Options) *Consumption {
	c := &Consumption{
		opts:      opts.withDefaults(),
		submitter: submitter,
		items:     make([]ConsumptionItem, len(supplies)),
		pos:       Position{Stage: StageDate},
	}
	c.date = c.opts.Now().Format(dateLayout)
	for i, s := range supplies {
		c.items[i] = ConsumptionItem{SupplyID: s.ID, Name: s.Name, Unit: s.Unit}
	}
	return c
}

func (c *Consumption) Position() Position {
	return c.pos
}

func (c *Consumption) Completed() bool {
	return c.pos.Stage == StageComplete
}

func (c *Consumption) Date() string {
	return c.date
}

// Items returns a copy of the item steps.
func (c *Consumption) Items() []ConsumptionItem {
	items := make([]ConsumptionItem, len(c.items))
	copy(items, c.items)
	return items
}

// Submitted returns the entries accepted by the server.
func (c *Consumption) Submitted() []ConsumptionEntry {
	return c.submitted
}

func (c *Consumption) SetDate(date string) error {
	if c.Completed() {
		return ErrCompleted
	}
	c.date = core.CleanString(date)
	return nil
}

func (c *Consumption) checkItem(i int) error {
	if c.Completed() {
		return ErrCompleted
	}
	if i < 0 || i >= len(c.items) {
		return errors.Wrapf(ErrNotAllowed, "no item %d", i)
	}
	return nil
}

// SetQuantity records the typed quantity of item i.
// Changing it takes the item out of the summary until Next validates it again.
func (c *Consumption) SetQuantity(i int, text string) error {
	if err := c.checkItem(i); err != nil {
		return err
	}
	it := &c.items[i]
	if it.Quantity != text {
		it.Quantity = text
		it.Amount = 0
		it.Added = false
	}
	return nil
}

// pending returns the first item holding a typed quantity that Next has not validated.
func (c *Consumption) pending() (int, bool) {
	for i, it := range c.items {
		if !it.Added && core.CleanString(it.Quantity) != "" {
			return i, true
		}
	}
	return 0, false
}

func (c *Consumption) SetNote(i int, note string) error {
	if err := c.checkItem(i); err != nil {
		return err
	}
	c.items[i].Note = note
	return nil
}

type dateInput struct {
	Date string `json:"movement_date" validate:"required,isodate"`
}

func (c *Consumption) advance() {
	i := c.pos.Item
	if c.pos.Stage == StageDate {
		i = -1
	}
	if i+1 < len(c.items) {
		c.pos = itemAt(i + 1)
	} else {
		c.pos = Position{Stage: StageSummary}
	}
}

// Next validates the current step and moves forward.
// On an item step a typed quantity adds the item; an empty one leaves it out.
func (c *Consumption) Next() error {
	switch c.pos.Stage {
	case StageDate:
		if err := c.opts.Validator.Struct(dateInput{Date: c.date}); err != nil {
			return err
		}
	case StageItem:
		it := &c.items[c.pos.Item]
		if core.CleanString(it.Quantity) == "" {
			it.Added = false
			it.Amount = 0
			break
		}
		q, err := parseQuantity(c.opts.Validator, it.Quantity, true)
		if err != nil {
			return err
		}
		it.Amount = q
		it.Added = true
	case StageSummary:
		return ErrNotAllowed
	case StageComplete:
		return ErrCompleted
	}
	c.advance()
	return nil
}

// Skip leaves the current item out, discarding whatever quantity was typed.
func (c *Consumption) Skip() error {
	if c.pos.Stage != StageItem {
		return ErrNotAllowed
	}
	it := &c.items[c.pos.Item]
	it.Quantity = ""
	it.Amount = 0
	it.Added = false
	c.advance()
	return nil
}

// Back moves to the previous step; from the summary it returns to the last item.
func (c *Consumption) Back() error {
	switch c.pos.Stage {
	case StageItem:
		if c.pos.Item == 0 {
			c.pos = Position{Stage: StageDate}
		} else {
			c.pos = itemAt(c.pos.Item - 1)
		}
	case StageSummary:
		if len(c.items) == 0 {
			c.pos = Position{Stage: StageDate}
		} else {
			c.pos = itemAt(len(c.items) - 1)
		}
	case StageComplete:
		return ErrCompleted
	default:
		return ErrNotAllowed
	}
	return nil
}

// GoTo jumps to the date step, or to any item or the summary once a date is chosen.
// The summary stays closed while an edited quantity awaits confirmation.
func (c *Consumption) GoTo(pos Position) error {
	if c.Completed() {
		return ErrCompleted
	}
	switch pos.Stage {
	case StageDate:
	case StageItem:
		if pos.Item < 0 || pos.Item >= len(c.items) {
			return ErrNotAllowed
		}
		if c.date == "" {
			return ErrNotAllowed
		}
	case StageSummary:
		if c.date == "" {
			return ErrNotAllowed
		}
		if i, ok := c.pending(); ok {
			return errors.Wrapf(ErrNotAllowed, "item %d not confirmed", i)
		}
	default:
		return ErrNotAllowed
	}
	c.pos = pos
	if pos.Stage != StageItem {
		c.pos.Item = 0
	}
	return nil
}

// Added lists the items that will be submitted.
func (c *Consumption) Added() []ConsumptionEntry {
	var entries []ConsumptionEntry
	for _, it := range c.items {
		if !it.Added {
			continue
		}
		entries = append(entries, ConsumptionEntry{
			SupplyID: it.SupplyID,
			Name:     it.Name,
			Unit:     it.Unit,
			Quantity: it.Amount,
			Date:     c.date,
			Note:     core.CleanString(it.Note),
		})
	}
	return entries
}

// Remove takes an added item out of the summary, in place.
func (c *Consumption) Remove(supplyID string) error {
	if c.pos.Stage != StageSummary {
		return ErrNotAllowed
	}
	for i := range c.items {
		if c.items[i].SupplyID == supplyID && c.items[i].Added {
			c.items[i] = ConsumptionItem{SupplyID: c.items[i].SupplyID, Name: c.items[i].Name, Unit: c.items[i].Unit}
			return nil
		}
	}
	return errors.Wrapf(ErrNotAllowed, "supply %s not added", supplyID)
}

// Submit sends the added items. Nothing is sent when no item was added.
func (c *Consumption) Submit(ctx context.Context) error {
	if c.pos.Stage != StageSummary {
		return ErrNotAllowed
	}
	if i, ok := c.pending(); ok {
		return errors.Wrapf(ErrNotAllowed, "item %d not confirmed", i)
	}
	entries := c.Added()
	if len(entries) == 0 {
		return core.NewValidationError(ErrNoItems, core.FieldError{Field: "items", Error: ErrNoItems.Error()})
	}
	if err := c.opts.Validator.Struct(dateInput{Date: c.date}); err != nil {
		return err
	}

	if err := c.submitter.SubmitConsumption(ctx, entries); err != nil {
		c.opts.Logger.Error("submitting consumption", err)
		return errors.Wrap(err, "submitting consumption")
	}
	c.submitted = entries
	c.pos = Position{Stage: StageComplete}
	return nil
}

// Reset starts a new registration with the same supplies and date.
func (c *Consumption) Reset() {
	for i, it := range c.items {
		c.items[i] = ConsumptionItem{SupplyID: it.SupplyID, Name: it.Name, Unit: it.Unit}
	}
	c.submitted = nil
	c.pos = Position{Stage: StageDate}
}

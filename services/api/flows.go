package apisvc

import (
	"context"

	"github.com/pkg/errors"

	"github.com/semed/merenda/core/flow"
)

// ToDeliveryRecord converts an API delivery into the conference engine's record.
func ToDeliveryRecord(d Delivery) flow.DeliveryRecord {
	rec := flow.DeliveryRecord{
		ID:           d.ID,
		SchoolName:   d.SchoolName,
		DeliveryDate: d.DeliveryDate,
		Status:       d.Status,
		Conferred:    d.Status == DeliveryConferred,
		Lines:        make([]flow.DeliveryLine, len(d.Items)),
		SenderSignature: flow.SignatureRecord{
			ImageData:  d.SenderSignature,
			SignerName: d.SenderSignedBy,
			HasInk:     d.SenderSignature != "",
		},
		ReceiverSignature: flow.SignatureRecord{
			ImageData:  d.ReceiverSignature,
			SignerName: d.ReceiverSignedBy,
			HasInk:     d.ReceiverSignature != "",
		},
	}
	for i, it := range d.Items {
		line := flow.DeliveryLine{
			ID:         it.ID,
			SupplyName: it.SupplyName,
			Unit:       it.SupplyUnit,
			Planned:    float64(it.PlannedQuantity),
			Note:       it.DivergenceNote,
		}
		if it.ReceivedQuantity != nil {
			received := float64(*it.ReceivedQuantity)
			line.Received = &received
		}
		rec.Lines[i] = line
	}
	return rec
}

type conferenceSubmitter struct {
	portal     *PublicPortal
	deliveryID string
}

func (s conferenceSubmitter) SubmitConference(ctx context.Context, payload flow.ConferencePayload) (flow.DeliveryRecord, error) {
	sub := ConferenceSubmission{
		Items:                 make([]ConferenceItem, len(payload.Items)),
		SenderSignatureData:   payload.Sender.ImageData,
		SenderSignerName:      payload.Sender.SignerName,
		ReceiverSignatureData: payload.Receiver.ImageData,
		ReceiverSignerName:    payload.Receiver.SignerName,
	}
	for i, it := range payload.Items {
		sub.Items[i] = ConferenceItem{ItemID: it.ItemID, ReceivedQuantity: Quantity(it.Received), Note: it.Note}
	}
	delivery, err := s.portal.SubmitConference(ctx, s.deliveryID, sub)
	if err != nil {
		return flow.DeliveryRecord{}, err
	}
	return ToDeliveryRecord(delivery), nil
}

// ConferenceFlow loads a delivery and opens its conference. An empty deliveryID picks the latest one.
func (p *PublicPortal) ConferenceFlow(ctx context.Context, deliveryID string, opts *flow.Options) (*flow.Conference, error) {
	delivery, err := p.Delivery(ctx, deliveryID)
	if err != nil {
		return nil, errors.Wrap(err, "loading delivery")
	}
	sub := conferenceSubmitter{portal: p, deliveryID: delivery.ID}
	return flow.NewConference(ToDeliveryRecord(delivery), sub, opts), nil
}

type consumptionSubmitter struct {
	portal *PublicPortal
}

func (s consumptionSubmitter) SubmitConsumption(ctx context.Context, entries []flow.ConsumptionEntry) error {
	sub := ConsumptionSubmission{Items: make([]ConsumptionItem, len(entries))}
	for i, e := range entries {
		sub.Items[i] = ConsumptionItem{
			Supply:       e.SupplyID,
			Quantity:     Quantity(e.Quantity),
			MovementDate: e.Date,
			Note:         e.Note,
		}
	}
	return s.portal.SubmitConsumption(ctx, sub)
}

// ConsumptionFlow loads the school's supplies and opens a consumption registration.
func (p *PublicPortal) ConsumptionFlow(ctx context.Context, opts *flow.Options) (*flow.Consumption, error) {
	supplies, err := p.Supplies(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "loading supplies")
	}
	lines := make([]flow.SupplyLine, len(supplies))
	for i, s := range supplies {
		lines[i] = flow.SupplyLine{ID: s.ID, Name: s.Name, Unit: s.Unit}
	}
	return flow.NewConsumption(lines, consumptionSubmitter{portal: p}, opts), nil
}

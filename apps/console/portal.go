package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/semed/merenda/core/flow"
)

func (cli *commandLine) conference(slug, token, deliveryID, answersPath string) error {
	var answers conferenceAnswers
	if err := readAnswers(answersPath, &answers); err != nil {
		return err
	}

	ctx := context.Background()
	c, err := cli.client.Public(slug, token).ConferenceFlow(ctx, deliveryID, cli.flow)
	if err != nil {
		return err
	}
	d := c.Delivery()
	fmt.Fprintf(cli.out, "Delivery %s - %s (%s)\n", d.DeliveryDate, d.SchoolName, d.Status)
	if c.Completed() {
		fmt.Fprintln(cli.out, "Conference already submitted")
		cli.printConference(c)
		return nil
	}

	for i, it := range c.Items() {
		if i < len(answers.Items) {
			if q := answers.Items[i].Quantity; q != "" {
				_ = c.SetQuantity(i, q)
			}
			if n := answers.Items[i].Note; n != "" {
				_ = c.SetNote(i, n)
			}
		}
		if err := c.Next(ctx); err != nil {
			fmt.Fprintf(cli.out, "%s:\n", it.SupplyName)
			cli.printFieldErrors(err)
			return err
		}
	}

	steps := []struct {
		label   string
		answer  signatureAnswer
		setName func(string) error
		draw    func(signatureAnswer) error
	}{
		{"receiver", answers.Receiver, c.SetReceiverName, func(a signatureAnswer) error { return a.draw(c.ReceiverPad()) }},
		{"sender", answers.Sender, c.SetSenderName, func(a signatureAnswer) error { return a.draw(c.SenderPad()) }},
	}
	for _, step := range steps {
		if err := step.setName(step.answer.Name); err != nil {
			return err
		}
		if err := step.draw(step.answer); err != nil {
			return errors.Wrapf(err, "drawing %s signature", step.label)
		}
		if err := c.Next(ctx); err != nil {
			fmt.Fprintf(cli.out, "%s signature:\n", step.label)
			cli.printFieldErrors(err)
			return err
		}
	}

	fmt.Fprintln(cli.out, "Conference submitted")
	cli.printConference(c)
	return nil
}

func (cli *commandLine) printConference(c *flow.Conference) {
	for _, it := range c.Items() {
		mark := ""
		if it.Divergent() {
			mark = " (divergent)"
		}
		fmt.Fprintf(cli.out, "  %s: %s of %s %s%s\n", it.SupplyName, formatFloat(it.Received), formatFloat(it.Planned), it.Unit, mark)
		if it.Note != "" {
			fmt.Fprintf(cli.out, "    note: %s\n", it.Note)
		}
	}
	d := c.Delivery()
	if d.ReceiverSignature.SignerName != "" {
		fmt.Fprintf(cli.out, "  received by %s\n", d.ReceiverSignature.SignerName)
	}
	if d.SenderSignature.SignerName != "" {
		fmt.Fprintf(cli.out, "  delivered by %s\n", d.SenderSignature.SignerName)
	}
}

func (cli *commandLine) consumption(slug, token, answersPath string) error {
	var answers consumptionAnswers
	if err := readAnswers(answersPath, &answers); err != nil {
		return err
	}

	ctx := context.Background()
	c, err := cli.client.Public(slug, token).ConsumptionFlow(ctx, cli.flow)
	if err != nil {
		return err
	}

	if answers.Date != "" {
		if err := c.SetDate(answers.Date); err != nil {
			return err
		}
	}
	if err := c.Next(); err != nil {
		cli.printFieldErrors(err)
		return err
	}

	wanted := make(map[string]int, len(answers.Items))
	for i, a := range answers.Items {
		wanted[strings.ToLower(strings.TrimSpace(a.Supply))] = i
	}
	for i, it := range c.Items() {
		j, ok := wanted[strings.ToLower(it.SupplyID)]
		if !ok {
			j, ok = wanted[strings.ToLower(it.Name)]
		}
		if !ok {
			if err := c.Skip(); err != nil {
				return err
			}
			continue
		}
		_ = c.SetQuantity(i, answers.Items[j].Quantity)
		_ = c.SetNote(i, answers.Items[j].Note)
		if err := c.Next(); err != nil {
			fmt.Fprintf(cli.out, "%s:\n", it.Name)
			cli.printFieldErrors(err)
			return err
		}
	}

	if err := c.Submit(ctx); err != nil {
		cli.printFieldErrors(err)
		return err
	}
	fmt.Fprintf(cli.out, "Consumption registered for %s\n", c.Date())
	for _, e := range c.Submitted() {
		fmt.Fprintf(cli.out, "  %s: %s %s\n", e.Name, formatFloat(e.Quantity), e.Unit)
	}
	return nil
}

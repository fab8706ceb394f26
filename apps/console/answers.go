package main

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/semed/merenda/core/signature"
)

type (
	// stroke is a list of [x, y] points drawn without lifting the pointer.
	stroke [][2]float64

	signatureAnswer struct {
		Name    string   `yaml:"name"`
		Strokes []stroke `yaml:"strokes"`
	}

	conferenceAnswers struct {
		Items []struct {
			Quantity string `yaml:"quantity"`
			Note     string `yaml:"note"`
		} `yaml:"items"`
		Receiver signatureAnswer `yaml:"receiver"`
		Sender   signatureAnswer `yaml:"sender"`
	}

	consumptionAnswers struct {
		Date  string `yaml:"date"`
		Items []struct {
			Supply   string `yaml:"supply"` // ID or name
			Quantity string `yaml:"quantity"`
			Note     string `yaml:"note"`
		} `yaml:"items"`
	}
)

func readAnswers(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading answers")
	}
	return errors.Wrap(yaml.Unmarshal(data, v), "decoding answers")
}

// draw replays the strokes on pad as pointer events.
func (a signatureAnswer) draw(pad *signature.Pad) error {
	for _, s := range a.Strokes {
		for i, p := range s {
			kind := signature.PointerMove
			if i == 0 {
				kind = signature.PointerDown
			}
			ev := signature.PointerEvent{Kind: kind, Point: signature.Point{X: p[0], Y: p[1]}}
			if err := pad.Handle(ev); err != nil {
				return err
			}
		}
		if err := pad.Handle(signature.PointerEvent{Kind: signature.PointerUp}); err != nil {
			return err
		}
	}
	return nil
}

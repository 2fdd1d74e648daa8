package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/stemsi/exstem-practice/internal/model"
	"gopkg.in/yaml.v3"
)

// Bank is one YAML question file. Topic and duration set on the bank apply
// to every question that does not override them.
type Bank struct {
	ExamCode        string         `yaml:"exam_code"`
	Topic           string         `yaml:"topic"`
	DurationMinutes int            `yaml:"duration_minutes"`
	Questions       []BankQuestion `yaml:"questions"`
}

// BankQuestion is a question entry inside a Bank.
type BankQuestion struct {
	Text            string   `yaml:"text"`
	Options         []string `yaml:"options"`
	Answer          string   `yaml:"answer"`
	Topic           string   `yaml:"topic,omitempty"`
	DurationMinutes int      `yaml:"duration_minutes,omitempty"`
}

func loadBank(path string) (*Bank, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bank, err := decodeBank(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bank, nil
}

func decodeBank(r io.Reader) (*Bank, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	bank := &Bank{}
	if err := dec.Decode(bank); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty question bank")
		}
		return nil, err
	}
	if strings.TrimSpace(bank.ExamCode) == "" {
		return nil, errors.New("exam_code is required")
	}
	if len(bank.Questions) == 0 {
		return nil, errors.New("bank has no questions")
	}
	return bank, nil
}

// Expand turns the bank into question entities with defaults applied.
func (b *Bank) Expand() []model.PracticeQuestion {
	out := make([]model.PracticeQuestion, 0, len(b.Questions))
	for _, bq := range b.Questions {
		q := model.PracticeQuestion{
			ExamCode:        b.ExamCode,
			Topic:           b.Topic,
			QuestionText:    bq.Text,
			Options:         bq.Options,
			CorrectAnswer:   bq.Answer,
			DurationMinutes: b.DurationMinutes,
		}
		if bq.Topic != "" {
			q.Topic = bq.Topic
		}
		if bq.DurationMinutes > 0 {
			q.DurationMinutes = bq.DurationMinutes
		}
		if q.DurationMinutes <= 0 {
			q.DurationMinutes = 1
		}
		out = append(out, q)
	}
	return out
}

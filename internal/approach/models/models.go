package models

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	dErrors "github.com/LeandroAbranti/sistema-de-abordagem/pkg/domain-errors"
)

const (
	MaxObservations = 500
	MaxArticles     = 10
)

var (
	platePattern  = regexp.MustCompile(`^[A-Z]{3}[0-9][A-Z0-9][0-9]{2}$`)
	nonPlateChars = regexp.MustCompile(`[^A-Z0-9]`)
	nonDigits     = regexp.MustCompile(`[^0-9]`)
	markup        = regexp.MustCompile(`<[^>]*>`)
	elevenDigits  = regexp.MustCompile(`^[0-9]{11}$`)
)

var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "approach not found")

// Approach is one vehicle stop recorded by an agent at a checkpoint.
type Approach struct {
	ID             string    `json:"id"`
	CheckpointID   string    `json:"checkpoint_id"`
	RecordedBy     string    `json:"recorded_by"`
	Plate          string    `json:"plate"`
	CPF            string    `json:"cpf,omitempty"`
	CNH            string    `json:"cnh,omitempty"`
	Breathalyzer   bool      `json:"breathalyzer"`
	VehicleRemoved bool      `json:"vehicle_removed"`
	Citation       bool      `json:"citation"`
	Articles       []string  `json:"articles"`
	Observations   string    `json:"observations,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type RecordInput struct {
	CheckpointID   string   `json:"checkpoint_id"`
	Plate          string   `json:"plate"`
	CPF            string   `json:"cpf"`
	CNH            string   `json:"cnh"`
	Breathalyzer   bool     `json:"breathalyzer"`
	VehicleRemoved bool     `json:"vehicle_removed"`
	Citation       bool     `json:"citation"`
	Articles       []string `json:"articles"`
	Observations   string   `json:"observations"`
}

// Normalize cleans the input and validates it. The plate is uppercased with
// separators removed, document numbers keep only digits, markup is stripped
// from observations and the rest truncated to MaxObservations, and articles beyond MaxArticles are rejected.
func (in RecordInput) Normalize() (RecordInput, error) {
	out := in
	out.CheckpointID = strings.TrimSpace(in.CheckpointID)
	if out.CheckpointID == "" {
		return out, dErrors.New(dErrors.CodeValidation, "checkpoint_id is required")
	}

	out.Plate = nonPlateChars.ReplaceAllString(strings.ToUpper(in.Plate), "")
	if out.Plate == "" {
		return out, dErrors.New(dErrors.CodeValidation, "plate is required")
	}
	if !platePattern.MatchString(out.Plate) {
		return out, dErrors.New(dErrors.CodeValidation, "invalid plate format")
	}

	var err error
	if out.CPF, err = documentNumber(in.CPF, "cpf"); err != nil {
		return out, err
	}
	if out.CNH, err = documentNumber(in.CNH, "cnh"); err != nil {
		return out, err
	}

	if len(in.Articles) > MaxArticles {
		return out, dErrors.New(dErrors.CodeValidation, "at most 10 articles may be cited")
	}
	out.Articles = make([]string, 0, len(in.Articles))
	for _, a := range in.Articles {
		if a = strings.TrimSpace(a); a != "" {
			out.Articles = append(out.Articles, a)
		}
	}

	obs := markup.ReplaceAllString(in.Observations, "")
	obs = strings.TrimSpace(obs)
	if utf8.RuneCountInString(obs) > MaxObservations {
		obs = string([]rune(obs)[:MaxObservations])
	}
	out.Observations = obs
	return out, nil
}

func documentNumber(raw, field string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	digits := nonDigits.ReplaceAllString(raw, "")
	if !elevenDigits.MatchString(digits) {
		return "", dErrors.New(dErrors.CodeValidation, field+" must have 11 digits")
	}
	return digits, nil
}

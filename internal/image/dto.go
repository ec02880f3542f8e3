package image

import (
	"strings"

	errors "github.com/frahmantamala/credit-marketplace/internal"
	"github.com/frahmantamala/credit-marketplace/internal/core/common/validation"
)

const maxPromptLength = 1000

type GenerateDTO struct {
	Prompt string `json:"prompt"`
}

func (d *GenerateDTO) Normalize() {
	d.Prompt = strings.TrimSpace(d.Prompt)
}

func (d GenerateDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("prompt", d.Prompt).Required().MaxLength(maxPromptLength)
	return v.Validate()
}

type GenerateResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	ResultImage   string `json:"resultImage,omitempty"`
	CreditBalance int64  `json:"creditBalance"`
}

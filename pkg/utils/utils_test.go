package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuestionKeyFoldsCaseAndSpaces(t *testing.T) {
	assert.Equal(t, QuestionKey("Kdo vydává územní plán?"), QuestionKey("  kdo VYDÁVÁ\túzemní   plán? "))
	assert.NotEqual(t, QuestionKey("územní plán"), QuestionKey("stavební povolení"))
	assert.Len(t, HashString("x"), 64)
}

func TestValidateStruct(t *testing.T) {
	type req struct {
		Question string `json:"question" validate:"required,max=5"`
		Limit    int    `json:"limit" validate:"min=0,max=100"`
	}

	assert.NoError(t, ValidateStruct(req{Question: "daň"}))

	err := ValidateStruct(req{Limit: 500})
	assert.EqualError(t, err, "question is required; limit must be at most 100")

	err = ValidateStruct(req{Question: "příliš dlouhá"})
	assert.EqualError(t, err, "question must be at most 5")
}

package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStructuralErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("open workbook: %w", NewStructuralError(ErrInvalidFileFormat, "not a zip archive"))

	assert.True(t, IsStructural(err))
	assert.True(t, Is(err, ErrInvalidFileFormat))
	assert.False(t, IsStructural(ErrRunNotFound))
}

func TestCellErrorMessage(t *testing.T) {
	err := CellError{Row: 5, Column: 7, Value: "abc", Reason: "score is not numeric"}
	assert.Equal(t, "cell R5C7 with value 'abc': score is not numeric", err.Error())
}

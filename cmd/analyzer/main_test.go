package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParts_EmptyStringReturnsNil(t *testing.T) {
	got, err := parseParts("")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestParseParts_ParsesCommaSeparatedNumbers(t *testing.T) {
	got, err := parseParts("1,2,10")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 10}, got)
}

func TestParseParts_SkipsEmptySegments(t *testing.T) {
	got, err := parseParts("1,,3")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, got)
}

func TestParseParts_RejectsNonNumeric(t *testing.T) {
	_, err := parseParts("1,abc,3")
	assert.ErrorContains(t, err, "invalid part number")
}

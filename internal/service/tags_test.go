package service

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTags(t *testing.T) {
	got, err := ParseTags(" Go, sql ,, go,  Web Dev ,SQL")
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "sql", "web dev"}, got)
}

func TestParseTags_Empty(t *testing.T) {
	got, err := ParseTags(" , ,")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseTags_Limits(t *testing.T) {
	_, err := ParseTags(strings.Repeat("x", MaxTagLength+1))
	assert.True(t, errors.Is(err, ErrValidation), "длинный тег: %v", err)

	many := make([]string, MaxTags+1)
	for i := range many {
		many[i] = fmt.Sprintf("t%d", i)
	}
	_, err = ParseTags(strings.Join(many, ","))
	assert.True(t, errors.Is(err, ErrValidation), "слишком много тегов: %v", err)

	// Дубликаты не считаются в лимит
	dup := strings.Repeat("go,", MaxTags+5)
	got, err := ParseTags(dup)
	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, got)
}

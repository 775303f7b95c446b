package yaml

import (
	"context"
	"testing"

	"github.com/bnema/session-tokens/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable(t *testing.T) {
	t.Parallel()

	source, err := New()
	require.NoError(t, err)

	categories, err := source.Categories(context.Background())
	require.NoError(t, err)

	names := make([]string, 0, len(categories))
	for _, category := range categories {
		names = append(names, category.Name)
	}
	assert.Equal(t, []string{"speech_act", "emotion", "sentiment", "cognitive_state", "tonality"}, names)

	tonality, err := source.Category(context.Background(), "tonality")
	require.NoError(t, err)
	label, ok := tonality.LabelByAlias("reassuring")
	require.True(t, ok)
	assert.Equal(t, "Directive-Internal", label.Quadrant)
	assert.Equal(t, "The overall tone of voice is caring and reassuring.", tonality.Sentence(label))
}

func TestCategoryUnknown(t *testing.T) {
	t.Parallel()

	source, err := New()
	require.NoError(t, err)

	_, err = source.Category(context.Background(), "weather")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCategoriesReturnsCopies(t *testing.T) {
	t.Parallel()

	source, err := New()
	require.NoError(t, err)

	first, err := source.Categories(context.Background())
	require.NoError(t, err)
	first[0].Labels[0].Text = "changed"

	again, err := source.Category(context.Background(), first[0].Name)
	require.NoError(t, err)
	assert.Equal(t, "a direct command", again.Labels[0].Text)
}

func TestParseRejectsInvalidTables(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{name: "malformed", data: "categories: [", wantErr: "decode taxonomy"},
		{name: "missing name", data: "categories:\n  - template: \"%s\"\n", wantErr: "name is required"},
		{name: "no placeholder", data: "categories:\n  - name: a\n    template: plain\n", wantErr: "exactly one %s"},
		{name: "two placeholders", data: "categories:\n  - name: a\n    template: \"%s %s\"\n", wantErr: "exactly one %s"},
		{name: "duplicate category", data: "categories:\n  - name: a\n    template: \"%s\"\n  - name: a\n    template: \"%s\"\n", wantErr: "declared twice"},
		{name: "duplicate alias", data: "categories:\n  - name: a\n    template: \"%s\"\n    labels:\n      - {text: x, alias: y}\n      - {text: z, alias: y}\n", wantErr: "alias \"y\" declared twice"},
		{name: "label without alias", data: "categories:\n  - name: a\n    template: \"%s\"\n    labels:\n      - {text: x}\n", wantErr: "text and alias are required"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tc.data))
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

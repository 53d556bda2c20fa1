package listing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeTerms(t *testing.T) {
	tests := []struct {
		name  string
		terms []string
		want  []string
	}{
		{
			name:  "trims lowercases and strips punctuation",
			terms: []string{"Wall Art!", "  canvas "},
			want:  []string{"wallart", "canvas"},
		},
		{
			name:  "drops terms outside length bounds",
			terms: []string{"a", "ok", "thistagiswaytoolongtofitatall"},
			want:  []string{"ok"},
		},
		{
			name:  "removes duplicates after normalization",
			terms: []string{"Boho", "boho", "BOHO!"},
			want:  []string{"boho"},
		},
		{
			name:  "preserves input order",
			terms: []string{"zebra", "apple", "mango"},
			want:  []string{"zebra", "apple", "mango"},
		},
		{
			name: "caps at thirteen terms",
			terms: []string{
				"t01", "t02", "t03", "t04", "t05", "t06", "t07",
				"t08", "t09", "t10", "t11", "t12", "t13", "t14", "t15",
			},
			want: []string{
				"t01", "t02", "t03", "t04", "t05", "t06", "t07",
				"t08", "t09", "t10", "t11", "t12", "t13",
			},
		},
		{
			name:  "empty input yields empty output",
			terms: nil,
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeTerms(tt.terms))
		})
	}
}

func TestSanitizeTags_PadsToThirteen(t *testing.T) {
	got := SanitizeTags([]string{"Wall Art!", "  canvas ", "a"})

	require.Len(t, got, MaxTerms)
	assert.Equal(t, "wallart", got[0])
	assert.Equal(t, "canvas", got[1])

	// Padding comes from the generic pool in order, skipping tags already
	// present ("wallart" appears in the pool and must not repeat).
	seen := make(map[string]int)
	for _, tag := range got {
		seen[tag]++
	}
	for tag, n := range seen {
		assert.Equal(t, 1, n, "tag %q duplicated", tag)
	}
}

func TestSanitizeTags_FullListNotPadded(t *testing.T) {
	in := []string{
		"t01", "t02", "t03", "t04", "t05", "t06", "t07",
		"t08", "t09", "t10", "t11", "t12", "t13",
	}
	got := SanitizeTags(in)

	assert.Equal(t, in, got)
}

func TestSanitizeTags_EmptyInputGetsFullPool(t *testing.T) {
	got := SanitizeTags(nil)

	require.Len(t, got, MaxTerms)
	assert.Equal(t, "handmade", got[0])
}

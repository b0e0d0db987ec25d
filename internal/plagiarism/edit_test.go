package plagiarism

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEditDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want int
	}{
		{"both empty", nil, nil, 0},
		{"one empty", nil, []string{"a", "b", "c"}, 3},
		{"identical", []string{"x", "=", "1"}, []string{"x", "=", "1"}, 0},
		{"substitution", []string{"x", "=", "1"}, []string{"y", "=", "1"}, 1},
		{"insertion", []string{"a", "c"}, []string{"a", "b", "c"}, 1},
		{"deletion", []string{"a", "b", "c"}, []string{"a", "c"}, 1},
		{"adjacent transposition", []string{"a", "b"}, []string{"b", "a"}, 1},
		{"transposition inside", []string{"x", "a", "b", "y"}, []string{"x", "b", "a", "y"}, 1},
		{"disjoint", []string{"a", "b"}, []string{"c", "d", "e"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EditDistance(tt.a, tt.b))
			assert.Equal(t, tt.want, EditDistance(tt.b, tt.a))
		})
	}
}

func TestEditSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, EditSimilarity(nil, nil))
	assert.Equal(t, 1.0, EditSimilarity([]string{"a"}, []string{"a"}))
	assert.Equal(t, 0.0, EditSimilarity(nil, []string{"a", "b"}))
	assert.InDelta(t, 0.5, EditSimilarity([]string{"a", "b"}, []string{"b", "a"}), 1e-9)
	assert.InDelta(t, 2.0/3.0, EditSimilarity([]string{"x", "=", "1"}, []string{"y", "=", "1"}), 1e-9)
}

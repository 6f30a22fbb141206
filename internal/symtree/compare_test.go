package symtree

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Test Plan for name comparers:
// - CompareNames orders case variants together with an ordinal tie-break
// - CompareIgnoreCase treats case variants as equal, including non-ASCII folds
// - CompareIgnoreCase is order-compatible with CompareNames on random input

func TestCompareNames_Order(t *testing.T) {
	t.Parallel()

	input := []string{"b", "Bar", "a", "FOO", "A", "foo", "ab", "Foo", "B"}
	slices.SortFunc(input, CompareNames)

	assert.Equal(t, []string{"A", "a", "ab", "B", "b", "Bar", "FOO", "Foo", "foo"}, input)
}

func TestCompareIgnoreCase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"identical", "Foo", "Foo", 0},
		{"case variants", "Foo", "fOO", 0},
		{"prefix sorts first", "Foo", "FooBar", -1},
		{"longer sorts last", "foobar", "FOO", 1},
		{"different letters", "apple", "Banana", -1},
		{"empty", "", "", 0},
		{"empty before non-empty", "", "a", -1},
		{"greek sigma", "ΣΊΣΥΦΟΣ", "σίσυφοσ", 0},
		{"kelvin sign folds to k", "Kelvin", "kelvin", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CompareIgnoreCase(tt.a, tt.b))
			assert.Equal(t, -tt.want, CompareIgnoreCase(tt.b, tt.a))
		})
	}
}

func TestCompareIgnoreCase_OrderCompatible(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	alphabet := []rune("aAbBcCzZ_1")
	words := make([]string, 300)
	for i := range words {
		n := 1 + rng.Intn(4)
		w := make([]rune, n)
		for j := range w {
			w[j] = alphabet[rng.Intn(len(alphabet))]
		}
		words[i] = string(w)
	}
	slices.SortFunc(words, CompareNames)

	for i := 1; i < len(words); i++ {
		assert.LessOrEqual(t, CompareIgnoreCase(words[i-1], words[i]), 0,
			"%q then %q breaks ignore-case order", words[i-1], words[i])
	}
}

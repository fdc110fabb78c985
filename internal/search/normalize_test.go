package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"strips tashkeel", "مُحَمَّد", "محمد"},
		{"unifies alef hamza above", "أحمد", "احمد"},
		{"unifies alef hamza below", "إبراهيم", "ابراهيم"},
		{"unifies alef madda", "آمنة", "امنه"},
		{"teh marbuta to heh", "فاطمة", "فاطمه"},
		{"alef maqsura to yeh", "مصطفى", "مصطفي"},
		{"hamza on waw", "مؤمن", "مومن"},
		{"hamza on yeh", "هيئة", "هييه"},
		{"latin lowercased", "Ahmed ALI", "ahmed ali"},
		{"trims whitespace", "  محمد  ", "محمد"},
		{"empty stays empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"أَحْمَد مُصْطَفَى", "فاطمة الزهراء", "Mohamed"}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once))
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"محمد", "احمد", "علي"}, Tokenize("محمد احمد علي"))
	assert.Empty(t, Tokenize("   "))
}

func TestIsNumeric(t *testing.T) {
	assert.True(t, IsNumeric("12345"))
	assert.True(t, IsNumeric("٣٤٥"))
	assert.False(t, IsNumeric("123a"))
	assert.False(t, IsNumeric("محمد"))
	assert.False(t, IsNumeric(""))
}

func TestNormalizeDigits(t *testing.T) {
	assert.Equal(t, "0123456789", NormalizeDigits("٠١٢٣٤٥٦٧٨٩"))
	assert.Equal(t, "12345", NormalizeDigits("12345"))
}

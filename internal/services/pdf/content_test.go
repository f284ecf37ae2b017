package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextFromContentStream(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "simple show",
			content: "BT /F1 12 Tf 72 720 Td (Hello World) Tj ET",
			want:    "Hello World",
		},
		{
			name:    "separate text objects become lines",
			content: "BT 72 720 Td (First line) Tj ET\nBT 72 700 Td (Second line) Tj ET",
			want:    "First line\nSecond line",
		},
		{
			name:    "TJ kerning and word gaps",
			content: "BT [(Hel) -20 (lo) -300 (there)] TJ ET",
			want:    "Hello there",
		},
		{
			name:    "escapes and octal",
			content: `BT (a\(b\)c \\ d\101) Tj ET`,
			want:    `a(b)c \ dA`,
		},
		{
			name:    "nested parens",
			content: "BT (f(x) = y) Tj ET",
			want:    "f(x) = y",
		},
		{
			name:    "hex string",
			content: "BT <48656C6C6F> Tj ET",
			want:    "Hello",
		},
		{
			name:    "utf16 hex string",
			content: "BT <FEFF00E9007400E9> Tj ET",
			want:    "été",
		},
		{
			name:    "winansi bytes",
			content: "BT (caf\\351) Tj ET",
			want:    "café",
		},
		{
			name:    "next line operators",
			content: "BT (one) Tj T* (two) Tj (three) ' ET",
			want:    "one\ntwo\nthree",
		},
		{
			name:    "comments ignored",
			content: "% a comment (not text) Tj\nBT (kept) Tj ET",
			want:    "kept",
		},
		{
			name:    "inline image skipped",
			content: "BI /W 2 /H 2 /BPC 8 ID \x00\x01(junk)\x02 EI BT (after) Tj ET",
			want:    "after",
		},
		{
			name:    "no text",
			content: "q 1 0 0 1 0 0 cm 0 0 100 100 re f Q",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TextFromContentStream([]byte(tt.content)))
		})
	}
}

func TestDecodeText(t *testing.T) {
	assert.Equal(t, "plain", decodeText([]byte("plain")))
	assert.Equal(t, "€", decodeText([]byte{0x80}))
	assert.Equal(t, "Ω", decodeText([]byte{0xFE, 0xFF, 0x03, 0xA9}))
	assert.Equal(t, "", decodeText([]byte{0xFE, 0xFF}))
}

package utils

import (
	"strings"
	"testing"
)

func TestCompressAndDecompressString(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{
			name: "Short string",
			text: "Hello, world!",
		},
		{
			name: "Search result JSON",
			text: `{"hotels":[{"hid":1,"name":"Grand Plaza","price":"100.00","currency":"SAR"}],"total":1}`,
		},
		{
			name: "Empty string",
			text: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compressed, err := CompressString(tt.text)
			if err != nil {
				t.Fatalf("CompressString error: %v", err)
			}

			decompressed, err := DecompressString(compressed)
			if err != nil {
				t.Fatalf("DecompressString error: %v", err)
			}

			if decompressed != tt.text {
				t.Errorf("Expected decompressed string %q, got %q", tt.text, decompressed)
			}
		})
	}
}

func TestCompressionRatio(t *testing.T) {
	// A region search result is mostly repeated JSON structure
	content := strings.Repeat(`{"hid":12345,"match_hash":"m-abc","show_amount":"150.00","show_currency_code":"SAR"},`, 100)

	compressed, err := CompressString(content)
	if err != nil {
		t.Fatalf("CompressString error: %v", err)
	}

	ratio := float64(len(compressed)) / float64(len(content))
	t.Logf("Original: %d bytes, Compressed: %d bytes, Ratio: %.2f", len(content), len(compressed), ratio)

	// Repetitive content should compress to less than 10% of original
	if ratio > 0.1 {
		t.Errorf("Expected compression ratio < 0.1 for repetitive content, got %.2f", ratio)
	}
}

func TestInvalidBase64Decompression(t *testing.T) {
	_, err := DecompressString("not_base64!")
	if err == nil {
		t.Error("Expected error when decompressing invalid base64 string")
	}
}

package secrets

import (
	"context"
	"hash/crc32"
	"testing"
)

func TestGetSecret_EnvVar(t *testing.T) {
	t.Setenv("VISION_TEST_SECRET", "local_value")

	adapter := &SecretsAdapter{}
	val, err := adapter.GetSecret(context.Background(), "test-project", "VISION_TEST_SECRET")
	if err != nil {
		t.Fatalf("Expected check to succeed, got error: %v", err)
	}
	if val != "local_value" {
		t.Errorf("Expected 'local_value', got '%s'", val)
	}
}

func TestChecksumMatches(t *testing.T) {
	data := []byte("gemini-key")
	good := int64(crc32.Checksum(data, crc32.MakeTable(crc32.Castagnoli)))
	bad := good + 1

	tests := []struct {
		name string
		want *int64
		ok   bool
	}{
		{"no checksum", nil, true},
		{"matching", &good, true},
		{"corrupted", &bad, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checksumMatches(data, tt.want); got != tt.ok {
				t.Errorf("checksumMatches() = %v, want %v", got, tt.ok)
			}
		})
	}
}

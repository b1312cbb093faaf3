package secrets

import (
	"context"
	"fmt"
	"hash/crc32"
	"log/slog"
	"os"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// SecretsAdapter fetches the latest version of a secret from Secret Manager.
// An environment variable with the secret's name takes precedence, which is
// how local runs supply the Gemini API key.
type SecretsAdapter struct{}

func (a *SecretsAdapter) GetSecret(ctx context.Context, projectID, secretName string) (string, error) {
	// 1. Local fallback
	if val := os.Getenv(secretName); val != "" {
		slog.Debug("Using local env var for secret", "component", "secrets", "secret", secretName)
		return val, nil
	}

	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("create secretmanager client: %w", err)
	}
	defer client.Close()

	// 2. Access latest version
	req := &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", projectID, secretName),
	}
	result, err := client.AccessSecretVersion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("access secret %s: %w", secretName, err)
	}

	// 3. Verify checksum
	if !checksumMatches(result.Payload.Data, result.Payload.DataCrc32C) {
		return "", fmt.Errorf("secret %s: data corruption detected", secretName)
	}

	return string(result.Payload.Data), nil
}

var crc32c = crc32.MakeTable(crc32.Castagnoli)

// checksumMatches accepts payloads that carry no checksum.
func checksumMatches(data []byte, want *int64) bool {
	if want == nil {
		return true
	}
	return int64(crc32.Checksum(data, crc32c)) == *want
}

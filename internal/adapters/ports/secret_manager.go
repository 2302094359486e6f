package ports

import (
	"context"
)

// Secret represents a retrieved secret with metadata
type Secret struct {
	Value     string            // The secret value (e.g., merchant API key)
	Version   string            // Secret version identifier
	Metadata  map[string]string // Additional secret metadata
	CreatedAt string            // When this version was created
}

// SecretRotationInfo contains information about secret rotation
type SecretRotationInfo struct {
	CurrentVersion  string // Currently active version
	PreviousVersion string // Previous version (for graceful rotation)
	NextRotation    string // Scheduled next rotation date (if applicable)
}

// SecretManagerAdapter defines the port for retrieving secrets from a secret management service
// Supports multiple backends: AWS Secrets Manager, HashiCorp Vault, local (development)
// Implementation is responsible for:
//   - Authentication with the secret manager service
//   - Caching secrets appropriately (with TTL)
//   - Handling secret rotation gracefully
type SecretManagerAdapter interface {
	// GetSecret retrieves a secret by its path/name
	// Path format depends on implementation:
	//   - AWS: "fetanpay/merchants/{merchant_id}/api-key"
	//   - Vault: "secret/data/fetanpay/merchants/{merchant_id}"
	// Returns error if:
	//   - Secret does not exist
	//   - Insufficient permissions
	//   - Network communication fails
	GetSecret(ctx context.Context, path string) (*Secret, error)

	// GetSecretVersion retrieves a specific version of a secret
	// Useful during key rotation to keep accepting the previous version
	// Returns error with same conditions as GetSecret
	GetSecretVersion(ctx context.Context, path string, version string) (*Secret, error)

	// PutSecret creates or updates a secret (admin/rotation operations)
	// Returns the new version identifier
	PutSecret(ctx context.Context, path string, value string, metadata map[string]string) (version string, err error)

	// RotateSecret rotates a secret by creating a new version and marking old version for deletion
	// New version is created before the old one is deleted so both validate during rollout
	RotateSecret(ctx context.Context, path string, newValue string) (*SecretRotationInfo, error)

	// DeleteSecret permanently deletes a secret (admin operations only)
	// Irreversible
	DeleteSecret(ctx context.Context, path string) error
}

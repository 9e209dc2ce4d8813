package config

import "context"

// SecretProvider resolves parameter paths to plaintext values. Keys the
// provider cannot find are omitted from the returned map.
type SecretProvider interface {
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}

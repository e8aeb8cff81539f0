package secrets

import "context"

// BootstrapSecretProvider is an interface for retrieving bootstrap secrets.
type BootstrapSecretProvider interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// Decrypter unwraps a ciphertext produced by a key management service.
type Decrypter interface {
	Decrypt(ctx context.Context, ciphertext []byte, keyID string) ([]byte, error)
}

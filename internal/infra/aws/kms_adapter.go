package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// KMSAPI is the subset of the KMS client used to unwrap secrets.
type KMSAPI interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// KMSAdapter unwraps KMS ciphertexts.
type KMSAdapter struct {
	client KMSAPI
}

// NewKMSAdapter creates a new KMSAdapter.
func NewKMSAdapter(cfg aws.Config) *KMSAdapter {
	return &KMSAdapter{
		client: kms.NewFromConfig(cfg),
	}
}

func NewKMSAdapterWithClient(client KMSAPI) *KMSAdapter {
	return &KMSAdapter{client: client}
}

// Decrypt decrypts ciphertext with AWS KMS. keyID may be empty for symmetric keys, in which
// case KMS reads the key from the ciphertext metadata.
func (a *KMSAdapter) Decrypt(ctx context.Context, ciphertext []byte, keyID string) ([]byte, error) {
	input := &kms.DecryptInput{
		CiphertextBlob: ciphertext,
	}
	if keyID != "" {
		input.KeyId = &keyID
	}

	result, err := a.client.Decrypt(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("kms decrypt failed: %w", err)
	}

	return result.Plaintext, nil
}

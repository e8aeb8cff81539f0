package secrets

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	app_errors "github.com/spounge-ai/auditchain/internal/errors"
	"github.com/spounge-ai/auditchain/internal/infra/config"
	"github.com/spounge-ai/auditchain/internal/secrets"
)

// ResolveSigningSecret returns the HMAC key from the first configured source: the literal
// secret, then the SSM parameter, then the KMS ciphertext. params and decrypter may be nil
// when their source is not configured.
func ResolveSigningSecret(
	ctx context.Context,
	cfg config.SigningConfig,
	params secrets.BootstrapSecretProvider,
	decrypter secrets.Decrypter,
) ([]byte, error) {
	switch {
	case cfg.Secret != "":
		return []byte(cfg.Secret), nil

	case cfg.SSMParameter != "":
		if params == nil {
			return nil, fmt.Errorf("signing secret parameter %s configured without an AWS client", cfg.SSMParameter)
		}
		value, err := params.GetSecret(ctx, cfg.SSMParameter)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve signing secret: %w", err)
		}
		value = strings.TrimSpace(value)
		if value == "" {
			return nil, fmt.Errorf("parameter %s is empty: %w", cfg.SSMParameter, app_errors.ErrMissingSigningSecret)
		}
		return []byte(value), nil

	case cfg.KMSCiphertext != "":
		if decrypter == nil {
			return nil, fmt.Errorf("signing secret ciphertext configured without an AWS client")
		}
		blob, err := base64.StdEncoding.DecodeString(cfg.KMSCiphertext)
		if err != nil {
			return nil, fmt.Errorf("signing secret ciphertext is not base64: %w", err)
		}
		plaintext, err := decrypter.Decrypt(ctx, blob, cfg.KMSKeyID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve signing secret: %w", err)
		}
		if len(plaintext) == 0 {
			return nil, fmt.Errorf("decrypted signing secret is empty: %w", app_errors.ErrMissingSigningSecret)
		}
		return plaintext, nil

	default:
		return nil, app_errors.ErrMissingSigningSecret
	}
}

package secrets_test

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app_errors "github.com/spounge-ai/auditchain/internal/errors"
	infra_aws "github.com/spounge-ai/auditchain/internal/infra/aws"
	"github.com/spounge-ai/auditchain/internal/infra/config"
	"github.com/spounge-ai/auditchain/internal/infra/secrets"
)

type fakeSSM struct {
	values map[string]string
	calls  []string
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.calls = append(f.calls, *in.Name)
	if !aws.ToBool(in.WithDecryption) {
		return nil, errors.New("expected decryption")
	}
	v, ok := f.values[*in.Name]
	if !ok {
		return nil, &ssmtypes.ParameterNotFound{}
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Value: aws.String(v)}}, nil
}

type fakeKMS struct {
	plaintext []byte
	gotKeyID  string
}

func (f *fakeKMS) Decrypt(_ context.Context, in *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	if string(in.CiphertextBlob) != "wrapped" {
		return nil, errors.New("invalid ciphertext")
	}
	f.gotKeyID = aws.ToString(in.KeyId)
	return &kms.DecryptOutput{Plaintext: f.plaintext}, nil
}

const secret = "0123456789abcdef0123456789abcdef"

func TestResolveSigningSecret(t *testing.T) {
	ctx := context.Background()
	ssmClient := &fakeSSM{values: map[string]string{"/audit/key": secret + "\n", "/audit/empty": " "}}
	params := secrets.NewParameterStoreWithClient(ssmClient)
	kmsClient := &fakeKMS{plaintext: []byte(secret)}
	decrypter := infra_aws.NewKMSAdapterWithClient(kmsClient)
	wrapped := base64.StdEncoding.EncodeToString([]byte("wrapped"))

	t.Run("literal secret wins", func(t *testing.T) {
		got, err := secrets.ResolveSigningSecret(ctx, config.SigningConfig{Secret: secret, SSMParameter: "/audit/key"}, params, decrypter)
		require.NoError(t, err)
		assert.Equal(t, []byte(secret), got)
	})

	t.Run("ssm parameter is trimmed", func(t *testing.T) {
		got, err := secrets.ResolveSigningSecret(ctx, config.SigningConfig{SSMParameter: "/audit/key"}, params, nil)
		require.NoError(t, err)
		assert.Equal(t, []byte(secret), got)
		assert.Contains(t, ssmClient.calls, "/audit/key")
	})

	t.Run("empty ssm parameter", func(t *testing.T) {
		_, err := secrets.ResolveSigningSecret(ctx, config.SigningConfig{SSMParameter: "/audit/empty"}, params, nil)
		assert.ErrorIs(t, err, app_errors.ErrMissingSigningSecret)
	})

	t.Run("missing ssm parameter", func(t *testing.T) {
		_, err := secrets.ResolveSigningSecret(ctx, config.SigningConfig{SSMParameter: "/nope"}, params, nil)
		var notFound *ssmtypes.ParameterNotFound
		assert.ErrorAs(t, err, &notFound)
	})

	t.Run("kms ciphertext", func(t *testing.T) {
		keyID := "arn:aws:kms:us-east-1:123456789012:key/abcd"
		got, err := secrets.ResolveSigningSecret(ctx, config.SigningConfig{KMSCiphertext: wrapped, KMSKeyID: keyID}, nil, decrypter)
		require.NoError(t, err)
		assert.Equal(t, []byte(secret), got)
		assert.Equal(t, keyID, kmsClient.gotKeyID)
	})

	t.Run("kms ciphertext must be base64", func(t *testing.T) {
		_, err := secrets.ResolveSigningSecret(ctx, config.SigningConfig{KMSCiphertext: "%%%"}, nil, decrypter)
		assert.ErrorContains(t, err, "base64")
	})

	t.Run("source without client", func(t *testing.T) {
		_, err := secrets.ResolveSigningSecret(ctx, config.SigningConfig{KMSCiphertext: wrapped}, nil, nil)
		assert.Error(t, err)
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, err := secrets.ResolveSigningSecret(ctx, config.SigningConfig{}, params, decrypter)
		assert.ErrorIs(t, err, app_errors.ErrMissingSigningSecret)
	})
}

package algolia

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
)

// SecretsManagerClient is the part of the Secrets Manager API used here.
type SecretsManagerClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecrets reads credentials from the secret "{env}/algolia". The secret is
// a JSON object with app_id and api_key.
func AWSSecrets(ctx context.Context, client SecretsManagerClient, env string) FetchSecrets {
	return AWSSecretsFromARN(ctx, client, fmt.Sprintf("%s/algolia", env))
}

// AWSSecretsFromARN reads credentials from the secret with the given ARN or
// name.
func AWSSecretsFromARN(ctx context.Context, client SecretsManagerClient, secretID string) FetchSecrets {
	return func() (Secrets, error) {
		result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(secretID),
		})
		if err != nil {
			return Secrets{}, errors.Wrapf(err, "get secret %s", secretID)
		}
		if result.SecretString == nil {
			return Secrets{}, errors.Newf("secret %s has no string value", secretID)
		}

		var secrets Secrets
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(aws.ToString(result.SecretString), &secrets); err != nil {
			return Secrets{}, errors.Wrapf(err, "decode secret %s", secretID)
		}
		return secrets, nil
	}
}

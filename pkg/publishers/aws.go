package publishers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// AWSAccess overrides the default credential chain and service endpoint,
// e.g. for a local emulator. Values may reference ${NAME}.
type AWSAccess struct {
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
}

func (a AWSAccess) sanitize() AWSAccess {
	return AWSAccess{
		Endpoint:        strings.TrimSpace(os.ExpandEnv(a.Endpoint)),
		AccessKeyID:     strings.TrimSpace(os.ExpandEnv(a.AccessKeyID)),
		SecretAccessKey: strings.TrimSpace(os.ExpandEnv(a.SecretAccessKey)),
	}
}

func (a AWSAccess) validate(prefix string) error {
	if (a.AccessKeyID == "") != (a.SecretAccessKey == "") {
		return fmt.Errorf("%s.access_key_id and %s.secret_access_key must be set together", prefix, prefix)
	}
	return nil
}

func loadAWSConfig(ctx context.Context, region string, access AWSAccess) (aws.Config, error) {
	opts := []func(*awscfg.LoadOptions) error{awscfg.WithRegion(region)}
	if access.AccessKeyID != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(access.AccessKeyID, access.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	if access.Endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(access.Endpoint)
	}
	return awsCfg, nil
}

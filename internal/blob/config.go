package blob

// S3Config selects credentials and the endpoint for the S3 client. Empty fields fall back
// to the AWS SDK default chain (environment, shared config, instance role).
type S3Config struct {
	Region string
	// Profile names a section of the shared AWS config/credentials files.
	Profile   string
	AccessKey string
	SecretKey string
	// Endpoint overrides the S3 endpoint, for MinIO or LocalStack. Setting it forces
	// path-style addressing.
	Endpoint string
}

// WithProfile creates a configuration backed by a shared-config profile.
func WithProfile(profile, region string) *S3Config {
	return &S3Config{
		Profile: profile,
		Region:  region,
	}
}

// WithMinioConfig creates a configuration for an S3-compatible endpoint with static keys.
func WithMinioConfig(url, accessKey, secretKey string) *S3Config {
	return &S3Config{
		Endpoint:  url,
		AccessKey: accessKey,
		SecretKey: secretKey,
		Region:    "us-east-1",
	}
}

package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/3leaps/bucketd/pkg/provider"
)

// Provider implements provider.Provider for AWS S3 and S3-compatible storage.
type Provider struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	maxKeys   int
}

// Ensure Provider implements the interfaces.
var (
	_ provider.Provider        = (*Provider)(nil)
	_ provider.DelimiterLister = (*Provider)(nil)
	_ provider.ObjectGetter    = (*Provider)(nil)
	_ provider.URLSigner       = (*Provider)(nil)
)

// New creates a new S3 provider with the given configuration.
//
// The provider uses AWS SDK v2's default credential chain unless explicit
// credentials are provided in the config.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, &provider.ProviderError{
			Op:       "New",
			Provider: provider.ProviderS3,
			Bucket:   cfg.Bucket,
			Err:      err,
		}
	}

	// Build S3 client options
	s3Opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}
		},
	}

	// Custom endpoint for S3-compatible stores
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	maxKeys := cfg.MaxKeys
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}

	return &Provider{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		maxKeys:   maxKeys,
	}, nil
}

// loadAWSConfig builds the AWS configuration with appropriate credentials.
func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error

	// Only apply explicit region if user set one in config.
	// Let SDK resolve from env/profile first.
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	// Set profile if specified
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	// Use explicit credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		staticCreds := credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"", // session token (empty for long-term credentials)
		)
		opts = append(opts, config.WithCredentialsProvider(staticCreds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}

	awsCfg.Region = resolveRegion(ctx, awsCfg, cfg.Endpoint)

	return awsCfg, nil
}

// resolveRegion determines the final region to use after SDK config loading.
//
// The SDK has already applied explicit config, environment variables, and
// shared-config profiles by the time this runs. The remaining fallbacks:
//   - On EC2, ask the instance metadata service for the local region. The
//     original deployment model is an instance-role host in the bucket's own
//     region, so this usually resolves without any configuration at all.
//   - For AWS S3 with no custom endpoint, default to us-east-1.
//   - For S3-compatible stores (endpoint set), leave empty.
func resolveRegion(ctx context.Context, awsCfg aws.Config, endpoint string) string {
	if awsCfg.Region != "" {
		return awsCfg.Region
	}
	if endpoint != "" {
		// S3-compatible: no default, provider may not need region
		return ""
	}

	imdsCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if out, err := imds.NewFromConfig(awsCfg).GetRegion(imdsCtx, &imds.GetRegionInput{}); err == nil && out.Region != "" {
		return out.Region
	}

	return DefaultAWSRegion
}

// List returns a page of objects with the given prefix.
func (p *Provider) List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error) {
	maxKeys := clampMaxKeys(opts.MaxKeys, p.maxKeys)

	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(p.bucket),
		MaxKeys: aws.Int32(int32(maxKeys)),
	}

	if opts.Prefix != "" {
		input.Prefix = aws.String(opts.Prefix)
	}

	if opts.ContinuationToken != "" {
		input.ContinuationToken = aws.String(opts.ContinuationToken)
	}

	output, err := p.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, p.wrapError("List", opts.Prefix, err)
	}

	result := &provider.ListResult{
		Objects:     summarize(output.Contents),
		IsTruncated: aws.ToBool(output.IsTruncated),
	}

	if output.NextContinuationToken != nil {
		result.ContinuationToken = *output.NextContinuationToken
	}

	return result, nil
}

// ListWithDelimiter returns one level of objects plus immediate child prefixes.
func (p *Provider) ListWithDelimiter(ctx context.Context, opts provider.ListWithDelimiterOptions) (*provider.ListWithDelimiterResult, error) {
	maxKeys := clampMaxKeys(opts.MaxKeys, p.maxKeys)

	delimiter := opts.Delimiter
	if delimiter == "" {
		delimiter = "/"
	}

	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(p.bucket),
		Delimiter: aws.String(delimiter),
		MaxKeys:   aws.Int32(int32(maxKeys)),
	}

	if opts.Prefix != "" {
		input.Prefix = aws.String(opts.Prefix)
	}

	if opts.ContinuationToken != "" {
		input.ContinuationToken = aws.String(opts.ContinuationToken)
	}

	output, err := p.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, p.wrapError("ListWithDelimiter", opts.Prefix, err)
	}

	commonPrefixes := make([]string, 0, len(output.CommonPrefixes))
	for _, cp := range output.CommonPrefixes {
		commonPrefixes = append(commonPrefixes, aws.ToString(cp.Prefix))
	}

	result := &provider.ListWithDelimiterResult{
		Objects:        summarize(output.Contents),
		CommonPrefixes: commonPrefixes,
		IsTruncated:    aws.ToBool(output.IsTruncated),
	}

	if output.NextContinuationToken != nil {
		result.ContinuationToken = *output.NextContinuationToken
	}

	return result, nil
}

// Head returns metadata for a single object.
func (p *Provider) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	input := &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}

	output, err := p.client.HeadObject(ctx, input)
	if err != nil {
		return nil, p.wrapError("Head", key, err)
	}

	meta := &provider.ObjectMeta{
		ObjectSummary: provider.ObjectSummary{
			Key:          key,
			Size:         aws.ToInt64(output.ContentLength),
			ETag:         cleanETag(aws.ToString(output.ETag)),
			LastModified: aws.ToTime(output.LastModified),
		},
		ContentType: aws.ToString(output.ContentType),
	}

	return meta, nil
}

// GetObject downloads an object as a stream.
//
// The caller owns the returned body and must close it.
func (p *Provider) GetObject(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}

	output, err := p.client.GetObject(ctx, input)
	if err != nil {
		return nil, 0, p.wrapError("GetObject", key, err)
	}

	return output.Body, aws.ToInt64(output.ContentLength), nil
}

// PresignGetObject mints a time-limited download URL for the object.
//
// The URL is signed against the provider's resolved credentials; the caller
// must not cache it beyond ExpiresAt.
func (p *Provider) PresignGetObject(ctx context.Context, key string, ttl time.Duration) (*provider.SignedURL, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}

	issued := time.Now()
	req, err := p.presigner.PresignGetObject(ctx, input, s3.WithPresignExpires(ttl))
	if err != nil {
		return nil, p.wrapError("PresignGetObject", key, err)
	}

	return &provider.SignedURL{
		URL:       req.URL,
		ExpiresAt: issued.Add(ttl),
	}, nil
}

// Close releases any resources held by the provider.
// The S3 client doesn't require explicit cleanup, but this satisfies the interface.
func (p *Provider) Close() error {
	return nil
}

// summarize converts SDK object listings to provider summaries.
func summarize(contents []types.Object) []provider.ObjectSummary {
	objects := make([]provider.ObjectSummary, 0, len(contents))
	for _, obj := range contents {
		objects = append(objects, provider.ObjectSummary{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			ETag:         cleanETag(aws.ToString(obj.ETag)),
			LastModified: aws.ToTime(obj.LastModified),
		})
	}
	return objects
}

// wrapError converts S3 errors to provider errors with appropriate sentinel errors.
func (p *Provider) wrapError(op, key string, err error) error {
	wrapped := &provider.ProviderError{
		Op:       op,
		Provider: provider.ProviderS3,
		Bucket:   p.bucket,
		Key:      key,
		Err:      err,
	}

	// Check for specific S3 error types first
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket

	switch {
	case errors.As(err, &notFound), errors.As(err, &noSuchKey):
		wrapped.Err = provider.ErrNotFound
		return wrapped
	case errors.As(err, &noSuchBucket):
		wrapped.Err = provider.ErrBucketNotFound
		return wrapped
	}

	// Check smithy API errors for error codes
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch code {
		case "NoSuchKey", "NotFound":
			wrapped.Err = provider.ErrNotFound
		case "NoSuchBucket":
			wrapped.Err = provider.ErrBucketNotFound
		case "AccessDenied", "Forbidden":
			wrapped.Err = provider.ErrAccessDenied
		case "InvalidAccessKeyId", "SignatureDoesNotMatch":
			wrapped.Err = provider.ErrInvalidCredentials
		case "SlowDown", "Throttling", "RequestLimitExceeded":
			wrapped.Err = provider.ErrThrottled
		case "ServiceUnavailable", "InternalError":
			wrapped.Err = provider.ErrProviderUnavailable
		}
		return wrapped
	}

	// Fallback: check error message for common cases
	errMsg := err.Error()
	switch {
	case strings.Contains(errMsg, "NoSuchKey") || strings.Contains(errMsg, "NotFound") || strings.Contains(errMsg, "404"):
		wrapped.Err = provider.ErrNotFound
	case strings.Contains(errMsg, "NoSuchBucket"):
		wrapped.Err = provider.ErrBucketNotFound
	case strings.Contains(errMsg, "AccessDenied") || strings.Contains(errMsg, "Forbidden") || strings.Contains(errMsg, "403"):
		wrapped.Err = provider.ErrAccessDenied
	case strings.Contains(errMsg, "InvalidAccessKeyId") || strings.Contains(errMsg, "SignatureDoesNotMatch"):
		wrapped.Err = provider.ErrInvalidCredentials
	case strings.Contains(errMsg, "SlowDown") || strings.Contains(errMsg, "Throttling") || strings.Contains(errMsg, "429"):
		wrapped.Err = provider.ErrThrottled
	case strings.Contains(errMsg, "ServiceUnavailable") || strings.Contains(errMsg, "503"):
		wrapped.Err = provider.ErrProviderUnavailable
	}

	return wrapped
}

// cleanETag removes surrounding quotes from an ETag value.
// S3 returns ETags with quotes, e.g., "d41d8cd98f00b204e9800998ecf8427e".
func cleanETag(etag string) string {
	return strings.Trim(etag, "\"")
}

// clampMaxKeys applies defaults and limits to maxKeys values.
// If requested is <= 0, uses providerDefault. Result is clamped to MaxAllowedKeys.
func clampMaxKeys(requested, providerDefault int) int {
	if requested <= 0 {
		requested = providerDefault
	}
	if requested > MaxAllowedKeys {
		return MaxAllowedKeys
	}
	return requested
}

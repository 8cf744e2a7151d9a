package s3

import (
	"bytes"
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/logging"
)

// Store implements the media object store on an S3-compatible service.
type Store struct {
	client     *s3.Client
	presign    *s3.PresignClient
	prefix     string
	publicBase string
}

// New resolves opts and builds a Store. Static credentials are used when
// AccessKey is set; otherwise the default AWS credential chain applies.
func New(ctx context.Context, opts Options) (*Store, error) {
	ep, err := Resolve(opts)
	if err != nil {
		return nil, errors.Wrap(errors.ErrConfig, "resolve s3 endpoint", err)
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(ep.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrConfig, "load aws config", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if ep.URL != "" {
			o.BaseEndpoint = aws.String(ep.URL)
		}
		o.UsePathStyle = ep.PathStyle
	})

	publicBase := ep.PublicURL
	if opts.PublicBaseURL != "" {
		publicBase = opts.PublicBaseURL
	}

	logging.Info("S3 object store ready", map[string]interface{}{
		"provider": opts.Provider,
		"region":   ep.Region,
		"endpoint": ep.URL,
	})

	return &Store{
		client:     client,
		presign:    s3.NewPresignClient(client),
		prefix:     opts.BucketPrefix,
		publicBase: strings.TrimSuffix(publicBase, "/"),
	}, nil
}

func (s *Store) bucket(name string) string {
	return s.prefix + name
}

// Upload puts data at bucket/path. With upsert unset the write is
// conditional on the key not existing.
func (s *Store) Upload(ctx context.Context, bucket, path string, data []byte, contentType string, upsert bool) error {
	in := &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket(bucket)),
		Key:          aws.String(path),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("max-age=3600"),
	}
	if !upsert {
		in.IfNoneMatch = aws.String("*")
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return errors.Wrap(codeFor(err), "put "+bucket+"/"+path, err)
	}
	return nil
}

// Remove deletes paths in one DeleteObjects call.
func (s *Store) Remove(ctx context.Context, bucket string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	ids := make([]s3types.ObjectIdentifier, len(paths))
	for i, p := range paths {
		ids[i] = s3types.ObjectIdentifier{Key: aws.String(p)}
	}
	out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket(bucket)),
		Delete: &s3types.Delete{Objects: ids, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return errors.Wrap(codeFor(err), "delete objects in "+bucket, err)
	}
	if len(out.Errors) > 0 {
		first := out.Errors[0]
		return errors.Newf(errors.ErrRemoteRejected, "delete %s: %s", aws.ToString(first.Key), aws.ToString(first.Message))
	}
	return nil
}

// PublicURL returns the path-style URL of an object.
func (s *Store) PublicURL(bucket, path string) string {
	return s.publicBase + "/" + s.bucket(bucket) + "/" + path
}

// SignedURL presigns a GET of bucket/path valid for expiresIn.
func (s *Store) SignedURL(ctx context.Context, bucket, path string, expiresIn time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket(bucket)),
		Key:    aws.String(path),
	}, s3.WithPresignExpires(expiresIn))
	if err != nil {
		return "", errors.Wrap(errors.ErrStorageURL, "presign "+bucket+"/"+path, err)
	}
	return req.URL, nil
}

// codeFor classifies SDK errors.
func codeFor(err error) errors.ErrorCode {
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return errors.ErrSyncAuthFailed
		case "PreconditionFailed", "NoSuchBucket":
			return errors.ErrRemoteRejected
		}
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return errors.ErrSyncTimeout
	}
	return errors.ErrRemoteUnavailable
}

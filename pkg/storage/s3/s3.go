// Package s3 provides an S3-backed blob backend for Amazon S3 and
// S3-compatible services (MinIO, Localstack).
//
// Blob URIs have the form s3://<bucket>/<key>. Object stores have no offset
// writes, so multipart parts are persisted as sibling objects
// (<key>.part-NNNNN) and concatenated through Save when the upload completes;
// CanUpdate reports false to route completion through that path.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/shelfd/shelfd/pkg/storage"
)

// uploadPartSize is the buffer size for streaming saves through the S3
// multipart API.
const uploadPartSize = 8 * 1024 * 1024

// Config holds configuration for the S3 backend.
type Config struct {
	// Region is the AWS region (optional, uses SDK default if empty).
	Region string `mapstructure:"region" yaml:"region"`

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// AccessKeyID/SecretAccessKey override the SDK credential chain when set.
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`

	// ForcePathStyle forces path-style addressing (required for Localstack/MinIO).
	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style"`

	// Algo overrides the checksum algorithm (default md5).
	Algo string `mapstructure:"algo" yaml:"algo"`
}

// NewClient creates an S3 client from config.
func NewClient(ctx context.Context, config Config) (*awss3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if config.Region != "" {
		opts = append(opts, awsconfig.WithRegion(config.Region))
	}
	if config.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*awss3.Options)
	if config.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
		})
	}
	if config.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.UsePathStyle = true
		})
	}

	return awss3.NewFromConfig(awsCfg, s3Opts...), nil
}

// Backend is a handle to a single S3 object.
type Backend struct {
	client *awss3.Client
	uri    string
	bucket string
	key    string
	size   int64
	algo   string
}

// Opener returns a storage.Opener creating handles over the given client.
func Opener(client *awss3.Client, algo string) storage.Opener {
	if algo == "" {
		algo = storage.DefaultAlgo
	}
	return func(uri string, size int64) storage.Backend {
		bucket, key := splitURI(uri)
		return &Backend{
			client: client,
			uri:    uri,
			bucket: bucket,
			key:    key,
			size:   size,
			algo:   algo,
		}
	}
}

// splitURI parses s3://bucket/key into its components.
func splitURI(uri string) (bucket, key string) {
	trimmed := strings.TrimPrefix(uri, "s3://")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		return trimmed[:i], trimmed[i+1:]
	}
	return trimmed, ""
}

func (b *Backend) partKey(partNumber int) string {
	return fmt.Sprintf("%s.part-%05d", b.key, partNumber)
}

func (b *Backend) Open(ctx context.Context) (io.ReadCloser, error) {
	out, err := b.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
	})
	if err != nil {
		return nil, &storage.Error{Op: "open", Err: err}
	}
	return out.Body, nil
}

// Initialize records the expected size. Object stores cannot truncate; the
// final object is written by Save during the multipart merge.
func (b *Backend) Initialize(ctx context.Context, size int64) (storage.Info, error) {
	b.size = size
	return storage.Info{URI: b.uri, Size: size, Readable: false, Writable: true}, nil
}

func (b *Backend) Save(ctx context.Context, r io.Reader, opts storage.SaveOptions) (storage.Info, error) {
	cr, err := storage.NewChecksumReader(r, b.algo, storage.ChecksumOptions{
		SizeLimit: opts.SizeLimit,
		Size:      opts.Size,
		Progress:  opts.Progress,
	})
	if err != nil {
		return storage.Info{}, &storage.Error{Op: "save", Err: err}
	}

	if err := b.uploadStream(ctx, cr); err != nil {
		return storage.Info{}, passOrWrap("save", err)
	}
	if err := cr.Verify(); err != nil {
		_ = b.Delete(ctx)
		return storage.Info{}, err
	}

	b.size = cr.BytesRead()
	return storage.Info{
		URI:      b.uri,
		Size:     cr.BytesRead(),
		Checksum: cr.Checksum(),
		Readable: true,
		Writable: false,
	}, nil
}

// uploadStream streams the reader into the object using the S3 multipart
// API, buffering one part at a time. Streams shorter than one part go through
// a single PutObject. On any failure the multipart upload is aborted so no
// partial object becomes visible.
func (b *Backend) uploadStream(ctx context.Context, r io.Reader) error {
	buf := make([]byte, uploadPartSize)

	n, err := io.ReadFull(r, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		_, putErr := b.client.PutObject(ctx, &awss3.PutObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(b.key),
			Body:   bytes.NewReader(buf[:n]),
		})
		return putErr
	}
	if err != nil {
		return err
	}

	created, err := b.client.CreateMultipartUpload(ctx, &awss3.CreateMultipartUploadInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
	})
	if err != nil {
		return err
	}
	uploadID := created.UploadId

	abort := func() {
		_, _ = b.client.AbortMultipartUpload(ctx, &awss3.AbortMultipartUploadInput{
			Bucket:   aws.String(b.bucket),
			Key:      aws.String(b.key),
			UploadId: uploadID,
		})
	}

	var completed []types.CompletedPart
	partNumber := int32(1)
	chunk := buf[:n]
	for {
		part, err := b.client.UploadPart(ctx, &awss3.UploadPartInput{
			Bucket:     aws.String(b.bucket),
			Key:        aws.String(b.key),
			UploadId:   uploadID,
			PartNumber: aws.Int32(partNumber),
			Body:       bytes.NewReader(chunk),
		})
		if err != nil {
			abort()
			return err
		}
		completed = append(completed, types.CompletedPart{
			ETag:       part.ETag,
			PartNumber: aws.Int32(partNumber),
		})
		partNumber++

		n, err = io.ReadFull(r, buf)
		if err == io.EOF {
			break
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			abort()
			return err
		}
		chunk = buf[:n]
		if n == 0 {
			break
		}
	}

	_, err = b.client.CompleteMultipartUpload(ctx, &awss3.CompleteMultipartUploadInput{
		Bucket:   aws.String(b.bucket),
		Key:      aws.String(b.key),
		UploadId: uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		abort()
	}
	return err
}

// Update persists one multipart part as a sibling object. The part index is
// derived from the seek offset and the upload's fixed part size. The stream
// is spooled to a temp file first so the SDK gets a seekable, known-length
// body.
func (b *Backend) Update(ctx context.Context, r io.Reader, seek int64, opts storage.UpdateOptions) (int64, string, error) {
	if opts.PartSize <= 0 {
		return 0, "", storage.ErrNotSupported
	}
	partNumber := int(seek / opts.PartSize)

	cr, err := storage.NewChecksumReader(r, b.algo, storage.ChecksumOptions{
		Size:   opts.Size,
		Offset: seek,
	})
	if err != nil {
		return 0, "", &storage.Error{Op: "update", Err: err}
	}

	tmp, err := os.CreateTemp("", "shelfd-s3-part-*")
	if err != nil {
		return 0, "", &storage.Error{Op: "update", Err: err}
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if _, err := io.Copy(tmp, cr); err != nil {
		return cr.BytesRead(), "", passOrWrap("update", err)
	}
	if err := cr.Verify(); err != nil {
		return cr.BytesRead(), "", err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return cr.BytesRead(), "", &storage.Error{Op: "update", Err: err}
	}

	_, err = b.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(b.partKey(partNumber)),
		Body:          tmp,
		ContentLength: aws.Int64(cr.BytesRead()),
	})
	if err != nil {
		return cr.BytesRead(), "", &storage.Error{Op: "update", Err: err}
	}

	return cr.BytesRead(), cr.Checksum(), nil
}

func (b *Backend) OpenPart(ctx context.Context, partNumber int) (io.ReadCloser, error) {
	out, err := b.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.partKey(partNumber)),
	})
	if err != nil {
		return nil, &storage.Error{Op: "open part", Err: err}
	}
	return out.Body, nil
}

// DeleteParts removes the sibling part objects left behind by Update.
func (b *Backend) DeleteParts(ctx context.Context) error {
	prefix := b.key + ".part-"
	list, err := b.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return &storage.Error{Op: "delete parts", Err: err}
	}
	for _, obj := range list.Contents {
		_, err := b.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    obj.Key,
		})
		if err != nil {
			return &storage.Error{Op: "delete parts", Err: err}
		}
	}
	return nil
}

// Delete removes the object and any leftover part objects.
func (b *Backend) Delete(ctx context.Context) error {
	_, err := b.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
	})
	if err != nil {
		return &storage.Error{Op: "delete", Err: err}
	}
	return b.DeleteParts(ctx)
}

func (b *Backend) Checksum(ctx context.Context, chunkSize int, progress storage.ProgressFunc) (string, error) {
	body, err := b.Open(ctx)
	if err != nil {
		return "", err
	}
	defer body.Close()

	sum, err := storage.ComputeChecksum(body, b.algo, chunkSize, progress)
	if err != nil {
		return "", &storage.Error{Op: "checksum", Err: err}
	}
	return sum, nil
}

func (b *Backend) CanUpdate() bool {
	return false
}

func passOrWrap(op string, err error) error {
	var fse *storage.FileSizeError
	var ufe *storage.UnexpectedFileSizeError
	if errors.As(err, &fse) || errors.As(err, &ufe) {
		return err
	}
	return &storage.Error{Op: op, Err: err}
}

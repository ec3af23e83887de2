// Package minio implements fileserver.FileServer against an S3-compatible
// object store using signed URLs.
//
// The store holds every payload; this process keeps only the token → object
// key bookkeeping. Downloads are uploaded to the bucket at registration time
// and handed out as presigned GET URLs; uploads are presigned PUT URLs whose
// objects are fetched and deleted on consumption.
package minio

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jonmmease/jons-mcp-file-server/internal/errs"
	"github.com/jonmmease/jons-mcp-file-server/internal/fileserver"
	"github.com/jonmmease/jons-mcp-file-server/internal/logger"
	"github.com/jonmmease/jons-mcp-file-server/internal/registry"
)

// Driver is the object-store implementation of fileserver.FileServer.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	client *miniogo.Client
	cfg    fileserver.S3Config
	log    *logger.Logger
	reg    *registry.Store
}

// New connects to the object store and returns a Driver. It pings the
// configured bucket before returning, so misconfiguration fails fast.
func New(ctx context.Context, cfg *fileserver.Config, log *logger.Logger) (*Driver, error) {
	if cfg.S3.Bucket == "" {
		return nil, errs.New(errs.ErrKindConfiguration, "s3 backend requires a bucket")
	}
	if log == nil {
		log = logger.Nop()
	}

	lookup := miniogo.BucketLookupAuto
	if cfg.S3.ForcePathStyle {
		lookup = miniogo.BucketLookupPath
	}
	client, err := miniogo.New(cfg.S3.Endpoint, &miniogo.Options{
		Creds:        resolveCredentials(cfg.S3),
		Secure:       cfg.S3.UseSSL,
		Region:       cfg.S3.Region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConfiguration, "failed to create s3 client", err)
	}

	d := &Driver{
		client: client,
		cfg:    cfg.S3,
		log:    log.With().Str("backend", "s3").Str("bucket", cfg.S3.Bucket).Logger(),
		reg:    registry.New(),
	}
	if err := d.ping(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// resolveCredentials picks the credential source: shared-credentials file,
// then static keys, then the AWS environment variables.
func resolveCredentials(cfg fileserver.S3Config) *credentials.Credentials {
	switch {
	case cfg.CredentialsFile != "":
		return credentials.NewFileAWSCredentials(cfg.CredentialsFile, "")
	case cfg.AccessKey != "":
		return credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	default:
		return credentials.NewEnvAWS()
	}
}

// ping verifies the bucket is reachable and exists.
func (d *Driver) ping(ctx context.Context) error {
	exists, err := d.client.BucketExists(ctx, d.cfg.Bucket)
	if err != nil {
		return mapError(err, "bucket unreachable")
	}
	if !exists {
		return errs.Newf(errs.ErrKindConfiguration, "bucket %q does not exist", d.cfg.Bucket)
	}
	return nil
}

// Running always reports true: signed URLs need no listener in this process.
func (d *Driver) Running() bool {
	return true
}

// RegisterDownload uploads the file to the bucket and returns a presigned
// GET URL for it.
func (d *Driver) RegisterDownload(ctx context.Context, localPath, filename string) (*fileserver.Download, error) {
	if err := fileserver.CheckLocalFile(localPath); err != nil {
		return nil, err
	}
	d.reg.Sweep()

	u := uuid.New()
	key := fmt.Sprintf("downloads/%s/%s", hex.EncodeToString(u[:]), fileserver.SafeFilename(filename))

	ctype := mime.TypeByExtension(filepath.Ext(localPath))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	if _, err := d.client.FPutObject(ctx, d.cfg.Bucket, key, localPath,
		miniogo.PutObjectOptions{ContentType: ctype}); err != nil {
		return nil, mapError(err, "failed to upload file")
	}

	reqParams := url.Values{}
	reqParams.Set("response-content-disposition",
		fmt.Sprintf(`attachment; filename="%s"`, url.PathEscape(filename)))
	signed, err := d.client.PresignedGetObject(ctx, d.cfg.Bucket, key, d.cfg.DownloadTTL, reqParams)
	if err != nil {
		return nil, mapError(err, "failed to presign download URL")
	}

	d.log.Debugf("registered download %s", key)
	return &fileserver.Download{
		URL:      signed.String(),
		Filename: filename,
		Curl:     fmt.Sprintf("curl -o '%s' '%s'", fileserver.SafeFilename(filename), signed),
		Token:    key,
	}, nil
}

// RegisterUpload records the token → object key mapping and presigns a PUT
// URL for the object. No payload ever passes through this process.
func (d *Driver) RegisterUpload(ctx context.Context, opts fileserver.UploadOptions) (*fileserver.Upload, error) {
	d.reg.Sweep()

	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = fileserver.DefaultMaxUploadBytes
	}
	tok := d.reg.Put(registry.Record{
		Kind:     registry.KindUpload,
		Filename: opts.Filename,
		MaxBytes: maxBytes,
	}, d.cfg.UploadTTL)

	signed, err := d.client.PresignedPutObject(ctx, d.cfg.Bucket, d.objectKey(tok, opts.Filename), d.cfg.UploadTTL)
	if err != nil {
		d.reg.Delete(tok)
		return nil, mapError(err, "failed to presign upload URL")
	}

	safe := fileserver.SafeFilename(opts.Filename)
	d.log.Debugf("registered upload %s (max %d bytes)", tok, maxBytes)
	return &fileserver.Upload{
		UploadURL: signed.String(),
		Curl:      fmt.Sprintf("curl -X PUT -H 'Content-Type: application/octet-stream' -T '%s' '%s'", safe, signed),
		Token:     tok,
		Method:    "PUT",
		ExpiresIn: d.cfg.UploadTTL,
	}, nil
}

// ResolveUpload re-signs the upload URL for the token's remaining lifetime.
func (d *Driver) ResolveUpload(ctx context.Context, tok string) (string, error) {
	rec, ok := d.reg.Get(tok)
	if !ok || rec.Kind != registry.KindUpload {
		return "", errs.New(errs.ErrKindNotFound, "unknown or expired upload token")
	}
	remaining := time.Until(rec.ExpiresAt)
	if remaining <= 0 {
		return "", errs.New(errs.ErrKindNotFound, "unknown or expired upload token")
	}
	signed, err := d.client.PresignedPutObject(ctx, d.cfg.Bucket, d.objectKey(tok, rec.Filename), remaining)
	if err != nil {
		return "", mapError(err, "failed to presign upload URL")
	}
	return signed.String(), nil
}

// ConsumeUpload checks whether the object landed in the bucket; if so it
// claims the registration, downloads the bytes, deletes the object, and
// returns the payload. One-time semantics match the localhost backend.
func (d *Driver) ConsumeUpload(ctx context.Context, tok string) ([]byte, error) {
	rec, ok := d.reg.Get(tok)
	if !ok || rec.Kind != registry.KindUpload {
		return nil, errs.New(errs.ErrKindNotFound, "unknown or expired upload token")
	}
	key := d.objectKey(tok, rec.Filename)

	stat, err := d.client.StatObject(ctx, d.cfg.Bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		mapped := mapError(err, "failed to stat uploaded object")
		if errs.IsNotFound(mapped) {
			// Client has not PUT anything yet; the registration survives.
			return nil, errs.New(errs.ErrKindNotFound, "upload not yet received")
		}
		return nil, mapped
	}

	// Signed PUT URLs cannot enforce a byte limit, so it is enforced here:
	// an oversized object is discarded and never becomes consumable.
	if rec.MaxBytes > 0 && stat.Size > rec.MaxBytes {
		d.reg.Delete(tok)
		if err := d.client.RemoveObject(ctx, d.cfg.Bucket, key, miniogo.RemoveObjectOptions{}); err != nil {
			d.log.WarnWith("failed to remove oversized object", err)
		}
		return nil, errs.Newf(errs.ErrKindPayloadTooLarge,
			"uploaded object is %d bytes, limit is %d", stat.Size, rec.MaxBytes)
	}

	// Claim the registration before downloading so two concurrent consumers
	// cannot both succeed.
	if _, ok := d.reg.Take(tok); !ok {
		return nil, errs.New(errs.ErrKindNotFound, "unknown or expired upload token")
	}

	obj, err := d.client.GetObject(ctx, d.cfg.Bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to download uploaded object")
	}
	defer obj.Close()
	body, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapError(err, "failed to read uploaded object")
	}

	if err := d.client.RemoveObject(ctx, d.cfg.Bucket, key, miniogo.RemoveObjectOptions{}); err != nil {
		d.log.WarnWith("failed to remove consumed object", err)
	}

	d.log.Debugf("consumed upload %s (%d bytes)", tok, len(body))
	return body, nil
}

// Close clears the registration bookkeeping. The SDK client itself holds no
// persistent connections.
func (d *Driver) Close() error {
	d.reg.Clear()
	return nil
}

// objectKey derives the bucket key for an upload token.
func (d *Driver) objectKey(tok, filename string) string {
	return fmt.Sprintf("uploads/%s/%s", tok, fileserver.SafeFilename(filename))
}

var _ fileserver.FileServer = (*Driver)(nil)

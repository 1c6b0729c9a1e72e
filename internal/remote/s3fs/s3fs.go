// Package s3fs binds the remote contract to S3 compatible object stores.
// The share of a locator is the bucket and its path is a key prefix.
package s3fs

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/yarkm13/sharewalk/internal/locator"
	"github.com/yarkm13/sharewalk/internal/logging"
	"github.com/yarkm13/sharewalk/internal/remote"
)

// Factory serves "s3" over TLS and "s3+http" in the clear.
type Factory struct {
	// Region is passed to the client; empty lets it discover the region.
	Region string
}

func (f *Factory) Accept(scheme string) bool { return scheme == "s3" || scheme == "s3+http" }

func (f *Factory) Name() string { return "s3" }

// Create builds a client. Username and password are the access key and the
// secret key; without them requests are anonymous.
func (f *Factory) Create(_ context.Context, loc *locator.Locator, creds remote.Credentials) (remote.Connector, error) {
	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(creds.Username, string(creds.Password), ""),
		Region: f.Region,
		Secure: loc.Scheme == "s3",
	}
	client, err := minio.New(loc.Server, opts)
	if err != nil {
		return nil, remote.Wrap(remote.ErrNoDevice, "dial", loc.Server, err)
	}
	logging.Debug("s3 client created", zap.String("endpoint", loc.Server), zap.Bool("secure", opts.Secure))
	return &Connector{client: client}, nil
}

type Connector struct {
	client *minio.Client
}

func (c *Connector) Close() error { return nil }

func (c *Connector) OpenDir(ctx context.Context, loc *locator.Locator) (remote.Dir, error) {
	if loc.Share == "" {
		buckets, err := c.client.ListBuckets(ctx)
		if err != nil {
			return nil, mapError("list buckets", loc.Server, err)
		}
		return &endpointDir{loc: loc, buckets: buckets}, nil
	}
	ok, err := c.client.BucketExists(ctx, loc.Share)
	if err != nil {
		return nil, mapError("bucket", loc.Share, err)
	}
	if !ok {
		return nil, remote.Wrap(remote.ErrNoDevice, "bucket", loc.Share, nil)
	}

	d := &bucketDir{client: c.client, loc: loc, bucket: loc.Share, prefix: keyPrefix(loc.Path)}
	if d.prefix == "" {
		return d, nil
	}
	isDir, err := d.hasPrefix(ctx, d.prefix)
	if err != nil {
		return nil, err
	}
	if !isDir {
		key := strings.TrimSuffix(d.prefix, "/")
		if _, err := c.client.StatObject(ctx, d.bucket, key, minio.StatObjectOptions{}); err == nil {
			return nil, remote.Wrap(remote.ErrNotDir, "opendir", loc.Redacted(), nil)
		}
		return nil, remote.Wrap(remote.ErrNotFound, "opendir", loc.Redacted(), nil)
	}
	return d, nil
}

// keyPrefix turns path segments into a key prefix ending in "/", or "" at
// the bucket root.
func keyPrefix(segs []string) string {
	if len(segs) == 0 {
		return ""
	}
	return strings.Join(segs, "/") + "/"
}

// childName returns the entry name of key listed under prefix, or "" for
// the prefix's own marker object.
func childName(prefix, key string) string {
	return strings.TrimSuffix(strings.TrimPrefix(key, prefix), "/")
}

// endpointDir lists the buckets of an endpoint as read when it was opened.
type endpointDir struct {
	loc     *locator.Locator
	buckets []minio.BucketInfo
}

func (d *endpointDir) Locator() *locator.Locator { return d.loc }

func (d *endpointDir) Close() error { return nil }

func (d *endpointDir) Entries(context.Context) ([]remote.Entry, error) {
	entries := make([]remote.Entry, 0, len(d.buckets))
	for _, b := range d.buckets {
		entries = append(entries, remote.Entry{Name: b.Name, Kind: remote.KindShare})
	}
	return entries, nil
}

func (d *endpointDir) Stat(_ context.Context, name string) (fs.FileInfo, error) {
	for _, b := range d.buckets {
		if b.Name == name {
			return remote.FileInfo{FName: name, FModTime: b.CreationDate.Local(), FIsDir: true}, nil
		}
	}
	return nil, remote.Wrap(remote.ErrNotFound, "stat", name, nil)
}

func (d *endpointDir) Open(_ context.Context, name string) (remote.File, error) {
	return nil, remote.Wrap(remote.ErrNotFound, "open", name, nil)
}

type bucketDir struct {
	client *minio.Client
	loc    *locator.Locator
	bucket string
	prefix string
	cache  map[string]remote.FileInfo
}

func (d *bucketDir) Locator() *locator.Locator { return d.loc }

func (d *bucketDir) Close() error { return nil }

func (d *bucketDir) hasPrefix(ctx context.Context, prefix string) (bool, error) {
	objects := d.client.ListObjects(ctx, d.bucket, minio.ListObjectsOptions{
		Prefix:  prefix,
		MaxKeys: 1,
	})
	obj, ok := <-objects
	if !ok {
		return false, nil
	}
	if obj.Err != nil {
		return false, mapError("list", d.bucket+"/"+prefix, obj.Err)
	}
	return true, nil
}

func (d *bucketDir) Entries(ctx context.Context) ([]remote.Entry, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.cache = make(map[string]remote.FileInfo)
	var entries []remote.Entry
	for obj := range d.client.ListObjects(ctx, d.bucket, minio.ListObjectsOptions{Prefix: d.prefix}) {
		if obj.Err != nil {
			return nil, mapError("list", d.bucket+"/"+d.prefix, obj.Err)
		}
		name := childName(d.prefix, obj.Key)
		if name == "" {
			continue
		}
		fi := remote.FileInfo{
			FName:    name,
			FSize:    obj.Size,
			FModTime: obj.LastModified.Local(),
			FIsDir:   strings.HasSuffix(obj.Key, "/"),
		}
		d.cache[name] = fi
		kind := remote.KindFile
		if fi.FIsDir {
			kind = remote.KindDir
		}
		entries = append(entries, remote.Entry{Name: name, Kind: kind})
	}
	return entries, nil
}

func (d *bucketDir) Stat(ctx context.Context, name string) (fs.FileInfo, error) {
	if fi, ok := d.cache[name]; ok {
		return fi, nil
	}
	info, err := d.client.StatObject(ctx, d.bucket, d.prefix+name, minio.StatObjectOptions{})
	if err == nil {
		return remote.FileInfo{FName: name, FSize: info.Size, FModTime: info.LastModified.Local()}, nil
	}
	if isDir, lerr := d.hasPrefix(ctx, d.prefix+name+"/"); lerr == nil && isDir {
		return remote.FileInfo{FName: name, FIsDir: true}, nil
	}
	return nil, mapError("stat", d.bucket+"/"+d.prefix+name, err)
}

func (d *bucketDir) Open(ctx context.Context, name string) (remote.File, error) {
	key := d.prefix + name
	obj, err := d.client.GetObject(ctx, d.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapError("open", d.bucket+"/"+key, err)
	}
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, mapError("open", d.bucket+"/"+key, err)
	}
	return &object{
		Object: obj,
		info:   remote.FileInfo{FName: name, FSize: info.Size, FModTime: info.LastModified.Local()},
	}, nil
}

type object struct {
	*minio.Object
	info remote.FileInfo
}

func (o *object) Stat() (fs.FileInfo, error) { return o.info, nil }

// mapError tags S3 error responses with the matching remote sentinel.
func mapError(op, p string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey":
		return remote.Wrap(remote.ErrNotFound, op, p, err)
	case "NoSuchBucket":
		return remote.Wrap(remote.ErrNoDevice, op, p, err)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return remote.Wrap(remote.ErrAccessDenied, op, p, err)
	}
	return fmt.Errorf("%s %s: %w", op, p, err)
}

package objects

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/awsui/internal/awsclient"
	"github.com/wolfeidau/awsui/internal/awsclient/awsfake"
)

func newTestService(t *testing.T) (*Service, *awsfake.S3) {
	t.Helper()
	fake := awsfake.NewS3()
	return NewService(fake, fake, Config{Region: "us-east-1", MaxUploadBytes: 1024, PageSize: 100}), fake
}

func TestService_Buckets(t *testing.T) {
	ctx := context.Background()
	svc, fake := newTestService(t)

	require.NoError(t, svc.CreateBucket(ctx, "zeta-bucket"))
	require.NoError(t, svc.CreateBucket(ctx, "alpha-bucket"))

	err := svc.CreateBucket(ctx, "alpha-bucket")
	require.ErrorIs(t, err, awsclient.ErrAlreadyExists)

	err = svc.CreateBucket(ctx, "Bad_Name")
	require.ErrorIs(t, err, awsclient.ErrInvalidInput)

	buckets, err := svc.ListBuckets(ctx)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	require.Equal(t, "alpha-bucket", buckets[0].Name)

	fake.Put("alpha-bucket", "a.txt", "text/plain", []byte("a"))
	err = svc.DeleteBucket(ctx, "alpha-bucket", false)
	require.ErrorIs(t, err, awsclient.ErrNotEmpty)

	require.NoError(t, svc.DeleteBucket(ctx, "alpha-bucket", true))
	require.False(t, fake.HasBucket("alpha-bucket"))

	err = svc.DeleteBucket(ctx, "missing-bucket", false)
	require.ErrorIs(t, err, awsclient.ErrNotFound)
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	svc, fake := newTestService(t)

	fake.Put("b", "docs/", "", nil)
	fake.Put("b", "docs/zeta.txt", "text/plain", []byte("z"))
	fake.Put("b", "docs/alpha.txt", "text/plain", []byte("aaaa"))
	fake.Put("b", "docs/img/cat.png", "image/png", []byte("png"))
	fake.Put("b", "docs/archive/old.txt", "text/plain", []byte("o"))
	fake.Put("b", "root.json", "application/json", []byte("{}"))

	listing, err := svc.List(ctx, "b", "docs", "", 0)
	require.NoError(t, err)
	require.Equal(t, "docs/", listing.Prefix)
	require.Empty(t, listing.NextCursor)

	names := make([]string, 0, len(listing.Objects))
	for _, o := range listing.Objects {
		names = append(names, o.Name)
	}
	// folders first, the docs/ marker is hidden
	require.Equal(t, []string{"archive", "img", "alpha.txt", "zeta.txt"}, names)
	require.True(t, listing.Objects[0].IsFolder)
	require.Equal(t, "docs/archive/", listing.Objects[0].Key)
	require.Equal(t, int64(4), listing.Objects[2].Size)
	require.Equal(t, "4 B", listing.Objects[2].SizeHuman)
	require.Equal(t, "docs/", listing.Objects[2].Dir)

	require.Equal(t, []Crumb{{Name: "b", Prefix: ""}, {Name: "docs", Prefix: "docs/"}}, listing.Breadcrumbs)
}

func TestService_List_pagination(t *testing.T) {
	ctx := context.Background()
	svc, fake := newTestService(t)

	for i := range 5 {
		fake.Put("b", fmt.Sprintf("file-%d.txt", i), "text/plain", []byte("x"))
	}

	var (
		seen   []string
		cursor string
	)
	for {
		listing, err := svc.List(ctx, "b", "", cursor, 2)
		require.NoError(t, err)
		for _, o := range listing.Objects {
			seen = append(seen, o.Key)
		}
		if listing.NextCursor == "" {
			break
		}
		cursor = listing.NextCursor
	}
	require.Len(t, seen, 5)

	_, err := svc.List(ctx, "b", "", "0OIl", 2)
	require.ErrorIs(t, err, awsclient.ErrInvalidInput)
}

func TestService_Keys(t *testing.T) {
	ctx := context.Background()
	svc, fake := newTestService(t)

	for i := range 5 {
		fake.Put("b", fmt.Sprintf("dir/%d.txt", i), "text/plain", nil)
	}
	fake.Put("b", "other.txt", "text/plain", nil)

	keys, err := svc.Keys(ctx, "b", "dir/", 0)
	require.NoError(t, err)
	require.Len(t, keys, 5)

	keys, err = svc.Keys(ctx, "b", "", 3)
	require.NoError(t, err)
	require.Len(t, keys, 3)
}

func TestService_HeadOpenPresign(t *testing.T) {
	ctx := context.Background()
	svc, fake := newTestService(t)

	fake.Put("b", "data/report.json", "binary/octet-stream", []byte(`{"a":1}`))

	info, err := svc.Head(ctx, "b", "data/report.json")
	require.NoError(t, err)
	require.Equal(t, "report.json", info.Name)
	require.Equal(t, "data/", info.Dir)
	require.Equal(t, int64(7), info.Size)
	// generic types are replaced by a guess from the name
	require.Equal(t, "application/json", info.ContentType)

	_, err = svc.Head(ctx, "b", "missing")
	require.ErrorIs(t, err, awsclient.ErrNotFound)

	obj, err := svc.Open(ctx, "b", "data/report.json", "")
	require.NoError(t, err)
	body, err := io.ReadAll(obj)
	require.NoError(t, err)
	require.NoError(t, obj.Close())
	require.Equal(t, `{"a":1}`, string(body))

	_, err = svc.Open(ctx, "b", "missing", "")
	require.ErrorIs(t, err, awsclient.ErrNotFound)

	url, err := svc.PresignGet(ctx, "b", "data/report.json", 0)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "http://s3.fake/b/data/report.json?"), url)
	require.Contains(t, url, "X-Amz-Expires=900")
}

func TestService_Upload(t *testing.T) {
	ctx := context.Background()
	svc, fake := newTestService(t)
	fake.AddBucket("b")

	res, err := svc.Upload(ctx, UploadInput{Bucket: "b", Key: "notes/readme.md", Body: strings.NewReader("# hi")})
	require.NoError(t, err)
	require.Equal(t, "notes/readme.md", res.Key)
	require.Equal(t, "text/markdown", res.ContentType)
	require.Equal(t, int64(4), res.Size)
	require.Equal(t, checksumCRC64NVME([]byte("# hi")), res.Checksum)

	data, ok := fake.Data("b", "notes/readme.md")
	require.True(t, ok)
	require.Equal(t, "# hi", string(data))

	res, err = svc.Upload(ctx, UploadInput{Bucket: "b", Key: "blob", Body: strings.NewReader("\x89PNG\r\n\x1a\n....")})
	require.NoError(t, err)
	require.Equal(t, "image/png", res.ContentType)

	// legal keys are stored verbatim
	for _, key := range []string{"a//b.txt", "./x.txt", "/rooted.txt", "dots/..a/b..c"} {
		res, err := svc.Upload(ctx, UploadInput{Bucket: "b", Key: key, Body: strings.NewReader("x")})
		require.NoError(t, err, key)
		require.Equal(t, key, res.Key)
		_, ok := fake.Data("b", key)
		require.True(t, ok, key)
	}

	for _, key := range []string{"", "../x", "notes/../../x", "notes/..", "dir/", strings.Repeat("k", 1025), "bad\xff"} {
		_, err = svc.Upload(ctx, UploadInput{Bucket: "b", Key: key, Body: strings.NewReader("x")})
		require.ErrorIs(t, err, awsclient.ErrInvalidInput, key)
	}

	_, err = svc.Upload(ctx, UploadInput{Bucket: "b", Key: "big.bin", Body: strings.NewReader(strings.Repeat("x", 1025))})
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestChecksumCRC64NVME(t *testing.T) {
	// base64 of the big endian digest is always 12 characters
	sum := checksumCRC64NVME([]byte("hello"))
	require.Len(t, sum, 12)
	require.NotEqual(t, sum, checksumCRC64NVME([]byte("hellp")))
}

func TestService_CreateFolder(t *testing.T) {
	ctx := context.Background()
	svc, fake := newTestService(t)
	fake.AddBucket("b")

	key, err := svc.CreateFolder(ctx, "b", "a/new")
	require.NoError(t, err)
	require.Equal(t, "a/new/", key)
	require.Contains(t, fake.Keys("b"), "a/new/")

	_, err = svc.CreateFolder(ctx, "b", "  ")
	require.ErrorIs(t, err, awsclient.ErrInvalidInput)

	_, err = svc.CreateFolder(ctx, "b", "")
	require.ErrorIs(t, err, awsclient.ErrInvalidInput)

	_, err = svc.CreateFolder(ctx, "b", "a/../b")
	require.ErrorIs(t, err, awsclient.ErrInvalidInput)

	key, err = svc.CreateFolder(ctx, "b", "a//b")
	require.NoError(t, err)
	require.Equal(t, "a//b/", key)
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	svc, fake := newTestService(t)

	fake.Put("b", "keep.txt", "", nil)
	fake.Put("b", "a.txt", "", nil)
	fake.Put("b", "dir/", "", nil)
	fake.Put("b", "dir/x.txt", "", nil)
	fake.Put("b", "dir/sub/y.txt", "", nil)

	n, err := svc.Delete(ctx, "b", []string{"a.txt", "dir/", ""})
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, []string{"keep.txt"}, fake.Keys("b"))
}

func TestService_Delete_batches(t *testing.T) {
	ctx := context.Background()
	svc, fake := newTestService(t)

	keys := make([]string, 0, 2500)
	for i := range 2500 {
		key := fmt.Sprintf("k/%04d", i)
		fake.Put("b", key, "", nil)
		keys = append(keys, key)
	}

	n, err := svc.Delete(ctx, "b", keys)
	require.NoError(t, err)
	require.Equal(t, 2500, n)
	require.Equal(t, 3, fake.Calls["DeleteObjects"])
	require.Empty(t, fake.Keys("b"))
}

func TestService_Delete_partialFailure(t *testing.T) {
	ctx := context.Background()
	svc, fake := newTestService(t)

	fake.Put("b", "a.txt", "", nil)
	fake.Put("b", "locked.txt", "", nil)
	fake.FailDeleteKeys["locked.txt"] = true

	n, err := svc.Delete(ctx, "b", []string{"a.txt", "locked.txt"})
	require.ErrorContains(t, err, "locked.txt")
	require.Equal(t, 1, n)
}

func TestService_Rename(t *testing.T) {
	ctx := context.Background()
	svc, fake := newTestService(t)

	fake.Put("b", "old name.txt", "text/plain", []byte("x"))
	fake.Put("b", "taken.txt", "text/plain", []byte("y"))

	n, err := svc.Rename(ctx, "b", "old name.txt", "new name.txt")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []string{"new name.txt", "taken.txt"}, fake.Keys("b"))

	_, err = svc.Rename(ctx, "b", "new name.txt", "taken.txt")
	require.ErrorIs(t, err, awsclient.ErrAlreadyExists)

	_, err = svc.Rename(ctx, "b", "taken.txt", "taken.txt")
	require.ErrorIs(t, err, awsclient.ErrInvalidInput)

	_, err = svc.Rename(ctx, "b", "taken.txt", "")
	require.ErrorIs(t, err, awsclient.ErrInvalidInput)

	_, err = svc.Rename(ctx, "b", "missing.txt", "other.txt")
	require.ErrorIs(t, err, awsclient.ErrNotFound)

	_, err = svc.Rename(ctx, "b", "taken.txt", "../escaped.txt")
	require.ErrorIs(t, err, awsclient.ErrInvalidInput)

	fake.Put("b", "a//b", "text/plain", []byte("z"))
	n, err = svc.Rename(ctx, "b", "a//b", "./c")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []string{"./c", "new name.txt", "taken.txt"}, fake.Keys("b"))
}

func TestService_RenameFolder(t *testing.T) {
	ctx := context.Background()
	svc, fake := newTestService(t)

	fake.Put("b", "src/", "", nil)
	fake.Put("b", "src/a.txt", "", []byte("a"))
	fake.Put("b", "src/deep/b.txt", "", []byte("b"))
	fake.Put("b", "existing/c.txt", "", []byte("c"))

	n, err := svc.Rename(ctx, "b", "src/", "dst")
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, []string{"dst/", "dst/a.txt", "dst/deep/b.txt", "existing/c.txt"}, fake.Keys("b"))

	_, err = svc.Rename(ctx, "b", "dst/", "existing/")
	require.ErrorIs(t, err, awsclient.ErrAlreadyExists)

	_, err = svc.Rename(ctx, "b", "dst/", "dst/inner/")
	require.ErrorIs(t, err, awsclient.ErrInvalidInput)
}

func TestValidateKey(t *testing.T) {
	for _, key := range []string{"a", "a//b", "./x", "/x", "a/.../b", "x..", "日本/語.txt"} {
		require.NoError(t, ValidateKey(key), key)
	}
	for _, key := range []string{"", "..", "../x", "a/../b", "a/..", strings.Repeat("k", 1025), "\xff"} {
		require.Error(t, ValidateKey(key), key)
	}
}

func TestCopySource(t *testing.T) {
	require.Equal(t, "b/dir/a%20b+c.txt", copySource("b", "dir/a b+c.txt"))

	// the fake resolves the escaped form back to the key
	fake := awsfake.NewS3()
	fake.Put("b", "a b.txt", "", []byte("x"))
	_, err := fake.CopyObject(context.Background(), &s3.CopyObjectInput{
		Bucket:     aws.String("b"),
		Key:        aws.String("c.txt"),
		CopySource: aws.String(copySource("b", "a b.txt")),
	})
	require.NoError(t, err)
}

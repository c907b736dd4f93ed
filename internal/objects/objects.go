package objects

import (
	"fmt"
	"net"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

// Bucket is a row of the bucket listing.
type Bucket struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Object is a row of an object listing. Folders are synthesised from common
// prefixes and carry no size.
type Object struct {
	Key          string    `json:"key"`
	Name         string    `json:"name"`
	Dir          string    `json:"dir"`
	IsFolder     bool      `json:"is_folder"`
	Size         int64     `json:"size"`
	SizeHuman    string    `json:"size_human"`
	LastModified time.Time `json:"last_modified"`
	ETag         string    `json:"etag"`
	StorageClass string    `json:"storage_class"`
}

// Crumb is one step of the breadcrumb trail above a listing.
type Crumb struct {
	Name   string `json:"name"`
	Prefix string `json:"prefix"`
}

// Listing is a page of objects under a prefix.
type Listing struct {
	Bucket      string   `json:"bucket"`
	Prefix      string   `json:"prefix"`
	Breadcrumbs []Crumb  `json:"breadcrumbs"`
	Objects     []Object `json:"objects"`
	NextCursor  string   `json:"next_cursor,omitempty"`
}

// ObjectInfo is the metadata of a single object.
type ObjectInfo struct {
	Bucket          string            `json:"bucket"`
	Key             string            `json:"key"`
	Name            string            `json:"name"`
	Dir             string            `json:"dir"`
	Size            int64             `json:"size"`
	SizeHuman       string            `json:"size_human"`
	ContentType     string            `json:"content_type"`
	ContentEncoding string            `json:"content_encoding,omitempty"`
	ETag            string            `json:"etag"`
	LastModified    time.Time         `json:"last_modified"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// SplitKey returns the parent prefix and base name of a key. Folder keys keep
// their trailing slash out of the name.
func SplitKey(key string) (dir, name string) {
	trimmed := strings.TrimSuffix(key, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx == -1 {
		return "", trimmed
	}
	return trimmed[:idx+1], trimmed[idx+1:]
}

// Breadcrumbs builds the trail from the bucket root down to prefix.
func Breadcrumbs(bucket, prefix string) []Crumb {
	crumbs := []Crumb{{Name: bucket, Prefix: ""}}
	if prefix == "" {
		return crumbs
	}

	var current strings.Builder
	for part := range strings.SplitSeq(strings.TrimSuffix(prefix, "/"), "/") {
		current.WriteString(part)
		current.WriteString("/")
		crumbs = append(crumbs, Crumb{Name: part, Prefix: current.String()})
	}
	return crumbs
}

// HumanSize formats a byte count with binary units.
func HumanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// ValidateBucketName applies the S3 general purpose bucket naming rules.
func ValidateBucketName(name string) error {
	if len(name) < 3 || len(name) > 63 {
		return fmt.Errorf("bucket name must be between 3 and 63 characters")
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '.' && r != '-' {
			return fmt.Errorf("bucket name may only contain lowercase letters, numbers, dots and hyphens")
		}
	}
	if !isAlnum(name[0]) || !isAlnum(name[len(name)-1]) {
		return fmt.Errorf("bucket name must begin and end with a letter or number")
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("bucket name must not contain two adjacent periods")
	}
	if net.ParseIP(name) != nil {
		return fmt.Errorf("bucket name must not be formatted as an IP address")
	}
	if strings.HasPrefix(name, "xn--") || strings.HasSuffix(name, "-s3alias") {
		return fmt.Errorf("bucket name uses a reserved prefix or suffix")
	}
	return nil
}

// maxKeyBytes is the S3 limit on the UTF-8 length of an object key.
const maxKeyBytes = 1024

// ValidateKey checks a user supplied object key. Keys are stored exactly as
// given, so "a//b" and "./x" stay distinct keys, but ".." segments are
// refused because they read as an escape from the current prefix.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("object key is required")
	}
	if len(key) > maxKeyBytes {
		return fmt.Errorf("object key is longer than %d bytes", maxKeyBytes)
	}
	if !utf8.ValidString(key) {
		return fmt.Errorf("object key must be valid UTF-8")
	}
	if slices.Contains(strings.Split(key, "/"), "..") {
		return fmt.Errorf("object key must not contain \"..\" segments")
	}
	return nil
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

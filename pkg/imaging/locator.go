package imaging

import (
	"fmt"
	"net/url"
	"strings"

	apperrors "github.com/ripixel/fitglue-vision/pkg/errors"
)

// Location is a resolved (bucket, object) pair.
type Location struct {
	Bucket string
	Object string
}

func (l Location) String() string {
	return fmt.Sprintf("gs://%s/%s", l.Bucket, l.Object)
}

// ParseLocator resolves one of the three accepted locator forms:
//
//	gs://bucket/path/to/object
//	https://<host>/v0/b/{bucket}/o/{urlEncodedPath}?alt=media
//	https://<host>/{bucket}/{path...}
//
// Anything else fails with ErrUnsupportedLocator.
func ParseLocator(ref string) (Location, error) {
	ref = strings.TrimSpace(ref)
	u, err := url.Parse(ref)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Location{}, unsupported(ref, "not an absolute URL")
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return parseHTTPLocator(ref, u)
	case "gs":
		object := strings.TrimPrefix(u.Path, "/")
		if object == "" {
			return Location{}, unsupported(ref, "missing object path")
		}
		return Location{Bucket: u.Host, Object: object}, nil
	default:
		return Location{}, unsupported(ref, "unsupported scheme "+u.Scheme)
	}
}

func parseHTTPLocator(ref string, u *url.URL) (Location, error) {
	// Segments are split on the escaped path so an encoded "/" stays inside its segment.
	segs := strings.Split(strings.TrimPrefix(u.EscapedPath(), "/"), "/")

	if len(segs) >= 2 && segs[0] == "v0" && segs[1] == "b" {
		if len(segs) != 5 || segs[3] != "o" || segs[2] == "" || segs[4] == "" {
			return Location{}, unsupported(ref, "malformed REST object path")
		}
		bucket, err := url.PathUnescape(segs[2])
		if err != nil {
			return Location{}, unsupported(ref, "bad bucket escape")
		}
		object, err := url.PathUnescape(segs[4])
		if err != nil {
			return Location{}, unsupported(ref, "bad object escape")
		}
		return Location{Bucket: bucket, Object: object}, nil
	}

	if len(segs) < 2 || segs[0] == "" {
		return Location{}, unsupported(ref, "missing bucket or object")
	}
	object, err := url.PathUnescape(strings.Join(segs[1:], "/"))
	if err != nil || object == "" || strings.HasSuffix(object, "/") {
		return Location{}, unsupported(ref, "missing object path")
	}
	return Location{Bucket: segs[0], Object: object}, nil
}

func unsupported(ref, reason string) error {
	return apperrors.ErrUnsupportedLocator.
		WithCause(fmt.Errorf("%s", reason)).
		WithMetadata("locator", ref)
}

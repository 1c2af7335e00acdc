package fileutil

import "github.com/pkg/xattr"

// OriginMetadata holds the extended attributes the file sink writes after
// closing a downloaded file (§4.8 step 6).
type OriginMetadata struct {
	OriginURL  string
	RefererURL string
	MimeType   string
	Charset    string
}

// WriteOriginXattrs sets the user.xdg.origin.url, user.xdg.referrer.url,
// user.mime_type, and user.charset extended attributes on path. Missing
// fields in meta are skipped rather than written empty. The first error
// stops the loop and is returned, leaving any attributes not yet set
// unwritten (map order decides which those are); xattr support varies by
// filesystem, so callers typically log and continue rather than fail the
// whole download over it.
func WriteOriginXattrs(path string, meta OriginMetadata) error {
	attrs := map[string]string{
		"user.xdg.origin.url":   meta.OriginURL,
		"user.xdg.referrer.url": meta.RefererURL,
		"user.mime_type":        meta.MimeType,
		"user.charset":          meta.Charset,
	}
	for name, value := range attrs {
		if value == "" {
			continue
		}
		if err := xattr.Set(path, name, []byte(value)); err != nil {
			return err
		}
	}
	return nil
}

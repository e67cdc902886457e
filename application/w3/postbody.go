package w3

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"w3client/application/util/uri"

	"github.com/pkg/errors"
)

type PostField struct {
	Name  string
	Value Value
	// IsFile marks Value as the path of a local file to attach.
	IsFile bool
}

// EncodedLen is the length of the field in a url-encoded body.
func (f PostField) EncodedLen() int {
	return uri.FormEscapedLen(f.Name) + 1 + uri.FormEscapedLen(f.Value.String())
}

func (f PostField) encode() string {
	return uri.FormEscape(f.Name) + "=" + uri.FormEscape(f.Value.String())
}

var dispositionEscaper = strings.NewReplacer("\"", "%22", "\r", "%0D", "\n", "%0A")

// partHead is everything of a multipart part before its content.
func (f PostField) partHead(boundary string) string {
	var b strings.Builder
	b.WriteString("--" + boundary + "\r\n")
	b.WriteString(`Content-Disposition: form-data; name="` + dispositionEscaper.Replace(f.Name) + `"`)
	if f.IsFile {
		b.WriteString(`; filename="` + dispositionEscaper.Replace(filepath.Base(f.Value.String())) + `"`)
		b.WriteString("\r\nContent-Type: application/octet-stream")
	}
	b.WriteString("\r\n\r\n")
	return b.String()
}

// contentLen is the length of the part content. Files are measured on disk.
func (f PostField) contentLen() (int, error) {
	if !f.IsFile {
		return len(f.Value.String()), nil
	}
	info, err := os.Stat(f.Value.String())
	if err != nil {
		return 0, errors.Wrap(err, "reading file info")
	}
	if !info.Mode().IsRegular() {
		return 0, errors.Errorf("%s is not a regular file", f.Value.String())
	}
	return int(info.Size()), nil
}

// PostBody is the ordered list of form fields sent with a POST.
type PostBody struct {
	fields []PostField
}

func (pb *PostBody) Add(name string, value Value) {
	pb.fields = append(pb.fields, PostField{Name: name, Value: value})
}

func (pb *PostBody) AddFile(name, path string) {
	pb.fields = append(pb.fields, PostField{Name: name, Value: Str(path), IsFile: true})
}

func (pb *PostBody) Clear() { pb.fields = nil }

func (pb *PostBody) Len() int { return len(pb.fields) }

func (pb *PostBody) Fields() []PostField { return append([]PostField(nil), pb.fields...) }

// EncodedLen is the exact length of the url-encoded body.
func (pb *PostBody) EncodedLen() int {
	if len(pb.fields) == 0 {
		return 0
	}

	n := 0
	for _, f := range pb.fields {
		n += f.EncodedLen() + 1
	}
	return n - 1 // No separator after the last field.
}

// EncodeInto writes the url-encoded body into buf.
func (pb *PostBody) EncodeInto(buf []byte) (int, error) {
	if need := pb.EncodedLen(); len(buf) < need {
		return 0, errors.Wrapf(ErrBufferTooSmall, "need %d bytes, have %d", need, len(buf))
	}

	n := 0
	for idx, f := range pb.fields {
		if idx > 0 {
			buf[n] = '&'
			n++
		}
		n += copy(buf[n:], f.encode())
	}
	return n, nil
}

// Encoded allocates and fills the url-encoded body.
func (pb *PostBody) Encoded() []byte {
	buf := make([]byte, pb.EncodedLen())
	n, _ := pb.EncodeInto(buf)
	return buf[:n]
}

func closingBoundary(boundary string) string { return "--" + boundary + "--\r\n" }

// MultipartLen is the exact length of the multipart body.
func (pb *PostBody) MultipartLen(boundary string) (int, error) {
	n := 0
	for _, f := range pb.fields {
		content, err := f.contentLen()
		if err != nil {
			return 0, errors.Wrapf(err, "measuring field %q", f.Name)
		}
		n += len(f.partHead(boundary)) + content + len(CRLF)
	}
	return n + len(closingBoundary(boundary)), nil
}

// EncodeMultipartInto writes the multipart body into buf. File contents are
// read from disk straight into buf.
func (pb *PostBody) EncodeMultipartInto(buf []byte, boundary string) (int, error) {
	need, err := pb.MultipartLen(boundary)
	if err != nil {
		return 0, err
	}
	if len(buf) < need {
		return 0, errors.Wrapf(ErrBufferTooSmall, "need %d bytes, have %d", need, len(buf))
	}

	n := 0
	for _, f := range pb.fields {
		n += copy(buf[n:], f.partHead(boundary))

		if f.IsFile {
			size, err := f.contentLen()
			if err != nil {
				return 0, errors.Wrapf(err, "measuring field %q", f.Name)
			}
			if n+size+len(CRLF) > need {
				return 0, errors.Errorf("file %s grew while encoding", f.Value.String())
			}
			if err := readFileInto(f.Value.String(), buf[n:n+size]); err != nil {
				return 0, errors.Wrapf(err, "attaching field %q", f.Name)
			}
			n += size
		} else {
			n += copy(buf[n:], f.Value.String())
		}

		n += copy(buf[n:], CRLF)
	}
	n += copy(buf[n:], closingBoundary(boundary))

	if n != need {
		return 0, errors.Errorf("multipart body changed while encoding: %d != %d", n, need)
	}
	return n, nil
}

// Multipart allocates and fills the multipart body.
func (pb *PostBody) Multipart(boundary string) ([]byte, error) {
	need, err := pb.MultipartLen(boundary)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, need)
	n, err := pb.EncodeMultipartInto(buf, boundary)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// CRLF terminates every multipart line.
const CRLF = "\r\n"

func readFileInto(path string, dst []byte) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening file")
	}
	defer f.Close()

	if _, err := io.ReadFull(f, dst); err != nil {
		return errors.Wrap(err, "reading file")
	}
	return nil
}

func multipartContentType(boundary string) string {
	return "multipart/form-data; boundary=" + boundary
}

func formatUint(v uint64) string { return strconv.FormatUint(v, 10) }

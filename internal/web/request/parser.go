// Package request decodes request bodies and multipart uploads into the raw
// values the parameter resolver normalizes.
package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/conduit-lang/waypoint/pkg/web/response"
)

// DefaultMaxBodySize is the body limit used when none is configured
const DefaultMaxBodySize int64 = 10 << 20

// Parser handles parsing of HTTP request bodies
type Parser struct {
	maxBodySize int64
}

// NewParser creates a new request parser with default settings
func NewParser() *Parser {
	return &Parser{maxBodySize: DefaultMaxBodySize}
}

// NewParserWithMaxSize creates a parser with a custom max body size
func NewParserWithMaxSize(maxBytes int64) *Parser {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodySize
	}
	return &Parser{maxBodySize: maxBytes}
}

// Parse decodes the request body. Structured parsing accepts JSON; plain
// parsing reads text bodies as a string. Forms are decoded in both modes into
// a map of strings (or string slices for repeated keys). limit overrides the
// parser's size limit when positive. A request without a body yields nil.
func (p *Parser) Parse(w http.ResponseWriter, r *http.Request, structured bool, limit int64) (any, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	if limit <= 0 {
		limit = p.maxBodySize
	}

	mediaType := MediaType(r)
	switch {
	case strings.HasPrefix(mediaType, "multipart/form-data"):
		return parseMultipart(r, limit)
	case mediaType == "application/x-www-form-urlencoded":
		return parseForm(w, r, limit)
	case structured && (mediaType == "" || IsJSON(mediaType)):
		return parseJSON(w, r, limit)
	case !structured && (mediaType == "" || strings.HasPrefix(mediaType, "text/")):
		return parseText(w, r, limit)
	default:
		return nil, nil
	}
}

// MediaType returns the lower-cased media type of the request, without parameters
func MediaType(r *http.Request) string {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

// IsJSON reports whether a media type carries JSON
func IsJSON(mediaType string) bool {
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func parseJSON(w http.ResponseWriter, r *http.Request, limit int64) (any, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	var body any
	if err := decoder.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, bodyError(err, "invalid JSON body")
	}
	if decoder.More() {
		return nil, response.BadRequest("request body contains multiple JSON values")
	}
	return body, nil
}

func parseText(w http.ResponseWriter, r *http.Request, limit int64) (any, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	defer r.Body.Close()

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, bodyError(err, "failed to read body")
	}
	if len(data) == 0 {
		return nil, nil
	}
	return string(data), nil
}

func parseForm(w http.ResponseWriter, r *http.Request, limit int64) (any, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	defer r.Body.Close()

	if err := r.ParseForm(); err != nil {
		return nil, bodyError(err, "invalid form data")
	}
	return valuesToMap(r.PostForm), nil
}

func parseMultipart(r *http.Request, limit int64) (any, error) {
	if r.MultipartForm == nil {
		if err := r.ParseMultipartForm(limit); err != nil {
			return nil, bodyError(err, "invalid multipart form")
		}
	}
	return valuesToMap(r.MultipartForm.Value), nil
}

// valuesToMap keeps single values as strings and repeated keys as slices
func valuesToMap(values url.Values) map[string]any {
	result := make(map[string]any, len(values))
	for key, vals := range values {
		if len(vals) == 1 {
			result[key] = vals[0]
		} else {
			result[key] = vals
		}
	}
	return result
}

func bodyError(err error, message string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return response.PayloadTooLarge(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
	}
	return response.BadRequest(fmt.Sprintf("%s: %v", message, err))
}

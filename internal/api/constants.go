package api

import "encoding/base64"

const (
	// defaultLoginRateLimit is login and registration attempts per minute per client.
	defaultLoginRateLimit = 10

	// defaultMaxCoverBytes is the raw cover size accepted when none is configured.
	defaultMaxCoverBytes = 10 << 20

	// bookFieldsAllowance covers the non-cover fields of a book body.
	bookFieldsAllowance = 256 << 10

	// CacheOneWeek is the Cache-Control value for hosted covers. Uploads get
	// a fresh name, so a URL never changes content.
	CacheOneWeek = "public, max-age=604800, immutable"
)

// bookBodyLimit is the request body cap for book create and edit: a base64
// cover of maxCover bytes plus the remaining fields.
func bookBodyLimit(maxCover int64) int64 {
	return int64(base64.StdEncoding.EncodedLen(int(maxCover))) + bookFieldsAllowance
}

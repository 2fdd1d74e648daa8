package middleware

import (
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// BrotliConfig tunes the Brotli middleware.
type BrotliConfig struct {
	Quality   int
	MinLength int
	// Skipper, when it returns true, leaves the response uncompressed.
	Skipper func(c *gin.Context) bool
}

// DefaultBrotliConfig compresses JSON bodies of at least 1 KiB. Question
// sets and result listings are the payloads that benefit.
var DefaultBrotliConfig = BrotliConfig{
	Quality:   brotli.DefaultCompression,
	MinLength: 1024,
}

// brotliWriter holds back the body until MinLength bytes are seen, then
// commits to either a compressed or a plain response.
type brotliWriter struct {
	gin.ResponseWriter
	quality   int
	minLength int
	buf       []byte
	enc       *brotli.Writer
	committed bool
}

func (bw *brotliWriter) Write(data []byte) (int, error) {
	if bw.committed {
		if bw.enc != nil {
			return bw.enc.Write(data)
		}
		return bw.ResponseWriter.Write(data)
	}

	bw.buf = append(bw.buf, data...)
	if len(bw.buf) < bw.minLength {
		return len(data), nil
	}
	if err := bw.commit(true); err != nil {
		return 0, err
	}
	return len(data), nil
}

func (bw *brotliWriter) WriteString(s string) (int, error) {
	return bw.Write([]byte(s))
}

// Flush commits whatever is buffered uncompressed and flushes the connection.
func (bw *brotliWriter) Flush() {
	if !bw.committed {
		_ = bw.commit(false)
	}
	if bw.enc != nil {
		_ = bw.enc.Flush()
	}
	bw.ResponseWriter.Flush()
}

func (bw *brotliWriter) commit(compress bool) error {
	bw.committed = true
	h := bw.ResponseWriter.Header()
	if compress && h.Get("Content-Encoding") == "" {
		h.Set("Content-Encoding", "br")
		h.Del("Content-Length")
		bw.enc = brotli.NewWriterLevel(bw.ResponseWriter, bw.quality)
		_, err := bw.enc.Write(bw.buf)
		bw.buf = nil
		return err
	}
	_, err := bw.ResponseWriter.Write(bw.buf)
	bw.buf = nil
	return err
}

func (bw *brotliWriter) finish() error {
	if !bw.committed {
		if len(bw.buf) == 0 {
			bw.committed = true
			return nil
		}
		return bw.commit(false)
	}
	if bw.enc != nil {
		return bw.enc.Close()
	}
	return nil
}

// Brotli compresses responses for clients that accept "br".
func Brotli() gin.HandlerFunc {
	return BrotliWithConfig(DefaultBrotliConfig)
}

// BrotliWithConfig is Brotli with explicit settings.
func BrotliWithConfig(cfg BrotliConfig) gin.HandlerFunc {
	if cfg.Quality < brotli.BestSpeed || cfg.Quality > brotli.BestCompression {
		cfg.Quality = brotli.DefaultCompression
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultBrotliConfig.MinLength
	}

	return func(c *gin.Context) {
		if isUpgrade(c) || (cfg.Skipper != nil && cfg.Skipper(c)) || !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")
		bw := &brotliWriter{
			ResponseWriter: c.Writer,
			quality:        cfg.Quality,
			minLength:      cfg.MinLength,
		}
		c.Writer = bw
		defer func() {
			if err := bw.finish(); err != nil {
				_ = c.Error(err)
			}
		}()

		c.Next()
	}
}

// isUpgrade reports WebSocket handshakes, which must reach the handler unwrapped.
func isUpgrade(c *gin.Context) bool {
	return strings.EqualFold(c.GetHeader("Upgrade"), "websocket")
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(enc), ";")
		if strings.EqualFold(name, "br") {
			return true
		}
	}
	return false
}

package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// How long the in-progress lock holds before the handler must have finished.
const provisionalLockTTL = 60 * time.Second

type idempEntry struct {
	InProgress bool   `json:"in_progress"`
	Code       int    `json:"code"`
	Body       []byte `json:"body"`
	BodySHA256 string `json:"body_sha256"`
	CreatedAt  int64  `json:"created_at_ms"`
}

type bodyRecorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

// Idempotency dedupes mutating requests on the Idempotency-Key header. A
// repeated key with the same body replays the recorded response; the same
// key with a different body is a conflict. Requests without the header pass
// through untouched.
func Idempotency(rdb *redis.Client, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		key := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		if key == "" {
			c.Next()
			return
		}
		if len(key) > 128 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_idempotency_key"})
			return
		}

		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		sum := sha256.Sum256(body)
		bhash := hex.EncodeToString(sum[:])

		userID := c.GetString("user_id")
		storeKey := "idem:" + c.Request.Method + ":" + c.FullPath() + ":" + userID + ":" + key

		entry := idempEntry{InProgress: true, BodySHA256: bhash, CreatedAt: time.Now().UnixMilli()}
		raw, _ := json.Marshal(entry)
		ok, err := rdb.SetNX(c.Request.Context(), storeKey, raw, provisionalLockTTL).Result()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "idempotency_store_unavailable"})
			return
		}
		if !ok {
			cur, err := loadEntry(c, rdb, storeKey)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "idempotency_store_unavailable"})
				return
			}
			if cur.BodySHA256 != bhash {
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "idempotency_key_reused"})
				return
			}
			if !cur.InProgress && cur.Code != 0 {
				c.Data(cur.Code, "application/json", cur.Body)
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "request_in_progress"})
			return
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		final := idempEntry{
			Code:       rec.Status(),
			Body:       rec.buf.Bytes(),
			BodySHA256: bhash,
			CreatedAt:  time.Now().UnixMilli(),
		}
		raw, _ = json.Marshal(final)
		_ = rdb.Set(c.Request.Context(), storeKey, raw, ttl).Err()
	}
}

func loadEntry(c *gin.Context, rdb *redis.Client, key string) (idempEntry, error) {
	var entry idempEntry
	raw, err := rdb.Get(c.Request.Context(), key).Bytes()
	if err != nil {
		return entry, err
	}
	err = json.Unmarshal(raw, &entry)
	return entry, err
}

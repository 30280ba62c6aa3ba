package alerts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// HourBucket returns the hour bucket used in time-scoped content hashes:
// floor(unix millis / one hour).
func HourBucket(now time.Time) int64 {
	return now.UnixMilli() / 3_600_000
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// PriceHash identifies a price alert: one per symbol per hour.
func PriceHash(symbol string, now time.Time) string {
	return hashString(fmt.Sprintf("price:%s:%d", symbol, HourBucket(now)))
}

// NewsHash identifies a news alert by article URL.
func NewsHash(url string) string {
	return hashString("news:" + url)
}

// SocialHash identifies a social-buzz alert: one per symbol per hour.
func SocialHash(symbol string, now time.Time) string {
	return hashString(fmt.Sprintf("social:%s:%d", symbol, HourBucket(now)))
}

// GenericHash identifies any other alert candidate.
func GenericHash(symbol, title, url string, now time.Time) string {
	return hashString(fmt.Sprintf("%s:%s:%s:%d", symbol, title, url, HourBucket(now)))
}

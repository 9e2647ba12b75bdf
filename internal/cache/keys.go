package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	userKeyPrefix    = "user:%s"
	profileKeyPrefix = "profile:%s"
	postKeyPrefix    = "post:%s"
	feedKeyPrefix    = "feed:%s:%d:%d"
)

const (
	UserTTL = 5 * time.Minute
	PostTTL = 30 * time.Minute
	FeedTTL = 30 * time.Second
	// Follower lists change out of band of profile invalidation, so cached
	// profiles expire quickly.
	ProfileTTL = time.Minute
)

// UserKey is keyed by the user's ObjectID hex.
func UserKey(userID string) string {
	return fmt.Sprintf(userKeyPrefix, userID)
}

// ProfileKey is keyed by username, which profile reads look up by.
func ProfileKey(username string) string {
	return fmt.Sprintf(profileKeyPrefix, username)
}

func PostKey(postID string) string {
	return fmt.Sprintf(postKeyPrefix, postID)
}

// FeedKey includes pagination so each page caches independently.
func FeedKey(userID string, limit, offset int) string {
	return fmt.Sprintf(feedKeyPrefix, userID, limit, offset)
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func InvalidateUser(ctx context.Context, userID, username string) {
	Invalidate(ctx, UserKey(userID), ProfileKey(username))
}

func InvalidatePost(ctx context.Context, postID string) {
	Invalidate(ctx, PostKey(postID))
}

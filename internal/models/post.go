// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxPostTextLen is the hard cap on post and reply text length.
const MaxPostTextLen = 500

// Post represents a post document in the Ripple application.
//
// Likes is a duplicate-free set of liker ObjectIDs maintained with
// $addToSet/$pull so concurrent toggles stay atomic per document.
type Post struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	PostedBy  primitive.ObjectID   `bson:"posted_by" json:"posted_by"`
	Text      string               `bson:"text" json:"text"`
	Img       string               `bson:"img,omitempty" json:"img,omitempty"`
	Likes     []primitive.ObjectID `bson:"likes" json:"likes"`
	Replies   []Reply              `bson:"replies" json:"replies"`
	CreatedAt time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time            `bson:"updated_at" json:"updated_at"`
}

// Reply is an embedded reply on a post. Username and UserProfilePic are
// denormalized copies of the author's display fields captured at reply time;
// they are not re-joined if the author later edits their profile.
type Reply struct {
	UserID         primitive.ObjectID `bson:"user_id" json:"user_id"`
	Text           string             `bson:"text" json:"text"`
	Username       string             `bson:"username" json:"username"`
	UserProfilePic string             `bson:"user_profile_pic,omitempty" json:"user_profile_pic"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}

// IsLikedBy reports whether the given user is in the post's likers set.
func (p *Post) IsLikedBy(userID primitive.ObjectID) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

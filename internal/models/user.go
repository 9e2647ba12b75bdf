// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a user document in the Ripple application.
//
// Followers and Following hold user ObjectIDs and are kept as symmetric
// complements across the two documents involved in a follow: A following B
// implies A is in B.Followers. Both sides are written inside a single
// MongoDB transaction so the relationship cannot end up one-sided.
type User struct {
	ID         primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	Name       string               `bson:"name" json:"name"`
	Username   string               `bson:"username" json:"username"`
	Email      string               `bson:"email" json:"email"`
	Password   string               `bson:"password" json:"-"`
	ProfilePic string               `bson:"profile_pic,omitempty" json:"profile_pic"`
	Bio        string               `bson:"bio,omitempty" json:"bio"`
	Followers  []primitive.ObjectID `bson:"followers" json:"followers"`
	Following  []primitive.ObjectID `bson:"following" json:"following"`
	CreatedAt  time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time            `bson:"updated_at" json:"updated_at"`
}

// IsFollowing reports whether the user currently follows the given target.
func (u *User) IsFollowing(target primitive.ObjectID) bool {
	for _, id := range u.Following {
		if id == target {
			return true
		}
	}
	return false
}

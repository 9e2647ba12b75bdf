// Package service implements the application's business logic.
package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"ripple/internal/cache"
	"ripple/internal/media"
	"ripple/internal/models"
	"ripple/internal/repository"
	"ripple/internal/validation"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// UserService implements profile and follow-graph operations.
type UserService struct {
	userRepo repository.UserRepository
	uploader media.Uploader
}

// UpdateProfileInput carries the optional fields of a profile update.
// Empty fields are left unchanged.
type UpdateProfileInput struct {
	UserID     primitive.ObjectID
	Name       string
	Username   string
	Email      string
	Password   string
	ProfilePic string
	Bio        string
}

func NewUserService(userRepo repository.UserRepository, uploader media.Uploader) *UserService {
	return &UserService{userRepo: userRepo, uploader: uploader}
}

// GetProfile looks a user up by username for public profile reads. Results
// are cached with the password hash stripped; the repository invalidates the
// entry whenever the profile is updated.
func (s *UserService) GetProfile(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	key := cache.ProfileKey(username)

	err := cache.Aside(ctx, key, &user, cache.ProfileTTL, func() error {
		fetched, err := s.userRepo.GetByUsername(ctx, username)
		if err != nil {
			return err
		}
		if fetched == nil {
			return models.NewNotFoundError("User", username)
		}
		fetched.Password = ""
		user = *fetched
		return nil
	})

	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile applies a partial update to the requesting user's own document.
func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	set := bson.M{}

	if in.Name != "" {
		user.Name = in.Name
		set["name"] = in.Name
	}
	if in.Username != "" && in.Username != user.Username {
		if err := validation.ValidateUsername(in.Username); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		set["username"] = in.Username
	}
	if in.Email != "" && in.Email != user.Email {
		if err := validation.ValidateEmail(in.Email); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Email = in.Email
		set["email"] = in.Email
	}
	if in.Password != "" {
		if err := validation.ValidatePassword(in.Password); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		set["password"] = string(hashed)
	}
	if in.Bio != "" {
		if utf8.RuneCountInString(in.Bio) > models.MaxPostTextLen {
			return nil, models.NewValidationError("Bio too long (max 500 characters)")
		}
		user.Bio = in.Bio
		set["bio"] = in.Bio
	}
	if in.ProfilePic != "" {
		pic := in.ProfilePic
		// Inline payloads go to the media store; plain URLs are stored as-is.
		if strings.HasPrefix(pic, "data:") && s.uploader != nil {
			uploaded, err := s.uploader.UploadDataURL(ctx, pic)
			if err != nil {
				return nil, err
			}
			pic = uploaded
		}
		user.ProfilePic = pic
		set["profile_pic"] = pic
	}

	if len(set) == 0 {
		return user, nil
	}

	if err := s.userRepo.UpdateFields(ctx, user.ID, user.Username, set); err != nil {
		return nil, err
	}
	if newName, ok := set["username"].(string); ok {
		user.Username = newName
	}

	return user, nil
}

// ToggleFollow flips the follow relationship between follower and target.
// Returns true when the call resulted in a follow, false for an unfollow.
func (s *UserService) ToggleFollow(ctx context.Context, follower, target primitive.ObjectID) (bool, error) {
	if follower == target {
		return false, models.NewValidationError("You cannot follow/unfollow yourself")
	}

	// Existence check on the target; a dangling id must 404, not silently
	// no-op.
	if _, err := s.userRepo.GetByID(ctx, target); err != nil {
		return false, err
	}

	current, err := s.userRepo.GetByID(ctx, follower)
	if err != nil {
		return false, err
	}

	if current.IsFollowing(target) {
		if err := s.userRepo.Unfollow(ctx, follower, target); err != nil {
			return false, err
		}
		return false, nil
	}

	if err := s.userRepo.Follow(ctx, follower, target); err != nil {
		return false, err
	}
	return true, nil
}

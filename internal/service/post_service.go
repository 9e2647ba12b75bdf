package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"ripple/internal/cache"
	"ripple/internal/featureflags"
	"ripple/internal/media"
	"ripple/internal/models"
	"ripple/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PostService implements post CRUD, like toggles, replies and the feed.
type PostService struct {
	postRepo repository.PostRepository
	userRepo repository.UserRepository
	uploader media.Uploader
	flags    *featureflags.Manager
}

// CreatePostInput carries a new post's fields. Img may be an inline data URL.
type CreatePostInput struct {
	PostedBy primitive.ObjectID
	Text     string
	Img      string
}

func NewPostService(postRepo repository.PostRepository, userRepo repository.UserRepository,
	uploader media.Uploader, flags *featureflags.Manager) *PostService {
	return &PostService{
		postRepo: postRepo,
		userRepo: userRepo,
		uploader: uploader,
		flags:    flags,
	}
}

func (s *PostService) Create(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, models.NewValidationError("Text is required")
	}
	// The cap counts characters, not bytes, so multibyte text is not
	// penalized.
	if utf8.RuneCountInString(text) > models.MaxPostTextLen {
		return nil, models.NewValidationError("Text must be less than 500 characters")
	}

	img := in.Img
	if strings.HasPrefix(img, "data:") && s.uploader != nil {
		uploaded, err := s.uploader.UploadDataURL(ctx, img)
		if err != nil {
			return nil, err
		}
		img = uploaded
	}

	post := &models.Post{
		PostedBy: in.PostedBy,
		Text:     text,
		Img:      img,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) Get(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, id)
}

// Delete removes a post if and only if the requester authored it.
func (s *PostService) Delete(ctx context.Context, postID, requester primitive.ObjectID) error {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.PostedBy != requester {
		return models.NewUnauthorizedError("Unauthorized to delete")
	}
	return s.postRepo.Delete(ctx, postID)
}

// ToggleLike flips the requester's membership in the post's likers set and
// returns the new state along with the refreshed post.
func (s *PostService) ToggleLike(ctx context.Context, postID, userID primitive.ObjectID) (bool, *models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return false, nil, err
	}

	liked := !post.IsLikedBy(userID)
	if liked {
		err = s.postRepo.Like(ctx, postID, userID)
	} else {
		err = s.postRepo.Unlike(ctx, postID, userID)
	}
	if err != nil {
		return false, nil, err
	}

	post, err = s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return false, nil, err
	}
	return liked, post, nil
}

// Reply appends a denormalized reply to the post, capturing the author's
// display name and picture at reply time.
func (s *PostService) Reply(ctx context.Context, postID, userID primitive.ObjectID, text string) (*models.Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, models.NewValidationError("Text is required")
	}
	if utf8.RuneCountInString(text) > models.MaxPostTextLen {
		return nil, models.NewValidationError("Text must be less than 500 characters")
	}

	author, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	reply := models.Reply{
		UserID:         userID,
		Text:           text,
		Username:       author.Username,
		UserProfilePic: author.ProfilePic,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.postRepo.AddReply(ctx, postID, reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// Feed returns posts authored by anyone the user follows, newest first.
// Result pages are briefly cached when the feed_cache flag is on for the user.
func (s *PostService) Feed(ctx context.Context, userID primitive.ObjectID, limit, offset int) ([]models.Post, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.flags.Enabled("feed_cache", userID.Hex()) {
		posts := []models.Post{}
		key := cache.FeedKey(userID.Hex(), limit, offset)
		err := cache.Aside(ctx, key, &posts, cache.FeedTTL, func() error {
			fetched, ferr := s.postRepo.Feed(ctx, user.Following, limit, offset)
			if ferr != nil {
				return ferr
			}
			posts = fetched
			return nil
		})
		if err != nil {
			return nil, err
		}
		return posts, nil
	}

	return s.postRepo.Feed(ctx, user.Following, limit, offset)
}

// GetByAuthorUsername returns a user's own posts for their profile page.
func (s *PostService) GetByAuthorUsername(ctx context.Context, username string, limit, offset int) ([]models.Post, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", username)
	}
	return s.postRepo.GetByAuthor(ctx, user.ID, limit, offset)
}

package repository

import (
	"context"
	"errors"
	"time"

	"ripple/internal/cache"
	"ripple/internal/database"
	"ripple/internal/models"
	"ripple/internal/observability"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	Like(ctx context.Context, postID, userID primitive.ObjectID) error
	Unlike(ctx context.Context, postID, userID primitive.ObjectID) error
	AddReply(ctx context.Context, postID primitive.ObjectID, reply models.Reply) error
	Feed(ctx context.Context, authors []primitive.ObjectID, limit, offset int) ([]models.Post, error)
	GetByAuthor(ctx context.Context, author primitive.ObjectID, limit, offset int) ([]models.Post, error)
}

type postRepository struct {
	col *mongo.Collection
}

// NewPostRepository returns a new PostRepository implementation.
func NewPostRepository(db *mongo.Database) PostRepository {
	return &postRepository{col: db.Collection(database.PostsCollection)}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.ObserveMongoQuery("insert_one", database.PostsCollection, time.Now())

	now := time.Now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now
	if post.Likes == nil {
		post.Likes = []primitive.ObjectID{}
	}
	if post.Replies == nil {
		post.Replies = []models.Reply{}
	}

	res, err := r.col.InsertOne(ctx, post)
	if err != nil {
		return models.NewInternalError(err)
	}
	post.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	var post models.Post
	key := cache.PostKey(id.Hex())

	err := cache.Aside(ctx, key, &post, cache.PostTTL, func() error {
		defer observability.ObserveMongoQuery("find_one", database.PostsCollection, time.Now())
		if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&post); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return models.NewNotFoundError("Post", id.Hex())
			}
			return models.NewInternalError(err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer observability.ObserveMongoQuery("delete_one", database.PostsCollection, time.Now())

	if _, err := r.col.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidatePost(ctx, id.Hex())
	return nil
}

// Like adds the user to the likers set. $addToSet makes the operation
// idempotent per user, so concurrent or repeated likes never duplicate.
func (r *postRepository) Like(ctx context.Context, postID, userID primitive.ObjectID) error {
	return r.updateLikes(ctx, "$addToSet", postID, userID)
}

// Unlike removes the user from the likers set; removal of an absent member
// is a no-op.
func (r *postRepository) Unlike(ctx context.Context, postID, userID primitive.ObjectID) error {
	return r.updateLikes(ctx, "$pull", postID, userID)
}

func (r *postRepository) updateLikes(ctx context.Context, op string, postID, userID primitive.ObjectID) error {
	defer observability.ObserveMongoQuery("update_one", database.PostsCollection, time.Now())

	res, err := r.col.UpdateByID(ctx, postID, bson.M{
		op:     bson.M{"likes": userID},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("Post", postID.Hex())
	}
	cache.InvalidatePost(ctx, postID.Hex())
	return nil
}

func (r *postRepository) AddReply(ctx context.Context, postID primitive.ObjectID, reply models.Reply) error {
	defer observability.ObserveMongoQuery("update_one", database.PostsCollection, time.Now())

	res, err := r.col.UpdateByID(ctx, postID, bson.M{
		"$push": bson.M{"replies": reply},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("Post", postID.Hex())
	}
	cache.InvalidatePost(ctx, postID.Hex())
	return nil
}

// Feed returns posts authored by any of the given users, newest first.
func (r *postRepository) Feed(ctx context.Context, authors []primitive.ObjectID, limit, offset int) ([]models.Post, error) {
	if len(authors) == 0 {
		return []models.Post{}, nil
	}
	return r.list(ctx, bson.M{"posted_by": bson.M{"$in": authors}}, limit, offset)
}

// GetByAuthor returns a single user's posts, newest first.
func (r *postRepository) GetByAuthor(ctx context.Context, author primitive.ObjectID, limit, offset int) ([]models.Post, error) {
	return r.list(ctx, bson.M{"posted_by": author}, limit, offset)
}

func (r *postRepository) list(ctx context.Context, filter bson.M, limit, offset int) ([]models.Post, error) {
	defer observability.ObserveMongoQuery("find", database.PostsCollection, time.Now())

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	defer cur.Close(ctx)

	posts := []models.Post{}
	if err := cur.All(ctx, &posts); err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"ripple/internal/cache"
	"ripple/internal/database"
	"ripple/internal/models"
	"ripple/internal/observability"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateFields(ctx context.Context, id primitive.ObjectID, username string, set bson.M) error
	Follow(ctx context.Context, follower, target primitive.ObjectID) error
	Unfollow(ctx context.Context, follower, target primitive.ObjectID) error
}

type userRepository struct {
	col *mongo.Collection
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *mongo.Database) UserRepository {
	return &userRepository{col: db.Collection(database.UsersCollection)}
}

func (r *userRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	key := cache.UserKey(id.Hex())

	err := cache.Aside(ctx, key, &user, cache.UserTTL, func() error {
		defer observability.ObserveMongoQuery("find_one", database.UsersCollection, time.Now())
		if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return models.NewNotFoundError("User", id.Hex())
			}
			return models.NewInternalError(err)
		}
		// The cached copy round-trips through JSON which omits the password
		// hash; callers needing it must use GetByUsername.
		user.Password = ""
		return nil
	})

	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByUsername returns (nil, nil) when no user matches, so callers can
// distinguish absence from storage failure. Never served from cache because
// login needs the stored password hash.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	defer observability.ObserveMongoQuery("find_one", database.UsersCollection, time.Now())

	var user models.User
	if err := r.col.FindOne(ctx, bson.M{"username": username}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	defer observability.ObserveMongoQuery("find_one", database.UsersCollection, time.Now())

	filter := bson.M{"$or": bson.A{
		bson.M{"username": username},
		bson.M{"email": email},
	}}
	var user models.User
	if err := r.col.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	defer observability.ObserveMongoQuery("insert_one", database.UsersCollection, time.Now())

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Followers == nil {
		user.Followers = []primitive.ObjectID{}
	}
	if user.Following == nil {
		user.Following = []primitive.ObjectID{}
	}

	res, err := r.col.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.NewValidationError("User already exists")
		}
		return models.NewInternalError(err)
	}
	user.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// UpdateFields applies a partial $set so the stored password hash never
// round-trips through the cache. username is the pre-update name, used for
// cache invalidation.
func (r *userRepository) UpdateFields(ctx context.Context, id primitive.ObjectID, username string, set bson.M) error {
	defer observability.ObserveMongoQuery("update_one", database.UsersCollection, time.Now())

	set["updated_at"] = time.Now().UTC()
	_, err := r.col.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.NewValidationError("Username or email already taken")
		}
		return models.NewInternalError(err)
	}

	cache.InvalidateUser(ctx, id.Hex(), username)
	if newName, ok := set["username"].(string); ok && newName != username {
		cache.Invalidate(ctx, cache.ProfileKey(newName))
	}
	return nil
}

func (r *userRepository) Follow(ctx context.Context, follower, target primitive.ObjectID) error {
	observability.FollowWrites.WithLabelValues("follow").Inc()
	return r.applyFollow(ctx, "$addToSet", follower, target)
}

func (r *userRepository) Unfollow(ctx context.Context, follower, target primitive.ObjectID) error {
	observability.FollowWrites.WithLabelValues("unfollow").Inc()
	return r.applyFollow(ctx, "$pull", follower, target)
}

// applyFollow updates both sides of the relationship inside a transaction so a
// crash cannot leave one-sided state. On deployments without replica sets
// (where Mongo rejects transactions) it falls back to sequential writes,
// which stay convergent because $addToSet and $pull are idempotent.
func (r *userRepository) applyFollow(ctx context.Context, op string, follower, target primitive.ObjectID) error {
	defer observability.ObserveMongoQuery("follow_txn", database.UsersCollection, time.Now())

	writeBoth := func(sc context.Context) error {
		if _, err := r.col.UpdateByID(sc, follower, bson.M{op: bson.M{"following": target}}); err != nil {
			return err
		}
		if _, err := r.col.UpdateByID(sc, target, bson.M{op: bson.M{"followers": follower}}); err != nil {
			return err
		}
		return nil
	}

	session, err := r.col.Database().Client().StartSession()
	if err != nil {
		return models.NewInternalError(err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, writeBoth(sc)
	})
	if err != nil && isTransactionUnsupported(err) {
		err = writeBoth(ctx)
	}
	if err != nil {
		return models.NewInternalError(err)
	}

	cache.Invalidate(ctx, cache.UserKey(follower.Hex()), cache.UserKey(target.Hex()))
	return nil
}

// Mongo rejects transactions outside replica sets with IllegalOperation.
const codeIllegalOperation = 20

func isTransactionUnsupported(err error) bool {
	if err == nil {
		return false
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == codeIllegalOperation {
		return true
	}
	// Older servers report the restriction without a stable code.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "transaction numbers are only allowed") ||
		strings.Contains(msg, "replica set")
}

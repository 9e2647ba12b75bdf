// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"ripple/internal/database"
	"ripple/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumPosts    int
	ShouldClean bool
	MaxDays     int
}

// DefaultPassword is the password assigned to every seeded account so that
// developers can log in as any of them.
const DefaultPassword = "password123"

// Run populates the database with fake users, follows, posts, likes and
// replies. It is intended for development environments only.
func Run(ctx context.Context, db *mongo.Database, opts Options) error {
	if opts.NumUsers <= 0 {
		opts.NumUsers = 25
	}
	if opts.NumPosts <= 0 {
		opts.NumPosts = 100
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 90
	}

	gofakeit.Seed(time.Now().UnixNano())
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	users := db.Collection(database.UsersCollection)
	posts := db.Collection(database.PostsCollection)

	if opts.ShouldClean {
		log.Println("Cleaning existing users and posts...")
		if _, err := posts.DeleteMany(ctx, bson.M{}); err != nil {
			return fmt.Errorf("failed to clean posts: %w", err)
		}
		if _, err := users.DeleteMany(ctx, bson.M{}); err != nil {
			return fmt.Errorf("failed to clean users: %w", err)
		}
	}

	f := &factory{rand: r, maxDays: opts.MaxDays}

	log.Printf("Creating %d users...", opts.NumUsers)
	seeded, err := f.createUsers(ctx, users, opts.NumUsers)
	if err != nil {
		return err
	}

	log.Println("Creating follow relationships...")
	if err := f.createFollows(ctx, users, seeded); err != nil {
		return err
	}

	log.Printf("Creating %d posts...", opts.NumPosts)
	if err := f.createPosts(ctx, posts, seeded, opts.NumPosts); err != nil {
		return err
	}

	log.Printf("Seeding complete: %d users, %d posts. All accounts use password %q.",
		opts.NumUsers, opts.NumPosts, DefaultPassword)
	return nil
}

// factory builds domain entities and persists them to the database.
type factory struct {
	rand    *rand.Rand
	maxDays int
}

// pastTime returns a timestamp spread over the last maxDays days so seeded
// feeds look organic rather than created all at once.
func (f *factory) pastTime() time.Time {
	daysBack := f.rand.Intn(f.maxDays)
	hoursBack := f.rand.Intn(24)
	minsBack := f.rand.Intn(60)
	return time.Now().Add(-time.Duration(daysBack)*24*time.Hour -
		time.Duration(hoursBack)*time.Hour -
		time.Duration(minsBack)*time.Minute)
}

func (f *factory) createUsers(ctx context.Context, coll *mongo.Collection, n int) ([]*models.User, error) {
	// bcrypt is deliberately slow; hash the shared password once
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash seed password: %w", err)
	}

	seeded := make([]*models.User, 0, n)
	docs := make([]interface{}, 0, n)
	for i := 0; i < n; i++ {
		createdAt := f.pastTime()
		user := &models.User{
			ID:         primitive.NewObjectID(),
			Name:       gofakeit.Name(),
			Username:   fmt.Sprintf("%s%d", gofakeit.Username(), f.rand.Intn(1000)),
			Email:      gofakeit.Email(),
			Password:   string(hash),
			ProfilePic: fmt.Sprintf("https://picsum.photos/seed/%s/200/200", gofakeit.UUID()),
			Bio:        gofakeit.Sentence(8),
			Followers:  []primitive.ObjectID{},
			Following:  []primitive.ObjectID{},
			CreatedAt:  createdAt,
			UpdatedAt:  createdAt,
		}
		seeded = append(seeded, user)
		docs = append(docs, user)
	}

	if _, err := coll.InsertMany(ctx, docs); err != nil {
		return nil, fmt.Errorf("failed to insert users: %w", err)
	}
	return seeded, nil
}

// createFollows gives each user a random set of accounts to follow and keeps
// the follower lists on the other side consistent.
func (f *factory) createFollows(ctx context.Context, coll *mongo.Collection, seeded []*models.User) error {
	if len(seeded) < 2 {
		return nil
	}

	for _, user := range seeded {
		numFollows := f.rand.Intn(len(seeded)/2 + 1)
		for j := 0; j < numFollows; j++ {
			target := seeded[f.rand.Intn(len(seeded))]
			if target.ID == user.ID || user.IsFollowing(target.ID) {
				continue
			}
			user.Following = append(user.Following, target.ID)
			target.Followers = append(target.Followers, user.ID)
		}
	}

	for _, user := range seeded {
		_, err := coll.UpdateByID(ctx, user.ID, bson.M{"$set": bson.M{
			"following": user.Following,
			"followers": user.Followers,
		}})
		if err != nil {
			return fmt.Errorf("failed to write follows for %s: %w", user.Username, err)
		}
	}
	return nil
}

func (f *factory) createPosts(ctx context.Context, coll *mongo.Collection, seeded []*models.User, n int) error {
	docs := make([]interface{}, 0, n)
	for i := 0; i < n; i++ {
		author := seeded[f.rand.Intn(len(seeded))]
		createdAt := f.pastTime()
		post := &models.Post{
			ID:        primitive.NewObjectID(),
			PostedBy:  author.ID,
			Text:      gofakeit.Sentence(6 + f.rand.Intn(20)),
			Likes:     []primitive.ObjectID{},
			Replies:   []models.Reply{},
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
		}

		// roughly a third of posts carry an image
		if f.rand.Intn(3) == 0 {
			post.Img = fmt.Sprintf("https://picsum.photos/seed/%s/800/800", gofakeit.UUID())
		}

		for _, liker := range f.pickUsers(seeded, f.rand.Intn(8)) {
			post.Likes = append(post.Likes, liker.ID)
		}

		for _, replier := range f.pickUsers(seeded, f.rand.Intn(4)) {
			post.Replies = append(post.Replies, models.Reply{
				UserID:         replier.ID,
				Text:           gofakeit.Sentence(4 + f.rand.Intn(10)),
				Username:       replier.Username,
				UserProfilePic: replier.ProfilePic,
				CreatedAt:      createdAt.Add(time.Duration(1+f.rand.Intn(120)) * time.Minute),
			})
		}

		docs = append(docs, post)
	}

	if _, err := coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert posts: %w", err)
	}
	return nil
}

// pickUsers returns up to n distinct users chosen at random.
func (f *factory) pickUsers(seeded []*models.User, n int) []*models.User {
	if n > len(seeded) {
		n = len(seeded)
	}
	picked := make([]*models.User, 0, n)
	seen := make(map[primitive.ObjectID]bool, n)
	for len(picked) < n {
		u := seeded[f.rand.Intn(len(seeded))]
		if seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		picked = append(picked, u)
	}
	return picked
}

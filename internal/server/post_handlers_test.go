package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ripple/internal/config"
	"ripple/internal/featureflags"
	"ripple/internal/models"
	"ripple/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MockPostRepository is a mock of the repository.PostRepository interface
type MockPostRepository struct {
	mock.Mock
}

func (m *MockPostRepository) Create(ctx context.Context, post *models.Post) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *MockPostRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *MockPostRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPostRepository) Like(ctx context.Context, postID, userID primitive.ObjectID) error {
	args := m.Called(ctx, postID, userID)
	return args.Error(0)
}

func (m *MockPostRepository) Unlike(ctx context.Context, postID, userID primitive.ObjectID) error {
	args := m.Called(ctx, postID, userID)
	return args.Error(0)
}

func (m *MockPostRepository) AddReply(ctx context.Context, postID primitive.ObjectID, reply models.Reply) error {
	args := m.Called(ctx, postID, reply)
	return args.Error(0)
}

func (m *MockPostRepository) Feed(ctx context.Context, authors []primitive.ObjectID, limit, offset int) ([]models.Post, error) {
	args := m.Called(ctx, authors, limit, offset)
	return args.Get(0).([]models.Post), args.Error(1)
}

func (m *MockPostRepository) GetByAuthor(ctx context.Context, author primitive.ObjectID, limit, offset int) ([]models.Post, error) {
	args := m.Called(ctx, author, limit, offset)
	return args.Get(0).([]models.Post), args.Error(1)
}

// newPostTestServer wires a Server around mocked repositories.
func newPostTestServer(postRepo *MockPostRepository, userRepo *MockUserRepository) *Server {
	flags := featureflags.NewManager("")
	return &Server{
		config:      &config.Config{JWTSecret: "test_secret"},
		userRepo:    userRepo,
		postRepo:    postRepo,
		userService: service.NewUserService(userRepo, nil),
		postService: service.NewPostService(postRepo, userRepo, nil, flags),
	}
}

func TestCreatePost(t *testing.T) {
	userID := primitive.NewObjectID()

	tests := []struct {
		name           string
		body           map[string]string
		mockSetup      func(m *MockPostRepository)
		expectedStatus int
	}{
		{
			name: "Success",
			body: map[string]string{
				"posted_by": userID.Hex(),
				"text":      "hello world",
			},
			mockSetup: func(m *MockPostRepository) {
				m.On("Create", mock.Anything, mock.Anything).Return(nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "Missing Text",
			body: map[string]string{
				"posted_by": userID.Hex(),
			},
			mockSetup:      func(m *MockPostRepository) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Text Too Long",
			body: map[string]string{
				"posted_by": userID.Hex(),
				"text":      strings.Repeat("a", models.MaxPostTextLen+1),
			},
			mockSetup:      func(m *MockPostRepository) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Multibyte Text Too Long",
			body: map[string]string{
				"posted_by": userID.Hex(),
				"text":      strings.Repeat("€", models.MaxPostTextLen+1),
			},
			mockSetup:      func(m *MockPostRepository) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Posting As Someone Else",
			body: map[string]string{
				"posted_by": primitive.NewObjectID().Hex(),
				"text":      "hello world",
			},
			mockSetup:      func(m *MockPostRepository) {},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "Invalid PostedBy",
			body: map[string]string{
				"posted_by": "not-hex",
				"text":      "hello world",
			},
			mockSetup:      func(m *MockPostRepository) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPosts := new(MockPostRepository)
			tt.mockSetup(mockPosts)

			s := newPostTestServer(mockPosts, new(MockUserRepository))
			app := newAuthedApp(userID)
			app.Post("/create", s.CreatePost)

			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest(http.MethodPost, "/create", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			assert.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			mockPosts.AssertExpectations(t)
		})
	}
}

// Text exactly at the length cap is accepted, counted in characters rather
// than bytes.
func TestCreatePostTextAtCap(t *testing.T) {
	userID := primitive.NewObjectID()

	for _, text := range []string{
		strings.Repeat("a", models.MaxPostTextLen),
		strings.Repeat("€", models.MaxPostTextLen),
	} {
		mockPosts := new(MockPostRepository)
		mockPosts.On("Create", mock.Anything, mock.Anything).Return(nil)

		s := newPostTestServer(mockPosts, new(MockUserRepository))
		app := newAuthedApp(userID)
		app.Post("/create", s.CreatePost)

		body, _ := json.Marshal(map[string]string{
			"posted_by": userID.Hex(),
			"text":      text,
		})
		req := httptest.NewRequest(http.MethodPost, "/create", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		assert.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	}
}

func TestGetPost(t *testing.T) {
	postID := primitive.NewObjectID()
	post := &models.Post{ID: postID, PostedBy: primitive.NewObjectID(), Text: "hello"}

	t.Run("Found", func(t *testing.T) {
		mockPosts := new(MockPostRepository)
		mockPosts.On("GetByID", mock.Anything, postID).Return(post, nil)

		s := newPostTestServer(mockPosts, new(MockUserRepository))
		app := fiber.New()
		app.Get("/:id", s.GetPost)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/"+postID.Hex(), nil))
		assert.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Not Found", func(t *testing.T) {
		mockPosts := new(MockPostRepository)
		mockPosts.On("GetByID", mock.Anything, postID).
			Return(nil, models.NewNotFoundError("Post", postID.Hex()))

		s := newPostTestServer(mockPosts, new(MockUserRepository))
		app := fiber.New()
		app.Get("/:id", s.GetPost)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/"+postID.Hex(), nil))
		assert.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Invalid ID", func(t *testing.T) {
		s := newPostTestServer(new(MockPostRepository), new(MockUserRepository))
		app := fiber.New()
		app.Get("/:id", s.GetPost)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/not-hex", nil))
		assert.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestDeletePost(t *testing.T) {
	authorID := primitive.NewObjectID()
	postID := primitive.NewObjectID()
	post := &models.Post{ID: postID, PostedBy: authorID, Text: "mine"}

	t.Run("Author Deletes", func(t *testing.T) {
		mockPosts := new(MockPostRepository)
		mockPosts.On("GetByID", mock.Anything, postID).Return(post, nil)
		mockPosts.On("Delete", mock.Anything, postID).Return(nil)

		s := newPostTestServer(mockPosts, new(MockUserRepository))
		app := newAuthedApp(authorID)
		app.Delete("/:id", s.DeletePost)

		resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/"+postID.Hex(), nil))
		assert.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockPosts.AssertExpectations(t)
	})

	t.Run("Non Author Rejected", func(t *testing.T) {
		mockPosts := new(MockPostRepository)
		mockPosts.On("GetByID", mock.Anything, postID).Return(post, nil)

		s := newPostTestServer(mockPosts, new(MockUserRepository))
		app := newAuthedApp(primitive.NewObjectID())
		app.Delete("/:id", s.DeletePost)

		resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/"+postID.Hex(), nil))
		assert.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		mockPosts.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}

func TestLikeUnlikePost(t *testing.T) {
	userID := primitive.NewObjectID()
	postID := primitive.NewObjectID()

	t.Run("Like", func(t *testing.T) {
		unliked := &models.Post{ID: postID, Text: "hello", Likes: []primitive.ObjectID{}}
		liked := &models.Post{ID: postID, Text: "hello", Likes: []primitive.ObjectID{userID}}

		mockPosts := new(MockPostRepository)
		mockPosts.On("GetByID", mock.Anything, postID).Return(unliked, nil).Once()
		mockPosts.On("Like", mock.Anything, postID, userID).Return(nil)
		mockPosts.On("GetByID", mock.Anything, postID).Return(liked, nil).Once()

		s := newPostTestServer(mockPosts, new(MockUserRepository))
		app := newAuthedApp(userID)
		app.Put("/like/:id", s.LikeUnlikePost)

		resp, err := app.Test(httptest.NewRequest(http.MethodPut, "/like/"+postID.Hex(), nil))
		assert.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "Post liked", body["message"])
		mockPosts.AssertExpectations(t)
	})

	t.Run("Unlike", func(t *testing.T) {
		liked := &models.Post{ID: postID, Text: "hello", Likes: []primitive.ObjectID{userID}}
		unliked := &models.Post{ID: postID, Text: "hello", Likes: []primitive.ObjectID{}}

		mockPosts := new(MockPostRepository)
		mockPosts.On("GetByID", mock.Anything, postID).Return(liked, nil).Once()
		mockPosts.On("Unlike", mock.Anything, postID, userID).Return(nil)
		mockPosts.On("GetByID", mock.Anything, postID).Return(unliked, nil).Once()

		s := newPostTestServer(mockPosts, new(MockUserRepository))
		app := newAuthedApp(userID)
		app.Put("/like/:id", s.LikeUnlikePost)

		resp, err := app.Test(httptest.NewRequest(http.MethodPut, "/like/"+postID.Hex(), nil))
		assert.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "Post unliked", body["message"])
		mockPosts.AssertExpectations(t)
	})
}

func TestReplyToPost(t *testing.T) {
	userID := primitive.NewObjectID()
	postID := primitive.NewObjectID()

	mockUsers := new(MockUserRepository)
	mockUsers.On("GetByID", mock.Anything, userID).Return(&models.User{
		ID:         userID,
		Username:   "replier",
		ProfilePic: "https://example.com/pic.webp",
	}, nil)

	mockPosts := new(MockPostRepository)
	mockPosts.On("AddReply", mock.Anything, postID, mock.MatchedBy(func(r models.Reply) bool {
		return r.UserID == userID && r.Username == "replier" && r.Text == "nice post"
	})).Return(nil)

	s := newPostTestServer(mockPosts, mockUsers)
	app := newAuthedApp(userID)
	app.Put("/reply/:id", s.ReplyToPost)

	body, _ := json.Marshal(map[string]string{"text": "nice post"})
	req := httptest.NewRequest(http.MethodPut, "/reply/"+postID.Hex(), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	assert.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var respBody map[string]any
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&respBody))
	reply := respBody["reply"].(map[string]any)
	assert.Equal(t, "replier", reply["username"])
	mockPosts.AssertExpectations(t)
}

func TestGetFeedPosts(t *testing.T) {
	userID := primitive.NewObjectID()
	followee := primitive.NewObjectID()

	mockUsers := new(MockUserRepository)
	mockUsers.On("GetByID", mock.Anything, userID).Return(&models.User{
		ID:        userID,
		Username:  "reader",
		Following: []primitive.ObjectID{followee},
	}, nil)

	feed := []models.Post{
		{ID: primitive.NewObjectID(), PostedBy: followee, Text: "newest"},
		{ID: primitive.NewObjectID(), PostedBy: followee, Text: "older"},
	}
	mockPosts := new(MockPostRepository)
	mockPosts.On("Feed", mock.Anything, []primitive.ObjectID{followee}, 20, 0).Return(feed, nil)

	s := newPostTestServer(mockPosts, mockUsers)
	app := newAuthedApp(userID)
	app.Get("/feed", s.GetFeedPosts)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/feed", nil))
	assert.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string][]models.Post
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body["feed_posts"], 2)
	assert.Equal(t, "newest", body["feed_posts"][0].Text)
	mockPosts.AssertExpectations(t)
}

func TestGetUserPosts(t *testing.T) {
	authorID := primitive.NewObjectID()

	t.Run("Found", func(t *testing.T) {
		mockUsers := new(MockUserRepository)
		mockUsers.On("GetByUsername", mock.Anything, "author").Return(&models.User{
			ID:       authorID,
			Username: "author",
		}, nil)

		mockPosts := new(MockPostRepository)
		mockPosts.On("GetByAuthor", mock.Anything, authorID, 20, 0).Return([]models.Post{
			{ID: primitive.NewObjectID(), PostedBy: authorID, Text: "mine"},
		}, nil)

		s := newPostTestServer(mockPosts, mockUsers)
		app := fiber.New()
		app.Get("/user/:username", s.GetUserPosts)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/user/author", nil))
		assert.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string][]models.Post
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Len(t, body["posts"], 1)
	})

	t.Run("Unknown Author", func(t *testing.T) {
		mockUsers := new(MockUserRepository)
		mockUsers.On("GetByUsername", mock.Anything, "ghost").Return(nil, nil)

		s := newPostTestServer(new(MockPostRepository), mockUsers)
		app := fiber.New()
		app.Get("/user/:username", s.GetUserPosts)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/user/ghost", nil))
		assert.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

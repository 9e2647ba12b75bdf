package server

import (
	"ripple/internal/models"
	"ripple/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CreatePost handles POST /api/posts/create
func (s *Server) CreatePost(c *fiber.Ctx) error {
	userID := currentUserID(c)

	var req struct {
		PostedBy string `json:"posted_by"`
		Text     string `json:"text"`
		Img      string `json:"img"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if req.PostedBy == "" || req.Text == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("PostedBy and text fields are required"))
	}

	postedBy, err := primitive.ObjectIDFromHex(req.PostedBy)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid posted_by"))
	}

	// The declared author must be the authenticated user.
	if postedBy != userID {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Unauthorized to post"))
	}

	post, err := s.postService.Create(c.Context(), service.CreatePostInput{
		PostedBy: postedBy,
		Text:     req.Text,
		Img:      req.Img,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Post created", "post": post})
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	postID, err := s.parseObjectID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.Get(c.Context(), postID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"post": post})
}

// DeletePost handles DELETE /api/posts/:id. Author-only hard delete.
func (s *Server) DeletePost(c *fiber.Ctx) error {
	userID := currentUserID(c)
	postID, err := s.parseObjectID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.Delete(c.Context(), postID, userID); err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Post deleted"})
}

// LikeUnlikePost handles PUT /api/posts/like/:id with toggle semantics.
func (s *Server) LikeUnlikePost(c *fiber.Ctx) error {
	userID := currentUserID(c)
	postID, err := s.parseObjectID(c, "id")
	if err != nil {
		return nil
	}

	liked, post, err := s.postService.ToggleLike(c.Context(), postID, userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	msg := "Post unliked"
	if liked {
		msg = "Post liked"
	}
	return c.JSON(fiber.Map{"message": msg, "post": post})
}

// ReplyToPost handles PUT /api/posts/reply/:id
func (s *Server) ReplyToPost(c *fiber.Ctx) error {
	userID := currentUserID(c)
	postID, err := s.parseObjectID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	reply, err := s.postService.Reply(c.Context(), postID, userID, req.Text)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Replied to post", "reply": reply})
}

// GetFeedPosts handles GET /api/posts/feed
func (s *Server) GetFeedPosts(c *fiber.Ctx) error {
	userID := currentUserID(c)
	page := parsePagination(c, 20)

	posts, err := s.postService.Feed(c.Context(), userID, page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"feed_posts": posts})
}

// GetUserPosts handles GET /api/posts/user/:username
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	username := c.Params("username")
	if username == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Username is required"))
	}

	page := parsePagination(c, 20)

	posts, err := s.postService.GetByAuthorUsername(c.Context(), username, page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"posts": posts})
}

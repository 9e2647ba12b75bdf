package server

import (
	"ripple/internal/models"
	"ripple/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetUserProfile handles GET /api/users/profile/:username
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	username := c.Params("username")
	if username == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Username is required"))
	}

	user, err := s.userService.GetProfile(c.Context(), username)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(user)
}

// FollowUnfollowUser handles POST /api/users/follow/:id with toggle semantics:
// already following removes the relationship, otherwise it is created.
func (s *Server) FollowUnfollowUser(c *fiber.Ctx) error {
	userID := currentUserID(c)
	targetID, err := s.parseObjectID(c, "id")
	if err != nil {
		return nil
	}

	followed, err := s.userService.ToggleFollow(c.Context(), userID, targetID)
	if err != nil {
		return respondServiceError(c, err)
	}

	msg := "User unfollowed"
	if followed {
		msg = "User followed"
	}
	return c.JSON(fiber.Map{"message": msg, "following": followed})
}

// UpdateUser handles PUT /api/users/update/:id. Users may only update their
// own document.
func (s *Server) UpdateUser(c *fiber.Ctx) error {
	userID := currentUserID(c)
	targetID, err := s.parseObjectID(c, "id")
	if err != nil {
		return nil
	}

	if targetID != userID {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("You are not authorized to update this user"))
	}

	var req struct {
		Name       string `json:"name"`
		Username   string `json:"username"`
		Email      string `json:"email"`
		Password   string `json:"password"`
		ProfilePic string `json:"profile_pic"`
		Bio        string `json:"bio"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.UpdateProfile(c.Context(), service.UpdateProfileInput{
		UserID:     userID,
		Name:       req.Name,
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		ProfilePic: req.ProfilePic,
		Bio:        req.Bio,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"message": "User updated", "user": user})
}

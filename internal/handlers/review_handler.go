package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/skilllink/skilllink-api/internal/services/rating"
	"github.com/skilllink/skilllink-api/internal/utils"
)

type ReviewHandler struct {
	Ratings *rating.RatingService
}

func NewReviewHandler(rs *rating.RatingService) *ReviewHandler {
	return &ReviewHandler{Ratings: rs}
}

func (h *ReviewHandler) Routes(r fiber.Router, g Guards) {
	rv := r.Group("/reviews")
	rv.Post("/add", With(g.User, h.Add)...)
	rv.Get("/worker/:id", h.ForWorker)
}

type addReviewReq struct {
	WorkerID         string `json:"workerId"`
	ServiceRequestID string `json:"serviceRequestId"`
	Rating           int    `json:"rating"`
	Comment          string `json:"comment"`
}

// Add: POST /api/reviews/add
func (h *ReviewHandler) Add(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	var req addReviewReq
	if err := parseBody(c, &req); err != nil {
		return err
	}
	workerID, err := uuid.Parse(strings.TrimSpace(req.WorkerID))
	if err != nil {
		return utils.BadRequest("Invalid worker id")
	}
	reqID, err := optionalUUID(req.ServiceRequestID)
	if err != nil {
		return utils.BadRequest("Invalid service request id")
	}

	review, err := h.Ratings.Add(c.UserContext(), p.ID, rating.AddInput{
		WorkerID:         workerID,
		ServiceRequestID: reqID,
		Rating:           req.Rating,
		Comment:          req.Comment,
	})
	if err != nil {
		return err
	}
	return created(c, "Review added successfully", review)
}

// ForWorker: GET /api/reviews/worker/:id
func (h *ReviewHandler) ForWorker(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id", "worker")
	if err != nil {
		return err
	}
	out, err := h.Ratings.ListForWorker(c.UserContext(), id)
	if err != nil {
		return err
	}
	return ok(c, "Reviews retrieved successfully", out)
}

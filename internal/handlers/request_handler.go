package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/skilllink/skilllink-api/internal/models"
	"github.com/skilllink/skilllink-api/internal/services/requests"
	"github.com/skilllink/skilllink-api/internal/utils"
)

type RequestHandler struct {
	Requests *requests.RequestService
}

func NewRequestHandler(rs *requests.RequestService) *RequestHandler {
	return &RequestHandler{Requests: rs}
}

func (h *RequestHandler) Routes(r fiber.Router, g Guards) {
	rq := r.Group("/requests")
	rq.Post("/", With(g.User, h.Create)...)
	rq.Get("/user", With(g.User, h.List)...)
	rq.Get("/worker/all", With(g.Worker, h.List)...)
	rq.Get("/:id", With(g.Any, h.Get)...)
	rq.Put("/:id/cancel", With(g.User, h.Cancel)...)
	rq.Put("/:id/accept", With(g.Worker, h.Accept)...)
	rq.Put("/:id/reject", With(g.Worker, h.Reject)...)
	rq.Put("/:id/complete", With(g.Worker, h.Complete)...)
	rq.Put("/:id/status", With(g.Any, h.UpdateStatus)...)
}

type createRequestReq struct {
	WorkerID      string   `json:"workerId"`
	ServiceID     string   `json:"serviceId"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Category      string   `json:"category"`
	Location      string   `json:"location"`
	Budget        *float64 `json:"budget"`
	Urgency       string   `json:"urgency"`
	ScheduledDate string   `json:"scheduledDate"`
}

type workerNotesReq struct {
	WorkerNotes string `json:"workerNotes"`
}

type statusReq struct {
	Status      string `json:"status"`
	WorkerNotes string `json:"workerNotes"`
}

// Create: POST /api/requests
func (h *RequestHandler) Create(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	var req createRequestReq
	if err := parseBody(c, &req); err != nil {
		return err
	}

	workerID, err := uuid.Parse(strings.TrimSpace(req.WorkerID))
	if err != nil {
		return utils.BadRequest("Invalid worker id")
	}
	serviceID, err := optionalUUID(req.ServiceID)
	if err != nil {
		return utils.BadRequest("Invalid service id")
	}
	scheduled, err := parseDate(req.ScheduledDate)
	if err != nil {
		return err
	}

	out, err := h.Requests.Create(c.UserContext(), p.ID, requests.CreateInput{
		WorkerID:      workerID,
		ServiceID:     serviceID,
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		Location:      req.Location,
		Budget:        req.Budget,
		Urgency:       models.Urgency(strings.ToLower(strings.TrimSpace(req.Urgency))),
		ScheduledDate: scheduled,
	})
	if err != nil {
		return err
	}
	return created(c, "Service request created successfully", out)
}

// List: GET /api/requests/user and /api/requests/worker/all, optional ?status.
func (h *RequestHandler) List(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	out, err := h.Requests.List(c.UserContext(), p, strings.TrimSpace(c.Query("status")))
	if err != nil {
		return err
	}
	return ok(c, "", out)
}

// Get: GET /api/requests/:id
func (h *RequestHandler) Get(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id", "request")
	if err != nil {
		return err
	}
	out, err := h.Requests.Get(c.UserContext(), p, id)
	if err != nil {
		return err
	}
	return ok(c, "", out)
}

func (h *RequestHandler) Accept(c *fiber.Ctx) error {
	p, id, notes, err := h.workerAction(c)
	if err != nil {
		return err
	}
	out, err := h.Requests.Accept(c.UserContext(), p.ID, id, notes)
	if err != nil {
		return err
	}
	return ok(c, "Request accepted successfully", out)
}

func (h *RequestHandler) Reject(c *fiber.Ctx) error {
	p, id, notes, err := h.workerAction(c)
	if err != nil {
		return err
	}
	out, err := h.Requests.Reject(c.UserContext(), p.ID, id, notes)
	if err != nil {
		return err
	}
	return ok(c, "Request rejected", out)
}

func (h *RequestHandler) Complete(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id", "request")
	if err != nil {
		return err
	}
	out, err := h.Requests.Complete(c.UserContext(), p.ID, id)
	if err != nil {
		return err
	}
	return ok(c, "Request marked as completed", out)
}

func (h *RequestHandler) Cancel(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id", "request")
	if err != nil {
		return err
	}
	out, err := h.Requests.Cancel(c.UserContext(), p.ID, id)
	if err != nil {
		return err
	}
	return ok(c, "Request cancelled successfully", out)
}

// UpdateStatus: PUT /api/requests/:id/status
func (h *RequestHandler) UpdateStatus(c *fiber.Ctx) error {
	p, err := getPrincipal(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id", "request")
	if err != nil {
		return err
	}
	var req statusReq
	if err := parseBody(c, &req); err != nil {
		return err
	}
	status := models.RequestStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if status == "" {
		return utils.BadRequest("Status is required")
	}
	out, err := h.Requests.UpdateStatus(c.UserContext(), p, id, status, req.WorkerNotes)
	if err != nil {
		return err
	}
	return ok(c, "Request status updated", out)
}

// workerAction reads the id param and the optional workerNotes body.
func (h *RequestHandler) workerAction(c *fiber.Ctx) (models.Principal, uuid.UUID, string, error) {
	p, err := getPrincipal(c)
	if err != nil {
		return p, uuid.Nil, "", err
	}
	id, err := paramUUID(c, "id", "request")
	if err != nil {
		return p, uuid.Nil, "", err
	}
	var body workerNotesReq
	if len(c.Body()) > 0 {
		if err := parseBody(c, &body); err != nil {
			return p, uuid.Nil, "", err
		}
	}
	return p, id, body.WorkerNotes, nil
}

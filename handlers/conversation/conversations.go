package conversation

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/courtline/courtline-api/model"
	"github.com/courtline/courtline-api/utils/middleware"
	"github.com/courtline/courtline-api/utils/response"
	"github.com/courtline/courtline-api/utils/validation"
)

// ConversationHandler handles the coach-student message threads. Every
// endpoint works for either principal; the side of the thread is always
// derived from the session, never from the request body.
type ConversationHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(db *gorm.DB) *ConversationHandler {
	return &ConversationHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// principal resolves the session to a sender type and principal id
func principal(c *fiber.Ctx) (model.SenderType, uint, bool) {
	if coach, ok := middleware.GetCoach(c); ok {
		return model.SenderCoach, coach.ID, true
	}
	if student, ok := middleware.GetStudent(c); ok {
		return model.SenderStudent, student.ID, true
	}
	return "", 0, false
}

// scoped returns the conversation query restricted to the principal's side
func (h *ConversationHandler) scoped(sender model.SenderType, principalID uint) *gorm.DB {
	if sender == model.SenderCoach {
		return h.db.Where("coach_id = ?", principalID)
	}
	return h.db.Where("student_id = ?", principalID)
}

// ListConversations handles GET /conversations, most recent activity first
func (h *ConversationHandler) ListConversations(c *fiber.Ctx) error {
	sender, principalID, ok := principal(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	query := h.scoped(sender, principalID).Model(&model.Conversation{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count conversations")
	}

	pagination := response.CalculatePagination(page, limit, total)
	offset := (pagination.CurrentPage - 1) * pagination.PerPage

	var conversations []model.Conversation
	if err := query.Preload("Student").
		Order("last_message_at DESC NULLS LAST").
		Limit(pagination.PerPage).
		Offset(offset).
		Find(&conversations).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch conversations")
	}

	return response.Paginated(c, conversations, pagination)
}

// GetConversation handles GET /conversations/:id. Reading the thread
// marks the other party's messages read and zeroes the reader's unread
// counter.
func (h *ConversationHandler) GetConversation(c *fiber.Ctx) error {
	sender, principalID, ok := principal(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var conversation model.Conversation
	if err := h.scoped(sender, principalID).
		Where("id = ?", c.Params("id")).
		First(&conversation).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Conversation not found")
		}
		return response.InternalServerError(c, "Failed to fetch conversation")
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	query := h.db.Model(&model.Message{}).Where("conversation_id = ?", conversation.ID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count messages")
	}

	pagination := response.CalculatePagination(page, limit, total)
	offset := (pagination.CurrentPage - 1) * pagination.PerPage

	var messages []model.Message
	if err := query.Order("created_at DESC").
		Limit(pagination.PerPage).
		Offset(offset).
		Find(&messages).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch messages")
	}

	// Mark the other side's messages read and reset our unread counter
	otherSender := model.SenderStudent
	unreadColumn := "coach_unread"
	if sender == model.SenderStudent {
		otherSender = model.SenderCoach
		unreadColumn = "student_unread"
	}

	now := time.Now()
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Message{}).
			Where("conversation_id = ? AND sender_type = ? AND read_at IS NULL",
				conversation.ID, otherSender).
			Update("read_at", now).Error; err != nil {
			return err
		}
		return tx.Model(&model.Conversation{}).
			Where("id = ?", conversation.ID).
			Update(unreadColumn, 0).Error
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to mark messages read")
	}

	return response.Paginated(c, fiber.Map{
		"conversation": conversation,
		"messages":     messages,
	}, pagination)
}

// SendMessageRequest represents a new message body
type SendMessageRequest struct {
	Body string `json:"body" validate:"required,min=1,max=5000"`
}

// SendMessage handles POST /conversations/:id/messages
func (h *ConversationHandler) SendMessage(c *fiber.Ctx) error {
	sender, principalID, ok := principal(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var conversation model.Conversation
	if err := h.scoped(sender, principalID).
		Where("id = ?", c.Params("id")).
		First(&conversation).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Conversation not found")
		}
		return response.InternalServerError(c, "Failed to fetch conversation")
	}

	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	message := model.Message{
		ConversationID: conversation.ID,
		SenderType:     sender,
		Body:           validation.SanitizeString(req.Body),
	}

	// The recipient's unread counter bumps in the same transaction
	recipientColumn := "student_unread"
	if sender == model.SenderStudent {
		recipientColumn = "coach_unread"
	}

	now := time.Now()
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&message).Error; err != nil {
			return err
		}
		return tx.Model(&model.Conversation{}).
			Where("id = ?", conversation.ID).
			Updates(map[string]interface{}{
				"last_message_at": now,
				recipientColumn:   gorm.Expr(recipientColumn+" + 1"),
			}).Error
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to send message")
	}

	return response.Created(c, message)
}

// GetOrCreateConversation handles GET /conversations/with/:targetId.
// For a coach the target is one of their students; for a student it is
// their own coach (the id must match). Idempotent against the unique
// (coach_id, student_id) pair.
func (h *ConversationHandler) GetOrCreateConversation(c *fiber.Ctx) error {
	sender, principalID, ok := principal(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	targetID, err := strconv.Atoi(c.Params("targetId"))
	if err != nil || targetID < 1 {
		return response.BadRequest(c, "Invalid target id")
	}

	var coachID, studentID uint
	if sender == model.SenderCoach {
		var student model.Student
		if err := h.db.Where("id = ? AND coach_id = ?", targetID, principalID).
			First(&student).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return response.NotFound(c, "Student not found")
			}
			return response.InternalServerError(c, "Failed to fetch student")
		}
		coachID, studentID = principalID, student.ID
	} else {
		var student model.Student
		if err := h.db.First(&student, principalID).Error; err != nil {
			return response.InternalServerError(c, "Failed to fetch student")
		}
		if uint(targetID) != student.CoachID {
			return response.NotFound(c, "Coach not found")
		}
		coachID, studentID = student.CoachID, principalID
	}

	var conversation model.Conversation
	err = h.db.Where("coach_id = ? AND student_id = ?", coachID, studentID).
		First(&conversation).Error
	if err == nil {
		return response.Success(c, conversation)
	}
	if err != gorm.ErrRecordNotFound {
		return response.InternalServerError(c, "Failed to fetch conversation")
	}

	conversation = model.Conversation{CoachID: coachID, StudentID: studentID}
	if err := h.db.Create(&conversation).Error; err != nil {
		// A racing request may have created the pair first
		if err := h.db.Where("coach_id = ? AND student_id = ?", coachID, studentID).
			First(&conversation).Error; err != nil {
			return response.InternalServerError(c, "Failed to create conversation")
		}
	}

	return response.Created(c, conversation)
}

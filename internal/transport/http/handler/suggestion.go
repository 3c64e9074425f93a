package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jordan1monts/COP3060FINAL/internal/app"
	"github.com/jordan1monts/COP3060FINAL/internal/model"
	"github.com/jordan1monts/COP3060FINAL/internal/transport/http/middleware"
	"github.com/jordan1monts/COP3060FINAL/internal/transport/http/response"
)

type SuggestionHandler struct {
	suggestionService *app.SuggestionService
}

type SuggestionRequest struct {
	Answers map[string]string `json:"answers"`
}

func NewSuggestionHandler(suggestionService *app.SuggestionService) *SuggestionHandler {
	return &SuggestionHandler{suggestionService: suggestionService}
}

func (h *SuggestionHandler) List(c *gin.Context) {
	userID, _ := getUserIDFromContext(c)

	suggestions, err := h.suggestionService.List(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list suggestions failed")
		return
	}

	payload := make([]gin.H, 0, len(suggestions))
	for i := range suggestions {
		payload = append(payload, suggestionPayload(&suggestions[i]))
	}
	response.OK(c, payload)
}

func (h *SuggestionHandler) Get(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	entryNumber, ok := parseEntryNumber(c)
	if !ok {
		return
	}

	suggestion, err := h.suggestionService.Get(userID, entryNumber)
	if err != nil {
		h.writeSuggestionError(c, entryNumber, err)
		return
	}
	response.OK(c, suggestionPayload(suggestion))
}

func (h *SuggestionHandler) Create(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req SuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	suggestion, err := h.suggestionService.Create(c.Request.Context(), userID, req.Answers)
	if err != nil {
		h.writeSuggestionError(c, 0, err)
		return
	}
	response.Created(c, suggestionPayload(suggestion))
}

func (h *SuggestionHandler) Update(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	entryNumber, ok := parseEntryNumber(c)
	if !ok {
		return
	}

	var req SuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	suggestion, err := h.suggestionService.Update(c.Request.Context(), userID, entryNumber, req.Answers)
	if err != nil {
		h.writeSuggestionError(c, entryNumber, err)
		return
	}
	response.OK(c, suggestionPayload(suggestion))
}

func (h *SuggestionHandler) Delete(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	entryNumber, ok := parseEntryNumber(c)
	if !ok {
		return
	}

	removed, err := h.suggestionService.Delete(c.Request.Context(), userID, entryNumber)
	if err != nil {
		h.writeSuggestionError(c, entryNumber, err)
		return
	}
	if !removed {
		response.Error(c, http.StatusNotFound, response.CodeSuggestionNotFound,
			fmt.Sprintf("suggestion not found with entry number: %d", entryNumber))
		return
	}
	response.OK(c, gin.H{"message": "suggestion deleted successfully"})
}

func (h *SuggestionHandler) writeSuggestionError(c *gin.Context, entryNumber int, err error) {
	switch {
	case errors.Is(err, app.ErrAnswersEmpty):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrIdentityRequired):
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, err.Error())
	case errors.Is(err, app.ErrForbidden):
		response.Error(c, http.StatusForbidden, response.CodeForbidden, err.Error())
	case errors.Is(err, app.ErrSuggestionNotFound):
		if entryNumber > 0 {
			response.Error(c, http.StatusNotFound, response.CodeSuggestionNotFound,
				fmt.Sprintf("suggestion not found with entry number: %d", entryNumber))
			return
		}
		response.Error(c, http.StatusNotFound, response.CodeSuggestionNotFound, err.Error())
	case errors.Is(err, app.ErrEntryConflict):
		response.Error(c, http.StatusConflict, response.CodeEntryConflict, err.Error())
	case errors.Is(err, app.ErrGeneration):
		response.Error(c, http.StatusBadGateway, response.CodeAIGeneration, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "suggestion operation failed")
	}
}

// suggestionPayload mirrors the JSON shape the frontend consumes: the entry
// number doubles as "id" because it is the record's identifier within a user.
func suggestionPayload(s *model.Suggestion) gin.H {
	return gin.H{
		"userId":          s.UserID,
		"entryNumber":     s.EntryNumber,
		"id":              s.EntryNumber,
		"answers":         s.Answers,
		"suggestions":     s.Suggestions,
		"externalApiData": s.ExternalAPIData,
		"createdAt":       s.CreatedAt,
	}
}

func parseEntryNumber(c *gin.Context) (int, bool) {
	entryNumber, err := strconv.Atoi(c.Param("entryNumber"))
	if err != nil || entryNumber <= 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid entry number")
		return 0, false
	}
	return entryNumber, true
}

func getUserIDFromContext(c *gin.Context) (uint, bool) {
	userIDAny, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	userID, ok := userIDAny.(uint)
	return userID, ok
}

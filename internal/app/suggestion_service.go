package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jordan1monts/COP3060FINAL/internal/model"
	"github.com/jordan1monts/COP3060FINAL/internal/repository"
)

var (
	ErrAnswersEmpty       = errors.New("answers cannot be empty")
	ErrIdentityRequired   = errors.New("session expired, please log in again")
	ErrForbidden          = errors.New("suggestion belongs to another user")
	ErrSuggestionNotFound = errors.New("suggestion not found")
	ErrGeneration         = errors.New("ai generation failed")
	ErrEntryConflict      = errors.New("entry number already taken")
)

// SuggestionStore is the key-value style persistence contract keyed by
// (userID, entryNumber). Insert must be conditional on the key: a second
// insert for the same key fails with repository.ErrDuplicateKey.
type SuggestionStore interface {
	ListByUserID(userID uint) ([]model.Suggestion, error)
	GetByUserIDAndEntryNumber(userID uint, entryNumber int) (*model.Suggestion, error)
	GetAnyByEntryNumber(entryNumber int) (*model.Suggestion, error)
	MaxEntryNumber(userID uint) (int, error)
	Insert(suggestion *model.Suggestion) error
	Update(suggestion *model.Suggestion) error
	Delete(userID uint, entryNumber int) (bool, error)
}

// Generator is the synchronous text-completion capability. Implementations
// make exactly one attempt; the service never substitutes fallback content
// for a failed generation.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

type AuditPublisher interface {
	Publish(ctx context.Context, audit model.GenerationAudit) error
}

type SuggestionListCache interface {
	GetList(ctx context.Context, userID uint) ([]model.Suggestion, bool, error)
	SetList(ctx context.Context, userID uint, suggestions []model.Suggestion) error
	DeleteList(ctx context.Context, userID uint) error
	MarkDirty(ctx context.Context, userID uint) error
	IsDirty(ctx context.Context, userID uint) (bool, error)
}

// SuggestionService owns the suggestion lifecycle: per-user entry numbering,
// ownership checks, AI orchestration and the all-or-nothing persistence rule.
// A caller identity of 0 means anonymous.
type SuggestionService struct {
	store     SuggestionStore
	generator Generator
	publisher AuditPublisher
	listCache SuggestionListCache
}

func NewSuggestionService(
	store SuggestionStore,
	generator Generator,
	publisher AuditPublisher,
	listCache SuggestionListCache,
) *SuggestionService {
	return &SuggestionService{
		store:     store,
		generator: generator,
		publisher: publisher,
		listCache: listCache,
	}
}

// List returns the caller's suggestions ordered by entry number. An anonymous
// caller gets an empty list, not an error.
func (s *SuggestionService) List(ctx context.Context, userID uint) ([]model.Suggestion, error) {
	if userID == 0 {
		return []model.Suggestion{}, nil
	}

	if s.listCache != nil {
		dirty, err := s.listCache.IsDirty(ctx, userID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.listCache.GetList(ctx, userID); cacheErr == nil && hit {
				return cached, nil
			}
		}
	}

	suggestions, err := s.store.ListByUserID(userID)
	if err != nil {
		return nil, err
	}
	if s.listCache != nil {
		if dirty, dirtyErr := s.listCache.IsDirty(ctx, userID); dirtyErr == nil && !dirty {
			_ = s.listCache.SetList(ctx, userID, suggestions)
		}
	}
	return suggestions, nil
}

func (s *SuggestionService) Get(callerID uint, entryNumber int) (*model.Suggestion, error) {
	if entryNumber <= 0 {
		return nil, ErrSuggestionNotFound
	}
	return s.resolve(callerID, entryNumber)
}

// Create allocates the caller's next entry number, generates suggestion text
// and inserts the record. The three steps are all-or-nothing: a generation
// failure writes nothing and consumes no number, and a concurrent create that
// took the same number first surfaces as ErrEntryConflict without a retry.
func (s *SuggestionService) Create(ctx context.Context, userID uint, answers map[string]string) (*model.Suggestion, error) {
	if userID == 0 {
		return nil, ErrIdentityRequired
	}
	if len(answers) == 0 {
		return nil, ErrAnswersEmpty
	}

	highest, err := s.store.MaxEntryNumber(userID)
	if err != nil {
		return nil, err
	}
	entryNumber := highest + 1

	text, err := s.generator.Complete(ctx, buildSuggestionPrompt(answers))
	if err != nil {
		s.audit(ctx, userID, entryNumber, model.AuditActionCreate, model.AuditStatusFailed, err.Error())
		return nil, fmt.Errorf("%w: %s", ErrGeneration, err)
	}

	suggestion := &model.Suggestion{
		UserID:          userID,
		EntryNumber:     entryNumber,
		Suggestions:     text,
		ExternalAPIData: s.providerMetadata(),
		CreatedAt:       time.Now(),
		Answers:         answers,
	}
	if err := s.store.Insert(suggestion); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrEntryConflict
		}
		return nil, err
	}

	s.invalidateList(ctx, userID)
	s.audit(ctx, userID, entryNumber, model.AuditActionCreate, model.AuditStatusSuccess, "")
	return suggestion, nil
}

// Update regenerates the text for new answers and replaces answers, text and
// provider metadata in place. Entry number, owner and created-at never
// change, and a generation failure leaves the stored record untouched.
func (s *SuggestionService) Update(ctx context.Context, callerID uint, entryNumber int, answers map[string]string) (*model.Suggestion, error) {
	if entryNumber <= 0 {
		return nil, ErrSuggestionNotFound
	}

	suggestion, err := s.resolve(callerID, entryNumber)
	if err != nil {
		return nil, err
	}
	if len(answers) == 0 {
		return nil, ErrAnswersEmpty
	}

	text, err := s.generator.Complete(ctx, buildSuggestionPrompt(answers))
	if err != nil {
		s.audit(ctx, suggestion.UserID, entryNumber, model.AuditActionUpdate, model.AuditStatusFailed, err.Error())
		return nil, fmt.Errorf("%w: %s", ErrGeneration, err)
	}

	suggestion.Answers = answers
	suggestion.Suggestions = text
	suggestion.ExternalAPIData = s.providerMetadata()
	if err := s.store.Update(suggestion); err != nil {
		return nil, err
	}

	s.invalidateList(ctx, suggestion.UserID)
	s.audit(ctx, suggestion.UserID, entryNumber, model.AuditActionUpdate, model.AuditStatusSuccess, "")
	return suggestion, nil
}

// Delete removes the record if it exists and reports whether anything was
// removed. Deleting a missing record is not an error; a known caller touching
// another user's record is.
func (s *SuggestionService) Delete(ctx context.Context, callerID uint, entryNumber int) (bool, error) {
	if entryNumber <= 0 {
		return false, nil
	}

	ownerID := callerID
	if callerID != 0 {
		owned, err := s.store.GetByUserIDAndEntryNumber(callerID, entryNumber)
		if err != nil {
			return false, err
		}
		if owned == nil {
			other, err := s.store.GetAnyByEntryNumber(entryNumber)
			if err != nil {
				return false, err
			}
			if other != nil {
				return false, ErrForbidden
			}
			return false, nil
		}
	} else {
		any, err := s.store.GetAnyByEntryNumber(entryNumber)
		if err != nil {
			return false, err
		}
		if any == nil {
			return false, nil
		}
		ownerID = any.UserID
	}

	removed, err := s.store.Delete(ownerID, entryNumber)
	if err != nil {
		return false, err
	}
	if removed {
		s.invalidateList(ctx, ownerID)
	}
	return removed, nil
}

// resolve finds the record for entryNumber and applies the ownership policy:
// a known caller may only see their own record, an anonymous caller gets
// whatever record carries that entry number.
func (s *SuggestionService) resolve(callerID uint, entryNumber int) (*model.Suggestion, error) {
	if callerID != 0 {
		owned, err := s.store.GetByUserIDAndEntryNumber(callerID, entryNumber)
		if err != nil {
			return nil, err
		}
		if owned != nil {
			return owned, nil
		}
		other, err := s.store.GetAnyByEntryNumber(entryNumber)
		if err != nil {
			return nil, err
		}
		if other != nil {
			return nil, ErrForbidden
		}
		return nil, ErrSuggestionNotFound
	}

	record, err := s.store.GetAnyByEntryNumber(entryNumber)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrSuggestionNotFound
	}
	return record, nil
}

func (s *SuggestionService) providerMetadata() string {
	raw, _ := json.Marshal(map[string]interface{}{
		"integration": "OpenAI ChatGPT API",
		"model":       s.generator.Model(),
		"status":      "success",
		"aiGenerated": true,
	})
	return string(raw)
}

// audit is fire-and-forget: the user-facing operation has already settled, so
// a broker failure is logged, never propagated.
func (s *SuggestionService) audit(ctx context.Context, userID uint, entryNumber int, action, status, detail string) {
	if s.publisher == nil {
		return
	}
	event := model.GenerationAudit{
		UserID:      userID,
		EntryNumber: entryNumber,
		Action:      action,
		Model:       s.generator.Model(),
		Status:      status,
		Detail:      detail,
		CreatedAt:   time.Now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Printf("publish generation audit failed: %v", err)
	}
}

func (s *SuggestionService) invalidateList(ctx context.Context, userID uint) {
	if s.listCache == nil {
		return
	}
	_ = s.listCache.MarkDirty(ctx, userID)
	_ = s.listCache.DeleteList(ctx, userID)
}

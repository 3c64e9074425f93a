package repository

import (
	"errors"
	"fmt"

	mysqldrv "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/jordan1monts/COP3060FINAL/internal/model"
)

// ErrDuplicateKey reports that an insert hit the (user_id, entry_number)
// primary key. The losing side of a concurrent create for the same user sees
// this instead of overwriting the winner's row.
var ErrDuplicateKey = errors.New("duplicate suggestion key")

type SuggestionRepository struct {
	db *gorm.DB
}

func NewSuggestionRepository(db *gorm.DB) *SuggestionRepository {
	return &SuggestionRepository{db: db}
}

func (r *SuggestionRepository) ListByUserID(userID uint) ([]model.Suggestion, error) {
	var suggestions []model.Suggestion
	if err := r.db.Where("user_id = ?", userID).Order("entry_number ASC").Find(&suggestions).Error; err != nil {
		return nil, fmt.Errorf("list suggestions failed: %w", err)
	}
	if err := r.attachAnswers(userID, suggestions); err != nil {
		return nil, err
	}
	return suggestions, nil
}

func (r *SuggestionRepository) GetByUserIDAndEntryNumber(userID uint, entryNumber int) (*model.Suggestion, error) {
	var suggestion model.Suggestion
	err := r.db.Where("user_id = ? AND entry_number = ?", userID, entryNumber).First(&suggestion).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get suggestion failed: %w", err)
	}
	suggestion.Answers, err = r.answersFor(userID, entryNumber)
	if err != nil {
		return nil, err
	}
	return &suggestion, nil
}

// GetAnyByEntryNumber resolves an entry number without an owner, for the
// anonymous-caller read path. Lowest user id wins when several users hold the
// same entry number.
func (r *SuggestionRepository) GetAnyByEntryNumber(entryNumber int) (*model.Suggestion, error) {
	var suggestion model.Suggestion
	err := r.db.Where("entry_number = ?", entryNumber).Order("user_id ASC").First(&suggestion).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get suggestion by entry number failed: %w", err)
	}
	suggestion.Answers, err = r.answersFor(suggestion.UserID, suggestion.EntryNumber)
	if err != nil {
		return nil, err
	}
	return &suggestion, nil
}

func (r *SuggestionRepository) MaxEntryNumber(userID uint) (int, error) {
	var highest int
	err := r.db.Model(&model.Suggestion{}).
		Where("user_id = ?", userID).
		Select("COALESCE(MAX(entry_number), 0)").
		Scan(&highest).Error
	if err != nil {
		return 0, fmt.Errorf("query max entry number failed: %w", err)
	}
	return highest, nil
}

// Insert writes the suggestion row and its answer rows in one transaction.
// The composite primary key makes the row insert conditional: a concurrent
// create that already took the same entry number surfaces as ErrDuplicateKey
// and nothing from this attempt is kept.
func (r *SuggestionRepository) Insert(suggestion *model.Suggestion) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(suggestion).Error; err != nil {
			return err
		}
		return tx.Create(answerRows(suggestion)).Error
	})
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("insert suggestion failed: %w", err)
	}
	return nil
}

// Update replaces the generated text, provider metadata and answer rows of an
// existing suggestion. The key and created_at are left alone.
func (r *SuggestionRepository) Update(suggestion *model.Suggestion) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Suggestion{}).
			Where("user_id = ? AND entry_number = ?", suggestion.UserID, suggestion.EntryNumber).
			Updates(map[string]interface{}{
				"suggestions":       suggestion.Suggestions,
				"external_api_data": suggestion.ExternalAPIData,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Where("user_id = ? AND entry_number = ?", suggestion.UserID, suggestion.EntryNumber).
			Delete(&model.SuggestionAnswer{}).Error; err != nil {
			return err
		}
		return tx.Create(answerRows(suggestion)).Error
	})
	if err != nil {
		return fmt.Errorf("update suggestion failed: %w", err)
	}
	return nil
}

func (r *SuggestionRepository) Delete(userID uint, entryNumber int) (bool, error) {
	removed := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("user_id = ? AND entry_number = ?", userID, entryNumber).
			Delete(&model.Suggestion{})
		if result.Error != nil {
			return result.Error
		}
		removed = result.RowsAffected > 0
		return tx.Where("user_id = ? AND entry_number = ?", userID, entryNumber).
			Delete(&model.SuggestionAnswer{}).Error
	})
	if err != nil {
		return false, fmt.Errorf("delete suggestion failed: %w", err)
	}
	return removed, nil
}

func (r *SuggestionRepository) attachAnswers(userID uint, suggestions []model.Suggestion) error {
	if len(suggestions) == 0 {
		return nil
	}

	var rows []model.SuggestionAnswer
	if err := r.db.Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return fmt.Errorf("load suggestion answers failed: %w", err)
	}

	byEntry := make(map[int]map[string]string)
	for _, row := range rows {
		if byEntry[row.EntryNumber] == nil {
			byEntry[row.EntryNumber] = make(map[string]string)
		}
		byEntry[row.EntryNumber][row.AnswerKey] = row.AnswerValue
	}
	for i := range suggestions {
		answers := byEntry[suggestions[i].EntryNumber]
		if answers == nil {
			answers = make(map[string]string)
		}
		suggestions[i].Answers = answers
	}
	return nil
}

func (r *SuggestionRepository) answersFor(userID uint, entryNumber int) (map[string]string, error) {
	var rows []model.SuggestionAnswer
	if err := r.db.Where("user_id = ? AND entry_number = ?", userID, entryNumber).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load suggestion answers failed: %w", err)
	}
	answers := make(map[string]string, len(rows))
	for _, row := range rows {
		answers[row.AnswerKey] = row.AnswerValue
	}
	return answers, nil
}

func answerRows(suggestion *model.Suggestion) []model.SuggestionAnswer {
	rows := make([]model.SuggestionAnswer, 0, len(suggestion.Answers))
	for key, value := range suggestion.Answers {
		rows = append(rows, model.SuggestionAnswer{
			UserID:      suggestion.UserID,
			EntryNumber: suggestion.EntryNumber,
			AnswerKey:   key,
			AnswerValue: value,
		})
	}
	return rows
}

func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqldrv.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateSession(ctx context.Context, s *Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(s).Error
}

// GetSession returns ErrSessionNotFound for unknown ids.
func (r *Repo) GetSession(ctx context.Context, id string) (*Session, error) {
	var s Session
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

// UpdateLanguagesAndPurge sets a new language pair and deletes every message of the
// session in one transaction. It returns the number of messages deleted.
func (r *Repo) UpdateLanguagesAndPurge(ctx context.Context, id, doctorLang, patientLang string) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Session{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"doctor_lang":  doctorLang,
				"patient_lang": patientLang,
			}).Error; err != nil {
			return err
		}
		res := tx.Where("session_id = ?", id).Delete(&Message{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, err
}

func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(m).Error
}

// ListMessages returns all messages of a session, oldest first.
func (r *Repo) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	msgs := []Message{}
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp ASC, id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// SearchMessages matches query case-insensitively as a substring of the original or the
// translated text. An empty query matches nothing.
func (r *Repo) SearchMessages(ctx context.Context, sessionID, query string) ([]Message, error) {
	msgs := []Message{}
	if query == "" {
		return msgs, nil
	}
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Where("(LOWER(original_text) LIKE ? ESCAPE '!' OR LOWER(translated_text) LIKE ? ESCAPE '!')", pattern, pattern).
		Order("timestamp ASC, id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// ClearMessages deletes the messages of a session and keeps the session row.
func (r *Repo) ClearMessages(ctx context.Context, sessionID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&Message{})
	return res.RowsAffected, res.Error
}

// escapeLike uses '!' as the LIKE escape since backslash means different things in SQLite and MySQL.
func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

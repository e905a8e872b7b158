package chat

import "time"

type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

func (r Role) Valid() bool {
	return r == RoleDoctor || r == RolePatient
}

type Session struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	DoctorLang  string    `gorm:"type:varchar(35);not null" json:"doctor_lang"`
	PatientLang string    `gorm:"type:varchar(35);not null" json:"patient_lang"`

	Messages []Message `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Session) TableName() string { return "sessions" }

// TargetLang is the language a message authored by role is translated into.
func (s *Session) TargetLang(role Role) string {
	if role == RoleDoctor {
		return s.PatientLang
	}
	return s.DoctorLang
}

type Message struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID      string    `gorm:"type:varchar(64);not null;index:idx_messages_session_ts,priority:1" json:"session_id"`
	Role           Role      `gorm:"type:varchar(16);not null" json:"role"`
	OriginalText   string    `gorm:"type:text;not null" json:"original_text"`
	TranslatedText *string   `gorm:"type:text" json:"translated_text"`
	AudioURL       *string   `gorm:"type:varchar(512)" json:"audio_url"`
	Timestamp      time.Time `gorm:"not null;index:idx_messages_session_ts,priority:2" json:"timestamp"`
}

func (Message) TableName() string { return "messages" }

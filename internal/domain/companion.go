package domain

import "time"

// CompanionConfigID is the primary key of the single companion
// configuration row.
const CompanionConfigID = "default"

type Gender string

const (
	GenderFemale Gender = "female"
	GenderMale   Gender = "male"
)

type ResponseLength string

const (
	LengthBrief    ResponseLength = "brief"
	LengthModerate ResponseLength = "moderate"
	LengthDetailed ResponseLength = "detailed"
)

type ResponseStyle string

const (
	StyleCasual       ResponseStyle = "casual"
	StyleRomantic     ResponseStyle = "romantic"
	StyleIntellectual ResponseStyle = "intellectual"
)

func IsValidLength(l ResponseLength) bool {
	switch l {
	case LengthBrief, LengthModerate, LengthDetailed:
		return true
	}
	return false
}

func IsValidStyle(s ResponseStyle) bool {
	switch s {
	case StyleCasual, StyleRomantic, StyleIntellectual:
		return true
	}
	return false
}

// CompanionConfig is a single-row table (id = "default") holding every
// admin-tunable template and model parameter. It is read on every chat
// request and only written through the admin endpoints.
type CompanionConfig struct {
	ID            string `json:"id" gorm:"primaryKey"`
	Name          string `json:"name" gorm:"not null"`
	FemalePersona string `json:"femalePersona" gorm:"type:text"`
	MalePersona   string `json:"malePersona" gorm:"type:text"`

	DefaultGender Gender         `json:"defaultGender" gorm:"not null;default:'female'"`
	DefaultLength ResponseLength `json:"defaultLength" gorm:"not null;default:'moderate'"`
	DefaultStyle  ResponseStyle  `json:"defaultStyle" gorm:"not null;default:'casual'"`

	BriefLengthInstruction    string `json:"briefLengthInstruction" gorm:"type:text"`
	ModerateLengthInstruction string `json:"moderateLengthInstruction" gorm:"type:text"`
	DetailedLengthInstruction string `json:"detailedLengthInstruction" gorm:"type:text"`

	CasualStyleInstruction       string `json:"casualStyleInstruction" gorm:"type:text"`
	RomanticStyleInstruction     string `json:"romanticStyleInstruction" gorm:"type:text"`
	IntellectualStyleInstruction string `json:"intellectualStyleInstruction" gorm:"type:text"`

	BriefMaxTokens    int `json:"briefMaxTokens" gorm:"not null;default:150"`
	ModerateMaxTokens int `json:"moderateMaxTokens" gorm:"not null;default:400"`
	DetailedMaxTokens int `json:"detailedMaxTokens" gorm:"not null;default:900"`

	GeneralModel           string  `json:"generalModel" gorm:"not null"`
	LongFormModel          string  `json:"longFormModel"`
	UseLongFormForDetailed bool    `json:"useLongFormForDetailed" gorm:"not null;default:false"`
	Temperature            float64 `json:"temperature" gorm:"not null;default:0.8"`

	WelcomeTitle   string `json:"welcomeTitle"`
	WelcomeMessage string `json:"welcomeMessage" gorm:"type:text"`

	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *CompanionConfig) Persona(g Gender) string {
	if g == GenderMale {
		return c.MalePersona
	}
	return c.FemalePersona
}

func (c *CompanionConfig) LengthInstruction(l ResponseLength) string {
	switch l {
	case LengthBrief:
		return c.BriefLengthInstruction
	case LengthDetailed:
		return c.DetailedLengthInstruction
	default:
		return c.ModerateLengthInstruction
	}
}

func (c *CompanionConfig) StyleInstruction(s ResponseStyle) string {
	switch s {
	case StyleRomantic:
		return c.RomanticStyleInstruction
	case StyleIntellectual:
		return c.IntellectualStyleInstruction
	default:
		return c.CasualStyleInstruction
	}
}

func (c *CompanionConfig) MaxTokens(l ResponseLength) int {
	switch l {
	case LengthBrief:
		return c.BriefMaxTokens
	case LengthDetailed:
		return c.DetailedMaxTokens
	default:
		return c.ModerateMaxTokens
	}
}

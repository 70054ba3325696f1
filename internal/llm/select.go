package llm

import "github.com/mira/companion-chat-backend/internal/domain"

// SelectModel picks the model for a requested response length: the
// long-form model only for detailed responses when the config opts in,
// the general model otherwise. Falls back to the general model when no
// long-form model is configured.
func SelectModel(length domain.ResponseLength, useLongFormForDetailed bool, generalModel, longFormModel string) string {
	if length == domain.LengthDetailed && useLongFormForDetailed && longFormModel != "" {
		return longFormModel
	}
	return generalModel
}

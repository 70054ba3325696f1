package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mira/companion-chat-backend/internal/domain"
	repoPostgres "github.com/mira/companion-chat-backend/internal/repository/postgres"
	"github.com/mira/companion-chat-backend/internal/service"
	"github.com/mira/companion-chat-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOverlay(t *testing.T) {
	tests := []struct {
		name     string
		mode     domain.PersonalityMode
		userName string
		contains string
	}{
		{
			name:     "nurturing",
			mode:     domain.ModeNurturing,
			contains: "gentle",
		},
		{
			name:     "playful",
			mode:     domain.ModePlayful,
			contains: "teasing",
		},
		{
			name:     "dominant",
			mode:     domain.ModeDominant,
			contains: "confident",
		},
		{
			name:     "invalid mode falls back to default",
			mode:     domain.PersonalityMode("sarcastic"),
			contains: "gentle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			overlay := service.BuildOverlay(tt.mode, tt.userName)
			assert.Contains(t, overlay, tt.contains)
			assert.NotContains(t, overlay, "Address them as")
		})
	}

	t.Run("user name woven in when present", func(t *testing.T) {
		overlay := service.BuildOverlay(domain.ModePlayful, "Alex")
		assert.Contains(t, overlay, "Address them as Alex")
	})
}

func TestReplaceConfigTokens(t *testing.T) {
	cfg := &domain.CompanionConfig{
		Name:                      "Aria",
		FemalePersona:             "You present as a woman.",
		BriefLengthInstruction:    "Keep it short.",
		ModerateLengthInstruction: "Use a paragraph.",
		CasualStyleInstruction:    "Be casual.",
	}

	t.Run("substitutes configured tokens", func(t *testing.T) {
		prompt := "You are {{companion_name}}. {{gender_persona}} {{length_instruction}} {{style_instruction}}"
		got := service.ReplaceConfigTokens(prompt, cfg, domain.GenderFemale, domain.LengthBrief, domain.StyleCasual)
		assert.Equal(t, "You are Aria. You present as a woman. Keep it short. Be casual.", got)
	})

	t.Run("unknown tokens are left verbatim", func(t *testing.T) {
		got := service.ReplaceConfigTokens("Hello {{unknown_token}} from {{companion_name}}", cfg, domain.GenderFemale, domain.LengthBrief, domain.StyleCasual)
		assert.Equal(t, "Hello {{unknown_token}} from Aria", got)
	})

	t.Run("repeated tokens all substituted", func(t *testing.T) {
		got := service.ReplaceConfigTokens("{{companion_name}} and {{companion_name}}", cfg, domain.GenderFemale, domain.LengthBrief, domain.StyleCasual)
		assert.Equal(t, "Aria and Aria", got)
	})
}

func TestPromptService_Resolve(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := repoPostgres.NewRepositories(testDB.DB)
	prompts := service.NewPromptService(repos.SystemPrompt, repos.User)
	ctx := context.Background()

	createPrompt := func(t *testing.T, content string, activate bool) *domain.SystemPrompt {
		t.Helper()
		prompt := &domain.SystemPrompt{
			ID:        uuid.New(),
			Name:      "companion-base",
			Content:   content,
			Version:   1,
			CreatedAt: time.Now(),
		}
		require.NoError(t, repos.SystemPrompt.Create(ctx, prompt))
		if activate {
			require.NoError(t, repos.SystemPrompt.Activate(ctx, prompt.ID))
		}
		return prompt
	}

	t.Run("falls back to default when nothing is active", func(t *testing.T) {
		testDB.Truncate(t)
		createPrompt(t, "Stored but inactive.", false)

		base, err := prompts.ResolveBase(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, service.DefaultSystemPrompt, base)
	})

	t.Run("uses the active prompt", func(t *testing.T) {
		testDB.Truncate(t)
		createPrompt(t, "You are a custom companion.", true)

		base, err := prompts.ResolveBase(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, "You are a custom companion.", base)
	})

	t.Run("substitutes the user's chat name", func(t *testing.T) {
		testDB.Truncate(t)
		createPrompt(t, "You are talking with {{name}}.", true)
		user, _ := testutil.NewUserBuilder().WithChatName("Alex").Build(t, testDB.DB)

		base, err := prompts.ResolveBase(ctx, &user.ID)
		require.NoError(t, err)
		assert.Equal(t, "You are talking with Alex.", base)
	})

	t.Run("leaves name placeholder when no chat name set", func(t *testing.T) {
		testDB.Truncate(t)
		createPrompt(t, "You are talking with {{name}}.", true)
		user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)

		base, err := prompts.ResolveBase(ctx, &user.ID)
		require.NoError(t, err)
		assert.Contains(t, base, "{{name}}")
	})

	t.Run("complete prompt layers the overlay below the base", func(t *testing.T) {
		testDB.Truncate(t)
		createPrompt(t, "Base prompt.", true)
		user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)

		complete, err := prompts.ResolveComplete(ctx, &user.ID, "")
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(complete, "Base prompt.\n\n"))
		assert.Contains(t, complete, "gentle")
	})

	t.Run("request override beats the stored preference", func(t *testing.T) {
		testDB.Truncate(t)
		createPrompt(t, "Base prompt.", true)
		user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
		user.PersonalityMode = domain.ModePlayful
		require.NoError(t, testDB.DB.Save(user).Error)

		stored, err := prompts.ResolveComplete(ctx, &user.ID, "")
		require.NoError(t, err)
		assert.Contains(t, stored, "teasing")

		overridden, err := prompts.ResolveComplete(ctx, &user.ID, domain.ModeDominant)
		require.NoError(t, err)
		assert.Contains(t, overridden, "confident")
		assert.NotContains(t, overridden, "teasing")
	})

	t.Run("anonymous user gets default mode", func(t *testing.T) {
		testDB.Truncate(t)

		complete, err := prompts.ResolveComplete(ctx, nil, "")
		require.NoError(t, err)
		assert.Contains(t, complete, "gentle")
	})
}

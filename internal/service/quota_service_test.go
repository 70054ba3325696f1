package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/mira/companion-chat-backend/internal/domain"
	repoPostgres "github.com/mira/companion-chat-backend/internal/repository/postgres"
	"github.com/mira/companion-chat-backend/internal/service"
	"github.com/mira/companion-chat-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekStart(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "wednesday maps to monday of same week",
			in:   time.Date(2025, 3, 19, 15, 30, 0, 0, loc),
			want: time.Date(2025, 3, 17, 0, 0, 0, 0, loc),
		},
		{
			name: "monday noon maps to that morning",
			in:   time.Date(2025, 3, 17, 12, 0, 0, 0, loc),
			want: time.Date(2025, 3, 17, 0, 0, 0, 0, loc),
		},
		{
			name: "monday midnight is its own week start",
			in:   time.Date(2025, 3, 17, 0, 0, 0, 0, loc),
			want: time.Date(2025, 3, 17, 0, 0, 0, 0, loc),
		},
		{
			name: "sunday maps six days back",
			in:   time.Date(2025, 3, 23, 23, 59, 0, 0, loc),
			want: time.Date(2025, 3, 17, 0, 0, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, service.WeekStart(tt.in))
		})
	}
}

func TestQuotaService_AppendGated(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := repoPostgres.NewRepositories(testDB.DB)
	quota := service.NewQuotaService(repos.Message, 3)
	ctx := context.Background()

	t.Run("rejects the fourth message of the week", func(t *testing.T) {
		testDB.Truncate(t)
		user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
		conversation := testutil.CreateConversation(t, testDB.DB, user.ID, "Chat")

		for i := 0; i < 3; i++ {
			_, err := quota.AppendGated(ctx, user.ID, conversation.ID, "hello")
			require.NoError(t, err)
		}

		_, err := quota.AppendGated(ctx, user.ID, conversation.ID, "one too many")
		require.Error(t, err)

		var quotaErr *domain.QuotaError
		require.ErrorAs(t, err, &quotaErr)
		assert.Equal(t, 3, quotaErr.Limit)
		assert.Equal(t, 3, quotaErr.Used)
		assert.Equal(t, service.WeekStart(time.Now()).AddDate(0, 0, 7), quotaErr.ResetsAt)
	})

	t.Run("counts user messages across conversations", func(t *testing.T) {
		testDB.Truncate(t)
		user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
		first := testutil.CreateConversation(t, testDB.DB, user.ID, "First")
		second := testutil.CreateConversation(t, testDB.DB, user.ID, "Second")

		_, err := quota.AppendGated(ctx, user.ID, first.ID, "one")
		require.NoError(t, err)
		_, err = quota.AppendGated(ctx, user.ID, second.ID, "two")
		require.NoError(t, err)
		_, err = quota.AppendGated(ctx, user.ID, first.ID, "three")
		require.NoError(t, err)

		_, err = quota.AppendGated(ctx, user.ID, second.ID, "four")
		var quotaErr *domain.QuotaError
		require.ErrorAs(t, err, &quotaErr)
	})

	t.Run("assistant messages do not consume quota", func(t *testing.T) {
		testDB.Truncate(t)
		user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
		conversation := testutil.CreateConversation(t, testDB.DB, user.ID, "Chat")

		now := time.Now()
		testutil.CreateMessage(t, testDB.DB, conversation.ID, domain.RoleAssistant, "reply one", 1, now)
		testutil.CreateMessage(t, testDB.DB, conversation.ID, domain.RoleAssistant, "reply two", 2, now)
		testutil.CreateMessage(t, testDB.DB, conversation.ID, domain.RoleAssistant, "reply three", 3, now)

		for i := 0; i < 3; i++ {
			_, err := quota.AppendGated(ctx, user.ID, conversation.ID, "hello")
			require.NoError(t, err)
		}
	})

	t.Run("last week's messages do not count", func(t *testing.T) {
		testDB.Truncate(t)
		user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
		conversation := testutil.CreateConversation(t, testDB.DB, user.ID, "Chat")

		lastWeek := service.WeekStart(time.Now()).AddDate(0, 0, -3)
		testutil.CreateMessage(t, testDB.DB, conversation.ID, domain.RoleUser, "old one", 1, lastWeek)
		testutil.CreateMessage(t, testDB.DB, conversation.ID, domain.RoleUser, "old two", 2, lastWeek)
		testutil.CreateMessage(t, testDB.DB, conversation.ID, domain.RoleUser, "old three", 3, lastWeek)

		for i := 0; i < 3; i++ {
			_, err := quota.AppendGated(ctx, user.ID, conversation.ID, "fresh")
			require.NoError(t, err)
		}
		_, err := quota.AppendGated(ctx, user.ID, conversation.ID, "fourth this week")
		var quotaErr *domain.QuotaError
		require.ErrorAs(t, err, &quotaErr)
	})

	t.Run("week boundary is exact", func(t *testing.T) {
		testDB.Truncate(t)
		user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
		conversation := testutil.CreateConversation(t, testDB.DB, user.ID, "Chat")

		weekStart := service.WeekStart(time.Now())
		testutil.CreateMessage(t, testDB.DB, conversation.ID, domain.RoleUser, "just before", 1, weekStart.Add(-time.Second))
		testutil.CreateMessage(t, testDB.DB, conversation.ID, domain.RoleUser, "just after", 2, weekStart.Add(time.Second))

		used, err := repos.Message.CountUserMessagesSince(ctx, user.ID, weekStart)
		require.NoError(t, err)
		assert.Equal(t, int64(1), used, "only messages at or after the week start count")
	})

	t.Run("other users' messages do not count", func(t *testing.T) {
		testDB.Truncate(t)
		alice, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
		bob, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
		aliceChat := testutil.CreateConversation(t, testDB.DB, alice.ID, "Alice")
		bobChat := testutil.CreateConversation(t, testDB.DB, bob.ID, "Bob")

		for i := 0; i < 3; i++ {
			_, err := quota.AppendGated(ctx, alice.ID, aliceChat.ID, "hello")
			require.NoError(t, err)
		}

		_, err := quota.AppendGated(ctx, bob.ID, bobChat.ID, "still under")
		require.NoError(t, err)
	})
}

func TestQuotaService_Usage(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := repoPostgres.NewRepositories(testDB.DB)
	quota := service.NewQuotaService(repos.Message, 3)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	conversation := testutil.CreateConversation(t, testDB.DB, user.ID, "Chat")

	used, limit, resetsAt, err := quota.Usage(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), used)
	assert.Equal(t, 3, limit)
	assert.True(t, resetsAt.After(time.Now()))

	_, err = quota.AppendGated(ctx, user.ID, conversation.ID, "hello")
	require.NoError(t, err)

	used, _, _, err = quota.Usage(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), used)
}

package postgres_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mira/companion-chat-backend/internal/domain"
	"github.com/mira/companion-chat-backend/internal/repository/postgres"
	"github.com/mira/companion-chat-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageRepository_Append(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	ctx := context.Background()

	t.Run("assigns sequence numbers from one", func(t *testing.T) {
		testDB.Truncate(t)
		user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
		conversation := testutil.CreateConversation(t, testDB.DB, user.ID, "Chat")

		first, err := repos.Message.Append(ctx, conversation.ID, domain.RoleUser, "hi")
		require.NoError(t, err)
		second, err := repos.Message.Append(ctx, conversation.ID, domain.RoleAssistant, "hello")
		require.NoError(t, err)

		assert.Equal(t, int64(1), first.Seq)
		assert.Equal(t, int64(2), second.Seq)
	})

	t.Run("sequences are per conversation", func(t *testing.T) {
		testDB.Truncate(t)
		user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
		a := testutil.CreateConversation(t, testDB.DB, user.ID, "A")
		b := testutil.CreateConversation(t, testDB.DB, user.ID, "B")

		_, err := repos.Message.Append(ctx, a.ID, domain.RoleUser, "in a")
		require.NoError(t, err)
		inB, err := repos.Message.Append(ctx, b.ID, domain.RoleUser, "in b")
		require.NoError(t, err)

		assert.Equal(t, int64(1), inB.Seq)
	})

	t.Run("concurrent appends never collide", func(t *testing.T) {
		testDB.Truncate(t)
		user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
		conversation := testutil.CreateConversation(t, testDB.DB, user.ID, "Chat")

		const workers = 8
		var wg sync.WaitGroup
		errs := make([]error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = repos.Message.Append(ctx, conversation.ID, domain.RoleUser, fmt.Sprintf("message %d", i))
			}(i)
		}
		wg.Wait()
		for _, err := range errs {
			require.NoError(t, err)
		}

		messages, err := repos.Message.ListByConversation(ctx, conversation.ID)
		require.NoError(t, err)
		require.Len(t, messages, workers)

		seen := make(map[int64]bool)
		for _, m := range messages {
			assert.False(t, seen[m.Seq], "duplicate seq %d", m.Seq)
			seen[m.Seq] = true
		}
		assert.Equal(t, int64(1), messages[0].Seq)
		assert.Equal(t, int64(workers), messages[len(messages)-1].Seq)
	})

	t.Run("unknown conversation fails", func(t *testing.T) {
		testDB.Truncate(t)
		_, err := repos.Message.Append(ctx, uuid.New(), domain.RoleUser, "orphan")
		assert.Error(t, err)
	})
}

func TestMessageRepository_AppendUserMessageWithQuota(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	ctx := context.Background()

	weekStart := time.Now().Add(-time.Hour)

	t.Run("check and insert are one transaction", func(t *testing.T) {
		testDB.Truncate(t)
		user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
		conversation := testutil.CreateConversation(t, testDB.DB, user.ID, "Chat")

		const limit = 3
		const workers = 6
		var wg sync.WaitGroup
		results := make([]error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, _, results[i] = repos.Message.AppendUserMessageWithQuota(
					ctx, user.ID, conversation.ID, fmt.Sprintf("race %d", i), weekStart, limit)
			}(i)
		}
		wg.Wait()

		var accepted, rejected int
		for _, err := range results {
			if err == nil {
				accepted++
			} else {
				require.ErrorIs(t, err, domain.ErrQuotaExhausted)
				rejected++
			}
		}
		assert.Equal(t, limit, accepted, "exactly the allowance must land, no more")
		assert.Equal(t, workers-limit, rejected)

		count, err := repos.Message.CountUserMessagesSince(ctx, user.ID, weekStart)
		require.NoError(t, err)
		assert.Equal(t, int64(limit), count)
	})

	t.Run("reports usage on rejection", func(t *testing.T) {
		testDB.Truncate(t)
		user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
		conversation := testutil.CreateConversation(t, testDB.DB, user.ID, "Chat")

		for i := 0; i < 2; i++ {
			_, _, err := repos.Message.AppendUserMessageWithQuota(ctx, user.ID, conversation.ID, "ok", weekStart, 2)
			require.NoError(t, err)
		}

		_, used, err := repos.Message.AppendUserMessageWithQuota(ctx, user.ID, conversation.ID, "over", weekStart, 2)
		require.ErrorIs(t, err, domain.ErrQuotaExhausted)
		assert.Equal(t, int64(2), used)
	})

	t.Run("rejected message is not stored", func(t *testing.T) {
		testDB.Truncate(t)
		user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
		conversation := testutil.CreateConversation(t, testDB.DB, user.ID, "Chat")

		_, _, err := repos.Message.AppendUserMessageWithQuota(ctx, user.ID, conversation.ID, "first", weekStart, 1)
		require.NoError(t, err)
		_, _, err = repos.Message.AppendUserMessageWithQuota(ctx, user.ID, conversation.ID, "second", weekStart, 1)
		require.ErrorIs(t, err, domain.ErrQuotaExhausted)

		messages, err := repos.Message.ListByConversation(ctx, conversation.ID)
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, "first", messages[0].Content)
	})
}

func TestMessageRepository_StartConversationWithQuota(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	ctx := context.Background()

	weekStart := time.Now().Add(-time.Hour)

	newConversation := func(userID uuid.UUID, title string) *domain.Conversation {
		return &domain.Conversation{ID: uuid.New(), UserID: userID, Title: title}
	}

	t.Run("creates conversation and first message together", func(t *testing.T) {
		testDB.Truncate(t)
		user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)

		conversation := newConversation(user.ID, "Opening")
		message, _, err := repos.Message.StartConversationWithQuota(ctx, user.ID, conversation, "hello", weekStart, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(1), message.Seq)
		assert.Equal(t, conversation.ID, message.ConversationID)

		stored, err := repos.Conversation.GetByID(ctx, conversation.ID)
		require.NoError(t, err)
		assert.Equal(t, "Opening", stored.Title)
	})

	t.Run("rejection leaves no conversation row", func(t *testing.T) {
		testDB.Truncate(t)
		user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)

		for i := 0; i < 2; i++ {
			_, _, err := repos.Message.StartConversationWithQuota(
				ctx, user.ID, newConversation(user.ID, fmt.Sprintf("chat %d", i)), "ok", weekStart, 2)
			require.NoError(t, err)
		}

		_, used, err := repos.Message.StartConversationWithQuota(
			ctx, user.ID, newConversation(user.ID, "over quota"), "rejected", weekStart, 2)
		require.ErrorIs(t, err, domain.ErrQuotaExhausted)
		assert.Equal(t, int64(2), used)

		var conversations int64
		testDB.DB.Model(&domain.Conversation{}).Count(&conversations)
		assert.Equal(t, int64(2), conversations, "the rejected turn must not leave a conversation behind")

		var messages int64
		testDB.DB.Model(&domain.Message{}).Count(&messages)
		assert.Equal(t, int64(2), messages)
	})

	t.Run("counts messages from existing conversations", func(t *testing.T) {
		testDB.Truncate(t)
		user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
		existing := testutil.CreateConversation(t, testDB.DB, user.ID, "Existing")

		for i := 0; i < 2; i++ {
			_, _, err := repos.Message.AppendUserMessageWithQuota(ctx, user.ID, existing.ID, "old", weekStart, 2)
			require.NoError(t, err)
		}

		_, _, err := repos.Message.StartConversationWithQuota(
			ctx, user.ID, newConversation(user.ID, "one more"), "nope", weekStart, 2)
		assert.ErrorIs(t, err, domain.ErrQuotaExhausted)
	})
}

func TestMessageRepository_RecentHistory(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	conversation := testutil.CreateConversation(t, testDB.DB, user.ID, "Chat")

	now := time.Now()
	for i := 1; i <= 15; i++ {
		role := domain.RoleUser
		if i%2 == 0 {
			role = domain.RoleAssistant
		}
		testutil.CreateMessage(t, testDB.DB, conversation.ID, role, fmt.Sprintf("turn %d", i), int64(i), now)
	}

	history, err := repos.Message.RecentHistory(ctx, conversation.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 10)

	// Last 10 by seq, oldest first.
	assert.Equal(t, "turn 6", history[0].Content)
	assert.Equal(t, "turn 15", history[9].Content)
	for i := 1; i < len(history); i++ {
		assert.Greater(t, history[i].Seq, history[i-1].Seq)
	}
}

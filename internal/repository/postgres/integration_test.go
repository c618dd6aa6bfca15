//go:build integration
// +build integration

package postgres_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"shadownet-chat/internal/domain"
	"shadownet-chat/internal/repository/postgres"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestPostgresContainer manages PostgreSQL container lifecycle for integration tests
type TestPostgresContainer struct {
	container testcontainers.Container
	db        *sql.DB
	connStr   string
}

// setupPostgres starts a PostgreSQL container and returns a database connection
func setupPostgres(t *testing.T) (*TestPostgresContainer, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithDeadline(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connStr := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	// Wait for PostgreSQL to be fully ready
	time.Sleep(2 * time.Second)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err, "failed to connect to PostgreSQL")

	err = runMigrations(db)
	require.NoError(t, err, "failed to run migrations")

	cleanup := func() {
		db.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return &TestPostgresContainer{
		container: container,
		db:        db,
		connStr:   connStr,
	}, cleanup
}

// runMigrations creates the database schema for testing
func runMigrations(db *sql.DB) error {
	schema := `
		CREATE EXTENSION IF NOT EXISTS "pgcrypto";

		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			email VARCHAR(255) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			display_name VARCHAR(50) UNIQUE NOT NULL,
			avatar_color VARCHAR(10) NOT NULL DEFAULT '',
			role VARCHAR(10) NOT NULL DEFAULT 'USER',
			muted_until TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS groups (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(50) UNIQUE NOT NULL CHECK (length(name) >= 3),
			description TEXT NOT NULL DEFAULT '',
			created_by UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			group_id UUID NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
			author_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			body TEXT NOT NULL CHECK (length(body) > 0),
			kind VARCHAR(10) NOT NULL DEFAULT 'TEXT',
			reply_to_id UUID REFERENCES messages(id) ON DELETE SET NULL,
			expires_at TIMESTAMP,
			edited BOOLEAN DEFAULT FALSE NOT NULL,
			poll_question TEXT,
			poll_options TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS reactions (
			message_id UUID NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			emoji VARCHAR(32) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP NOT NULL,
			PRIMARY KEY (message_id, user_id)
		);

		CREATE TABLE IF NOT EXISTS poll_ballots (
			message_id UUID NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			option_index INT NOT NULL CHECK (option_index >= 0),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP NOT NULL,
			PRIMARY KEY (message_id, user_id)
		);

		CREATE TABLE IF NOT EXISTS edit_history (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			message_id UUID NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			old_body TEXT NOT NULL,
			edited_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS banned_terms (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			term VARCHAR(100) UNIQUE NOT NULL,
			mute_minutes INT NOT NULL CHECK (mute_minutes > 0),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP NOT NULL
		);
	`
	_, err := db.Exec(schema)
	return err
}

func createTestUser(t *testing.T, repo *postgres.UserRepository, email, name string) *domain.User {
	t.Helper()
	user := &domain.User{
		Email:        email,
		PasswordHash: "test_hash",
		DisplayName:  name,
		AvatarColor:  "#FF6B6B",
		Role:         domain.RoleUser,
	}
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func createTestGroup(t *testing.T, repo *postgres.GroupRepository, name, createdBy string) *domain.Group {
	t.Helper()
	group := &domain.Group{Name: name, CreatedBy: createdBy}
	require.NoError(t, repo.Create(context.Background(), group))
	return group
}

// TestUserRepository_Integration tests the UserRepository with a real PostgreSQL database
func TestUserRepository_Integration(t *testing.T) {
	pg, cleanup := setupPostgres(t)
	defer cleanup()

	repo := postgres.NewUserRepository(pg.db)

	t.Run("Create_and_GetByID", func(t *testing.T) {
		user := createTestUser(t, repo, "ghost1@example.com", "SilentGhost42")
		assert.NotEmpty(t, user.ID, "user ID should be set after creation")
		assert.False(t, user.CreatedAt.IsZero(), "created_at should be set")

		retrieved, err := repo.GetByID(context.Background(), user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.ID, retrieved.ID)
		assert.Equal(t, "SilentGhost42", retrieved.DisplayName)
		assert.Equal(t, "ghost1@example.com", retrieved.Email)
		assert.Nil(t, retrieved.MutedUntil)
	})

	t.Run("Create_DuplicateEmail", func(t *testing.T) {
		createTestUser(t, repo, "dup@example.com", "CrypticRaven7")

		dup := &domain.User{
			Email:        "dup@example.com",
			PasswordHash: "hash",
			DisplayName:  "HiddenWolf99",
			Role:         domain.RoleUser,
		}
		err := repo.Create(context.Background(), dup)
		assert.ErrorIs(t, err, domain.ErrEmailExists)
	})

	t.Run("Create_DuplicateDisplayName", func(t *testing.T) {
		createTestUser(t, repo, "alias1@example.com", "MaskedOwl13")

		dup := &domain.User{
			Email:        "alias2@example.com",
			PasswordHash: "hash",
			DisplayName:  "MaskedOwl13",
			Role:         domain.RoleUser,
		}
		err := repo.Create(context.Background(), dup)
		assert.ErrorIs(t, err, domain.ErrNameExists)
	})

	t.Run("SetMutedUntil_RoundTrip", func(t *testing.T) {
		user := createTestUser(t, repo, "muted@example.com", "QuietFox21")

		until := time.Now().Add(10 * time.Minute).UTC().Truncate(time.Second)
		require.NoError(t, repo.SetMutedUntil(context.Background(), user.ID, until))

		retrieved, err := repo.GetByID(context.Background(), user.ID)
		require.NoError(t, err)
		require.NotNil(t, retrieved.MutedUntil)
		assert.True(t, retrieved.Muted(time.Now()))
	})

	t.Run("GetByID_NotFound", func(t *testing.T) {
		_, err := repo.GetByID(context.Background(), "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})
}

// TestMessageRepository_Integration exercises message persistence together
// with reaction, ballot and reply-preview hydration.
func TestMessageRepository_Integration(t *testing.T) {
	pg, cleanup := setupPostgres(t)
	defer cleanup()

	userRepo := postgres.NewUserRepository(pg.db)
	groupRepo := postgres.NewGroupRepository(pg.db)
	messageRepo := postgres.NewMessageRepository(pg.db)
	reactionRepo := postgres.NewReactionRepository(pg.db)
	ballotRepo := postgres.NewBallotRepository(pg.db)
	historyRepo := postgres.NewEditHistoryRepository(pg.db)

	author := createTestUser(t, userRepo, "author@example.com", "ShadowLynx5")
	group := createTestGroup(t, groupRepo, "midnight-lounge", author.ID)

	t.Run("Create_and_ListByGroup", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			msg := &domain.ChatMessage{
				GroupID:  group.ID,
				AuthorID: author.ID,
				Body:     fmt.Sprintf("message %d", i),
				Kind:     domain.KindText,
			}
			require.NoError(t, messageRepo.Create(context.Background(), msg))
			assert.NotEmpty(t, msg.ID)
			time.Sleep(10 * time.Millisecond)
		}

		messages, err := messageRepo.ListByGroup(context.Background(), group.ID)
		require.NoError(t, err)
		require.Len(t, messages, 3)
		assert.Equal(t, "message 0", messages[0].Body, "oldest first")
		assert.Equal(t, "ShadowLynx5", messages[0].AuthorName)
	})

	t.Run("ReplyPreview_Hydrated", func(t *testing.T) {
		target := &domain.ChatMessage{
			GroupID:  group.ID,
			AuthorID: author.ID,
			Body:     "original take",
			Kind:     domain.KindText,
		}
		require.NoError(t, messageRepo.Create(context.Background(), target))

		reply := &domain.ChatMessage{
			GroupID:   group.ID,
			AuthorID:  author.ID,
			Body:      "disagree entirely",
			Kind:      domain.KindText,
			ReplyToID: &target.ID,
		}
		require.NoError(t, messageRepo.Create(context.Background(), reply))

		retrieved, err := messageRepo.GetByID(context.Background(), reply.ID)
		require.NoError(t, err)
		require.NotNil(t, retrieved.ReplyTo)
		assert.Equal(t, target.ID, retrieved.ReplyTo.ID)
		assert.Equal(t, "original take", retrieved.ReplyTo.Body)
	})

	t.Run("Poll_WithBallots", func(t *testing.T) {
		voter := createTestUser(t, userRepo, "voter@example.com", "PhantomElk3")

		poll := &domain.ChatMessage{
			GroupID:      group.ID,
			AuthorID:     author.ID,
			Body:         "[POLL] best time?",
			Kind:         domain.KindPoll,
			PollQuestion: "best time?",
			PollOptions:  []string{"midnight", "3am"},
		}
		require.NoError(t, messageRepo.Create(context.Background(), poll))

		require.NoError(t, ballotRepo.Upsert(context.Background(), &domain.PollBallot{
			MessageID: poll.ID, UserID: voter.ID, OptionIndex: 0,
		}))
		// Re-vote lands on the other option without a second row
		require.NoError(t, ballotRepo.Upsert(context.Background(), &domain.PollBallot{
			MessageID: poll.ID, UserID: voter.ID, OptionIndex: 1,
		}))

		retrieved, err := messageRepo.GetByID(context.Background(), poll.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"midnight", "3am"}, retrieved.PollOptions)
		require.Len(t, retrieved.Ballots, 1)
		assert.Equal(t, 1, retrieved.Ballots[0].OptionIndex)
	})

	t.Run("Reactions_UpsertAndDelete", func(t *testing.T) {
		reactor := createTestUser(t, userRepo, "reactor@example.com", "VeiledBear8")

		msg := &domain.ChatMessage{
			GroupID:  group.ID,
			AuthorID: author.ID,
			Body:     "hot take",
			Kind:     domain.KindText,
		}
		require.NoError(t, messageRepo.Create(context.Background(), msg))

		require.NoError(t, reactionRepo.Upsert(context.Background(), &domain.Reaction{
			MessageID: msg.ID, UserID: reactor.ID, Emoji: "🔥",
		}))
		require.NoError(t, reactionRepo.Upsert(context.Background(), &domain.Reaction{
			MessageID: msg.ID, UserID: reactor.ID, Emoji: "💀",
		}))

		retrieved, err := messageRepo.GetByID(context.Background(), msg.ID)
		require.NoError(t, err)
		require.Len(t, retrieved.Reactions, 1)
		assert.Equal(t, "💀", retrieved.Reactions[0].Emoji)

		require.NoError(t, reactionRepo.Delete(context.Background(), msg.ID, reactor.ID))
		_, err = reactionRepo.Get(context.Background(), msg.ID, reactor.ID)
		assert.ErrorIs(t, err, domain.ErrReactionNotFound)
	})

	t.Run("EditHistory_AppendOnly", func(t *testing.T) {
		msg := &domain.ChatMessage{
			GroupID:  group.ID,
			AuthorID: author.ID,
			Body:     "first draft",
			Kind:     domain.KindText,
		}
		require.NoError(t, messageRepo.Create(context.Background(), msg))

		require.NoError(t, historyRepo.Append(context.Background(), &domain.EditHistoryEntry{
			MessageID: msg.ID, OldBody: "first draft", EditedAt: time.Now(),
		}))
		require.NoError(t, messageRepo.UpdateBody(context.Background(), msg.ID, "second draft", true))

		retrieved, err := messageRepo.GetByID(context.Background(), msg.ID)
		require.NoError(t, err)
		assert.Equal(t, "second draft", retrieved.Body)
		assert.True(t, retrieved.Edited)

		history, err := historyRepo.ListByMessage(context.Background(), msg.ID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, "first draft", history[0].OldBody)
	})

	t.Run("Delete_CascadesReactions", func(t *testing.T) {
		msg := &domain.ChatMessage{
			GroupID:  group.ID,
			AuthorID: author.ID,
			Body:     "doomed",
			Kind:     domain.KindText,
		}
		require.NoError(t, messageRepo.Create(context.Background(), msg))
		require.NoError(t, reactionRepo.Upsert(context.Background(), &domain.Reaction{
			MessageID: msg.ID, UserID: author.ID, Emoji: "👍",
		}))

		require.NoError(t, messageRepo.Delete(context.Background(), msg.ID))
		_, err := messageRepo.GetByID(context.Background(), msg.ID)
		assert.ErrorIs(t, err, domain.ErrMessageNotFound)
		_, err = reactionRepo.Get(context.Background(), msg.ID, author.ID)
		assert.ErrorIs(t, err, domain.ErrReactionNotFound)
	})
}

// TestBannedTermRepository_Integration tests the banned term store
func TestBannedTermRepository_Integration(t *testing.T) {
	pg, cleanup := setupPostgres(t)
	defer cleanup()

	repo := postgres.NewBannedTermRepository(pg.db)

	t.Run("Create_LowercasesAndUpserts", func(t *testing.T) {
		term := &domain.BannedTerm{Term: "BadWord", MuteMinutes: 5}
		require.NoError(t, repo.Create(context.Background(), term))
		assert.NotEmpty(t, term.ID)

		// Same term again with a new penalty updates in place
		again := &domain.BannedTerm{Term: "badword", MuteMinutes: 15}
		require.NoError(t, repo.Create(context.Background(), again))

		terms, err := repo.List(context.Background())
		require.NoError(t, err)
		require.Len(t, terms, 1)
		assert.Equal(t, "badword", terms[0].Term)
		assert.Equal(t, 15, terms[0].MuteMinutes)
	})

	t.Run("DeleteByTerm", func(t *testing.T) {
		require.NoError(t, repo.Create(context.Background(), &domain.BannedTerm{Term: "vulgar", MuteMinutes: 5}))
		require.NoError(t, repo.DeleteByTerm(context.Background(), "VULGAR"))

		terms, err := repo.List(context.Background())
		require.NoError(t, err)
		for _, term := range terms {
			assert.NotEqual(t, "vulgar", term.Term)
		}
	})
}

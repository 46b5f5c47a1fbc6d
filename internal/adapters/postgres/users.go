package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AOSC-Dev/buildit/internal/core/domain"
)

const userSelectColumns = `SELECT id, github_login, github_id, github_name, github_avatar_url, github_email, telegram_chat_id`

// GetUserByTelegramChatID looks up the code-forge login linked to a
// chat-surface identity, consulted only for pipeline-creation
// authorisation.
func (r *Repository) GetUserByTelegramChatID(ctx context.Context, telegramChatID int64) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, userSelectColumns+` FROM users WHERE telegram_chat_id = $1`, telegramChatID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by telegram chat id: %w", err)
	}
	return u, nil
}

// LinkGithubLogin implements the chat-surface account-linking flow: a
// Telegram user proves ownership of a GitHub login once, and subsequent
// pipeline creations from that chat are attributed to it.
func (r *Repository) LinkGithubLogin(ctx context.Context, telegramChatID int64, githubLogin string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (telegram_chat_id, github_login)
		VALUES ($1, $2)
		ON CONFLICT (telegram_chat_id) WHERE telegram_chat_id IS NOT NULL DO UPDATE SET github_login = excluded.github_login
		RETURNING id, github_login, github_id, github_name, github_avatar_url, github_email, telegram_chat_id`,
		telegramChatID, githubLogin)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("link github login: %w", err)
	}
	return u, nil
}

func scanUser(row scannable) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.GithubLogin, &u.GithubID, &u.GithubName, &u.GithubAvatarURL, &u.GithubEmail, &u.TelegramChatID)
	return u, err
}

package domain

import "errors"

// UserID identifies a user row.
type UserID int64

var ErrUserNotFound = errors.New("user not found")

// User associates a chat-surface identity with a code-forge login.
// Irrelevant to scheduling correctness; consulted only to authorise
// pipeline creation.
type User struct {
	ID               UserID
	GithubLogin      *string
	GithubID         *int64
	GithubName       *string
	GithubAvatarURL  *string
	GithubEmail      *string
	TelegramChatID   *int64
}

package dto

import (
	"errors"
	"time"

	"github.com/guildpoints/points-ledger/internal/model/email"
)

type LoginRequest struct {
	Password string `json:"password"`
}

func (r *LoginRequest) IsValid() error {
	if r.Password == "" {
		return errors.New("password is empty")
	}
	return nil
}

const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionSet    = "set"
)

type PointsRequest struct {
	Reason *string `json:"reason,omitempty"`
	UserID string  `json:"user_id"`
	Action string  `json:"action"`
	Amount int64   `json:"amount"`
}

func (r *PointsRequest) IsValid() error {
	var userErr error
	if r.UserID == "" {
		userErr = errors.New("user_id is empty")
	}

	var actionErr error
	switch r.Action {
	case ActionAdd, ActionRemove, ActionSet:
	default:
		actionErr = errors.New("action must be add, remove or set")
	}

	var amountErr error
	if r.Amount < 0 {
		amountErr = errors.New("amount must not be negative")
	}
	return errors.Join(userErr, actionErr, amountErr)
}

type PointsResponse struct {
	UserID  string   `json:"user_id"`
	Awarded []string `json:"awarded_achievements,omitempty"`
	Balance int64    `json:"balance"`
}

type BalanceResponse struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

type RankResponse struct {
	UserID string `json:"user_id"`
	Rank   int64  `json:"rank"`
}

type StatsResponse struct {
	Emails      email.Counts `json:"emails"`
	TotalUsers  int64        `json:"total_users"`
	TotalPoints int64        `json:"total_points"`
}

type EmailRequest struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (r *EmailRequest) IsValid() error {
	var userErr error
	if r.UserID == "" {
		userErr = errors.New("user_id is empty")
	}

	var emailErr error
	if r.Email == "" {
		emailErr = errors.New("email is empty")
	}
	return errors.Join(userErr, emailErr)
}

type EmailResponse struct {
	SubmittedAt time.Time `json:"submitted_at"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	Status      string    `json:"status"`
	ID          int64     `json:"id"`
	Overwritten bool      `json:"overwritten"`
}

type ClearedResponse struct {
	Removed int64 `json:"removed"`
}

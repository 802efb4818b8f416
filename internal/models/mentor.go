package models

import "time"

// Mentor зарегистрированный пользователь системы, владелец подписки и клиентов.
type Mentor struct {
	ID           string     // Уникальный идентификатор (uuid)
	Email        string     // Электронная почта, используется как логин
	Name         string     // Отображаемое имя
	PasswordHash string     // bcrypt-хэш пароля
	TrialEndDate *time.Time // Дата окончания пробного периода
	CreatedAt    time.Time
}

// RegisterRequest тело POST /api/auth/register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,max=120"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginRequest тело POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// CreateClientRequest тело POST /api/clients.
type CreateClientRequest struct {
	Name  string `json:"name" validate:"required,max=120"`
	Email string `json:"email" validate:"omitempty,email"`
}

// Client клиент ментора. Количество клиентов ограничено тарифом.
type Client struct {
	ID        int64     `json:"id"`
	MentorID  string    `json:"-"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuthResponse ответ регистрации и входа.
type AuthResponse struct {
	Token    string `json:"token"`
	MentorID string `json:"mentorId"`
}

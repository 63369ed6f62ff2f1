package repository

import (
	"context"
	"time"
)

// Application es un cliente OAuth2 registrado. El core sólo lo lee.
type Application struct {
	ID          int64
	Name        string
	Description string
	Type        string
	Domain      string // se usa como "iss" de los tokens
	ClientID    string // público (uuid)
	SecretID    string // privado; también es la clave HS256 de los tokens
	HomeURL     string
	LoginURL    string
	LogoutURL   string
	CallbackURL string

	// Lifetimes en segundos.
	IDTokenExp      int64
	AccessTokenExp  int64
	RefreshTokenExp int64

	CreatedAt time.Time
}

// CreateApplicationInput se usa desde el seed/CLI.
type CreateApplicationInput struct {
	Name            string
	Description     string
	Type            string
	Domain          string
	ClientID        string
	SecretID        string
	HomeURL         string
	LoginURL        string
	LogoutURL       string
	CallbackURL     string
	IDTokenExp      int64
	AccessTokenExp  int64
	RefreshTokenExp int64
}

// ApplicationRepository es el lookup de aplicaciones.
type ApplicationRepository interface {
	// GetByClientID retorna ErrNotFound si no existe.
	GetByClientID(ctx context.Context, clientID string) (*Application, error)

	// Create inserta una aplicación y retorna su id.
	Create(ctx context.Context, in CreateApplicationInput) (int64, error)
}

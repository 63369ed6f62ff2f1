package repository

import "context"

// DataAccess agrupa los repositorios. WithTx ejecuta fn dentro de una
// transacción; el DataAccess que recibe fn está ligado a ella. Si fn
// retorna error se hace rollback.
type DataAccess interface {
	Applications() ApplicationRepository
	Users() UserRepository
	AuthorizationRequests() AuthorizationRequestRepository
	AuthorizationCodes() AuthorizationCodeRepository
	RefreshTokens() RefreshTokenRepository
	PasswordResets() PasswordResetRepository

	WithTx(ctx context.Context, fn func(tx DataAccess) error) error
	Ping(ctx context.Context) error
}

package logger

import (
	"go.uber.org/zap"
)

// Field es un alias de zap.Field.
type Field = zap.Field

// ─── HTTP ───

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field { return zap.String("method", v) }
func Path(v string) zap.Field { return zap.String("path", v) }
func Status(v int) zap.Field { return zap.Int("status", v) }
func DurationMs(v int64) zap.Field { return zap.Int64("duration_ms", v) }
func Bytes(v int) zap.Field { return zap.Int("bytes", v) }
func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }
func UserAgent(v string) zap.Field { return zap.String("user_agent", v) }

// ─── OAuth2 ───

// ClientID es el client_id público de la aplicación.
func ClientID(v string) zap.Field { return zap.String("client_id", v) }

// UserID se loguea como número (ids de usuario son int64).
func UserID(v int64) zap.Field { return zap.Int64("user_id", v) }

// PID es el public id de una authorization request o de un password reset.
func PID(v string) zap.Field { return zap.String("pid", v) }

func GrantType(v string) zap.Field { return zap.String("grant_type", v) }
func Scope(v string) zap.Field { return zap.String("scope", v) }

// Email loguea el email enmascarado (a…@e….com).
func Email(v string) zap.Field { return zap.String("email", MaskEmail(v)) }

// ─── Sistema ───

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field { return zap.String("op", v) }

// Layer: controller, service, store.
func Layer(v string) zap.Field { return zap.String("layer", v) }

func Err(err error) zap.Field { return zap.Error(err) }

// ─── Genéricos ───

func Count(v int) zap.Field { return zap.Int("count", v) }
func Table(v string) zap.Field { return zap.String("table", v) }
func Any(key string, v any) zap.Field { return zap.Any(key, v) }
func String(key, v string) zap.Field { return zap.String(key, v) }
func Int(key string, v int) zap.Field { return zap.Int(key, v) }
func Int64(key string, v int64) zap.Field { return zap.Int64(key, v) }
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }

// Package logger expone un logger Zap único con scoping por contexto.
//
// Init() se llama una sola vez desde el comando `iam serve` (o cualquier otro
// subcomando). Los middlewares HTTP inyectan un logger con request_id en el
// contexto y las capas de abajo lo recuperan con From(ctx):
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("TokenService.Exchange"))
//	log.Info("tokens issued", logger.ClientID(clientID), logger.GrantType(grant))
//
// "dev" escribe en consola con colores, "prod" escribe JSON.
package logger

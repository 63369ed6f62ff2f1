// Package email entrega los códigos del reset de password.
//
// Sender es el transporte (SMTP vía go-mail, o log en desarrollo); Mailer
// arma el mensaje. No hay templates: el cuerpo es texto plano fijo.
package email

// Package relay forwards received iMessages to an email inbox over SMTP.
//
// Each message becomes one plain-text email. Port 465 is dialed with
// implicit TLS, any other port upgrades with STARTTLS, and credentials are
// sent with SASL PLAIN.
package relay

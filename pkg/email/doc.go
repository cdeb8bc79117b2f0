// Package email sends transactional mail for the email channel backend and
// the digest composer. The Sender interface has a Postmark implementation
// for production and an in-memory DevSender for development and tests.
package email

package service

import "errors"

var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrGuardianNotFound     = errors.New("guardian not found")
	ErrStudentNotFound      = errors.New("student not found")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrGatewayNotConfigured = errors.New("payment gateway is not configured")
)

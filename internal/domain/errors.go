package domain

import "errors"

var (
	// ErrNotFound marca un sujeto, snapshot o version inexistente.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput marca entradas mal formadas rechazadas en la construccion.
	ErrInvalidInput = errors.New("invalid input")
)

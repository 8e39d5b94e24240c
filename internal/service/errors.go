package service

import (
	"fmt"

	"github.com/google/uuid"
)

type ErrRunNotFound struct {
	error
}

func NewErrRunNotFound(id uuid.UUID) *ErrRunNotFound {
	return &ErrRunNotFound{fmt.Errorf("run %s not found", id)}
}

type ErrInvalidQuery struct {
	error
}

func NewErrInvalidQuery(message string) *ErrInvalidQuery {
	return &ErrInvalidQuery{fmt.Errorf("bad request: %s", message)}
}

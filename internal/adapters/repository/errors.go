package repository

import (
	"errors"

	"github.com/okian/arena/internal/domain/model"
)

// Sentinel kinds for store errors.
var (
	ErrNotFound = model.ErrNotFound
	ErrConflict = errors.New("record already exists")
	ErrBadSeed  = errors.New("invalid seed file")
)

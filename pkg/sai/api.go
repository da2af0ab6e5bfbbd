package sai

import (
	"context"
	"errors"
)

// Errors returned by every backend. Callers match them with errors.Is.
var (
	ErrObjectExists     = errors.New("object already exists")
	ErrUnknownHandle    = errors.New("unknown object handle")
	ErrUnknownAttribute = errors.New("attribute not set")
	ErrObjectInUse      = errors.New("object in use")
	ErrInvalidObject    = errors.New("referenced object does not exist")
)

// API is the hardware programming interface. The same four calls serve
// every object type; the key and attribute names select the behavior.
//
// Calls are synchronous. A call that returns an error has not changed
// hardware state.
type API interface {
	Create(ctx context.Context, key Key, attrs Attributes) (Handle, error)
	Remove(ctx context.Context, h Handle) error
	GetAttribute(ctx context.Context, h Handle, attr string) (string, error)
	SetAttribute(ctx context.Context, h Handle, attr, value string) error
}

// Lister is implemented by backends that can enumerate programmed objects.
type Lister interface {
	Objects(ctx context.Context, t ObjectType) ([]Handle, error)
}

package cli

import (
	"errors"
	"fmt"

	"pastebox/internal/store"
)

type notFoundError struct {
	kind string
	id   string
}

func (e notFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.kind, e.id)
}

func errNotFound(kind, id string) error {
	return notFoundError{kind: kind, id: id}
}

// itemErr maps store errors about name to CLI errors.
func itemErr(name string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return errNotFound("item", name)
	}
	return err
}

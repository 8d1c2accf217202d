package local

import (
	"errors"
	"io/fs"

	"github.com/JonMunkholm/dummycsv/internal/errs"
)

// mapError translates filesystem errors into *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return errs.Wrap(errs.KindNotFound, msg, err)
	case errors.Is(err, fs.ErrPermission):
		return errs.Wrap(errs.KindPermissionDenied, msg, err)
	}
	return errs.Wrap(errs.KindQueryFailed, msg, err)
}

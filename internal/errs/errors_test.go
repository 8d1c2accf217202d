package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_ThroughWrapping(t *testing.T) {
	cause := errors.New("no rows in result set")
	err := fmt.Errorf("get dataset: %w", Wrap(KindNotFound, "dataset not found", cause))

	assert.True(t, IsNotFound(err))
	assert.False(t, IsConflict(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "[not_found] schema not found", New(KindNotFound, "schema not found").Error())
	assert.Equal(t, "[timeout] query: boom", Wrap(KindTimeout, "query", errors.New("boom")).Error())
	assert.Equal(t, "[invalid_input] bad key \"a/b\"", Newf(KindInvalidInput, "bad key %q", "a/b").Error())
}

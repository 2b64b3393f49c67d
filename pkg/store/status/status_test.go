package status

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	assert.True(t, IsReadError(ErrEntityNotFound))
	assert.True(t, IsReadError(ErrEntityFind.Wrap(fmt.Errorf("bad json"))))
	assert.False(t, IsReadError(ErrOperation))

	assert.True(t, IsWriteError(ErrOperation.Wrap(fmt.Errorf("disk full"))))
	assert.True(t, IsWriteError(ErrInvalidArgument))
	assert.False(t, IsWriteError(ErrEntityNotFound))
}

package result

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	assert.Equal(t, Result{Success: true, Message: "done"}, OK("done"))
	assert.Equal(t, Result{Success: false, Message: "boom"}, Fail("boom"))
	assert.Equal(t, Result{Success: false, Message: "route 1 failed"}, Failf("route %d failed", 1))
}

func TestFromError(t *testing.T) {
	assert.Equal(t, OK("applied"), FromError(nil, "applied"))
	assert.Equal(t, Fail("denied"), FromError(errors.New("denied"), "applied"))
}

func TestString(t *testing.T) {
	assert.Equal(t, "ok: x", OK("x").String())
	assert.Equal(t, "failed: y", Fail("y").String())
}

package logsvc

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/semed/merenda/core"
	apisvc "github.com/semed/merenda/services/api"
)

func newTestLogger(debug bool) (*RollbarLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	conf := &core.Config{Env: "TEST", Debug: debug}
	return NewRollbarLogger(log.New(&buf, "", 0), conf), &buf
}

func TestRollbarLogger_print(t *testing.T) {
	logger, buf := newTestLogger(false)

	logger.Error("submitting conference", errors.New("boom"), map[string]interface{}{"delivery": "d-1"}, apisvc.Me{ID: "u-1", Email: "ana@semed.gov.br"})

	assert.Equal(t, "ERROR submitting conference\nboom\nmap[delivery:d-1]\n", buf.String())
}

func TestRollbarLogger_debug(t *testing.T) {
	logger, buf := newTestLogger(false)
	logger.Debug("refreshing")
	assert.Empty(t, buf.String(), "debug is silent outside debug mode")

	logger, buf = newTestLogger(true)
	logger.Debug("refreshing")
	assert.Equal(t, "DEBUG refreshing\n", buf.String())
}

func TestRollbarLogger_prepare(t *testing.T) {
	logger, _ := newTestLogger(false)
	err := errors.New("boom")
	me := apisvc.Me{ID: "u-1"}

	args := logger.prepare("msg", []interface{}{err, me, apisvc.Me{ID: "u-2"}})

	assert.Equal(t, []interface{}{"msg", err}, args, "accounts are reported as the person, not as data")
}

package logger

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	oldFlags := log.Flags()
	oldOut := log.Writer()
	log.SetFlags(0)
	log.SetOutput(&buf)
	t.Cleanup(func() {
		log.SetFlags(oldFlags)
		log.SetOutput(oldOut)
		SetQuiet(false)
	})
	return &buf
}

func TestLoggerPrefixesComponent(t *testing.T) {
	buf := captureLog(t)
	l := New("session")

	l.Infof("started %s", "rows")
	l.Warnf("slow tick %d", 3)
	l.Errorf("sensor gone")

	assert.Equal(t, "session: started rows\nsession: WARNING: slow tick 3\nsession: ERROR: sensor gone\n", buf.String())
}

func TestQuietSuppressesInfoOnly(t *testing.T) {
	buf := captureLog(t)
	SetQuiet(true)
	l := New("backend")

	l.Infof("connected")
	l.Errorf("publish failed")

	assert.Equal(t, "backend: ERROR: publish failed\n", buf.String())
}
